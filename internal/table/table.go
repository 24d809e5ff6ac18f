package table

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/flightinsights/internal/utils"
)

var (
	ErrSourceNotFound      = errors.New("source not found")
	ErrSourceUnparseable   = errors.New("source unparseable")
	ErrColumnCountMismatch = errors.New("column count mismatch")
	ErrNoCommonColumns     = errors.New("no common columns")
	ErrPersist             = errors.New("persist table")
	ErrUnknownColumn       = errors.New("unknown column")
	ErrInvalidChunkSize    = errors.New("chunk size must be positive")
)

// Cells matching one of these are loaded as missing.
var nanValues = []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL", "None", "<nil>"}

// Table is an immutable tabular value with named, ordered columns.
// Every operation returns a new Table.
type Table struct {
	df dataframe.DataFrame
}

// New wraps a gota DataFrame, surfacing its deferred error.
func New(df dataframe.DataFrame) (*Table, error) {
	if df.Err != nil {
		return nil, df.Err
	}
	return &Table{df: df}, nil
}

// FromRecords builds a table from a header row followed by data rows.
// Column types are detected from the values.
func FromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrSourceUnparseable)
	}
	return fromGrid(records[0], records[1:], nil)
}

// Load reads a CSV (or the first sheet of an XLSX workbook) from path.
func Load(path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return loadXLSX(path, "")
	default:
		return loadCSV(path)
	}
}

func loadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(nanValues),
		dataframe.WithDelimiter(sniffDelimiter(path)),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnparseable, path, df.Err)
	}
	if df.Ncol() == 0 {
		return nil, fmt.Errorf("%w: %s: no columns", ErrSourceUnparseable, path)
	}
	return &Table{df: df}, nil
}

func loadXLSX(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnparseable, path, err)
	}
	defer f.Close()
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: %s: workbook has no sheets", ErrSourceUnparseable, path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnparseable, path, err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: %s: sheet %q is empty", ErrSourceUnparseable, path, sheet)
	}
	header := rows[0]
	body := make([][]string, 0, len(rows)-1)
	for _, r := range rows[1:] {
		// excelize trims trailing empty cells
		row := make([]string, len(header))
		copy(row, r)
		body = append(body, row)
	}
	t, err := fromGrid(header, body, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnparseable, path, err)
	}
	return t, nil
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}

// DataFrame exposes the underlying gota frame.
func (t *Table) DataFrame() dataframe.DataFrame { return t.df.Copy() }

func (t *Table) Columns() []string { return t.df.Names() }
func (t *Table) NRows() int        { return t.df.Nrow() }
func (t *Table) NCols() int        { return t.df.Ncol() }

// HasColumn reports whether name is a column of t.
func (t *Table) HasColumn(name string) bool {
	for _, n := range t.df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Types returns column kinds keyed by name ("string", "int", "float", "bool").
func (t *Table) Types() map[string]string {
	out := make(map[string]string, t.df.Ncol())
	names := t.df.Names()
	for i, typ := range t.df.Types() {
		out[names[i]] = string(typ)
	}
	return out
}

// Records returns the header row followed by all data rows; missing cells are empty.
func (t *Table) Records() [][]string {
	header, rows := t.grid()
	return append([][]string{header}, rows...)
}

// Rename replaces every column name positionally. On count mismatch the
// receiver is returned unchanged together with ErrColumnCountMismatch.
func (t *Table) Rename(names []string) (*Table, error) {
	old := t.df.Names()
	if len(names) != len(old) {
		return t, fmt.Errorf("%w: table has %d columns, got %d names", ErrColumnCountMismatch, len(old), len(names))
	}
	cols := make([]series.Series, len(old))
	for i, n := range old {
		s := t.df.Col(n).Copy()
		s.Name = strings.TrimSpace(names[i])
		cols[i] = s
	}
	return New(dataframe.New(cols...))
}

// RenameColumns renames the columns present in mapping and leaves the rest.
func (t *Table) RenameColumns(mapping map[string]string) (*Table, error) {
	names := t.df.Names()
	for from := range mapping {
		if !t.HasColumn(from) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, from)
		}
	}
	next := make([]string, len(names))
	for i, n := range names {
		next[i] = n
		if to, ok := mapping[n]; ok {
			next[i] = to
		}
	}
	return t.Rename(next)
}

// SharedColumns returns the sorted intersection of the column names of a and b.
func SharedColumns(a, b *Table) []string {
	inB := map[string]bool{}
	for _, n := range b.df.Names() {
		inB[n] = true
	}
	var keys []string
	for _, n := range a.df.Names() {
		if inB[n] {
			keys = append(keys, n)
		}
	}
	sort.Strings(keys)
	return keys
}

// Merge inner-joins a and b on every column name they share.
// The result holds a's columns in order followed by b's non-key columns.
func Merge(a, b *Table) (*Table, error) {
	keys := SharedColumns(a, b)
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %v and %v", ErrNoCommonColumns, a.Columns(), b.Columns())
	}
	// Key columns are compared as text so that an int key on one side
	// still matches the same key loaded as float or string on the other.
	left := a.withStringColumns(keys)
	right := b.withStringColumns(keys)
	joined := left.InnerJoin(right, keys...)
	if joined.Err != nil {
		return nil, fmt.Errorf("merge: %w", joined.Err)
	}
	order := append([]string{}, a.df.Names()...)
	isKey := map[string]bool{}
	for _, k := range keys {
		isKey[k] = true
	}
	for _, n := range b.df.Names() {
		if !isKey[n] {
			order = append(order, n)
		}
	}
	joined = joined.Select(order)
	if joined.Err != nil {
		return nil, fmt.Errorf("merge: %w", joined.Err)
	}
	out := &Table{df: joined}
	header, rows := out.grid()
	// Keys are re-detected; the other columns keep their source types.
	pinned := map[string]series.Type{}
	for _, src := range []*Table{a, b} {
		names := src.df.Names()
		for i, typ := range src.df.Types() {
			if !isKey[names[i]] {
				pinned[names[i]] = typ
			}
		}
	}
	return fromGrid(header, rows, pinned)
}

func (t *Table) withStringColumns(cols []string) dataframe.DataFrame {
	df := t.df.Copy()
	for _, c := range cols {
		s := df.Col(c)
		vals := make([]string, s.Len())
		for i := range vals {
			vals[i] = cell(s, i)
			if s.Elem(i).IsNA() {
				vals[i] = "NaN"
			}
		}
		df = df.Mutate(series.New(vals, series.String, c))
	}
	return df
}

// Head returns the first n rows (all rows when n exceeds the row count).
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n >= t.df.Nrow() {
		return t
	}
	return t.subset(seq(0, n))
}

// Chunk splits t into consecutive tables of at most size rows.
func (t *Table) Chunk(size int) ([]*Table, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, size)
	}
	var out []*Table
	for start := 0; start < t.df.Nrow(); start += size {
		end := start + size
		if end > t.df.Nrow() {
			end = t.df.Nrow()
		}
		out = append(out, t.subset(seq(start, end)))
	}
	return out, nil
}

func (t *Table) subset(idx []int) *Table {
	if len(idx) == 0 {
		return t.empty()
	}
	return &Table{df: t.df.Subset(idx)}
}

func (t *Table) empty() *Table {
	names := t.df.Names()
	types := t.df.Types()
	cols := make([]series.Series, len(names))
	for i, n := range names {
		cols[i] = series.New([]string{}, types[i], n)
	}
	return &Table{df: dataframe.New(cols...)}
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

// SaveCSV atomically writes t as CSV, creating parent directories.
func (t *Table) SaveCSV(path string) error {
	var buf bytes.Buffer
	if err := t.df.WriteCSV(&buf); err != nil {
		return fmt.Errorf("%w: encode csv: %v", ErrPersist, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// SaveXLSX writes t to a single-sheet workbook.
func (t *Table) SaveXLSX(path, sheet string) error {
	if sheet == "" {
		sheet = "Sheet1"
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	header, rows := t.grid()
	write := func(r int, vals []any) error {
		ref, err := excelize.CoordinatesToCellName(1, r)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, ref, &vals)
	}
	hv := make([]any, len(header))
	for i, h := range header {
		hv[i] = h
	}
	if err := write(1, hv); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	for r := range rows {
		vals := make([]any, len(header))
		for c, name := range header {
			vals[c] = t.Value(name, r)
		}
		if err := write(r+2, vals); err != nil {
			return fmt.Errorf("%w: %v", ErrPersist, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// Preview renders the first n rows as a pipe table for prompts.
func (t *Table) Preview(n int) string {
	header, rows := t.Head(n).grid()
	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(strings.Join(escapeAll(header), " | "))
	b.WriteString(" |\n|")
	for range header {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString("| ")
		b.WriteString(strings.Join(escapeAll(r), " | "))
		b.WriteString(" |\n")
	}
	return b.String()
}

func escapeAll(vals []string) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		if v == "" {
			v = "NaN"
		}
		out[i] = strings.ReplaceAll(strings.ReplaceAll(v, "\n", " "), "|", "/")
	}
	return out
}
