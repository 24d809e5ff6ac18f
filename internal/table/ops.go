package table

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

var (
	ErrUnknownStrategy = errors.New("unknown fill strategy")
	ErrUnknownOperator = errors.New("unknown comparison operator")
	ErrUnknownKind     = errors.New("unknown column kind")
	ErrNotNumeric      = errors.New("column has no numeric values")
)

// Fill strategies accepted by FillMissing and ReplaceNegative.
const (
	FillValue  = "value"
	FillMean   = "mean"
	FillMedian = "median"
	FillMode   = "mode"
	FillZero   = "zero"
	FillFfill  = "ffill"
	FillBfill  = "bfill"
)

func (t *Table) requireColumns(cols []string) error {
	for _, c := range cols {
		if !t.HasColumn(c) {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, c)
		}
	}
	return nil
}

func (t *Table) colsOrAll(cols []string) []string {
	if len(cols) == 0 {
		return t.df.Names()
	}
	return cols
}

func (t *Table) colIndex() map[string]int {
	idx := map[string]int{}
	for i, n := range t.df.Names() {
		idx[n] = i
	}
	return idx
}

// FillMissing replaces missing cells in cols (every column when empty).
// Numeric strategies skip non-numeric columns when cols is empty.
func (t *Table) FillMissing(cols []string, strategy string, fill any) (*Table, error) {
	if err := t.requireColumns(cols); err != nil {
		return nil, err
	}
	explicit := len(cols) > 0
	targets := t.colsOrAll(cols)
	mark := func(s series.Series, i int) bool { return s.Elem(i).IsNA() }
	return t.fillWhere(targets, explicit, strategy, fill, mark)
}

// ReplaceNegative replaces negative numeric cells in cols using strategy,
// computed over the non-negative values.
func (t *Table) ReplaceNegative(cols []string, strategy string, fill any) (*Table, error) {
	if err := t.requireColumns(cols); err != nil {
		return nil, err
	}
	var targets []string
	for _, c := range t.colsOrAll(cols) {
		if isNumeric(t.df.Col(c).Type()) || len(cols) > 0 {
			targets = append(targets, c)
		}
	}
	mark := func(s series.Series, i int) bool {
		f, ok := numeric(s, i)
		return ok && f < 0
	}
	return t.fillWhere(targets, true, strategy, fill, mark)
}

func (t *Table) fillWhere(targets []string, explicit bool, strategy string, fill any, mark func(series.Series, int) bool) (*Table, error) {
	header, rows := t.grid()
	idx := t.colIndex()
	var changed []string
	for _, c := range targets {
		s := t.df.Col(c)
		var marked []int
		for i := 0; i < s.Len(); i++ {
			if mark(s, i) {
				marked = append(marked, i)
			}
		}
		if len(marked) == 0 {
			continue
		}
		isMarked := make([]bool, s.Len())
		for _, i := range marked {
			isMarked[i] = true
		}
		col := idx[c]
		switch strategy {
		case FillFfill, FillBfill:
			last := ""
			step, start, end := 1, 0, len(rows)
			if strategy == FillBfill {
				step, start, end = -1, len(rows)-1, -1
			}
			for r := start; r != end; r += step {
				if isMarked[r] {
					rows[r][col] = last
					continue
				}
				if v := rows[r][col]; v != "" {
					last = v
				}
			}
		default:
			repl, ok, err := fillValue(s, isMarked, strategy, fill)
			if err != nil {
				if !explicit && errors.Is(err, ErrNotNumeric) {
					continue
				}
				return nil, fmt.Errorf("column %q: %w", c, err)
			}
			if !ok {
				continue
			}
			for _, r := range marked {
				rows[r][col] = repl
			}
		}
		changed = append(changed, c)
	}
	if len(changed) == 0 {
		return t, nil
	}
	pinned := t.pinnedExcept(changed...)
	for _, c := range changed {
		if isNumeric(t.df.Col(c).Type()) && allNumeric(rows, idx[c]) {
			pinned[c] = series.Float
		}
	}
	return fromGrid(header, rows, pinned)
}

// allNumeric reports whether every non-empty cell of column c parses as a number.
func allNumeric(rows [][]string, c int) bool {
	for _, r := range rows {
		if r[c] == "" {
			continue
		}
		if _, err := strconv.ParseFloat(r[c], 64); err != nil {
			return false
		}
	}
	return true
}

// fillValue computes the replacement text over the unmarked cells of s.
func fillValue(s series.Series, marked []bool, strategy string, fill any) (string, bool, error) {
	var nums []float64
	for i := 0; i < s.Len(); i++ {
		if marked[i] {
			continue
		}
		if f, ok := numeric(s, i); ok {
			nums = append(nums, f)
		}
	}
	switch strategy {
	case FillValue:
		if fill == nil {
			return "", false, nil
		}
		return formatAny(fill), true, nil
	case FillZero:
		return "0", true, nil
	case FillMean:
		if len(nums) == 0 {
			return "", false, ErrNotNumeric
		}
		return formatFloat(mean(nums)), true, nil
	case FillMedian:
		if len(nums) == 0 {
			return "", false, ErrNotNumeric
		}
		return formatFloat(median(nums)), true, nil
	case FillMode:
		counts := map[string]int{}
		var order []string
		for i := 0; i < s.Len(); i++ {
			if marked[i] || s.Elem(i).IsNA() {
				continue
			}
			v := cell(s, i)
			if counts[v] == 0 {
				order = append(order, v)
			}
			counts[v]++
		}
		if len(order) == 0 {
			return "", false, nil
		}
		best := order[0]
		for _, v := range order[1:] {
			if counts[v] > counts[best] || (counts[v] == counts[best] && v < best) {
				best = v
			}
		}
		return best, true, nil
	}
	return "", false, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
}

func formatAny(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatFloat(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// DropMissing removes rows with a missing value in any of cols (every column when empty).
func (t *Table) DropMissing(cols []string) (*Table, error) {
	if err := t.requireColumns(cols); err != nil {
		return nil, err
	}
	targets := t.colsOrAll(cols)
	var keep []int
	for r := 0; r < t.df.Nrow(); r++ {
		ok := true
		for _, c := range targets {
			if t.df.Col(c).Elem(r).IsNA() {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, r)
		}
	}
	return t.subset(keep), nil
}

// Clip bounds the numeric values of col to [lo, hi]; a nil bound is open.
func (t *Table) Clip(col string, lo, hi *float64) (*Table, error) {
	if err := t.requireColumns([]string{col}); err != nil {
		return nil, err
	}
	s := t.df.Col(col)
	vals := make([]string, s.Len())
	for i := range vals {
		f, ok := numeric(s, i)
		if !ok {
			vals[i] = cell(s, i)
			continue
		}
		if lo != nil && f < *lo {
			f = *lo
		}
		if hi != nil && f > *hi {
			f = *hi
		}
		vals[i] = formatFloat(f)
	}
	header, rows := t.grid()
	c := t.colIndex()[col]
	for r := range rows {
		rows[r][c] = vals[r]
	}
	pinned := t.pinnedExcept(col)
	if allNumeric(rows, c) {
		pinned[col] = series.Float
	}
	return fromGrid(header, rows, pinned)
}

func (t *Table) replaceColumn(col string, vals []string) (*Table, error) {
	header, rows := t.grid()
	c := t.colIndex()[col]
	for r := range rows {
		rows[r][c] = vals[r]
	}
	return fromGrid(header, rows, t.pinnedExcept(col))
}

// Filter keeps the rows whose col value satisfies op against target.
// Supported operators: == != > >= < <= isna notna.
func (t *Table) Filter(col, op string, target any) (*Table, error) {
	if err := t.requireColumns([]string{col}); err != nil {
		return nil, err
	}
	switch op {
	case "==", "!=", ">", ">=", "<", "<=", "isna", "notna":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
	s := t.df.Col(col)
	var keep []int
	for r := 0; r < s.Len(); r++ {
		if matches(value(s, r), op, target) {
			keep = append(keep, r)
		}
	}
	return t.subset(keep), nil
}

// Where keeps the rows for which keep returns true.
func (t *Table) Where(keep func(row map[string]any) (bool, error)) (*Table, error) {
	var idx []int
	for r := 0; r < t.df.Nrow(); r++ {
		ok, err := keep(t.Row(r))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r, err)
		}
		if ok {
			idx = append(idx, r)
		}
	}
	return t.subset(idx), nil
}

func matches(v any, op string, target any) bool {
	switch op {
	case "isna":
		return v == nil
	case "notna":
		return v != nil
	}
	if v == nil || target == nil {
		if op == "!=" {
			return v != target
		}
		return op == "==" && v == nil && target == nil
	}
	cmp, ok := compare(v, target)
	if !ok {
		return op == "!="
	}
	switch op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	}
	return false
}

// compare orders a and b numerically, then as times, then as text.
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
	}
	sa, sb := formatAny(a), formatAny(b)
	if ta, ok := parseTime(sa, ""); ok {
		if tb, ok := parseTime(sb, ""); ok {
			return ta.Compare(tb), true
		}
	}
	return strings.Compare(sa, sb), true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil && !math.IsNaN(f)
	}
	return 0, false
}

// WithColumn sets col (appending it when new) from vals; nil values are missing.
func (t *Table) WithColumn(col string, vals []any) (*Table, error) {
	if len(vals) != t.df.Nrow() {
		return nil, fmt.Errorf("column %q: got %d values for %d rows", col, len(vals), t.df.Nrow())
	}
	header, rows := t.grid()
	c, exists := t.colIndex()[col]
	if !exists {
		header = append(header, col)
		c = len(header) - 1
		for r := range rows {
			rows[r] = append(rows[r], "")
		}
	}
	for r := range rows {
		rows[r][c] = formatAny(vals[r])
	}
	pinned := t.pinnedExcept(col)
	if typ, ok := uniformType(vals); ok {
		pinned[col] = typ
	}
	return fromGrid(header, rows, pinned)
}

// uniformType returns the column type shared by every non-nil value.
func uniformType(vals []any) (series.Type, bool) {
	var typ series.Type
	for _, v := range vals {
		var vt series.Type
		switch v.(type) {
		case nil:
			continue
		case float64:
			vt = series.Float
		case int, int64:
			vt = series.Int
		case bool:
			vt = series.Bool
		case string:
			vt = series.String
		default:
			return "", false
		}
		if typ != "" && typ != vt {
			return "", false
		}
		typ = vt
	}
	return typ, typ != ""
}

// MapValues rewrites the cells of col found in mapping; other cells are kept.
func (t *Table) MapValues(col string, mapping map[string]any) (*Table, error) {
	if err := t.requireColumns([]string{col}); err != nil {
		return nil, err
	}
	s := t.df.Col(col)
	vals := make([]string, s.Len())
	for i := range vals {
		vals[i] = cell(s, i)
		if to, ok := mapping[vals[i]]; ok {
			vals[i] = formatAny(to)
		}
	}
	return t.replaceColumn(col, vals)
}

// Cast converts col to kind ("int", "float", "str"/"string", "bool").
// Cells that cannot be converted become missing.
func (t *Table) Cast(col, kind string) (*Table, error) {
	if err := t.requireColumns([]string{col}); err != nil {
		return nil, err
	}
	var typ series.Type
	switch strings.ToLower(kind) {
	case "int", "int64":
		typ = series.Int
	case "float", "float64":
		typ = series.Float
	case "str", "string", "object":
		typ = series.String
	case "bool":
		typ = series.Bool
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	s := t.df.Col(col)
	vals := make([]string, s.Len())
	for i := range vals {
		v := cell(s, i)
		if typ == series.Int && v != "" {
			if f, ok := numeric(s, i); ok {
				v = strconv.Itoa(int(f))
			} else {
				v = ""
			}
		}
		vals[i] = v
	}
	header, rows := t.grid()
	c := t.colIndex()[col]
	for r := range rows {
		rows[r][c] = vals[r]
	}
	pinned := t.pinnedExcept()
	pinned[col] = typ
	return fromGrid(header, rows, pinned)
}

// ToDatetime normalizes col to ISO dates ("2006-01-02", or with a clock when
// any value has one). format may be a Go layout or strftime-style; empty
// tries common layouts. Unparseable cells become missing.
func (t *Table) ToDatetime(col, format string) (*Table, error) {
	if err := t.requireColumns([]string{col}); err != nil {
		return nil, err
	}
	layout := goLayout(format)
	s := t.df.Col(col)
	times := make([]*time.Time, s.Len())
	withClock := false
	for i := range times {
		tm, ok := parseTime(cell(s, i), layout)
		if !ok {
			continue
		}
		times[i] = &tm
		if tm.Hour() != 0 || tm.Minute() != 0 || tm.Second() != 0 {
			withClock = true
		}
	}
	out := "2006-01-02"
	if withClock {
		out = "2006-01-02 15:04:05"
	}
	vals := make([]string, len(times))
	for i, tm := range times {
		if tm != nil {
			vals[i] = tm.Format(out)
		}
	}
	header, rows := t.grid()
	c := t.colIndex()[col]
	for r := range rows {
		rows[r][c] = vals[r]
	}
	pinned := t.pinnedExcept()
	pinned[col] = series.String
	return fromGrid(header, rows, pinned)
}

// DropDuplicates keeps the first row for each distinct combination of cols
// (every column when empty).
func (t *Table) DropDuplicates(cols []string) (*Table, error) {
	if err := t.requireColumns(cols); err != nil {
		return nil, err
	}
	targets := t.colsOrAll(cols)
	idx := t.colIndex()
	_, rows := t.grid()
	seen := map[string]bool{}
	var keep []int
	for r, row := range rows {
		parts := make([]string, len(targets))
		for i, c := range targets {
			parts[i] = row[idx[c]]
		}
		key := strings.Join(parts, "\x1f")
		if seen[key] {
			continue
		}
		seen[key] = true
		keep = append(keep, r)
	}
	return t.subset(keep), nil
}

// SortBy orders rows by col; missing values sort last.
func (t *Table) SortBy(col string, descending bool) (*Table, error) {
	if err := t.requireColumns([]string{col}); err != nil {
		return nil, err
	}
	if isNumeric(t.df.Col(col).Type()) {
		order := dataframe.Sort(col)
		if descending {
			order = dataframe.RevSort(col)
		}
		df := t.df.Arrange(order)
		if df.Err != nil {
			return nil, df.Err
		}
		return &Table{df: df}, nil
	}
	s := t.df.Col(col)
	idx := seq(0, s.Len())
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := value(s, idx[i]), value(s, idx[j])
		if a == nil || b == nil {
			return a != nil
		}
		cmp, _ := compare(a, b)
		if descending {
			return cmp > 0
		}
		return cmp < 0
	})
	return t.subset(idx), nil
}

// Select keeps the named columns in the given order.
func (t *Table) Select(cols []string) (*Table, error) {
	if err := t.requireColumns(cols); err != nil {
		return nil, err
	}
	return New(t.df.Select(cols))
}
