package table

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// cell formats one element as text; missing values format as "".
func cell(s series.Series, i int) string {
	e := s.Elem(i)
	if e.IsNA() {
		return ""
	}
	if s.Type() == series.Float {
		return formatFloat(e.Float())
	}
	return e.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// value converts one element into a plain Go value: nil, int, float64, bool or string.
func value(s series.Series, i int) any {
	e := s.Elem(i)
	if e.IsNA() {
		return nil
	}
	switch s.Type() {
	case series.Int:
		if v, err := e.Int(); err == nil {
			return v
		}
	case series.Float:
		return e.Float()
	case series.Bool:
		if v, err := e.Bool(); err == nil {
			return v
		}
	}
	return e.String()
}

// numeric reports the float value of element i, parsing text when needed.
func numeric(s series.Series, i int) (float64, bool) {
	e := s.Elem(i)
	if e.IsNA() {
		return 0, false
	}
	switch s.Type() {
	case series.Int, series.Float:
		f := e.Float()
		return f, !math.IsNaN(f)
	case series.Bool:
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(e.String()), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func isNumeric(t series.Type) bool { return t == series.Int || t == series.Float }

// Value returns the cell at (col, row) as a plain Go value, nil when missing
// or out of range.
func (t *Table) Value(col string, row int) any {
	if !t.HasColumn(col) || row < 0 || row >= t.df.Nrow() {
		return nil
	}
	return value(t.df.Col(col), row)
}

// Row returns row i keyed by column name.
func (t *Table) Row(i int) map[string]any {
	out := make(map[string]any, t.df.Ncol())
	for _, n := range t.df.Names() {
		out[n] = value(t.df.Col(n), i)
	}
	return out
}

func (t *Table) grid() ([]string, [][]string) {
	header := t.df.Names()
	cols := make([]series.Series, len(header))
	for i, n := range header {
		cols[i] = t.df.Col(n)
	}
	rows := make([][]string, t.df.Nrow())
	for r := range rows {
		row := make([]string, len(header))
		for c := range cols {
			row[c] = cell(cols[c], r)
		}
		rows[r] = row
	}
	return header, rows
}

// pinnedExcept returns the current column types minus the named columns.
func (t *Table) pinnedExcept(changed ...string) map[string]series.Type {
	skip := map[string]bool{}
	for _, c := range changed {
		skip[c] = true
	}
	out := map[string]series.Type{}
	names := t.df.Names()
	for i, typ := range t.df.Types() {
		if !skip[names[i]] {
			out[names[i]] = typ
		}
	}
	return out
}

// fromGrid loads text cells into a typed table. Columns listed in pinned keep
// the given type; the rest are detected from their values.
func fromGrid(header []string, rows [][]string, pinned map[string]series.Type) (*Table, error) {
	if len(rows) == 0 {
		cols := make([]series.Series, len(header))
		for i, n := range header {
			typ, ok := pinned[n]
			if !ok {
				typ = series.String
			}
			cols[i] = series.New([]string{}, typ, n)
		}
		return New(dataframe.New(cols...))
	}
	records := make([][]string, 0, len(rows)+1)
	records = append(records, header)
	records = append(records, rows...)
	opts := []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(nanValues),
	}
	if len(pinned) > 0 {
		opts = append(opts, dataframe.WithTypes(pinned))
	}
	return New(dataframe.LoadRecords(records, opts...))
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02 15:04",
	"2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006", "02-01-2006",
	"1/2/2006 15:04", "1/2/2006 15:04:05", "1/2/2006", "02 Jan 2006", "Jan 2, 2006",
}

// ParseTime parses s with the first matching layout among the accepted date
// and datetime forms.
func ParseTime(s string) (time.Time, bool) { return parseTime(s, "") }

func parseTime(s string, layout string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if layout != "" {
		t, err := time.Parse(layout, s)
		return t, err == nil
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var strftime = strings.NewReplacer(
	"%Y", "2006", "%m", "01", "%d", "02", "%H", "15", "%M", "04", "%S", "05",
	"%y", "06", "%b", "Jan", "%B", "January", "%I", "03", "%p", "PM",
)

// goLayout accepts either a Go layout or a strftime-style format.
func goLayout(format string) string {
	if strings.Contains(format, "%") {
		return strftime.Replace(format)
	}
	return format
}
