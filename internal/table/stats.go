package table

import (
	"fmt"
	"math"
	"sort"
)

// CategoryCount is a value and the number of rows holding it.
type CategoryCount struct {
	Value string
	Count int
}

// Column returns the values of col as plain Go values (nil when missing).
func (t *Table) Column(col string) ([]any, error) {
	if err := t.requireColumns([]string{col}); err != nil {
		return nil, err
	}
	s := t.df.Col(col)
	out := make([]any, s.Len())
	for i := range out {
		out[i] = value(s, i)
	}
	return out, nil
}

// NumericColumns lists the int and float columns in order.
func (t *Table) NumericColumns() []string {
	var out []string
	names := t.df.Names()
	for i, typ := range t.df.Types() {
		if isNumeric(typ) {
			out = append(out, names[i])
		}
	}
	return out
}

func (t *Table) numbers(col string) ([]float64, error) {
	if err := t.requireColumns([]string{col}); err != nil {
		return nil, err
	}
	s := t.df.Col(col)
	var out []float64
	for i := 0; i < s.Len(); i++ {
		if f, ok := numeric(s, i); ok {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotNumeric, col)
	}
	return out, nil
}

// Count returns the number of non-missing cells in col.
func (t *Table) Count(col string) (int, error) {
	if err := t.requireColumns([]string{col}); err != nil {
		return 0, err
	}
	s := t.df.Col(col)
	n := 0
	for i := 0; i < s.Len(); i++ {
		if !s.Elem(i).IsNA() {
			n++
		}
	}
	return n, nil
}

// Sum adds the numeric values of col, skipping missing cells.
func (t *Table) Sum(col string) (float64, error) {
	vals, err := t.numbers(col)
	if err != nil {
		return 0, err
	}
	s := 0.0
	for _, v := range vals {
		s += v
	}
	return s, nil
}

func (t *Table) Mean(col string) (float64, error) {
	vals, err := t.numbers(col)
	if err != nil {
		return 0, err
	}
	return mean(vals), nil
}

func (t *Table) Median(col string) (float64, error) {
	vals, err := t.numbers(col)
	if err != nil {
		return 0, err
	}
	return median(vals), nil
}

func (t *Table) Min(col string) (float64, error) {
	vals, err := t.numbers(col)
	if err != nil {
		return 0, err
	}
	m := math.Inf(1)
	for _, v := range vals {
		m = math.Min(m, v)
	}
	return m, nil
}

func (t *Table) Max(col string) (float64, error) {
	vals, err := t.numbers(col)
	if err != nil {
		return 0, err
	}
	m := math.Inf(-1)
	for _, v := range vals {
		m = math.Max(m, v)
	}
	return m, nil
}

func mean(vals []float64) float64 {
	s := 0.0
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}

func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Unique returns the distinct non-missing values of col in first-seen order.
func (t *Table) Unique(col string) ([]string, error) {
	if err := t.requireColumns([]string{col}); err != nil {
		return nil, err
	}
	s := t.df.Col(col)
	seen := map[string]bool{}
	var out []string
	for i := 0; i < s.Len(); i++ {
		if s.Elem(i).IsNA() {
			continue
		}
		v := cell(s, i)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, nil
}

// ValueCounts counts the non-missing values of col, most frequent first;
// ties are ordered by value.
func (t *Table) ValueCounts(col string) ([]CategoryCount, error) {
	if err := t.requireColumns([]string{col}); err != nil {
		return nil, err
	}
	s := t.df.Col(col)
	counts := map[string]int{}
	for i := 0; i < s.Len(); i++ {
		if !s.Elem(i).IsNA() {
			counts[cell(s, i)]++
		}
	}
	return sortCounts(counts), nil
}

// TopValue returns the most frequent value of col.
func (t *Table) TopValue(col string) (CategoryCount, error) {
	vc, err := t.ValueCounts(col)
	if err != nil {
		return CategoryCount{}, err
	}
	if len(vc) == 0 {
		return CategoryCount{}, fmt.Errorf("column %q has no values", col)
	}
	return vc[0], nil
}

// MonthCounts counts rows per month name ("January", ...) of the dates in col,
// busiest month first. Cells that are not dates are skipped.
func (t *Table) MonthCounts(col string) ([]CategoryCount, error) {
	if err := t.requireColumns([]string{col}); err != nil {
		return nil, err
	}
	s := t.df.Col(col)
	counts := map[string]int{}
	for i := 0; i < s.Len(); i++ {
		if tm, ok := parseTime(cell(s, i), ""); ok {
			counts[tm.Month().String()]++
		}
	}
	return sortCounts(counts), nil
}

func sortCounts(counts map[string]int) []CategoryCount {
	out := make([]CategoryCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, CategoryCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}
