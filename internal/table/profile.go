package table

import (
	"fmt"
	"math"
	"strings"
)

// Profile is a markdown-friendly summary of a table.
type Profile struct {
	Name    string
	Rows    int
	Cols    []ColumnSummary
	Samples [][]string
}

// ColumnSummary captures inferred kind and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string // numeric|datetime|categorical|text
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min  float64
	Max  float64
	Mean float64
	Std  float64
	// Categorical top values
	TopValues    []CategoryCount
	ExampleTexts []string
}

// Profile summarizes every column of t, keeping sampleRows example rows.
func (t *Table) Profile(name string, sampleRows int) *Profile {
	if sampleRows <= 0 {
		sampleRows = 5
	}
	p := &Profile{Name: name, Rows: t.NRows()}
	for _, col := range t.Columns() {
		p.Cols = append(p.Cols, t.summarize(col))
	}
	_, rows := t.Head(sampleRows).grid()
	p.Samples = rows
	return p
}

func (t *Table) summarize(col string) ColumnSummary {
	s := t.df.Col(col)
	cs := ColumnSummary{Name: col}
	counts := map[string]int{}
	var order []string
	var nums []float64
	dates := 0
	for i := 0; i < s.Len(); i++ {
		if s.Elem(i).IsNA() {
			cs.Missing++
			continue
		}
		cs.NonNull++
		v := cell(s, i)
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
		if f, ok := numeric(s, i); ok {
			nums = append(nums, f)
		} else if _, ok := parseTime(v, ""); ok {
			dates++
		}
	}
	cs.Unique = len(counts)
	switch {
	case cs.NonNull > 0 && len(nums) == cs.NonNull:
		cs.Kind = "numeric"
		cs.Min, cs.Max = math.Inf(1), math.Inf(-1)
		for _, f := range nums {
			cs.Min = math.Min(cs.Min, f)
			cs.Max = math.Max(cs.Max, f)
		}
		cs.Mean = mean(nums)
		if len(nums) > 1 {
			var ss float64
			for _, f := range nums {
				ss += (f - cs.Mean) * (f - cs.Mean)
			}
			cs.Std = math.Sqrt(ss / float64(len(nums)-1))
		}
	case cs.NonNull > 0 && dates == cs.NonNull:
		cs.Kind = "datetime"
	case cs.Unique <= 20 || cs.Unique*2 <= cs.NonNull:
		cs.Kind = "categorical"
		top := sortCounts(counts)
		if len(top) > 5 {
			top = top[:5]
		}
		cs.TopValues = top
	default:
		cs.Kind = "text"
		if len(order) > 3 {
			order = order[:3]
		}
		cs.ExampleTexts = order
	}
	return cs
}

// Markdown renders the profile for humans and prompts.
func (p *Profile) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if p.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", p.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", p.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(p.Cols)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range p.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case "numeric":
			b.WriteString(fmt.Sprintf("; min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std))
		case "categorical":
			if len(c.TopValues) > 0 {
				b.WriteString("; top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		case "text":
			if len(c.ExampleTexts) > 0 {
				b.WriteString("; e.g., ")
				for i, ex := range c.ExampleTexts {
					if i > 0 {
						b.WriteString(" | ")
					}
					b.WriteString(safeVal(ex))
				}
			}
		}
		b.WriteString("\n")
	}
	if len(p.Samples) > 0 {
		b.WriteString("\n[SAMPLE ROWS]\n")
		for _, r := range p.Samples {
			b.WriteString("- ")
			b.WriteString(strings.Join(escapeAll(r), ", "))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
