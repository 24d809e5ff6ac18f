package table

// ChangedColumns lists the columns of after that are new or whose cells differ
// from before, followed by the columns of before that after dropped.
// A change in row count marks every shared column as changed.
func ChangedColumns(before, after *Table) []string {
	var out []string
	sameRows := before.NRows() == after.NRows()
	for _, c := range after.Columns() {
		if !before.HasColumn(c) || !sameRows {
			out = append(out, c)
			continue
		}
		b, a := before.df.Col(c), after.df.Col(c)
		for i := 0; i < a.Len(); i++ {
			if cell(b, i) != cell(a, i) {
				out = append(out, c)
				break
			}
		}
	}
	for _, c := range before.Columns() {
		if !after.HasColumn(c) {
			out = append(out, c)
		}
	}
	return out
}
