package script

import (
	"fmt"
	"math"
	"sort"

	"go.starlark.net/starlark"

	"github.com/KaramelBytes/flightinsights/internal/table"
)

// Table exposes a *table.Table to scripts as the value bound to df.
// Every transforming method returns a new Table.
type Table struct {
	t *table.Table
}

var (
	_ starlark.HasAttrs = (*Table)(nil)
	_ starlark.Mapping  = (*Table)(nil)
)

// NewTable wraps t for use as a script value.
func NewTable(t *table.Table) *Table { return &Table{t: t} }

// Unwrap returns the wrapped table.
func (v *Table) Unwrap() *table.Table { return v.t }

func (v *Table) String() string {
	return fmt.Sprintf("<table %d rows x %d columns>", v.t.NRows(), v.t.NCols())
}
func (v *Table) Type() string          { return "table" }
func (v *Table) Freeze()               {}
func (v *Table) Truth() starlark.Bool  { return v.t.NRows() > 0 }
func (v *Table) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: table") }

// Get implements df["column"], returning the column values as a list.
func (v *Table) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("table index must be a column name, got %s", k.Type())
	}
	vals, err := v.t.Column(name)
	if err != nil {
		return nil, false, err
	}
	return toList(vals), true, nil
}

func (v *Table) Attr(name string) (starlark.Value, error) {
	fn, ok := tableMethods[name]
	if !ok {
		return nil, nil
	}
	return starlark.NewBuiltin(name, fn).BindReceiver(v), nil
}

func (v *Table) AttrNames() []string {
	names := make([]string, 0, len(tableMethods))
	for n := range tableMethods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type builtinFn = func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)

var tableMethods map[string]builtinFn

func init() {
	tableMethods = map[string]builtinFn{
		// read helpers
		"columns":         tableColumns,
		"nrows":           tableNRows,
		"column":          tableColumn,
		"numeric_columns": tableNumericColumns,
		"rows":            tableRows,
		"value_counts":    tableValueCounts,
		"month_counts":    tableMonthCounts,
		"unique":          tableUnique,
		"sum":             aggregate((*table.Table).Sum),
		"mean":            aggregate((*table.Table).Mean),
		"median":          aggregate((*table.Table).Median),
		"min":             aggregate((*table.Table).Min),
		"max":             aggregate((*table.Table).Max),
		"count":           tableCount,
		// transforms
		"copy":             tableCopy,
		"fill_missing":     tableFillMissing,
		"drop_missing":     tableDropMissing,
		"clip":             tableClip,
		"replace_negative": tableReplaceNegative,
		"filter":           tableFilter,
		"where":            tableWhere,
		"derive":           tableDerive,
		"map":              tableMap,
		"cast":             tableCast,
		"to_datetime":      tableToDatetime,
		"drop_duplicates":  tableDropDuplicates,
		"sort_by":          tableSortBy,
		"head":             tableHead,
		"select":           tableSelect,
		"rename":           tableRename,
	}
}

func recv(b *starlark.Builtin) *table.Table { return b.Receiver().(*Table).t }

func wrap(t *table.Table, err error) (starlark.Value, error) {
	if err != nil {
		return nil, err
	}
	return NewTable(t), nil
}

func tableColumns(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return stringsToList(recv(b).Columns()), nil
}

func tableNRows(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.MakeInt(recv(b).NRows()), nil
}

func tableNumericColumns(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return stringsToList(recv(b).NumericColumns()), nil
}

func tableColumn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &col); err != nil {
		return nil, err
	}
	vals, err := recv(b).Column(col)
	if err != nil {
		return nil, err
	}
	return toList(vals), nil
}

func tableRows(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	t := recv(b)
	rows := make([]starlark.Value, t.NRows())
	for i := range rows {
		rows[i] = rowDict(t, i)
	}
	return starlark.NewList(rows), nil
}

func countsDict(counts []table.CategoryCount) *starlark.Dict {
	d := starlark.NewDict(len(counts))
	for _, c := range counts {
		_ = d.SetKey(starlark.String(c.Value), starlark.MakeInt(c.Count))
	}
	return d
}

func tableValueCounts(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &col); err != nil {
		return nil, err
	}
	vc, err := recv(b).ValueCounts(col)
	if err != nil {
		return nil, err
	}
	return countsDict(vc), nil
}

func tableMonthCounts(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &col); err != nil {
		return nil, err
	}
	mc, err := recv(b).MonthCounts(col)
	if err != nil {
		return nil, err
	}
	return countsDict(mc), nil
}

func tableUnique(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &col); err != nil {
		return nil, err
	}
	u, err := recv(b).Unique(col)
	if err != nil {
		return nil, err
	}
	return stringsToList(u), nil
}

func aggregate(fn func(*table.Table, string) (float64, error)) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var col string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &col); err != nil {
			return nil, err
		}
		f, err := fn(recv(b), col)
		if err != nil {
			return nil, err
		}
		return starlark.Float(f), nil
	}
}

func tableCount(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &col); err != nil {
		return nil, err
	}
	n, err := recv(b).Count(col)
	if err != nil {
		return nil, err
	}
	return starlark.MakeInt(n), nil
}

func tableCopy(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return b.Receiver(), nil
}

func tableFillMissing(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cols, value starlark.Value = starlark.None, starlark.None
	strategy := table.FillValue
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "columns?", &cols, "strategy?", &strategy, "value?", &value); err != nil {
		return nil, err
	}
	names, err := stringList(cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	fill, err := toGo(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	if strategy == table.FillValue && fill == nil {
		return nil, fmt.Errorf("%s: strategy %q needs a value", b.Name(), strategy)
	}
	return wrap(recv(b).FillMissing(names, strategy, fill))
}

func tableReplaceNegative(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cols, value starlark.Value = starlark.None, starlark.None
	strategy := table.FillMedian
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "columns?", &cols, "strategy?", &strategy, "value?", &value); err != nil {
		return nil, err
	}
	names, err := stringList(cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	fill, err := toGo(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return wrap(recv(b).ReplaceNegative(names, strategy, fill))
}

func tableDropMissing(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cols starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "columns?", &cols); err != nil {
		return nil, err
	}
	names, err := stringList(cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return wrap(recv(b).DropMissing(names))
}

func tableClip(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col string
	var lower, upper starlark.Value = starlark.None, starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &col, "lower?", &lower, "upper?", &upper); err != nil {
		return nil, err
	}
	lo, err := optFloat(lower)
	if err != nil {
		return nil, fmt.Errorf("%s: lower: %w", b.Name(), err)
	}
	hi, err := optFloat(upper)
	if err != nil {
		return nil, fmt.Errorf("%s: upper: %w", b.Name(), err)
	}
	return wrap(recv(b).Clip(col, lo, hi))
}

func optFloat(v starlark.Value) (*float64, error) {
	if v == starlark.None {
		return nil, nil
	}
	f, ok := starlark.AsFloat(v)
	if !ok {
		return nil, fmt.Errorf("want a number or None, got %s", v.Type())
	}
	return &f, nil
}

func tableFilter(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col, op string
	var value starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &col, "op", &op, "value?", &value); err != nil {
		return nil, err
	}
	target, err := toGo(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return wrap(recv(b).Filter(col, op, target))
}

func tableWhere(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "predicate", &fn); err != nil {
		return nil, err
	}
	t := recv(b)
	return wrap(t.Where(func(row map[string]any) (bool, error) {
		out, err := starlark.Call(thread, fn, starlark.Tuple{mapToDict(t.Columns(), row)}, nil)
		if err != nil {
			return false, err
		}
		return bool(out.Truth()), nil
	}))
}

func tableDerive(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var fn starlark.Callable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "fn", &fn); err != nil {
		return nil, err
	}
	t := recv(b)
	vals := make([]any, t.NRows())
	for i := range vals {
		out, err := starlark.Call(thread, fn, starlark.Tuple{rowDict(t, i)}, nil)
		if err != nil {
			return nil, err
		}
		if vals[i], err = toGo(out); err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", b.Name(), i, err)
		}
	}
	return wrap(t.WithColumn(name, vals))
}

func tableMap(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col string
	var mapping *starlark.Dict
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &col, "mapping", &mapping); err != nil {
		return nil, err
	}
	m := make(map[string]any, mapping.Len())
	for _, item := range mapping.Items() {
		k, err := toGo(item[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		v, err := toGo(item[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		m[fmt.Sprint(k)] = v
	}
	return wrap(recv(b).MapValues(col, m))
}

func tableCast(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col, kind string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &col, "kind", &kind); err != nil {
		return nil, err
	}
	return wrap(recv(b).Cast(col, kind))
}

func tableToDatetime(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col, format string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &col, "format?", &format); err != nil {
		return nil, err
	}
	return wrap(recv(b).ToDatetime(col, format))
}

func tableDropDuplicates(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cols starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "columns?", &cols); err != nil {
		return nil, err
	}
	names, err := stringList(cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return wrap(recv(b).DropDuplicates(names))
}

func tableSortBy(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col string
	var desc bool
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &col, "descending?", &desc); err != nil {
		return nil, err
	}
	return wrap(recv(b).SortBy(col, desc))
}

func tableHead(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	return NewTable(recv(b).Head(n)), nil
}

func tableSelect(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cols starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "columns", &cols); err != nil {
		return nil, err
	}
	names, err := stringList(cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return wrap(recv(b).Select(names))
}

func tableRename(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var mapping *starlark.Dict
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "columns", &mapping); err != nil {
		return nil, err
	}
	m := make(map[string]string, mapping.Len())
	for _, item := range mapping.Items() {
		from, ok1 := starlark.AsString(item[0])
		to, ok2 := starlark.AsString(item[1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%s: column names must be strings", b.Name())
		}
		m[from] = to
	}
	return wrap(recv(b).RenameColumns(m))
}

// Conversions between table cells and script values.

func toStarlark(v any) starlark.Value {
	switch x := v.(type) {
	case nil:
		return starlark.None
	case int:
		return starlark.MakeInt(x)
	case int64:
		return starlark.MakeInt64(x)
	case float64:
		if math.IsNaN(x) {
			return starlark.None
		}
		return starlark.Float(x)
	case bool:
		return starlark.Bool(x)
	case string:
		return starlark.String(x)
	}
	return starlark.String(fmt.Sprint(v))
}

func toGo(v starlark.Value) (any, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Int:
		i, ok := x.Int64()
		if !ok {
			return nil, fmt.Errorf("integer %s out of range", x)
		}
		return int(i), nil
	case starlark.Float:
		if math.IsNaN(float64(x)) {
			return nil, nil
		}
		return float64(x), nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.String:
		return string(x), nil
	}
	return nil, fmt.Errorf("unsupported cell value of type %s", v.Type())
}

func toList(vals []any) *starlark.List {
	out := make([]starlark.Value, len(vals))
	for i, v := range vals {
		out[i] = toStarlark(v)
	}
	return starlark.NewList(out)
}

func stringsToList(vals []string) *starlark.List {
	out := make([]starlark.Value, len(vals))
	for i, v := range vals {
		out[i] = starlark.String(v)
	}
	return starlark.NewList(out)
}

// stringList accepts None, a single column name, or an iterable of names.
func stringList(v starlark.Value) ([]string, error) {
	if v == nil || v == starlark.None {
		return nil, nil
	}
	if s, ok := starlark.AsString(v); ok {
		return []string{s}, nil
	}
	it, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("want column name or list of names, got %s", v.Type())
	}
	iter := it.Iterate()
	defer iter.Done()
	var out []string
	var x starlark.Value
	for iter.Next(&x) {
		s, ok := starlark.AsString(x)
		if !ok {
			return nil, fmt.Errorf("column names must be strings, got %s", x.Type())
		}
		out = append(out, s)
	}
	return out, nil
}

func rowDict(t *table.Table, i int) *starlark.Dict {
	return mapToDict(t.Columns(), t.Row(i))
}

func mapToDict(cols []string, row map[string]any) *starlark.Dict {
	d := starlark.NewDict(len(cols))
	for _, c := range cols {
		_ = d.SetKey(starlark.String(c), toStarlark(row[c]))
	}
	return d
}
