package script

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/KaramelBytes/flightinsights/internal/table"
)

// numpyModule is bound to np: NaN handling and scalar/list numerics.
var numpyModule = &starlarkstruct.Module{
	Name: "np",
	Members: starlark.StringDict{
		"nan":    starlark.Float(math.NaN()),
		"isnan":  starlark.NewBuiltin("np.isnan", npIsNaN),
		"abs":    starlark.NewBuiltin("np.abs", npAbs),
		"round":  starlark.NewBuiltin("np.round", npRound),
		"mean":   starlark.NewBuiltin("np.mean", reduce(func(v []float64) float64 { return sum(v) / float64(len(v)) })),
		"median": starlark.NewBuiltin("np.median", reduce(medianOf)),
		"sum":    starlark.NewBuiltin("np.sum", reduce(sum)),
		"min":    starlark.NewBuiltin("np.min", reduce(minOf)),
		"max":    starlark.NewBuiltin("np.max", reduce(maxOf)),
	},
}

// pandasModule is bound to pd: missing-value checks and date helpers.
var pandasModule = &starlarkstruct.Module{
	Name: "pd",
	Members: starlark.StringDict{
		"NaT":          starlark.None,
		"isna":         starlark.NewBuiltin("pd.isna", pdIsNA),
		"isnull":       starlark.NewBuiltin("pd.isnull", pdIsNA),
		"notna":        starlark.NewBuiltin("pd.notna", pdNotNA),
		"to_datetime":  starlark.NewBuiltin("pd.to_datetime", pdToDatetime),
		"year":         starlark.NewBuiltin("pd.year", datePart(func(t time.Time) starlark.Value { return starlark.MakeInt(t.Year()) })),
		"month":        starlark.NewBuiltin("pd.month", datePart(func(t time.Time) starlark.Value { return starlark.MakeInt(int(t.Month())) })),
		"day":          starlark.NewBuiltin("pd.day", datePart(func(t time.Time) starlark.Value { return starlark.MakeInt(t.Day()) })),
		"month_name":   starlark.NewBuiltin("pd.month_name", datePart(func(t time.Time) starlark.Value { return starlark.String(t.Month().String()) })),
		"day_name":     starlark.NewBuiltin("pd.day_name", datePart(func(t time.Time) starlark.Value { return starlark.String(t.Weekday().String()) })),
		"days_between": starlark.NewBuiltin("pd.days_between", pdDaysBetween),
	},
}

func isMissing(v starlark.Value) bool {
	switch x := v.(type) {
	case starlark.NoneType:
		return true
	case starlark.Float:
		return math.IsNaN(float64(x))
	}
	return false
}

func oneArg(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
		return nil, err
	}
	return x, nil
}

func npIsNaN(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	x, err := oneArg(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(isMissing(x)), nil
}

func npAbs(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	x, err := oneArg(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	if i, ok := x.(starlark.Int); ok {
		if i.Sign() < 0 {
			return starlark.MakeInt(0).Sub(i), nil
		}
		return i, nil
	}
	f, ok := starlark.AsFloat(x)
	if !ok {
		return nil, fmt.Errorf("%s: want a number, got %s", b.Name(), x.Type())
	}
	return starlark.Float(math.Abs(f)), nil
}

func npRound(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	decimals := 0
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x", &x, "decimals?", &decimals); err != nil {
		return nil, err
	}
	f, ok := starlark.AsFloat(x)
	if !ok {
		return nil, fmt.Errorf("%s: want a number, got %s", b.Name(), x.Type())
	}
	p := math.Pow(10, float64(decimals))
	return starlark.Float(math.Round(f*p) / p), nil
}

// reduce adapts fn to accept a list of numbers; missing entries are skipped.
func reduce(fn func([]float64) float64) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		x, err := oneArg(b, args, kwargs)
		if err != nil {
			return nil, err
		}
		it, ok := x.(starlark.Iterable)
		if !ok {
			return nil, fmt.Errorf("%s: want a list, got %s", b.Name(), x.Type())
		}
		iter := it.Iterate()
		defer iter.Done()
		var vals []float64
		var v starlark.Value
		for iter.Next(&v) {
			if isMissing(v) {
				continue
			}
			f, ok := starlark.AsFloat(v)
			if !ok {
				return nil, fmt.Errorf("%s: want a number, got %s", b.Name(), v.Type())
			}
			vals = append(vals, f)
		}
		if len(vals) == 0 {
			return starlark.Float(math.NaN()), nil
		}
		return starlark.Float(fn(vals)), nil
	}
}

func sum(v []float64) float64 {
	s := 0.0
	for _, f := range v {
		s += f
	}
	return s
}

func minOf(v []float64) float64 {
	m := math.Inf(1)
	for _, f := range v {
		m = math.Min(m, f)
	}
	return m
}

func maxOf(v []float64) float64 {
	m := math.Inf(-1)
	for _, f := range v {
		m = math.Max(m, f)
	}
	return m
}

func medianOf(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func pdIsNA(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	x, err := oneArg(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(isMissing(x)), nil
}

func pdNotNA(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	x, err := oneArg(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(!isMissing(x)), nil
}

func parseDate(v starlark.Value) (time.Time, bool) {
	s, ok := starlark.AsString(v)
	if !ok {
		return time.Time{}, false
	}
	return table.ParseTime(s)
}

// pdToDatetime normalizes a date string to ISO form, or None when unparseable.
func pdToDatetime(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	x, err := oneArg(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	t, ok := parseDate(x)
	if !ok {
		return starlark.None, nil
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return starlark.String(t.Format("2006-01-02")), nil
	}
	return starlark.String(t.Format("2006-01-02 15:04:05")), nil
}

func datePart(part func(time.Time) starlark.Value) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		x, err := oneArg(b, args, kwargs)
		if err != nil {
			return nil, err
		}
		t, ok := parseDate(x)
		if !ok {
			return starlark.None, nil
		}
		return part(t), nil
	}
}

// pdDaysBetween returns end minus start in days, or None if either is not a date.
func pdDaysBetween(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var start, end starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &start, &end); err != nil {
		return nil, err
	}
	s, ok1 := parseDate(start)
	e, ok2 := parseDate(end)
	if !ok1 || !ok2 {
		return starlark.None, nil
	}
	return starlark.Float(e.Sub(s).Hours() / 24), nil
}
