package script

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/flightinsights/internal/table"
)

func sampleTable(t *testing.T) *table.Table {
	t.Helper()
	tb, err := table.FromRecords([][]string{
		{"Airline_Name", "Price", "Departure_Date", "Arrival_Date"},
		{"Alpha Air", "100", "2024-01-05", "2024-01-06"},
		{"Beta Jet", "", "2024-01-17", "2024-01-16"},
		{"Alpha Air", "-50", "2024-02-03", "2024-02-03"},
	})
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	return tb
}

const cleaningCompletion = "Here is the cleaning code:\n\n" +
	"```python\n" +
	"import pandas as pd\n" +
	"import numpy as np\n\n" +
	"def clean_flight_data(df):\n" +
	"    df = df.replace_negative(\"Price\", strategy=\"median\")\n" +
	"    df = df.fill_missing(\"Price\", strategy=\"median\")\n" +
	"    return df\n\n" +
	"cleaned_df = clean_flight_data(df)\n" +
	"```\n\nThis replaces negatives and fills gaps."

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantErr error
		want    string
	}{
		{"no def", "```python\nx = 1\n```", ErrMissingFunctionDefinition, ""},
		{"def without fence", "def clean(df):\n    return df", ErrNoCodeBlockFound, ""},
		{"unlabeled fence", "```\ndef clean(df):\n    return df\n```", ErrNoCodeBlockFound, ""},
		{"py fence", "text\n```py\ndef f(df):\n    return df\n```\nmore", nil, "def f(df):\n    return df"},
		{"starlark fence", "```starlark\n\ndef g(x): return x\n\n```", nil, "def g(x): return x"},
	}
	for _, tc := range cases {
		got, err := Validate(tc.in)
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("%s: code = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestExecuteCleaningFunction(t *testing.T) {
	code, err := Validate(cleaningCompletion)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !strings.HasPrefix(code, "import pandas as pd") || !strings.HasSuffix(code, "cleaned_df = clean_flight_data(df)") {
		t.Fatalf("unexpected extracted code:\n%s", code)
	}
	in := sampleTable(t)
	out, err := NewEngine(0).Execute(context.Background(), code, in)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.NRows() != 3 || out.NCols() != 4 {
		t.Fatalf("shape = %dx%d, want 3x4", out.NRows(), out.NCols())
	}
	if v := out.Value("Price", 2); v != 100.0 {
		t.Fatalf("negative price replaced with %v, want 100", v)
	}
	if v := out.Value("Price", 1); v != 100.0 {
		t.Fatalf("missing price filled with %v, want 100", v)
	}
	if in.Value("Price", 1) != nil {
		t.Fatalf("input table was modified")
	}
}

func TestExecuteOutputErrors(t *testing.T) {
	eng := NewEngine(0)
	in := sampleTable(t)

	_, err := eng.Execute(context.Background(), "def f(df):\n    return df\nresult = f(df)", in)
	if !errors.Is(err, ErrOutputVariableMissing) {
		t.Fatalf("missing binding err = %v", err)
	}
	_, err = eng.Execute(context.Background(), "def f(df):\n    return df.nrows()\ncleaned_df = f(df)", in)
	if !errors.Is(err, ErrOutputTypeMismatch) {
		t.Fatalf("type mismatch err = %v", err)
	}
	_, err = eng.Execute(context.Background(), "def f(df):\n    return df.fill_missing(\"Nope\", \"zero\")\ncleaned_df = f(df)", in)
	var xe *ExecError
	if !errors.As(err, &xe) || !errors.Is(err, table.ErrUnknownColumn) && !strings.Contains(err.Error(), "Nope") {
		t.Fatalf("runtime err = %v", err)
	}
	_, err = eng.Execute(context.Background(), "def f(df):\n    return df +\n", in)
	if !errors.As(err, &xe) {
		t.Fatalf("syntax err = %v, want *ExecError", err)
	}
}

func TestExecuteHasNoHostAccess(t *testing.T) {
	eng := NewEngine(0)
	for _, code := range []string{
		"load(\"os.star\", \"system\")\ncleaned_df = df",
		"cleaned_df = open(\"/etc/passwd\")",
		"cleaned_df = __import__(\"os\")",
	} {
		if _, err := eng.Execute(context.Background(), code, sampleTable(t)); err == nil {
			t.Fatalf("expected failure for %q", code)
		}
	}
}

func TestExecuteStepLimitAndCancel(t *testing.T) {
	loop := "def spin():\n    i = 0\n    while True:\n        i += 1\nspin()\ncleaned_df = df"
	_, err := NewEngine(10_000).Execute(context.Background(), loop, sampleTable(t))
	var xe *ExecError
	if !errors.As(err, &xe) {
		t.Fatalf("step limit err = %v, want *ExecError", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	eng := &Engine{}
	start := time.Now()
	if _, err := eng.Execute(ctx, loop, sampleTable(t)); err == nil {
		t.Fatalf("expected cancellation error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("cancellation took %v", time.Since(start))
	}

	done, stop := context.WithCancel(context.Background())
	stop()
	if _, err := eng.Execute(done, "cleaned_df = df", sampleTable(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("pre-cancelled err = %v", err)
	}
}

func TestDSLTransforms(t *testing.T) {
	code := `
def clean_flight_data(df):
    bad = df.where(lambda r: pd.to_datetime(r["Arrival_Date"]) < pd.to_datetime(r["Departure_Date"]))
    df = df.derive("Arrival_Date", lambda r: r["Departure_Date"] if r["Arrival_Date"] < r["Departure_Date"] else r["Arrival_Date"])
    df = df.derive("Month", lambda r: pd.month_name(r["Departure_Date"]))
    df = df.filter("Airline_Name", "notna")
    df = df.clip("Price", lower=0)
    df = df.fill_missing(["Price"], strategy="value", value=0)
    df = df.sort_by("Price", descending=True)
    if bad.nrows() != 1:
        fail("expected one inconsistent row")
    return df

cleaned_df = clean_flight_data(df)
`
	out, err := NewEngine(0).Execute(context.Background(), code, sampleTable(t))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.NCols() != 5 || !out.HasColumn("Month") {
		t.Fatalf("columns = %v", out.Columns())
	}
	if out.Value("Price", 0) != 100.0 {
		t.Fatalf("top price = %v", out.Value("Price", 0))
	}
	rows := out.Records()[1:]
	for _, r := range rows {
		if r[3] < r[2] {
			t.Fatalf("arrival before departure after repair: %v", r)
		}
	}
}

func TestEvaluateRendersResult(t *testing.T) {
	eng := NewEngine(0)
	in := sampleTable(t)
	got, err := eng.Evaluate(context.Background(), "counts = df.value_counts(\"Airline_Name\")\nresult = list(counts.keys())[0]", in, "result")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != "Alpha Air" {
		t.Fatalf("result = %q, want Alpha Air", got)
	}
	got, err = eng.Evaluate(context.Background(), "result = df.month_counts(\"Departure_Date\")", in, "result")
	if err != nil {
		t.Fatalf("Evaluate months: %v", err)
	}
	if got != `{"January": 2, "February": 1}` {
		t.Fatalf("months = %s", got)
	}
	got, err = eng.Evaluate(context.Background(), "result = df.head(2)", in, "result")
	if err != nil {
		t.Fatalf("Evaluate head: %v", err)
	}
	if !strings.Contains(got, "| Airline_Name | Price |") {
		t.Fatalf("table render:\n%s", got)
	}
	if _, err := eng.Evaluate(context.Background(), "x = 1", in, "result"); !errors.Is(err, ErrOutputVariableMissing) {
		t.Fatalf("missing result err = %v", err)
	}
}

func TestModules(t *testing.T) {
	code := `
vals = df.column("Price")
result = [np.mean(vals), np.median(vals), np.isnan(np.nan), pd.isna(vals[1]), np.round(3.14159, 2), pd.days_between("2024-01-01", "2024-01-31"), np.abs(-3)]
`
	got, err := NewEngine(0).Evaluate(context.Background(), code, sampleTable(t), "result")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != "[25.0, 25.0, True, True, 3.14, 30.0, 3]" {
		t.Fatalf("modules = %s", got)
	}
}

func TestModulesRejectNonNumbers(t *testing.T) {
	eng := NewEngine(0)
	in := sampleTable(t)
	cases := []struct {
		code string
		want string
	}{
		{`result = np.abs("x")`, "np.abs: want a number, got string"},
		{`result = np.round("3.1")`, "np.round: want a number, got string"},
		{`result = np.mean([1, "two"])`, "np.mean: want a number, got string"},
		{`result = df.clip("Price", lower="zero")`, "want a number or None, got string"},
	}
	for _, tc := range cases {
		_, err := eng.Evaluate(context.Background(), tc.code, in, "result")
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: err = %v, want %q", tc.code, err, tc.want)
		}
	}
}

func TestDateHelpersShareTableLayouts(t *testing.T) {
	code := `result = [pd.to_datetime("1/5/2024 08:30:00"), pd.month_name("1/5/2024 08:30:00"), pd.to_datetime("not a date")]`
	got, err := NewEngine(0).Evaluate(context.Background(), code, sampleTable(t), "result")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != `["2024-01-05 08:30:00", "January", None]` {
		t.Fatalf("dates = %s", got)
	}
	if _, ok := table.ParseTime("1/5/2024 08:30:00"); !ok {
		t.Fatalf("table.ParseTime rejected a layout pd accepts")
	}
}
