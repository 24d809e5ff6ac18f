package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/KaramelBytes/flightinsights/internal/ai"
	"github.com/KaramelBytes/flightinsights/internal/script"
	"github.com/KaramelBytes/flightinsights/internal/table"
)

const rawBookings = `bking_id,airlie_id,prce,dep_date,arr_date
1,10,100,2024-01-05,2024-01-06
2,20,,2024-01-17,2024-01-16
3,10,-50,2024-02-03,2024-02-03
4,30,300,2024-03-11,2024-03-12
`

const rawMapping = `airlie_id,airline_nme
10,Alpha Air
20,Beta Jet
30,Gamma Wings
`

var goodRenames = map[string][]string{
	"bking_id, airlie_id, prce, dep_date, arr_date": {"Booking_ID", "Airline_ID", "Price", "Departure_Date", "Arrival_Date"},
	"airlie_id, airline_nme":                        {"Airline_ID", "Airline_Name"},
}

const missingNegativeCode = "```python\nimport pandas as pd\n\n" +
	"def clean_flight_data(df):\n" +
	"    df = df.replace_negative([\"Price\"], strategy=\"median\")\n" +
	"    df = df.fill_missing([\"Price\"], strategy=\"median\")\n" +
	"    return df\n\n" +
	"cleaned_df = clean_flight_data(df)\n```"

const inconsistencyCode = "```python\n" +
	"def clean_flight_data(df):\n" +
	"    df = df.derive(\"Arrival_Date\", lambda r: r[\"Departure_Date\"] if r[\"Arrival_Date\"] < r[\"Departure_Date\"] else r[\"Arrival_Date\"])\n" +
	"    return df\n\n" +
	"cleaned_df = clean_flight_data(df)\n```"

// fakeRuntime answers rename tool calls from a lookup table and code
// requests from a queue.
type fakeRuntime struct {
	mu          sync.Mutex
	renames     map[string][]string
	completions []string
	renameFails int
	toolCalls   int
	textCalls   int
}

func (f *fakeRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := req.Messages[len(req.Messages)-1].Content
	if len(req.Tools) > 0 {
		f.toolCalls++
		if f.renameFails > 0 {
			f.renameFails--
			return nil, errors.New("provider unavailable")
		}
		cols := user[strings.LastIndex(user, ": ")+2:]
		args, _ := json.Marshal(ColumnNames{CorrectedColumns: f.renames[cols]})
		return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{
			Role: "assistant",
			ToolCalls: []ai.ToolCall{{ID: "call_1", Type: "function", Function: ai.FunctionCall{
				Name: renameToolName, Arguments: string(args),
			}}},
		}}}}, nil
	}
	f.textCalls++
	content := ""
	if len(f.completions) > 0 {
		content, f.completions = f.completions[0], f.completions[1:]
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: content}}}}, nil
}

func writeInputs(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	bookings := filepath.Join(dir, "Flight Bookings.csv")
	mapping := filepath.Join(dir, "Airline ID to Name.csv")
	if err := os.WriteFile(bookings, []byte(rawBookings), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(mapping, []byte(rawMapping), 0o644); err != nil {
		t.Fatal(err)
	}
	return Config{
		BookingsPath: bookings,
		MappingPath:  mapping,
		CleanedPath:  filepath.Join(dir, "out", "Clean_Booking_Details.csv"),
		SampleRows:   5,
	}
}

func newPipeline(cfg Config, rt ai.Runtime) *Pipeline {
	chat := &ai.ChatModel{Runtime: rt, Backend: ai.BackendOpenAI, Model: ai.DefaultOpenAIModel}
	return New(cfg, chat, script.NewEngine(0), nil)
}

func TestPipelineRunAppliesRepairs(t *testing.T) {
	cfg := writeInputs(t)
	cfg.XLSXExportPath = filepath.Join(filepath.Dir(cfg.CleanedPath), "clean.xlsx")
	rt := &fakeRuntime{renames: goodRenames, completions: []string{missingNegativeCode, inconsistencyCode}}
	res, err := newPipeline(cfg, rt).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "Airline_ID,Airline_Name,Booking_ID,Price,Departure_Date,Arrival_Date"
	if got := strings.Join(res.Table.Columns(), ","); got != want {
		t.Fatalf("columns = %s, want %s", got, want)
	}
	if res.Table.NRows() != 4 {
		t.Fatalf("rows = %d, want 4", res.Table.NRows())
	}
	for i := 0; i < res.Table.NRows(); i++ {
		p, ok := res.Table.Value("Price", i).(float64)
		if !ok || p < 0 {
			t.Fatalf("price[%d] = %v after repair", i, res.Table.Value("Price", i))
		}
		dep, _ := res.Table.Value("Departure_Date", i).(string)
		arr, _ := res.Table.Value("Arrival_Date", i).(string)
		if arr < dep {
			t.Fatalf("row %d arrives %s before departing %s", i, arr, dep)
		}
	}
	if len(res.Quality.Phases) != 2 || res.Quality.Degraded() {
		t.Fatalf("quality = %+v", res.Quality)
	}
	if got := res.Quality.Phases[0].ChangedColumns; strings.Join(got, ",") != "Price" {
		t.Fatalf("phase 1 changed = %v", got)
	}
	if got := res.Quality.Phases[1].ChangedColumns; strings.Join(got, ",") != "Arrival_Date" {
		t.Fatalf("phase 2 changed = %v", got)
	}

	saved, err := table.Load(cfg.CleanedPath)
	if err != nil {
		t.Fatalf("load persisted: %v", err)
	}
	if saved.NRows() != 4 || saved.NCols() != 6 {
		t.Fatalf("persisted shape = %dx%d", saved.NRows(), saved.NCols())
	}
	if _, err := os.Stat(cfg.XLSXExportPath); err != nil {
		t.Fatalf("xlsx export missing: %v", err)
	}
	if rt.toolCalls != 2 || rt.textCalls != 2 {
		t.Fatalf("calls: tool=%d text=%d", rt.toolCalls, rt.textCalls)
	}
}

func TestRepairFailuresFallBackAndAreRecorded(t *testing.T) {
	cfg := writeInputs(t)
	rt := &fakeRuntime{renames: goodRenames, completions: []string{
		"I cannot help with that.",
		"```python\ndef clean_flight_data(df):\n    return df.fill_missing(\"Nope\", \"zero\")\ncleaned_df = clean_flight_data(df)\n```",
	}}
	res, err := newPipeline(cfg, rt).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Quality.Degraded() {
		t.Fatalf("expected degraded quality: %+v", res.Quality)
	}
	for _, ph := range res.Quality.Phases {
		if ph.Status != PhaseDegraded || ph.Reason == "" || len(ph.ChangedColumns) != 0 {
			t.Fatalf("phase = %+v", ph)
		}
	}
	if !strings.Contains(res.Quality.Phases[0].Reason, script.ErrMissingFunctionDefinition.Error()) {
		t.Fatalf("reason = %q", res.Quality.Phases[0].Reason)
	}
	missing := 0
	for i := 0; i < res.Table.NRows(); i++ {
		if res.Table.Value("Price", i) == nil {
			missing++
		}
	}
	if missing != 1 {
		t.Fatalf("unrepaired table should keep its missing price, got %d", missing)
	}
}

func TestRenameMismatchIsFatal(t *testing.T) {
	cfg := writeInputs(t)
	rt := &fakeRuntime{renames: map[string][]string{
		"bking_id, airlie_id, prce, dep_date, arr_date": {"Booking_ID", "Airline_ID"},
	}}
	_, err := newPipeline(cfg, rt).Run(context.Background())
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageRename {
		t.Fatalf("err = %v, want rename StageError", err)
	}
	if !errors.Is(err, table.ErrColumnCountMismatch) {
		t.Fatalf("err = %v, want ErrColumnCountMismatch", err)
	}
	if _, statErr := os.Stat(cfg.CleanedPath); !os.IsNotExist(statErr) {
		t.Fatalf("cleaned file written after fatal error")
	}
}

func TestMergeWithoutSharedColumnsIsFatal(t *testing.T) {
	cfg := writeInputs(t)
	rt := &fakeRuntime{renames: map[string][]string{
		"bking_id, airlie_id, prce, dep_date, arr_date": {"Booking_ID", "Carrier", "Price", "Departure_Date", "Arrival_Date"},
		"airlie_id, airline_nme":                        {"Airline_ID", "Airline_Name"},
	}}
	_, err := newPipeline(cfg, rt).Run(context.Background())
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageMerge || !errors.Is(err, table.ErrNoCommonColumns) {
		t.Fatalf("err = %v, want merge StageError", err)
	}
}

func TestParseColumnNames(t *testing.T) {
	cases := []struct {
		name    string
		msg     ai.Message
		want    string
		wantErr error
	}{
		{
			name: "tool call",
			msg: ai.Message{ToolCalls: []ai.ToolCall{{Function: ai.FunctionCall{
				Name: renameToolName, Arguments: `{"corrected_columns":["Airline_ID","Flight_Number"]}`,
			}}}},
			want: "Airline_ID,Flight_Number",
		},
		{
			name: "json in content",
			msg:  ai.Message{Content: "Sure:\n{\"corrected_columns\": [\"Airline_Name\"]}\n"},
			want: "Airline_Name",
		},
		{
			name:    "empty list",
			msg:     ai.Message{Content: `{"corrected_columns": []}`},
			wantErr: ErrInvalidColumnNames,
		},
		{
			name:    "blank name",
			msg:     ai.Message{Content: `{"corrected_columns": ["A", " "]}`},
			wantErr: ErrInvalidColumnNames,
		},
		{
			name: "duplicate names",
			msg: ai.Message{ToolCalls: []ai.ToolCall{{Function: ai.FunctionCall{
				Name: renameToolName, Arguments: `{"corrected_columns":["Airline_ID","Airline_ID"]}`,
			}}}},
			wantErr: ErrInvalidColumnNames,
		},
		{
			name:    "prose only",
			msg:     ai.Message{Content: "Airline_ID, Flight_Number"},
			wantErr: ErrNoStructuredOutput,
		},
	}
	for _, tc := range cases {
		got, err := parseColumnNames(&tc.msg)
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.wantErr)
		}
		if tc.wantErr == nil && strings.Join(got.CorrectedColumns, ",") != tc.want {
			t.Fatalf("%s: got %v", tc.name, got.CorrectedColumns)
		}
	}
}

func TestRunnerRetriesThenSucceeds(t *testing.T) {
	cfg := writeInputs(t)
	rt := &fakeRuntime{renames: goodRenames, renameFails: 1, completions: []string{missingNegativeCode, inconsistencyCode}}
	out := (&Runner{Pipeline: newPipeline(cfg, rt)}).Run(context.Background())
	if out.Status != StatusReady || out.Attempts != 2 || out.RunID == "" || out.Table == nil {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Stale || out.LastErr != "" {
		t.Fatalf("unexpected stale outcome: %+v", out)
	}
}

func TestRunnerExhaustion(t *testing.T) {
	cfg := writeInputs(t)
	cfg.BookingsPath = filepath.Join(t.TempDir(), "missing.csv")
	rt := &fakeRuntime{renames: goodRenames}
	r := &Runner{Pipeline: newPipeline(cfg, rt), Attempts: 3}

	out := r.Run(context.Background())
	if out.Status != StatusUnavailable || out.Attempts != 3 || out.Table != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if !strings.Contains(out.LastErr, string(StageLoad)) {
		t.Fatalf("last error = %q", out.LastErr)
	}
	if rt.toolCalls != 0 {
		t.Fatalf("LLM called %d times after load failure", rt.toolCalls)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.CleanedPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.CleanedPath, []byte("Airline_ID,Price\n10,100\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out = r.Run(context.Background())
	if out.Status != StatusDegraded || !out.Stale || out.Table == nil || out.Table.NRows() != 1 {
		t.Fatalf("outcome with previous table = %+v", out)
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	cfg := writeInputs(t)
	rt := &fakeRuntime{renames: goodRenames}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := (&Runner{Pipeline: newPipeline(cfg, &cancelRuntime{rt}), Attempts: 5}).Run(ctx)
	if out.Status != StatusUnavailable || out.Attempts != 1 {
		t.Fatalf("outcome = %+v", out)
	}
}

// cancelRuntime fails like an HTTP client whose context is done.
type cancelRuntime struct{ *fakeRuntime }

func (c *cancelRuntime) Generate(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.fakeRuntime.Generate(ctx, req)
}
