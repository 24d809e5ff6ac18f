package table

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

const bookingsCSV = `Booking_ID,Airline_ID,Price,Departure_Date,Class
1,10,120.5,2024-01-05,Economy
2,20,,2024-01-17,Business
3,10,-40,2024-02-03,Economy
4,30,310,2024-03-11,First
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func mustTable(t *testing.T, records [][]string) *Table {
	t.Helper()
	tb, err := FromRecords(records)
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	return tb
}

func TestLoadCSV(t *testing.T) {
	tb, err := Load(writeFile(t, "bookings.csv", bookingsCSV))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tb.NRows() != 4 || tb.NCols() != 5 {
		t.Fatalf("shape = %dx%d, want 4x5", tb.NRows(), tb.NCols())
	}
	want := []string{"Booking_ID", "Airline_ID", "Price", "Departure_Date", "Class"}
	if got := tb.Columns(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("columns = %v, want %v", got, want)
	}
	types := tb.Types()
	if types["Airline_ID"] != "int" || types["Price"] != "float" || types["Class"] != "string" {
		t.Fatalf("unexpected types: %v", types)
	}
	if v := tb.Value("Price", 1); v != nil {
		t.Fatalf("missing price = %v, want nil", v)
	}
	if v := tb.Value("Price", 0); v != 120.5 {
		t.Fatalf("price[0] = %v, want 120.5", v)
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("missing file err = %v, want ErrSourceNotFound", err)
	}
	_, err = Load(writeFile(t, "empty.csv", ""))
	if !errors.Is(err, ErrSourceUnparseable) {
		t.Fatalf("empty file err = %v, want ErrSourceUnparseable", err)
	}
}

func TestRenameColumnCountMismatch(t *testing.T) {
	tb := mustTable(t, [][]string{{"flght#", "airlie_id"}, {"AA1", "1"}})
	got, err := tb.Rename([]string{"Flight_Number", "Airline_ID", "Extra"})
	if !errors.Is(err, ErrColumnCountMismatch) {
		t.Fatalf("err = %v, want ErrColumnCountMismatch", err)
	}
	if got != tb || strings.Join(tb.Columns(), ",") != "flght#,airlie_id" {
		t.Fatalf("table modified on mismatch: %v", tb.Columns())
	}

	renamed, err := tb.Rename([]string{"Flight_Number", "Airline_ID"})
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if strings.Join(renamed.Columns(), ",") != "Flight_Number,Airline_ID" {
		t.Fatalf("renamed columns = %v", renamed.Columns())
	}
	if renamed.Value("Airline_ID", 0) != 1 {
		t.Fatalf("value lost in rename: %v", renamed.Value("Airline_ID", 0))
	}
}

func TestMergeSharedColumns(t *testing.T) {
	a := mustTable(t, [][]string{{"A", "B", "C"}, {"a1", "1", "x"}, {"a2", "2", "y"}, {"a3", "3", "z"}})
	b := mustTable(t, [][]string{{"B", "C", "D"}, {"1", "x", "d1"}, {"2", "q", "d2"}, {"3", "z", "d3"}})
	m, err := Merge(a, b)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if strings.Join(m.Columns(), ",") != "A,B,C,D" {
		t.Fatalf("columns = %v, want A,B,C,D", m.Columns())
	}
	if m.NRows() != 2 {
		t.Fatalf("rows = %d, want 2", m.NRows())
	}
	if keys := SharedColumns(a, b); strings.Join(keys, ",") != "B,C" {
		t.Fatalf("shared = %v, want [B C]", keys)
	}
}

func TestMergeDisjoint(t *testing.T) {
	a := mustTable(t, [][]string{{"A"}, {"1"}})
	b := mustTable(t, [][]string{{"Z"}, {"1"}})
	if _, err := Merge(a, b); !errors.Is(err, ErrNoCommonColumns) {
		t.Fatalf("err = %v, want ErrNoCommonColumns", err)
	}
}

func TestMergeCommutative(t *testing.T) {
	mapping := mustTable(t, [][]string{{"Airline_ID", "Airline_Name"}, {"10", "Alpha Air"}, {"20", "Beta Jet"}, {"40", "Unused"}})
	bookings, err := Load(writeFile(t, "bookings.csv", bookingsCSV))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ab, err := Merge(mapping, bookings)
	if err != nil {
		t.Fatalf("Merge(a,b): %v", err)
	}
	ba, err := Merge(bookings, mapping)
	if err != nil {
		t.Fatalf("Merge(b,a): %v", err)
	}
	if got, want := rowSet(ab), rowSet(ba); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("row sets differ:\n%v\n%v", got, want)
	}
	if ab.NRows() != 3 {
		t.Fatalf("rows = %d, want 3", ab.NRows())
	}
}

// rowSet renders rows independent of column and row order.
func rowSet(tb *Table) []string {
	recs := tb.Records()
	header := recs[0]
	var out []string
	for _, r := range recs[1:] {
		parts := make([]string, len(header))
		for i, h := range header {
			parts[i] = h + "=" + r[i]
		}
		sort.Strings(parts)
		out = append(out, strings.Join(parts, ";"))
	}
	sort.Strings(out)
	return out
}

func TestHeadAndChunk(t *testing.T) {
	tb, err := Load(writeFile(t, "bookings.csv", bookingsCSV))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tb.Head(2).NRows() != 2 || tb.Head(10).NRows() != 4 {
		t.Fatalf("Head row counts wrong")
	}
	chunks, err := tb.Chunk(3)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 2 || chunks[0].NRows() != 3 || chunks[1].NRows() != 1 {
		t.Fatalf("chunks = %d", len(chunks))
	}
	if _, err := tb.Chunk(0); !errors.Is(err, ErrInvalidChunkSize) {
		t.Fatalf("Chunk(0) err = %v", err)
	}
}

func TestSaveCSVRoundTrip(t *testing.T) {
	tb, err := Load(writeFile(t, "bookings.csv", bookingsCSV))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out := filepath.Join(t.TempDir(), "nested", "clean.csv")
	if err := tb.SaveCSV(out); err != nil {
		t.Fatalf("SaveCSV: %v", err)
	}
	back, err := Load(out)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.NRows() != tb.NRows() || back.Value("Price", 1) != nil || back.Value("Class", 3) != "First" {
		t.Fatalf("round trip mismatch: %v", back.Records())
	}
}

func TestSaveXLSXRoundTrip(t *testing.T) {
	tb, err := Load(writeFile(t, "bookings.csv", bookingsCSV))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out := filepath.Join(t.TempDir(), "clean.xlsx")
	if err := tb.SaveXLSX(out, "Cleaned"); err != nil {
		t.Fatalf("SaveXLSX: %v", err)
	}
	back, err := Load(out)
	if err != nil {
		t.Fatalf("reload xlsx: %v", err)
	}
	if strings.Join(back.Columns(), ",") != strings.Join(tb.Columns(), ",") || back.NRows() != 4 {
		t.Fatalf("xlsx round trip: %v", back.Records())
	}
	if back.Value("Class", 1) != "Business" {
		t.Fatalf("class[1] = %v", back.Value("Class", 1))
	}
}

func TestPreviewAndProfile(t *testing.T) {
	tb, err := Load(writeFile(t, "bookings.csv", bookingsCSV))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	pv := tb.Preview(2)
	if !strings.Contains(pv, "| Booking_ID | Airline_ID |") || strings.Count(pv, "\n") != 4 {
		t.Fatalf("preview:\n%s", pv)
	}
	md := tb.Profile("bookings.csv", 2).Markdown()
	for _, want := range []string{"[DATASET SUMMARY]", "Rows: 4", "- Price: numeric (non-null 3, missing 25.0%)", "- Departure_Date: datetime", "- Class: categorical", "Economy(2)"} {
		if !strings.Contains(md, want) {
			t.Fatalf("profile missing %q:\n%s", want, md)
		}
	}
}

func TestChangedColumns(t *testing.T) {
	before := mustTable(t, [][]string{{"A", "B", "C"}, {"1", "x", ""}, {"2", "y", "5"}})
	filled, err := before.FillMissing([]string{"C"}, FillZero, nil)
	if err != nil {
		t.Fatalf("FillMissing: %v", err)
	}
	if got := ChangedColumns(before, filled); strings.Join(got, ",") != "C" {
		t.Fatalf("changed = %v, want [C]", got)
	}
	if got := ChangedColumns(before, before); len(got) != 0 {
		t.Fatalf("identity changed = %v", got)
	}
	sel, err := before.Select([]string{"A", "B"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := ChangedColumns(before, sel); strings.Join(got, ",") != "C" {
		t.Fatalf("dropped = %v, want [C]", got)
	}
}
