package parser_test

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/flightinsights/internal/parser"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func writeDocx(t *testing.T, dir string, body string) string {
	t.Helper()
	p := filepath.Join(dir, "notes.docx")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestParseFileText(t *testing.T) {
	dir := t.TempDir()
	out, err := parser.ParseFile(writeFile(t, dir, "a.md", "# Prices\r\n\r\n\r\n\r\nPrices are in USD.\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out != "# Prices\n\nPrices are in USD." {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestParseFileDocx(t *testing.T) {
	dir := t.TempDir()
	body := `<w:document><w:body><w:p><w:r><w:t>Flights &amp; fares</w:t></w:r></w:p><w:p><w:r><w:t>Count each booking once.</w:t></w:r></w:p></w:body></w:document>`
	out, err := parser.ParseFile(writeDocx(t, dir, body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out != "Flights & fares\nCount each booking once." {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestParseFileErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := parser.ParseFile(writeFile(t, dir, "a.pdf", "%PDF")); !errors.Is(err, parser.ErrUnsupported) {
		t.Fatalf("pdf err = %v", err)
	}
	if _, err := parser.ParseFile(writeFile(t, dir, "blank.txt", "\n\n  \n")); !errors.Is(err, parser.ErrEmptyDocument) {
		t.Fatalf("blank err = %v", err)
	}
}

func TestLoadDocs(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "Use Airline_Name for airline questions.")
	b := writeFile(t, dir, "b.md", "Dates are ISO formatted.")
	docs, err := parser.LoadDocs([]string{a, b})
	if err != nil {
		t.Fatalf("LoadDocs: %v", err)
	}
	if len(docs) != 2 || !strings.HasPrefix(docs[1], "Dates") {
		t.Fatalf("docs = %v", docs)
	}
	if _, err := parser.LoadDocs([]string{a, filepath.Join(dir, "missing.txt")}); err == nil {
		t.Fatalf("expected error for missing doc")
	}
}
