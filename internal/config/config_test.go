package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/flightinsights/internal/ai"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.LLMBackend != ai.BackendOpenAI || c.OpenAIModel != ai.DefaultOpenAIModel || c.GroqModel != ai.DefaultGroqModel {
		t.Fatalf("llm defaults = %+v", c)
	}
	if c.PipelineAttempts != 5 || c.SampleRows != 5 || c.MaxScriptSteps != 50_000_000 {
		t.Fatalf("pipeline defaults = %+v", c)
	}
	if c.CleanedPath != "data/Clean_Booking_Details.csv" || c.ListenAddr != ":8000" {
		t.Fatalf("path defaults = %+v", c)
	}
	if c.OpenAIKey != "sk-test" {
		t.Fatalf("OPENAI_API_KEY not bound: %q", c.OpenAIKey)
	}
	rt := c.Runtimes()
	if rt[ai.BackendOpenAI].APIKey != "sk-test" || rt[ai.BackendOpenAI].HTTPTimeout != 120*time.Second {
		t.Fatalf("runtimes = %+v", rt)
	}
	if rt[ai.BackendGroq].Model != ai.DefaultGroqModel || rt[ai.BackendGroq].MaxDelay != 4*time.Second {
		t.Fatalf("groq runtime = %+v", rt[ai.BackendGroq])
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := "llm_backend: groq\nsample_rows: 3\nlisten_addr: \":9000\"\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FLIGHTINSIGHTS_LISTEN_ADDR", ":9100")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.LLMBackend != "groq" || c.SampleRows != 3 {
		t.Fatalf("file values not applied: %+v", c)
	}
	if c.ListenAddr != ":9100" {
		t.Fatalf("env should win over file, got %q", c.ListenAddr)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.LLMBackend != ai.BackendOpenAI {
		t.Fatalf("backend = %q", c.LLMBackend)
	}
}

func TestSaveOmitsKeys(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GROQ_API_KEY", "gsk-secret")
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c.SampleRows = 9
	c.TrainingDocs = []string{"docs/notes.md"}
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := Save(c, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "gsk-secret") {
		t.Fatalf("api key written to disk:\n%s", data)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.SampleRows != 9 || len(back.TrainingDocs) != 1 || back.TrainingDocs[0] != "docs/notes.md" {
		t.Fatalf("reloaded = %+v", back)
	}
}
