package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/KaramelBytes/flightinsights/internal/table"
)

// Readiness of the cleaned table after startup.
const (
	StatusReady       = "ready"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// DefaultAttempts bounds how often the whole pipeline is re-run.
const DefaultAttempts = 5

// Outcome is the readiness result of a bounded pipeline run.
type Outcome struct {
	Status   string        `json:"status"`
	Attempts int           `json:"attempts"`
	RunID    string        `json:"run_id,omitempty"`
	Quality  QualityReport `json:"quality"`
	LastErr  string        `json:"last_error,omitempty"`
	// Stale is set when the table was loaded from a previous run's output.
	Stale bool         `json:"stale,omitempty"`
	Table *table.Table `json:"-"`
}

// Runner re-runs the pipeline from the first stage until it finishes or the
// attempt bound is reached.
type Runner struct {
	Pipeline *Pipeline
	Attempts int
	Log      *slog.Logger
}

// Run never returns an error: the outcome says whether a table is available.
func (r *Runner) Run(ctx context.Context) Outcome {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	log := r.Log
	if log == nil {
		log = slog.Default()
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		runID := uuid.NewString()
		alog := log.With("run_id", runID, "attempt", i)
		p := *r.Pipeline
		p.log = alog
		res, err := p.Run(ctx)
		if err == nil {
			status := StatusReady
			if res.Quality.Degraded() {
				status = StatusDegraded
			}
			alog.Info("pipeline finished", "status", status)
			return Outcome{Status: status, Attempts: i, RunID: runID, Quality: res.Quality, Table: res.Table}
		}
		lastErr = err
		alog.Error("pipeline attempt failed", "error", err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			attempts = i
			break
		}
	}

	out := LoadPrevious(r.Pipeline.cfg.CleanedPath, log)
	out.Attempts = attempts
	if lastErr != nil {
		out.LastErr = lastErr.Error()
	}
	return out
}

// LoadPrevious reports the cleaned table left by an earlier run: degraded
// and stale when it loads, unavailable otherwise.
func LoadPrevious(path string, log *slog.Logger) Outcome {
	if log == nil {
		log = slog.Default()
	}
	prev, err := table.Load(path)
	if err != nil {
		log.Error("no cleaned table available", "path", path, "error", err)
		return Outcome{Status: StatusUnavailable, LastErr: err.Error()}
	}
	log.Warn("serving cleaned table from a previous run", "path", path, "rows", prev.NRows())
	return Outcome{Status: StatusDegraded, Stale: true, Table: prev}
}
