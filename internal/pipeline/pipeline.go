// Package pipeline turns the raw booking and airline tables into the cleaned
// table served by the query agent: load, rename, merge, repair, persist.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KaramelBytes/flightinsights/internal/ai"
	"github.com/KaramelBytes/flightinsights/internal/script"
	"github.com/KaramelBytes/flightinsights/internal/table"
)

// Stage names a pipeline step for error reporting.
type Stage string

const (
	StageLoad                  Stage = "load"
	StageRename                Stage = "rename"
	StageMerge                 Stage = "merge"
	StageRepairMissing         Stage = "repair_missing"
	StageRepairInconsistencies Stage = "repair_inconsistencies"
	StagePersist               Stage = "persist"
)

// StageError wraps a fatal failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Config locates the pipeline inputs and outputs.
type Config struct {
	BookingsPath   string
	MappingPath    string
	CleanedPath    string
	XLSXExportPath string
	SampleRows     int
}

// Result is a finished pipeline run.
type Result struct {
	Table   *table.Table
	Quality QualityReport
}

// Pipeline runs the cleaning stages once, strictly in order.
type Pipeline struct {
	cfg    Config
	chat   *ai.ChatModel
	engine *script.Engine
	log    *slog.Logger
}

// New returns a pipeline; a nil logger means slog.Default.
func New(cfg Config, chat *ai.ChatModel, engine *script.Engine, log *slog.Logger) *Pipeline {
	if cfg.SampleRows <= 0 {
		cfg.SampleRows = 5
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{cfg: cfg, chat: chat, engine: engine, log: log}
}

// Run executes one attempt. Load, rename, merge and persist failures are
// fatal and returned as *StageError; repair failures are recorded in the
// quality report and the unrepaired table carries on.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	log := p.log
	bookings, err := table.Load(p.cfg.BookingsPath)
	if err != nil {
		return nil, &StageError{Stage: StageLoad, Err: err}
	}
	mapping, err := table.Load(p.cfg.MappingPath)
	if err != nil {
		return nil, &StageError{Stage: StageLoad, Err: err}
	}
	log.Info("raw tables loaded", "bookings_rows", bookings.NRows(), "mapping_rows", mapping.NRows())

	if bookings, err = renameColumns(ctx, p.chat, bookings); err != nil {
		return nil, &StageError{Stage: StageRename, Err: fmt.Errorf("bookings: %w", err)}
	}
	if mapping, err = renameColumns(ctx, p.chat, mapping); err != nil {
		return nil, &StageError{Stage: StageRename, Err: fmt.Errorf("mapping: %w", err)}
	}
	log.Info("columns renamed", "bookings", bookings.Columns(), "mapping", mapping.Columns())

	merged, err := table.Merge(mapping, bookings)
	if err != nil {
		return nil, &StageError{Stage: StageMerge, Err: err}
	}
	log.Info("tables merged", "keys", table.SharedColumns(mapping, bookings), "rows", merged.NRows())

	rep := &repairer{chat: p.chat, engine: p.engine, sampleRows: p.cfg.SampleRows, log: log}
	var quality QualityReport
	cleaned := merged
	for _, ph := range []repairPhase{missingNegativePhase, inconsistencyPhase} {
		if err := ctx.Err(); err != nil {
			return nil, &StageError{Stage: ph.stage, Err: err}
		}
		var pr PhaseReport
		cleaned, pr = rep.run(ctx, ph, cleaned)
		quality.Phases = append(quality.Phases, pr)
	}

	if err := cleaned.SaveCSV(p.cfg.CleanedPath); err != nil {
		return nil, &StageError{Stage: StagePersist, Err: err}
	}
	if p.cfg.XLSXExportPath != "" {
		if err := cleaned.SaveXLSX(p.cfg.XLSXExportPath, "Cleaned"); err != nil {
			return nil, &StageError{Stage: StagePersist, Err: err}
		}
	}
	log.Info("cleaned table persisted", "path", p.cfg.CleanedPath, "rows", cleaned.NRows(), "degraded", quality.Degraded())
	return &Result{Table: cleaned, Quality: quality}, nil
}
