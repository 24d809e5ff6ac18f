package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/KaramelBytes/flightinsights/internal/ai"
	"github.com/KaramelBytes/flightinsights/internal/script"
	"github.com/KaramelBytes/flightinsights/internal/table"
	"github.com/KaramelBytes/flightinsights/internal/utils"
)

// sampleTokenBudget caps the sample rows embedded in a repair prompt.
const sampleTokenBudget = 2000

// Phase status values recorded in the quality report.
const (
	PhaseApplied  = "applied"
	PhaseDegraded = "degraded"
)

// PhaseReport records the outcome of one repair phase.
type PhaseReport struct {
	Phase          string   `json:"phase"`
	Status         string   `json:"status"`
	Reason         string   `json:"reason,omitempty"`
	ChangedColumns []string `json:"changed_columns"`
	RowsBefore     int      `json:"rows_before"`
	RowsAfter      int      `json:"rows_after"`
}

// QualityReport lists repair phases in execution order.
type QualityReport struct {
	Phases []PhaseReport `json:"phases"`
}

// Degraded reports whether any phase fell back to its input table.
func (q QualityReport) Degraded() bool {
	for _, p := range q.Phases {
		if p.Status == PhaseDegraded {
			return true
		}
	}
	return false
}

type repairPhase struct {
	name  string
	stage Stage
	tmpl  *template.Template
}

var (
	missingNegativePhase = repairPhase{name: "missing_and_negative", stage: StageRepairMissing, tmpl: missingNegativeTmpl}
	inconsistencyPhase   = repairPhase{name: "inconsistencies", stage: StageRepairInconsistencies, tmpl: inconsistencyTmpl}
)

// repairer generates and runs cleaning code for one phase at a time.
type repairer struct {
	chat       *ai.ChatModel
	engine     *script.Engine
	sampleRows int
	log        *slog.Logger
}

// run never fails: any error yields the input table and a degraded report.
func (r *repairer) run(ctx context.Context, ph repairPhase, in *table.Table) (*table.Table, PhaseReport) {
	rep := PhaseReport{Phase: ph.name, RowsBefore: in.NRows(), RowsAfter: in.NRows(), ChangedColumns: []string{}}
	out, err := r.attempt(ctx, ph, in)
	if err != nil {
		rep.Status = PhaseDegraded
		rep.Reason = err.Error()
		r.log.Warn("repair phase fell back to input table", "phase", ph.name, "error", err)
		return in, rep
	}
	rep.Status = PhaseApplied
	rep.RowsAfter = out.NRows()
	if changed := table.ChangedColumns(in, out); len(changed) > 0 {
		rep.ChangedColumns = changed
	}
	r.log.Info("repair phase applied", "phase", ph.name, "rows_before", rep.RowsBefore, "rows_after", rep.RowsAfter, "changed", rep.ChangedColumns)
	return out, rep
}

func (r *repairer) attempt(ctx context.Context, ph repairPhase, in *table.Table) (*table.Table, error) {
	data := repairPromptData{
		Columns: strings.Join(in.Columns(), ", "),
		Types:   describeTypes(in),
		Sample:  utils.TruncateToTokenLimit(in.Head(r.sampleRows).Preview(r.sampleRows), sampleTokenBudget),
		DSL:     script.Reference,
	}
	prompt, err := renderPrompt(ph.tmpl, data)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	r.log.Debug("repair prompt built", "phase", ph.name, "tokens", utils.TokenBreakdown(map[string]string{
		"columns": data.Columns, "sample": data.Sample, "reference": data.DSL, "total": prompt,
	}))
	completion, err := r.chat.CompleteText(ctx, "", prompt)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	code, err := script.Validate(completion)
	if err != nil {
		return nil, err
	}
	return r.engine.Execute(ctx, code, in)
}

func describeTypes(t *table.Table) string {
	types := t.Types()
	lines := make([]string, 0, len(types))
	for _, c := range t.Columns() {
		lines = append(lines, fmt.Sprintf("- %s: %s", c, types[c]))
	}
	return strings.Join(lines, "\n")
}
