package cmd

import (
	"context"
	"log/slog"

	"github.com/KaramelBytes/flightinsights/internal/ai"
	cfgpkg "github.com/KaramelBytes/flightinsights/internal/config"
	"github.com/KaramelBytes/flightinsights/internal/parser"
	"github.com/KaramelBytes/flightinsights/internal/pipeline"
	"github.com/KaramelBytes/flightinsights/internal/query"
	"github.com/KaramelBytes/flightinsights/internal/script"
	"github.com/KaramelBytes/flightinsights/internal/table"
)

func newChatModel(c *cfgpkg.Global) (*ai.ChatModel, error) {
	return ai.NewChatModel(c.LLMBackend, c.Runtimes())
}

func newEngine(c *cfgpkg.Global) *script.Engine {
	return script.NewEngine(c.MaxScriptSteps)
}

func pipelineConfig(c *cfgpkg.Global) pipeline.Config {
	return pipeline.Config{
		BookingsPath:   c.BookingsPath,
		MappingPath:    c.MappingPath,
		CleanedPath:    c.CleanedPath,
		XLSXExportPath: c.XLSXExport,
		SampleRows:     c.SampleRows,
	}
}

// runPipeline cleans the raw tables with the bounded retry policy.
func runPipeline(ctx context.Context, c *cfgpkg.Global) (pipeline.Outcome, error) {
	chat, err := newChatModel(c)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	p := pipeline.New(pipelineConfig(c), chat, newEngine(c), slog.Default())
	runner := &pipeline.Runner{Pipeline: p, Attempts: c.PipelineAttempts, Log: slog.Default()}
	return runner.Run(ctx), nil
}

// newAgent trains an analysis agent on t with the built-in and configured docs.
func newAgent(c *cfgpkg.Global, t *table.Table) (*query.Agent, error) {
	chat, err := newChatModel(c)
	if err != nil {
		return nil, err
	}
	extra, err := parser.LoadDocs(c.TrainingDocs)
	if err != nil {
		return nil, err
	}
	docs := append(append([]string{}, query.TrainingDocs...), extra...)
	return query.NewAgent(chat, t, newEngine(c), docs...), nil
}
