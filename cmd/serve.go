package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/flightinsights/internal/pipeline"
	"github.com/KaramelBytes/flightinsights/internal/server"
)

var (
	serveAddr      string
	serveSkipClean bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Clean the raw data, then serve the insights API",
	Long: `Runs the cleaning pipeline (up to pipeline_attempts times), loads the cleaned
table into the analysis agent and serves GET /, POST /insights, /healthz and /readyz.
The server starts even when cleaning fails; /readyz reports the outcome.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			c.ListenAddr = serveAddr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var outcome pipeline.Outcome
		if serveSkipClean {
			outcome = pipeline.LoadPrevious(c.CleanedPath, slog.Default())
		} else {
			outcome, err = runPipeline(ctx, c)
			if err != nil {
				return err
			}
		}
		slog.Info("cleaning finished", "status", outcome.Status, "attempts", outcome.Attempts, "stale", outcome.Stale)

		var answerer server.Answerer
		if outcome.Table != nil {
			agent, err := newAgent(c, outcome.Table)
			if err != nil {
				return err
			}
			answerer = agent
			slog.Info("analysis agent ready", "rows", outcome.Table.NRows(), "columns", outcome.Table.NCols())
		}

		srv := server.New(server.Options{
			IndexPath:      c.IndexPath,
			AllowedOrigins: c.AllowedOrigins,
			Logger:         slog.Default(),
		}, answerer, outcome)
		return srv.ListenAndServe(ctx, c.ListenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr)")
	serveCmd.Flags().BoolVar(&serveSkipClean, "skip-clean", false, "serve the previously cleaned table without re-running the pipeline")
}
