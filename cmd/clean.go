package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/flightinsights/internal/pipeline"
	"github.com/KaramelBytes/flightinsights/internal/utils"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Run the cleaning pipeline once and print the outcome",
	Long: `Loads the raw bookings and airline tables, renames and merges them, applies the
generated repairs and writes the cleaned table. The outcome, including the per-phase
quality report, is printed as JSON. Exits non-zero when no cleaned table is available.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		outcome, err := runPipeline(ctx, c)
		if err != nil {
			return err
		}
		b, err := utils.PrettyJSON(outcome)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		if outcome.Status == pipeline.StatusUnavailable {
			return fmt.Errorf("cleaning failed after %d attempts: %s", outcome.Attempts, outcome.LastErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
