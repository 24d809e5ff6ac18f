package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/flightinsights/internal/table"
)

var (
	askStats      bool
	askAirlineCol string
	askDateCol    string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the cleaned bookings table",
	Example: `  flightinsights ask "Which airline has the most flights listed?"
  flightinsights ask --stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		t, err := table.Load(c.CleanedPath)
		if err != nil {
			return fmt.Errorf("load cleaned table (run 'flightinsights clean' first): %w", err)
		}
		out := cmd.OutOrStdout()
		if askStats {
			return printStats(cmd, t)
		}
		if len(args) == 0 {
			return fmt.Errorf("a question is required unless --stats is set")
		}
		agent, err := newAgent(c, t)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, agent.Answer(cmd.Context(), strings.Join(args, " ")))
		return nil
	},
}

// printStats answers the fixed questions without calling the LLM.
func printStats(cmd *cobra.Command, t *table.Table) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Rows: %d\n", t.NRows())
	top, err := t.TopValue(askAirlineCol)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Airline with the most flights: %s (%d)\n", top.Value, top.Count)
	months, err := t.MonthCounts(askDateCol)
	if err != nil {
		return err
	}
	if len(months) > 0 {
		fmt.Fprintf(out, "Busiest departure month: %s (%d)\n", months[0].Value, months[0].Count)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askStats, "stats", false, "print deterministic summary statistics instead of asking the LLM")
	askCmd.Flags().StringVar(&askAirlineCol, "airline-column", "Airline_Name", "column holding airline names (--stats)")
	askCmd.Flags().StringVar(&askDateCol, "date-column", "Departure_Date", "column holding departure dates (--stats)")
}
