package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/flightinsights/internal/ai"
	cfgpkg "github.com/KaramelBytes/flightinsights/internal/config"
	"github.com/KaramelBytes/flightinsights/internal/utils"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect or update the model catalog used for cost estimates",
	Example: `  flightinsights models show
  flightinsights models sync --file ./models.json --merge
  flightinsights models sync --url https://example.com/models.json --output models.json`,
}

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		// encoding/json sorts map keys
		return enc.Encode(ai.Catalog())
	},
}

var (
	syncPath   string
	syncURL    string
	syncOutput string
	syncMerge  bool
)

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load model catalog/pricing from a JSON file or URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case syncPath != "" && syncURL != "":
			return fmt.Errorf("use either --file or --url, not both")
		case syncPath != "":
			if err := applyCatalogFile(syncPath, syncMerge); err != nil {
				return err
			}
		case syncURL != "":
			m, err := fetchCatalog(syncURL)
			if err != nil {
				return err
			}
			if syncOutput != "" {
				data, err := utils.PrettyJSON(m)
				if err != nil {
					return err
				}
				if err := os.WriteFile(syncOutput, data, 0o644); err != nil {
					return fmt.Errorf("write file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved catalog to %s\n", syncOutput)
			}
			applyCatalog(m, syncMerge)
		default:
			return fmt.Errorf("--file or --url is required")
		}
		if syncMerge {
			fmt.Fprintf(cmd.OutOrStdout(), "Merged model catalog (%d models)\n", len(ai.Catalog()))
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Replaced model catalog (%d models)\n", len(ai.Catalog()))
		}
		// Later runs load the catalog from config.
		saved := syncPath
		if saved == "" {
			saved = syncOutput
		}
		if saved == "" {
			return nil
		}
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if abs, err := filepath.Abs(saved); err == nil {
			saved = abs
		}
		c.ModelCatalog = saved
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "model_catalog set to %s\n", saved)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsSyncCmd)

	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to JSON catalog file")
	modelsSyncCmd.Flags().StringVar(&syncURL, "url", "", "URL of a JSON catalog")
	modelsSyncCmd.Flags().StringVar(&syncOutput, "output", "", "optional path to save the fetched JSON")
	modelsSyncCmd.Flags().BoolVar(&syncMerge, "merge", false, "merge into existing catalog instead of replacing")
}
