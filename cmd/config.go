package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/flightinsights/internal/ai"
	cfgpkg "github.com/KaramelBytes/flightinsights/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set flightinsights configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "llm_backend: %s\n", cfg.LLMBackend)
		fmt.Fprintf(out, "openai_api_key: %s\n", mask(cfg.OpenAIKey))
		fmt.Fprintf(out, "openai_model: %s\n", cfg.OpenAIModel)
		if cfg.OpenAIURL != "" {
			fmt.Fprintf(out, "openai_base_url: %s\n", cfg.OpenAIURL)
		}
		fmt.Fprintf(out, "groq_api_key: %s\n", mask(cfg.GroqKey))
		fmt.Fprintf(out, "groq_model: %s\n", cfg.GroqModel)
		if cfg.GroqURL != "" {
			fmt.Fprintf(out, "groq_base_url: %s\n", cfg.GroqURL)
		}
		if cfg.ModelCatalog != "" {
			fmt.Fprintf(out, "model_catalog: %s\n", cfg.ModelCatalog)
		}
		fmt.Fprintf(out, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(out, "retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Fprintf(out, "retry_base_delay_ms: %d\n", cfg.RetryBaseDelayMs)
		fmt.Fprintf(out, "retry_max_delay_ms: %d\n", cfg.RetryMaxDelayMs)
		fmt.Fprintf(out, "bookings_path: %s\n", cfg.BookingsPath)
		fmt.Fprintf(out, "mapping_path: %s\n", cfg.MappingPath)
		fmt.Fprintf(out, "cleaned_path: %s\n", cfg.CleanedPath)
		if cfg.XLSXExport != "" {
			fmt.Fprintf(out, "xlsx_export_path: %s\n", cfg.XLSXExport)
		}
		if len(cfg.TrainingDocs) > 0 {
			fmt.Fprintf(out, "training_docs: %s\n", strings.Join(cfg.TrainingDocs, ","))
		}
		fmt.Fprintf(out, "pipeline_attempts: %d\n", cfg.PipelineAttempts)
		fmt.Fprintf(out, "sample_rows: %d\n", cfg.SampleRows)
		fmt.Fprintf(out, "max_script_steps: %d\n", cfg.MaxScriptSteps)
		fmt.Fprintf(out, "listen_addr: %s\n", cfg.ListenAddr)
		fmt.Fprintf(out, "index_path: %s\n", cfg.IndexPath)
		fmt.Fprintf(out, "allowed_origins: %s\n", strings.Join(cfg.AllowedOrigins, ","))
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		if cfg.SeqURL != "" {
			fmt.Fprintf(out, "seq_url: %s\n", cfg.SeqURL)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long:  "Set a config value and save to disk. API keys are read from the environment and cannot be set here.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := setConfigValue(c, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "llm_backend":
		b, err := ai.CanonicalBackend(val)
		if err != nil {
			return fmt.Errorf("invalid llm_backend: %s (use openai, gpt or groq)", val)
		}
		c.LLMBackend = b
	case "openai_model":
		c.OpenAIModel = val
	case "openai_base_url":
		c.OpenAIURL = val
	case "groq_model":
		c.GroqModel = val
	case "groq_base_url":
		c.GroqURL = val
	case "model_catalog":
		c.ModelCatalog = val
	case "http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms", "pipeline_attempts", "sample_rows":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		switch key {
		case "http_timeout_sec":
			c.HTTPTimeoutSec = i
		case "retry_max_attempts":
			c.RetryMaxAttempts = i
		case "retry_base_delay_ms":
			c.RetryBaseDelayMs = i
		case "retry_max_delay_ms":
			c.RetryMaxDelayMs = i
		case "pipeline_attempts":
			c.PipelineAttempts = i
		case "sample_rows":
			c.SampleRows = i
		}
	case "max_script_steps":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int for max_script_steps: %w", err)
		}
		c.MaxScriptSteps = n
	case "bookings_path":
		c.BookingsPath = val
	case "mapping_path":
		c.MappingPath = val
	case "cleaned_path":
		c.CleanedPath = val
	case "xlsx_export_path":
		c.XLSXExport = val
	case "listen_addr":
		c.ListenAddr = val
	case "index_path":
		c.IndexPath = val
	case "allowed_origins":
		c.AllowedOrigins = splitList(val)
	case "training_docs":
		c.TrainingDocs = splitList(val)
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "warning", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
	case "seq_url":
		c.SeqURL = val
	case "openai_api_key", "groq_api_key":
		return fmt.Errorf("%s is read from the environment (OPENAI_API_KEY / GROQ_API_KEY or .env)", key)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}

// splitList parses a comma-separated value, dropping blanks.
func splitList(val string) []string {
	var out []string
	for _, v := range strings.Split(val, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
