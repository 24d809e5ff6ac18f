package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/flightinsights/internal/ai"
)

// Global configuration structure.
type Global struct {
	// LLM selection
	LLMBackend   string `mapstructure:"llm_backend" yaml:"llm_backend"`
	OpenAIKey    string `mapstructure:"openai_api_key" yaml:"-"`
	OpenAIModel  string `mapstructure:"openai_model" yaml:"openai_model"`
	OpenAIURL    string `mapstructure:"openai_base_url" yaml:"openai_base_url"`
	GroqKey      string `mapstructure:"groq_api_key" yaml:"-"`
	GroqModel    string `mapstructure:"groq_model" yaml:"groq_model"`
	GroqURL      string `mapstructure:"groq_base_url" yaml:"groq_base_url"`
	ModelCatalog string `mapstructure:"model_catalog" yaml:"model_catalog"`

	// HTTP/Retry configuration for LLM calls
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Data locations
	BookingsPath string `mapstructure:"bookings_path" yaml:"bookings_path"`
	MappingPath  string `mapstructure:"mapping_path" yaml:"mapping_path"`
	CleanedPath  string `mapstructure:"cleaned_path" yaml:"cleaned_path"`
	XLSXExport   string `mapstructure:"xlsx_export_path" yaml:"xlsx_export_path"`

	// Extra instruction documents (.txt, .md, .docx) for the analysis agent
	TrainingDocs []string `mapstructure:"training_docs" yaml:"training_docs,omitempty"`

	// Pipeline
	PipelineAttempts int    `mapstructure:"pipeline_attempts" yaml:"pipeline_attempts"`
	SampleRows       int    `mapstructure:"sample_rows" yaml:"sample_rows"`
	MaxScriptSteps   uint64 `mapstructure:"max_script_steps" yaml:"max_script_steps"`

	// HTTP surface
	ListenAddr     string   `mapstructure:"listen_addr" yaml:"listen_addr"`
	IndexPath      string   `mapstructure:"index_path" yaml:"index_path"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	// Logging
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	SeqURL   string `mapstructure:"seq_url" yaml:"seq_url"`
}

// Runtimes returns per-backend runtime settings for ai.NewChatModel.
func (c *Global) Runtimes() map[string]ai.RuntimeConfig {
	common := ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
	}
	openai := common
	openai.APIKey = c.OpenAIKey
	openai.Model = c.OpenAIModel
	openai.BaseURL = c.OpenAIURL
	groq := common
	groq.APIKey = c.GroqKey
	groq.Model = c.GroqModel
	groq.BaseURL = c.GroqURL
	return map[string]ai.RuntimeConfig{
		ai.BackendOpenAI: openai,
		ai.BackendGroq:   groq,
	}
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ./config.yaml. API keys are never written.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		path = "config.yaml"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is loaded first and never overrides variables already set.
func Load(cfgFile string) (*Global, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("FLIGHTINSIGHTS")
	v.AutomaticEnv()
	// Provider keys use their conventional names.
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY", "FLIGHTINSIGHTS_OPENAI_API_KEY")
	_ = v.BindEnv("groq_api_key", "GROQ_API_KEY", "FLIGHTINSIGHTS_GROQ_API_KEY")

	v.SetDefault("llm_backend", ai.BackendOpenAI)
	v.SetDefault("openai_model", ai.DefaultOpenAIModel)
	v.SetDefault("groq_model", ai.DefaultGroqModel)
	v.SetDefault("openai_base_url", "")
	v.SetDefault("groq_base_url", "")
	v.SetDefault("model_catalog", "")
	v.SetDefault("http_timeout_sec", 120)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("bookings_path", "data/Flight Bookings.csv")
	v.SetDefault("mapping_path", "data/Airline ID to Name.csv")
	v.SetDefault("cleaned_path", "data/Clean_Booking_Details.csv")
	v.SetDefault("xlsx_export_path", "")
	v.SetDefault("training_docs", []string{})
	v.SetDefault("pipeline_attempts", 5)
	v.SetDefault("sample_rows", 5)
	v.SetDefault("max_script_steps", 50_000_000)
	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("index_path", "static/index.html")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("log_level", "info")
	v.SetDefault("seq_url", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.PipelineAttempts <= 0 {
		c.PipelineAttempts = 5
	}
	return &c, nil
}
