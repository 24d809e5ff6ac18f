package ai

import (
	"log/slog"
	"strings"
	"time"
)

// RuntimeFactory builds a Runtime from the generic config below.
type RuntimeFactory func(RuntimeConfig) Runtime

// RuntimeConfig carries common knobs used by runtimes.
type RuntimeConfig struct {
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	APIKey      string
	// BaseURL overrides the backend's default API root (used in tests).
	BaseURL string
	// Model overrides the backend's default model.
	Model string
}

type backendSpec struct {
	factory RuntimeFactory
	model   string
}

var registry = map[string]backendSpec{}

// RegisterRuntime registers a canonical backend name with its factory and default model.
func RegisterRuntime(name, defaultModel string, f RuntimeFactory) {
	registry[name] = backendSpec{factory: f, model: defaultModel}
}

// CanonicalBackend maps a user-facing backend name onto a registered backend.
// "", "openai" and "gpt" all select OpenAI.
func CanonicalBackend(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendOpenAI, BackendGPT:
		return BackendOpenAI, nil
	case BackendGroq:
		return BackendGroq, nil
	}
	return "", &UnsupportedBackendError{Name: name}
}

// NewChatModel constructs a fresh chat model for the named backend at zero temperature.
// cfgs is keyed by canonical backend name; a missing entry uses defaults.
// Nothing is cached: every call builds a new client.
func NewChatModel(name string, cfgs map[string]RuntimeConfig) (*ChatModel, error) {
	backend, err := CanonicalBackend(name)
	if err != nil {
		slog.Error("unsupported LLM backend", "name", name)
		return nil, err
	}
	spec, ok := registry[backend]
	if !ok {
		return nil, &UnsupportedBackendError{Name: name}
	}
	cfg := cfgs[backend]
	model := cfg.Model
	if model == "" {
		model = spec.model
	}
	slog.Debug("initializing chat model", "backend", backend, "model", model)
	return &ChatModel{
		Runtime:     spec.factory(cfg),
		Backend:     backend,
		Model:       model,
		Temperature: 0,
	}, nil
}

func init() {
	RegisterRuntime(BackendOpenAI, DefaultOpenAIModel, func(c RuntimeConfig) Runtime {
		base := c.BaseURL
		if base == "" {
			base = DefaultOpenAIBaseURL
		}
		cl := NewClient(c.APIKey, base, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay)
		cl.keyEnv = "OPENAI_API_KEY"
		return cl
	})
	RegisterRuntime(BackendGroq, DefaultGroqModel, func(c RuntimeConfig) Runtime {
		if c.RetryMax <= 0 {
			c.RetryMax = 2
		}
		base := c.BaseURL
		if base == "" {
			base = DefaultGroqBaseURL
		}
		cl := NewClient(c.APIKey, base, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay)
		cl.keyEnv = "GROQ_API_KEY"
		return cl
	})
}
