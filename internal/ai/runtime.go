package ai

import "context"

// Runtime is the minimal interface implemented by chat-completion backends.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Backend identifiers accepted by NewChatModel.
const (
	BackendOpenAI = "openai"
	BackendGPT    = "gpt"
	BackendGroq   = "groq"
)

// Default models per backend.
const (
	DefaultOpenAIModel = "gpt-4o"
	DefaultGroqModel   = "llama-3.1-8b-instant"
)

// Default API roots per backend.
const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultGroqBaseURL   = "https://api.groq.com/openai/v1"
)
