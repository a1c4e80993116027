package out

import (
	"context"
)

// GenerateRequest is a single-turn completion request.
type GenerateRequest struct {
	System      string
	Prompt      string
	JSON        bool // ask the runtime for a JSON object
	Temperature float32
	MaxTokens   int
}

// Generator is the LLM runtime: prompt in, text out. No streaming, no conversation state.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
