package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"jobtrack_worker/core/port/out"
	"jobtrack_worker/pkg/metrics"
	"jobtrack_worker/pkg/resilience"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// ErrCircuitOpen is returned while the runtime is considered down.
var ErrCircuitOpen = fmt.Errorf("llm runtime: %w", resilience.ErrCircuitOpen)

// ErrEmptyResponse is returned when the runtime answers without any choice.
var ErrEmptyResponse = errors.New("llm returned no choices")

// Client talks to an OpenAI-compatible chat endpoint (Ollama, llama.cpp, vLLM ...).
// It implements out.Generator.
type Client struct {
	client  *openai.Client
	model   string
	cb      *resilience.Breaker
	latency *metrics.LatencyTracker
	log     zerolog.Logger
}

type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Latency    *metrics.LatencyTracker // optional, records each completion
}

const DefaultModel = "llama3.1:8b"

var _ out.Generator = (*Client)(nil)

func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		// local runtimes ignore the key but the SDK sends the header anyway
		apiKey = "ollama"
	}

	oc := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	log = log.With().Str("component", "llm_client").Str("model", model).Logger()

	return &Client{
		client:  openai.NewClientWithConfig(oc),
		model:   model,
		cb:      resilience.NewBreaker(resilience.DefaultBreakerConfig("llm-runtime"), log),
		latency: cfg.Latency,
		log:     log,
	}
}

// Generate runs a single chat completion. The caller bounds the call with ctx.
func (c *Client) Generate(ctx context.Context, req out.GenerateRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	if c.latency != nil {
		defer c.latency.Since(time.Now())
	}

	var resp openai.ChatCompletionResponse
	err := c.cb.Execute(func() error {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, chatReq)
		// A cancelled batch is not a runtime failure.
		if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return resilience.Permanent(err)
		}
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "", ErrCircuitOpen
	}
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// State returns the breaker state for health reporting.
func (c *Client) State() string {
	return c.cb.State()
}
