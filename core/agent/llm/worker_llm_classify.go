package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/port/out"

	"github.com/goccy/go-json"
)

// Parse errors. Any of these means "the model did not answer", never "other".
var (
	ErrNoJSON      = errors.New("no JSON object in model output")
	ErrInvalidJSON = errors.New("invalid JSON in model output")
	ErrInvalidType = errors.New("model returned an unknown label")
)

type classifyResponse struct {
	Type          string           `json:"type"`
	Confidence    any              `json:"confidence"`
	Reasoning     string           `json:"reasoning"`
	Reason        string           `json:"reason"`
	ExtractedData *extractResponse `json:"extractedData"`
}

// ClassifierConfig tunes the model fallback.
type ClassifierConfig struct {
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
	Prompt      PromptBuilder
}

// Classifier is the model fallback for classification and extraction.
type Classifier struct {
	gen out.Generator
	cfg ClassifierConfig
}

func NewClassifier(gen out.Generator, cfg ClassifierConfig) *Classifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	return &Classifier{gen: gen, cfg: cfg}
}

// ClassifyWithModel asks the model for a label. It returns (nil, err) on any
// transport, status or parse failure; callers defer the message.
func (c *Classifier) ClassifyWithModel(ctx context.Context, msg *domain.NormalizedMessage, examples []domain.Correction) (*domain.ClassificationResult, error) {
	system, prompt := c.cfg.Prompt.Classify(msg, examples)
	raw, err := c.generate(ctx, system, prompt)
	if err != nil {
		return nil, err
	}
	return ParseClassification(raw)
}

func (c *Classifier) generate(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	return c.gen.Generate(ctx, out.GenerateRequest{
		System:      system,
		Prompt:      prompt,
		JSON:        true,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
}

// ParseClassification decodes model output into a result. Missing confidence
// defaults to 0.5; missing optional fields default to nil.
func ParseClassification(raw string) (*domain.ClassificationResult, error) {
	obj, ok := findJSONObject(raw)
	if !ok {
		return nil, ErrNoJSON
	}
	var resp classifyResponse
	if err := json.Unmarshal([]byte(obj), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	t, ok := domain.ParseEmailType(resp.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, resp.Type)
	}
	confidence, ok := parseConfidence(resp.Confidence)
	if !ok {
		confidence = domain.DefaultLLMConfidence
	}
	reason := strings.TrimSpace(resp.Reasoning)
	if reason == "" {
		reason = strings.TrimSpace(resp.Reason)
	}
	return &domain.ClassificationResult{
		Type:          t,
		Confidence:    confidence,
		Source:        domain.SourceLLM,
		Reason:        reason,
		ExtractedData: resp.ExtractedData.toDomain(),
	}, nil
}
