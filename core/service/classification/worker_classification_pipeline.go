package classification

import (
	"context"
	"errors"
	"fmt"

	"jobtrack_worker/core/domain"
)

// ErrNoModel is returned when no rule matched and no model fallback is configured.
var ErrNoModel = errors.New("no rule matched and no model configured")

// ModelClassifier is the slow path, implemented by llm.Classifier.
type ModelClassifier interface {
	ClassifyWithModel(ctx context.Context, msg *domain.NormalizedMessage, examples []domain.Correction) (*domain.ClassificationResult, error)
}

// Pipeline runs the rule engine and escalates to the model when no rule matches.
type Pipeline struct {
	rules *RuleEngine
	model ModelClassifier
}

func NewPipeline(rules *RuleEngine, model ModelClassifier) *Pipeline {
	return &Pipeline{rules: rules, model: model}
}

// Rules exposes the engine for callers that need a pure rule check.
func (p *Pipeline) Rules() *RuleEngine {
	return p.rules
}

// Classify returns a rule result when one matches, otherwise the model's answer.
// A model failure is returned as an error; it is never turned into "other".
func (p *Pipeline) Classify(ctx context.Context, msg *domain.NormalizedMessage, examples []domain.Correction) (*domain.ClassificationResult, error) {
	if res, ok := p.rules.Classify(msg); ok {
		return res, nil
	}
	if p.model == nil {
		return nil, ErrNoModel
	}
	res, err := p.model.ClassifyWithModel(ctx, msg, examples)
	if err != nil {
		return nil, fmt.Errorf("model classify: %w", err)
	}
	if res == nil {
		return nil, fmt.Errorf("model classify: empty result")
	}
	return res, nil
}
