package llm

import (
	"context"
	"fmt"

	"jobtrack_worker/core/domain"

	"github.com/goccy/go-json"
)

// =============================================================================
// Field extraction fallback
// =============================================================================

type extractResponse struct {
	Company        *string `json:"company"`
	JobTitle       *string `json:"jobTitle"`
	Location       *string `json:"location"`
	ApplicationURL *string `json:"applicationUrl"`
	Source         *string `json:"source"`
	JobType        *string `json:"jobType"`
	RecruiterName  *string `json:"recruiterName"`
	SalaryRange    *string `json:"salaryRange"`
}

func (r *extractResponse) toDomain() domain.ExtractedData {
	if r == nil {
		return domain.ExtractedData{}
	}
	return domain.ExtractedData{
		Company:        cleanOptional(r.Company),
		JobTitle:       cleanOptional(r.JobTitle),
		Location:       cleanOptional(r.Location),
		ApplicationURL: cleanOptional(r.ApplicationURL),
		Source:         cleanOptional(r.Source),
		JobType:        cleanOptional(r.JobType),
		RecruiterName:  cleanOptional(r.RecruiterName),
		SalaryRange:    cleanOptional(r.SalaryRange),
	}
}

// ExtractWithModel asks the model for structured fields. (nil, err) on failure.
func (c *Classifier) ExtractWithModel(ctx context.Context, msg *domain.NormalizedMessage) (*domain.ExtractedData, error) {
	system, prompt := c.cfg.Prompt.Extract(msg)
	raw, err := c.generate(ctx, system, prompt)
	if err != nil {
		return nil, err
	}
	return ParseExtraction(raw)
}

// ParseExtraction decodes model output into extracted fields.
func ParseExtraction(raw string) (*domain.ExtractedData, error) {
	obj, ok := findJSONObject(raw)
	if !ok {
		return nil, ErrNoJSON
	}
	var resp extractResponse
	if err := json.Unmarshal([]byte(obj), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	data := resp.toDomain()
	return &data, nil
}
