package domain

import (
	"strings"
)

// EmailType is the closed set of labels a message can be classified as.
type EmailType string

const (
	TypeJobApplication EmailType = "job_application" // Confirmation that an application was submitted
	TypeJobResponse    EmailType = "job_response"    // Recruiter/employer reply that is not a decision
	TypeInterview      EmailType = "interview"       // Interview invitation or scheduling
	TypeRejection      EmailType = "rejection"       // Application declined
	TypeOffer          EmailType = "offer"           // Offer of employment
	TypeFollowUp       EmailType = "follow_up"       // Candidate or employer follow-up
	TypeOther          EmailType = "other"           // Not part of the job search
)

// AllEmailTypes lists every label in declaration order.
var AllEmailTypes = []EmailType{
	TypeJobApplication,
	TypeJobResponse,
	TypeInterview,
	TypeRejection,
	TypeOffer,
	TypeFollowUp,
	TypeOther,
}

// Tag conventions shared with the mail store.
const (
	TagProcessed         = "job-processed"
	ClassificationPrefix = "job/"
	WasPrefix            = "label-was/"
)

// ParseEmailType converts a free-form label into an EmailType.
func ParseEmailType(s string) (EmailType, bool) {
	t := EmailType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllEmailTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

func (t EmailType) Valid() bool {
	_, ok := ParseEmailType(string(t))
	return ok
}

// IsJobRelated reports whether the label belongs to the job search.
func (t EmailType) IsJobRelated() bool {
	return t.Valid() && t != TypeOther
}

// Tag returns the classification tag, e.g. "job/interview".
func (t EmailType) Tag() string {
	return ClassificationPrefix + string(t)
}

// WasTag returns the sentinel tag recording the label before a human override.
func (t EmailType) WasTag() string {
	return WasPrefix + string(t)
}

func (t EmailType) String() string {
	return string(t)
}

// ClassificationSource tells where a classification came from.
type ClassificationSource string

const (
	SourceRule   ClassificationSource = "rule"
	SourceLLM    ClassificationSource = "llm"
	SourceManual ClassificationSource = "manual"
)

// Confidence constants
const (
	RuleConfidence       = 0.95
	ManualConfidence     = 1.0
	DefaultLLMConfidence = 0.5
)

// ClassificationResult is the outcome of classifying one message.
type ClassificationResult struct {
	Type          EmailType            `json:"type"`
	Confidence    float64              `json:"confidence"`
	Source        ClassificationSource `json:"source"`
	Reason        string               `json:"reason,omitempty"`
	ExtractedData ExtractedData        `json:"extractedData"`
}

// Accepted reports whether the classification passes the staging policy.
func (r *ClassificationResult) Accepted(threshold float64) bool {
	return r != nil && r.Type.IsJobRelated() && r.Confidence >= threshold
}

// ExtractedData holds optional structured fields pulled out of a message.
type ExtractedData struct {
	Company        *string `json:"company"`
	JobTitle       *string `json:"jobTitle"`
	Location       *string `json:"location"`
	ApplicationURL *string `json:"applicationUrl"`
	Source         *string `json:"source"`
	JobType        *string `json:"jobType"`
	RecruiterName  *string `json:"recruiterName"`
	SalaryRange    *string `json:"salaryRange"`
}

// IsComplete reports whether both company and job title are present.
func (d ExtractedData) IsComplete() bool {
	return present(d.Company) && present(d.JobTitle)
}

// Merge fills absent fields of d from other. Present values in d are never replaced.
func (d ExtractedData) Merge(other ExtractedData) ExtractedData {
	out := d
	fill(&out.Company, other.Company)
	fill(&out.JobTitle, other.JobTitle)
	fill(&out.Location, other.Location)
	fill(&out.ApplicationURL, other.ApplicationURL)
	fill(&out.Source, other.Source)
	fill(&out.JobType, other.JobType)
	fill(&out.RecruiterName, other.RecruiterName)
	fill(&out.SalaryRange, other.SalaryRange)
	return out
}

// Str returns a pointer to s, or nil when s is blank.
func Str(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func present(p *string) bool {
	return p != nil && strings.TrimSpace(*p) != ""
}

func fill(dst **string, src *string) {
	if present(*dst) || !present(src) {
		return
	}
	v := *src
	*dst = &v
}
