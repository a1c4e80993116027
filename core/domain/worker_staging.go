package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportStatus is the review state of a staged import.
type ImportStatus string

const (
	StatusPending  ImportStatus = "pending"
	StatusApproved ImportStatus = "approved"
	StatusRejected ImportStatus = "rejected"
	StatusSkipped  ImportStatus = "skipped"
)

func ParseImportStatus(s string) (ImportStatus, bool) {
	switch st := ImportStatus(s); st {
	case StatusPending, StatusApproved, StatusRejected, StatusSkipped:
		return st, true
	}
	return "", false
}

func (s ImportStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusSkipped
}

// CanTransition reports whether a reviewer may move an import from s to next.
// Pending moves to any terminal state; terminal states only return to pending.
func (s ImportStatus) CanTransition(next ImportStatus) bool {
	switch {
	case s == StatusPending:
		return next.IsTerminal()
	case s.IsTerminal():
		return next == StatusPending
	}
	return false
}

// StagedImport is a classified message waiting for review. At most one exists per MessageID.
type StagedImport struct {
	ID             uuid.UUID            `json:"id"`
	MessageID      string               `json:"messageId"`
	Subject        string               `json:"subject"`
	From           string               `json:"from"`
	FromName       string               `json:"fromName"`
	To             string               `json:"to"`
	Date           time.Time            `json:"date"`
	TextBody       string               `json:"textBody,omitempty"`
	IsOutbound     bool                 `json:"isOutbound"`
	Classification ClassificationResult `json:"classification"`
	Status         ImportStatus         `json:"status"`
	JobID          *string              `json:"jobId,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
	ReviewedAt     *time.Time           `json:"reviewedAt,omitempty"`
}

// Message rebuilds the normalized message the import was created from.
func (s *StagedImport) Message() *NormalizedMessage {
	return &NormalizedMessage{
		MessageID:  s.MessageID,
		Subject:    s.Subject,
		From:       s.From,
		FromName:   s.FromName,
		To:         s.To,
		Date:       s.Date,
		TextBody:   s.TextBody,
		IsOutbound: s.IsOutbound,
	}
}

// ImportRecord is the wire shape a producer submits for one classified message.
type ImportRecord struct {
	MessageID      string               `json:"messageId"`
	Subject        string               `json:"subject"`
	From           string               `json:"from"`
	FromName       string               `json:"fromName"`
	To             string               `json:"to"`
	Date           time.Time            `json:"date"`
	TextBody       string               `json:"textBody,omitempty"`
	IsOutbound     bool                 `json:"isOutbound"`
	Classification ClassificationResult `json:"classification"`
}

// NewImportRecord builds a record from a parsed message and its classification.
func NewImportRecord(msg *NormalizedMessage, result ClassificationResult, bodyChars int) ImportRecord {
	return ImportRecord{
		MessageID:      NormalizeMessageID(msg.MessageID),
		Subject:        msg.Subject,
		From:           msg.From,
		FromName:       msg.FromName,
		To:             msg.To,
		Date:           msg.Date,
		TextBody:       Truncate(msg.TextBody, bodyChars),
		IsOutbound:     msg.IsOutbound,
		Classification: result,
	}
}

// ImportSummary counts per-entry outcomes of an import batch.
type ImportSummary struct {
	Processed    int      `json:"processed"`
	Skipped      int      `json:"skipped"`
	Filtered     int      `json:"filtered"`
	Errors       int      `json:"errors"`
	ErrorDetails []string `json:"errorDetails,omitempty"`
}

func (s *ImportSummary) Add(other ImportSummary) {
	s.Processed += other.Processed
	s.Skipped += other.Skipped
	s.Filtered += other.Filtered
	s.Errors += other.Errors
	s.ErrorDetails = append(s.ErrorDetails, other.ErrorDetails...)
}

// CorrectionKind classifies a correction by how it moves a message across the job-related set.
type CorrectionKind string

const (
	CorrectionRelabel   CorrectionKind = "relabel"   // job-related -> different job-related
	CorrectionPromotion CorrectionKind = "promotion" // other -> job-related
	CorrectionDemotion  CorrectionKind = "demotion"  // job-related -> other
	CorrectionNoop      CorrectionKind = "noop"
)

// CorrectionRecord is a human override delivered to the staging protocol.
// Record carries the message snapshot needed to stage a promotion.
type CorrectionRecord struct {
	MessageID     string        `json:"messageId"`
	OriginalType  EmailType     `json:"originalType"`
	CorrectedType EmailType     `json:"correctedType"`
	Record        *ImportRecord `json:"record,omitempty"`
}

func (c CorrectionRecord) Kind() CorrectionKind {
	orig, corr := c.OriginalType, c.CorrectedType
	switch {
	case orig == corr:
		return CorrectionNoop
	case orig == TypeOther && corr.IsJobRelated():
		return CorrectionPromotion
	case orig.IsJobRelated() && corr == TypeOther:
		return CorrectionDemotion
	case orig.IsJobRelated() && corr.IsJobRelated():
		return CorrectionRelabel
	}
	return CorrectionNoop
}

// CorrectionSummary counts per-entry outcomes of a correction batch.
type CorrectionSummary struct {
	Updated      int      `json:"updated"`
	Created      int      `json:"created"`
	Deleted      int      `json:"deleted"`
	NotFound     int      `json:"notFound"`
	Skipped      int      `json:"skipped"`
	Errors       int      `json:"errors"`
	ErrorDetails []string `json:"errorDetails,omitempty"`
}

func (s *CorrectionSummary) Add(other CorrectionSummary) {
	s.Updated += other.Updated
	s.Created += other.Created
	s.Deleted += other.Deleted
	s.NotFound += other.NotFound
	s.Skipped += other.Skipped
	s.Errors += other.Errors
	s.ErrorDetails = append(s.ErrorDetails, other.ErrorDetails...)
}
