package domain

import (
	"time"
)

// Outcome is the per-message result of a pipeline pass.
type Outcome string

const (
	OutcomeStaged    Outcome = "staged"    // accepted and delivered to the staging sink
	OutcomeDuplicate Outcome = "duplicate" // already staged
	OutcomeFiltered  Outcome = "filtered"  // policy rejection: other or below threshold
	OutcomeDeferred  Outcome = "deferred"  // transient failure, left for the next batch
	OutcomeFailed    Outcome = "failed"    // malformed input, skipped this run
)

// MessageResult is what one worker reports for one message.
type MessageResult struct {
	MessageID string               `json:"messageId" bson:"message_id"`
	Path      string               `json:"path,omitempty" bson:"path,omitempty"`
	Outcome   Outcome              `json:"outcome" bson:"outcome"`
	Type      EmailType            `json:"type,omitempty" bson:"type,omitempty"`
	Source    ClassificationSource `json:"source,omitempty" bson:"source,omitempty"`
	Error     string               `json:"error,omitempty" bson:"error,omitempty"`
	Duration  time.Duration        `json:"duration" bson:"duration"`
}

// BatchSummary aggregates a batch after every worker has finished.
type BatchSummary struct {
	RunID      string                       `json:"runId" bson:"run_id"`
	StartedAt  time.Time                    `json:"startedAt" bson:"started_at"`
	Duration   time.Duration                `json:"duration" bson:"duration"`
	Candidates int                          `json:"candidates" bson:"candidates"`
	Processed  int                          `json:"processed" bson:"processed"`
	Staged     int                          `json:"staged" bson:"staged"`
	Skipped    int                          `json:"skipped" bson:"skipped"`
	Filtered   int                          `json:"filtered" bson:"filtered"`
	Deferred   int                          `json:"deferred" bson:"deferred"`
	Failed     int                          `json:"failed" bson:"failed"`
	Errors     []string                     `json:"errors,omitempty" bson:"errors,omitempty"`
	ByType     map[EmailType]int            `json:"byType,omitempty" bson:"by_type,omitempty"`
	BySource   map[ClassificationSource]int `json:"bySource,omitempty" bson:"by_source,omitempty"`
	Results    []MessageResult              `json:"-" bson:"results,omitempty"`
}

// Summarize aggregates per-message results in completion order.
func Summarize(runID string, started time.Time, candidates int, results []MessageResult) BatchSummary {
	s := BatchSummary{
		RunID:      runID,
		StartedAt:  started,
		Duration:   time.Since(started),
		Candidates: candidates,
		ByType:     make(map[EmailType]int),
		BySource:   make(map[ClassificationSource]int),
		Results:    results,
	}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeStaged:
			s.Processed++
			s.Staged++
		case OutcomeDuplicate:
			s.Processed++
			s.Skipped++
		case OutcomeFiltered:
			s.Processed++
			s.Filtered++
		case OutcomeDeferred:
			s.Deferred++
			s.Errors = append(s.Errors, r.MessageID+": "+r.Error)
		case OutcomeFailed:
			s.Failed++
			s.Errors = append(s.Errors, r.MessageID+": "+r.Error)
		}
		if r.Type != "" {
			s.ByType[r.Type]++
		}
		if r.Source != "" {
			s.BySource[r.Source]++
		}
	}
	return s
}

// ScanSummary aggregates one correction scan.
type ScanSummary struct {
	Scanned       int               `json:"scanned"`
	Recorded      int               `json:"recorded"`
	HighVariance  int               `json:"highVariance"`
	UnknownOrigin int               `json:"unknownOrigin"`
	Unchanged     int               `json:"unchanged"`
	Errors        int               `json:"errors"`
	Sink          CorrectionSummary `json:"sink"`
}
