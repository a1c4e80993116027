package domain

import "time"

// CorrectionPool partitions recorded corrections.
type CorrectionPool string

const (
	// PoolFewShot holds corrections no rule could have produced; rendered into prompts.
	PoolFewShot CorrectionPool = "few_shot"
	// PoolRuleFeedback holds corrections a rule matched; kept for fixing rules only.
	PoolRuleFeedback CorrectionPool = "rule_feedback"
)

// Correction is a human override with the message context captured at correction time.
type Correction struct {
	MessageID     string    `json:"messageId"`
	OriginalType  EmailType `json:"originalType"`
	CorrectedType EmailType `json:"correctedType"`
	Subject       string    `json:"subject"`
	From          string    `json:"from"`
	IsOutbound    bool      `json:"isOutbound"`
	BodyPreview   string    `json:"bodyPreview"`
	HighVariance  bool      `json:"highVariance"`
	MatchedRule   string    `json:"matchedRule,omitempty"`
	CorrectedAt   time.Time `json:"correctedAt"`
}

// Pool returns the partition the correction belongs to.
func (c *Correction) Pool() CorrectionPool {
	if c.HighVariance {
		return PoolFewShot
	}
	return PoolRuleFeedback
}
