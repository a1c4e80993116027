package domain

import (
	"strings"
	"time"
)

// NormalizedMessage is an immutable snapshot of a parsed email.
type NormalizedMessage struct {
	MessageID  string    `json:"messageId"`
	Subject    string    `json:"subject"`
	From       string    `json:"from"`
	FromName   string    `json:"fromName"`
	To         string    `json:"to"`
	Date       time.Time `json:"date"`
	TextBody   string    `json:"textBody"`
	HTMLBody   *string   `json:"htmlBody,omitempty"`
	IsOutbound bool      `json:"isOutbound"`
}

// FromDomain returns the lower-cased domain part of the sender address.
func (m *NormalizedMessage) FromDomain() string {
	at := strings.LastIndexByte(m.From, '@')
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(m.From[at+1:]))
}

// BodyPreview returns at most n runes of the text body.
func (m *NormalizedMessage) BodyPreview(n int) string {
	return Truncate(m.TextBody, n)
}

// NormalizeMessageID strips surrounding angle brackets and whitespace so the id
// can be used as a key.
func NormalizeMessageID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "<")
	id = strings.TrimSuffix(id, ">")
	return strings.TrimSpace(id)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
