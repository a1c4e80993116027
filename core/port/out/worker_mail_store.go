package out

import (
	"context"
	"strings"
)

// MessageRef identifies a message in the mail store. Path is set by file-backed stores.
type MessageRef struct {
	ID   string
	Path string
}

// TagQuery is a small tag algebra understood by every mail store.
// Include tags must all be present; Exclude tags must all be absent;
// Prefix, when set, requires at least one tag starting with it.
type TagQuery struct {
	Include []string
	Exclude []string
	Prefix  string
	Limit   int
}

// Matches evaluates the query against a message's tags.
func (q TagQuery) Matches(tags []string) bool {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	for _, t := range q.Include {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	for _, t := range q.Exclude {
		if _, ok := set[t]; ok {
			return false
		}
	}
	if q.Prefix != "" {
		for t := range set {
			if strings.HasPrefix(t, q.Prefix) {
				return true
			}
		}
		return false
	}
	return true
}

// MailStore is the external mail index: lookup by tag expression, tag mutation and raw reads.
type MailStore interface {
	Query(ctx context.Context, q TagQuery) ([]MessageRef, error)
	MutateTags(ctx context.Context, messageID string, add, remove []string) error
	ReadRaw(ctx context.Context, ref MessageRef) ([]byte, error)
	Tags(ctx context.Context, messageID string) ([]string, error)
}
