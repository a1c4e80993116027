package out

import (
	"context"
)

// SeenFilter is a short-lived producer-side dedup of message ids.
type SeenFilter interface {
	// MarkSeen returns true when the id was not seen before.
	MarkSeen(ctx context.Context, messageID string) (bool, error)
	Forget(ctx context.Context, messageID string) error
}
