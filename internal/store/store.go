package store

import (
	"context"
	"fmt"
	"time"

	"github.com/inboxd/inboxd/internal/domain"
)

// Store is the append-only per-conversation message log. A log is one
// participant's ordered view of the messages exchanged with one counterpart;
// every conversation is two independent logs.
type Store interface {
	// Append assigns an identifier and a server timestamp strictly greater
	// than the previous message in the same (owner, counterpart) log, then
	// appends the message. The requested timestamp is bumped forward when
	// needed to keep the per-log order strict.
	Append(ctx context.Context, ownerID, counterpartID, senderID, body string, at time.Time) (*domain.Message, error)

	// List returns all messages with CreatedAt after the cursor (zero time
	// means all), ascending. Callers page by passing the last-seen timestamp.
	List(ctx context.Context, ownerID, counterpartID string, after time.Time) ([]*domain.Message, error)

	// DeleteLog removes the whole log and returns the removed messages so the
	// caller can archive them. Idempotent; an absent log yields nil, nil.
	DeleteLog(ctx context.Context, ownerID, counterpartID string) ([]*domain.Message, error)
}

// validateLog checks the log coordinates shared by all Store operations.
func validateLog(ownerID, counterpartID string) error {
	if ownerID == "" || counterpartID == "" {
		return fmt.Errorf("%w: owner and counterpart must not be empty", domain.ErrValidation)
	}
	if ownerID == counterpartID {
		return fmt.Errorf("%w: owner and counterpart must differ", domain.ErrValidation)
	}
	return nil
}
