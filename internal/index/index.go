package index

import (
	"context"
	"fmt"

	"github.com/inboxd/inboxd/internal/domain"
)

// Index is the recent-conversation index: one upsertable row per
// (owner, counterpart) pair holding the latest message snapshot. Rows are
// overwritten on every new message, last-write-wins by snapshot timestamp.
type Index interface {
	// Upsert replaces the (owner, counterpart) entry. A write carrying an
	// older snapshot timestamp than the stored entry is dropped, so racing
	// sends can never regress the recent list.
	Upsert(ctx context.Context, entry domain.RecentEntry) error

	// Get returns all entries for an owner, in no particular order. Sorting
	// for display is the caller's job.
	Get(ctx context.Context, ownerID string) ([]domain.RecentEntry, error)

	// Delete removes the (owner, counterpart) entry. Idempotent.
	Delete(ctx context.Context, ownerID, counterpartID string) error
}

func validateEntry(ownerID, counterpartID string) error {
	if ownerID == "" || counterpartID == "" {
		return fmt.Errorf("%w: owner and counterpart must not be empty", domain.ErrValidation)
	}
	return nil
}
