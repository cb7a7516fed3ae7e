package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/inboxd/inboxd/internal/archive"
	"github.com/inboxd/inboxd/internal/broadcast"
	"github.com/inboxd/inboxd/internal/domain"
	"github.com/inboxd/inboxd/internal/identity"
	"github.com/inboxd/inboxd/internal/index"
	"github.com/inboxd/inboxd/internal/metrics"
	"github.com/inboxd/inboxd/internal/store"
)

// Relay is the façade over the message store, recent-conversation index and
// delivery broadcaster. It validates requests and sequences the dual-log,
// dual-index writes of every send.
type Relay struct {
	store       store.Store
	index       index.Index
	broadcaster *broadcast.Broadcaster
	directory   identity.Directory
	archiver    archive.Archiver

	locks  *keyedMutex
	logger *slog.Logger
}

// New wires a Relay from its collaborators.
func New(s store.Store, i index.Index, b *broadcast.Broadcaster, d identity.Directory, a archive.Archiver) *Relay {
	return &Relay{
		store:       s,
		index:       i,
		broadcaster: b,
		directory:   d,
		archiver:    a,
		locks:       newKeyedMutex(),
		logger:      slog.Default().With("service", "relay"),
	}
}

// Send validates and delivers a message. The owner-side and counterpart-side
// appends are both attempted even if one fails; the index upserts for both
// participants are likewise independent. A failed half is logged, never rolled
// back against the other: at-least-one-side delivery beats strict atomicity
// in the dual-mirrored-log model.
func (r *Relay) Send(ctx context.Context, senderID, recipientID, body string) (*domain.Message, error) {
	start := time.Now()

	if senderID == "" || recipientID == "" {
		return nil, fmt.Errorf("%w: sender and recipient must not be empty", domain.ErrValidation)
	}
	if senderID == recipientID {
		return nil, fmt.Errorf("%w: cannot message yourself", domain.ErrValidation)
	}
	if body == "" {
		return nil, fmt.Errorf("%w: body must not be empty", domain.ErrValidation)
	}

	recipient, err := r.directory.Lookup(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	sender, err := r.directory.Lookup(ctx, senderID)
	if err != nil {
		// The caller was already authenticated; a directory miss here only
		// costs profile metadata on the recipient's recent entry.
		r.logger.Warn("Sender profile lookup failed", "sender", senderID, "error", err)
		sender = &domain.Profile{UserID: senderID, Username: senderID}
	}

	now := time.Now().UTC()
	key := domain.NewConversationKey(senderID, recipientID)

	unlock := r.locks.Lock(key)
	ownerMsg, ownerErr := r.store.Append(ctx, senderID, recipientID, senderID, body, now)
	if ownerErr != nil {
		metrics.MirrorWriteFailures.WithLabelValues("owner_log").Inc()
		r.logger.Error("Owner-side append failed", "step", "stored_owner_side",
			"sender", senderID, "recipient", recipientID, "error", ownerErr)
	}

	mirrorAt := now
	if ownerMsg != nil {
		// Both copies must agree on createdAt.
		mirrorAt = ownerMsg.CreatedAt
	}
	mirrorMsg, mirrorErr := r.store.Append(ctx, recipientID, senderID, senderID, body, mirrorAt)
	if mirrorErr != nil {
		metrics.MirrorWriteFailures.WithLabelValues("counterpart_log").Inc()
		r.logger.Error("Counterpart-side append failed", "step", "stored_counterpart_side",
			"sender", senderID, "recipient", recipientID, "error", mirrorErr)
	}

	published := ownerMsg
	if published == nil {
		published = mirrorMsg
	}
	if published != nil {
		if err := r.broadcaster.Publish(ctx, key, published); err != nil {
			r.logger.Error("Publish failed", "step", "published", "conversation", key.String(), "error", err)
		}
	}
	unlock()

	if published != nil {
		r.upsertRecent(ctx, senderID, recipient, published, "owner_index")
		r.upsertRecent(ctx, recipientID, sender, published, "counterpart_index")
	}

	if ownerErr != nil {
		return nil, ownerErr
	}

	metrics.MessagesSent.Inc()
	metrics.SendDuration.Observe(time.Since(start).Seconds())
	return ownerMsg, nil
}

// upsertRecent overwrites one participant's recent entry. Failures are logged,
// not surfaced: the message itself was already delivered.
func (r *Relay) upsertRecent(ctx context.Context, ownerID string, counterpart *domain.Profile, msg *domain.Message, side string) {
	entry := domain.RecentEntry{
		OwnerID:           ownerID,
		CounterpartID:     counterpart.UserID,
		LastBody:          msg.Body,
		LastSenderID:      msg.SenderID,
		LastCreatedAt:     msg.CreatedAt,
		CounterpartName:   counterpart.Username,
		CounterpartAvatar: counterpart.AvatarURL,
	}
	if err := r.index.Upsert(ctx, entry); err != nil {
		metrics.MirrorWriteFailures.WithLabelValues(side).Inc()
		r.logger.Error("Recent index upsert failed", "step", "indexed_both_sides",
			"owner", ownerID, "counterpart", counterpart.UserID, "error", err)
	}
}

// ListConversation returns the owner's log with the counterpart, ascending,
// after the cursor (zero time means from the beginning).
func (r *Relay) ListConversation(ctx context.Context, ownerID, counterpartID string, after time.Time) ([]*domain.Message, error) {
	return r.store.List(ctx, ownerID, counterpartID, after)
}

// ListRecent returns the owner's recent conversations, newest first. Sorting
// is the relay's job, not the index's.
func (r *Relay) ListRecent(ctx context.Context, ownerID string) ([]domain.RecentEntry, error) {
	entries, err := r.index.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(a, b int) bool {
		return entries[a].LastCreatedAt.After(entries[b].LastCreatedAt)
	})
	return entries, nil
}

// Subscribe registers fn as a live watcher of the conversation and returns
// the backfill of existing messages. Backfill and registration happen under
// the conversation lock, so backfill plus stream is the complete log: no message
// appended concurrently can land in the gap unseen.
func (r *Relay) Subscribe(ctx context.Context, ownerID, counterpartID string, fn broadcast.Callback) (*broadcast.Subscription, []*domain.Message, error) {
	if err := validatePair(ownerID, counterpartID); err != nil {
		return nil, nil, err
	}

	key := domain.NewConversationKey(ownerID, counterpartID)
	unlock := r.locks.Lock(key)
	defer unlock()

	backfill, err := r.store.List(ctx, ownerID, counterpartID, time.Time{})
	if err != nil {
		return nil, nil, err
	}

	sub, err := r.broadcaster.Subscribe(key, fn)
	if err != nil {
		return nil, nil, err
	}
	return sub, backfill, nil
}

// Unsubscribe removes a watcher. Idempotent.
func (r *Relay) Unsubscribe(sub *broadcast.Subscription) {
	r.broadcaster.Unsubscribe(sub)
}

// DeleteConversation removes the caller's index entry and reaps the caller's
// own log only; the counterpart's copy of the conversation is untouched.
// This is "delete for me", matching the asymmetric one-sided semantics.
// The reaped log is archived first, best-effort.
func (r *Relay) DeleteConversation(ctx context.Context, ownerID, counterpartID string) error {
	if err := validatePair(ownerID, counterpartID); err != nil {
		return err
	}

	key := domain.NewConversationKey(ownerID, counterpartID)
	unlock := r.locks.Lock(key)
	defer unlock()

	msgs, err := r.store.List(ctx, ownerID, counterpartID, time.Time{})
	if err != nil {
		return err
	}
	if len(msgs) > 0 {
		if aerr := r.archiver.ArchiveLog(ctx, ownerID, counterpartID, msgs); aerr != nil {
			r.logger.Warn("Archive before reap failed", "owner", ownerID, "counterpart", counterpartID, "error", aerr)
		}
	}

	_, delErr := r.store.DeleteLog(ctx, ownerID, counterpartID)
	idxErr := r.index.Delete(ctx, ownerID, counterpartID)
	if err := errors.Join(delErr, idxErr); err != nil {
		return err
	}

	metrics.ConversationsDeleted.Inc()
	return nil
}

func validatePair(ownerID, counterpartID string) error {
	if ownerID == "" || counterpartID == "" {
		return fmt.Errorf("%w: owner and counterpart must not be empty", domain.ErrValidation)
	}
	if ownerID == counterpartID {
		return fmt.Errorf("%w: owner and counterpart must differ", domain.ErrValidation)
	}
	return nil
}
