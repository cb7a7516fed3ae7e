package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/surrealdb/surrealdb.go"

	"github.com/inboxd/inboxd/internal/database"
	"github.com/inboxd/inboxd/internal/domain"
)

// messageRow is the persisted shape of a message. Timestamps are stored as
// unix nanoseconds so ORDER BY sorts them numerically.
type messageRow struct {
	OwnerID       string `json:"owner_id"`
	CounterpartID string `json:"counterpart_id"`
	MessageID     string `json:"message_id"`
	SenderID      string `json:"sender_id"`
	RecipientID   string `json:"recipient_id"`
	Body          string `json:"body"`
	CreatedAt     int64  `json:"created_at"`
}

func (r messageRow) toMessage() *domain.Message {
	return &domain.Message{
		ID:          r.MessageID,
		SenderID:    r.SenderID,
		RecipientID: r.RecipientID,
		Body:        r.Body,
		CreatedAt:   time.Unix(0, r.CreatedAt).UTC(),
	}
}

// SurrealStore is the persistent Store implementation on SurrealDB. Per-log
// monotonicity is enforced the same way as in MemoryStore; the relay already
// serializes appends per conversation, so the read-then-insert below never
// races with itself for the same log.
type SurrealStore struct {
	db *surrealdb.DB

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewSurrealStore creates a Store backed by the given SurrealDB connection.
func NewSurrealStore(db *surrealdb.DB) *SurrealStore {
	return &SurrealStore{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (s *SurrealStore) newID(at time.Time) (string, error) {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(at), s.entropy)
	if err != nil {
		return "", fmt.Errorf("generate message id: %w", err)
	}
	return id.String(), nil
}

// Append implements Store.
func (s *SurrealStore) Append(ctx context.Context, ownerID, counterpartID, senderID, body string, at time.Time) (*domain.Message, error) {
	if err := validateLog(ownerID, counterpartID); err != nil {
		return nil, err
	}
	if body == "" {
		return nil, fmt.Errorf("%w: body must not be empty", domain.ErrValidation)
	}

	last, err := database.QueryOne[messageRow](ctx, s.db,
		"SELECT * FROM messages WHERE owner_id = $owner AND counterpart_id = $counterpart ORDER BY created_at DESC LIMIT 1",
		map[string]any{"owner": ownerID, "counterpart": counterpartID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
	}

	ts := at.UTC().UnixNano()
	if last != nil && ts <= last.CreatedAt {
		ts = last.CreatedAt + 1
	}

	id, err := s.newID(time.Unix(0, ts))
	if err != nil {
		return nil, err
	}

	recipient := counterpartID
	if senderID != ownerID {
		recipient = ownerID
	}

	row := messageRow{
		OwnerID:       ownerID,
		CounterpartID: counterpartID,
		MessageID:     id,
		SenderID:      senderID,
		RecipientID:   recipient,
		Body:          body,
		CreatedAt:     ts,
	}

	err = database.Execute(ctx, s.db, `
		CREATE messages CONTENT {
			owner_id: $owner_id,
			counterpart_id: $counterpart_id,
			message_id: $message_id,
			sender_id: $sender_id,
			recipient_id: $recipient_id,
			body: $body,
			created_at: $created_at
		}
	`, map[string]any{
		"owner_id":       row.OwnerID,
		"counterpart_id": row.CounterpartID,
		"message_id":     row.MessageID,
		"sender_id":      row.SenderID,
		"recipient_id":   row.RecipientID,
		"body":           row.Body,
		"created_at":     row.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
	}

	return row.toMessage(), nil
}

// List implements Store.
func (s *SurrealStore) List(ctx context.Context, ownerID, counterpartID string, after time.Time) ([]*domain.Message, error) {
	if err := validateLog(ownerID, counterpartID); err != nil {
		return nil, err
	}

	cursor := int64(0)
	if !after.IsZero() {
		cursor = after.UnixNano()
	}

	rows, err := database.Query[messageRow](ctx, s.db,
		"SELECT * FROM messages WHERE owner_id = $owner AND counterpart_id = $counterpart AND created_at > $after ORDER BY created_at ASC",
		map[string]any{"owner": ownerID, "counterpart": counterpartID, "after": cursor})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
	}

	out := make([]*domain.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toMessage())
	}
	return out, nil
}

// DeleteLog implements Store.
func (s *SurrealStore) DeleteLog(ctx context.Context, ownerID, counterpartID string) ([]*domain.Message, error) {
	if err := validateLog(ownerID, counterpartID); err != nil {
		return nil, err
	}

	params := map[string]any{"owner": ownerID, "counterpart": counterpartID}
	rows, err := database.Query[messageRow](ctx, s.db,
		"SELECT * FROM messages WHERE owner_id = $owner AND counterpart_id = $counterpart ORDER BY created_at ASC",
		params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	err = database.Execute(ctx, s.db,
		"DELETE FROM messages WHERE owner_id = $owner AND counterpart_id = $counterpart",
		params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
	}

	out := make([]*domain.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toMessage())
	}
	return out, nil
}

var _ Store = (*SurrealStore)(nil)
