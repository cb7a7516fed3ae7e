package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/inboxd/inboxd/internal/domain"
)

// logKey addresses one participant's log for one counterpart.
type logKey struct {
	owner       string
	counterpart string
}

// messageLog holds one log's messages. The mutex serializes appends and
// snapshots for this log only; unrelated logs never contend.
type messageLog struct {
	mu     sync.Mutex
	msgs   []*domain.Message
	lastTs time.Time
}

// MemoryStore is the in-memory Store implementation. It is safe for
// concurrent use; readers see either the pre- or post-append state of a log,
// never a partially written one.
type MemoryStore struct {
	mu   sync.RWMutex
	logs map[logKey]*messageLog

	// entropy feeds monotonic ULIDs so identifiers sort with append order.
	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		logs:    make(map[logKey]*messageLog),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (s *MemoryStore) log(key logKey) *messageLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[key]
	if !ok {
		l = &messageLog{}
		s.logs[key] = l
	}
	return l
}

func (s *MemoryStore) newID(at time.Time) (string, error) {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(at), s.entropy)
	if err != nil {
		return "", fmt.Errorf("generate message id: %w", err)
	}
	return id.String(), nil
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, ownerID, counterpartID, senderID, body string, at time.Time) (*domain.Message, error) {
	if err := validateLog(ownerID, counterpartID); err != nil {
		return nil, err
	}
	if body == "" {
		return nil, fmt.Errorf("%w: body must not be empty", domain.ErrValidation)
	}

	l := s.log(logKey{owner: ownerID, counterpart: counterpartID})
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := at.UTC()
	if !ts.After(l.lastTs) {
		// Keep the per-log timestamp order strict; ties break by insertion.
		ts = l.lastTs.Add(time.Nanosecond)
	}

	id, err := s.newID(ts)
	if err != nil {
		return nil, err
	}

	recipient := counterpartID
	if senderID != ownerID {
		// Mirror copy: the log owner is the recipient.
		recipient = ownerID
	}

	msg := &domain.Message{
		ID:          id,
		SenderID:    senderID,
		RecipientID: recipient,
		Body:        body,
		CreatedAt:   ts,
	}
	l.msgs = append(l.msgs, msg)
	l.lastTs = ts

	out := *msg
	return &out, nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, ownerID, counterpartID string, after time.Time) ([]*domain.Message, error) {
	if err := validateLog(ownerID, counterpartID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	l, ok := s.logs[logKey{owner: ownerID, counterpart: counterpartID}]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*domain.Message, 0, len(l.msgs))
	for _, m := range l.msgs {
		if !after.IsZero() && !m.CreatedAt.After(after) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

// DeleteLog implements Store.
func (s *MemoryStore) DeleteLog(ctx context.Context, ownerID, counterpartID string) ([]*domain.Message, error) {
	if err := validateLog(ownerID, counterpartID); err != nil {
		return nil, err
	}

	key := logKey{owner: ownerID, counterpart: counterpartID}
	s.mu.Lock()
	l, ok := s.logs[key]
	if ok {
		delete(s.logs, key)
	}
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := l.msgs
	l.msgs = nil
	return removed, nil
}

var _ Store = (*MemoryStore)(nil)
