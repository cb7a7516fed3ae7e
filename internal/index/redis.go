package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/inboxd/inboxd/internal/domain"
)

// upsertRetries bounds the optimistic-transaction loop so Upsert keeps the
// bounded-latency guarantee even under contention.
const upsertRetries = 3

// RedisIndex stores recent-conversation entries in one hash per owner, fields
// keyed by counterpart. Stale-write rejection uses an optimistic WATCH
// transaction, so it stays correct with multiple relay processes.
type RedisIndex struct {
	client *redis.Client
}

// NewRedisIndex creates an Index backed by the given Redis client.
func NewRedisIndex(client *redis.Client) *RedisIndex {
	return &RedisIndex{client: client}
}

func recentKey(ownerID string) string {
	return "inboxd:recent:" + ownerID
}

// Upsert implements Index.
func (i *RedisIndex) Upsert(ctx context.Context, entry domain.RecentEntry) error {
	if err := validateEntry(entry.OwnerID, entry.CounterpartID); err != nil {
		return err
	}

	key := recentKey(entry.OwnerID)
	txf := func(tx *redis.Tx) error {
		cur, err := tx.HGet(ctx, key, entry.CounterpartID).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var prev domain.RecentEntry
			if uerr := json.Unmarshal([]byte(cur), &prev); uerr == nil && prev.LastCreatedAt.After(entry.LastCreatedAt) {
				// Stale write: a newer snapshot is already stored.
				return nil
			}
		}

		payload, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, entry.CounterpartID, payload)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < upsertRetries; attempt++ {
		err = i.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
	}
	return nil
}

// Get implements Index.
func (i *RedisIndex) Get(ctx context.Context, ownerID string) ([]domain.RecentEntry, error) {
	fields, err := i.client.HGetAll(ctx, recentKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
	}

	out := make([]domain.RecentEntry, 0, len(fields))
	for counterpart, raw := range fields {
		var e domain.RecentEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode recent entry for %s/%s: %w", ownerID, counterpart, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Delete implements Index.
func (i *RedisIndex) Delete(ctx context.Context, ownerID, counterpartID string) error {
	if err := validateEntry(ownerID, counterpartID); err != nil {
		return err
	}
	if err := i.client.HDel(ctx, recentKey(ownerID), counterpartID).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
	}
	return nil
}

var _ Index = (*RedisIndex)(nil)
