package relay

import (
	"sync"

	"github.com/inboxd/inboxd/internal/domain"
)

// keyedMutex serializes operations per conversation. Appends and watcher
// registrations for one (owner, counterpart) pair take the same lock, which
// closes the snapshot-then-stream gap; unrelated conversations never share
// a lock.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[domain.ConversationKey]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[domain.ConversationKey]*sync.Mutex)}
}

// Lock acquires the conversation's lock and returns its unlock func.
func (k *keyedMutex) Lock(key domain.ConversationKey) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
