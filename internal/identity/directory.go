package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/inboxd/inboxd/internal/domain"
)

// Directory is the external identity collaborator: it resolves a pre-validated
// credential to a stable user identifier and public profile fields. The relay
// treats it as a pure lookup and never implements authentication itself.
type Directory interface {
	// Resolve maps a caller's opaque token to their profile.
	Resolve(ctx context.Context, token string) (*domain.Profile, error)
	// Lookup returns the profile for a known user ID, or ErrNotFound.
	Lookup(ctx context.Context, userID string) (*domain.Profile, error)
}

// User is one directory record: a profile plus the opaque token that
// authenticates as it.
type User struct {
	domain.Profile
	Token string `json:"token"`
}

// StaticDirectory is a fixed in-memory Directory, used in tests and as the
// fallback when no identity file is configured.
type StaticDirectory struct {
	mu       sync.RWMutex
	byToken  map[string]domain.Profile
	byUserID map[string]domain.Profile
}

// NewStaticDirectory builds a directory from a fixed user list.
func NewStaticDirectory(users ...User) *StaticDirectory {
	d := &StaticDirectory{
		byToken:  make(map[string]domain.Profile),
		byUserID: make(map[string]domain.Profile),
	}
	d.replace(users)
	return d
}

func (d *StaticDirectory) replace(users []User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byToken = make(map[string]domain.Profile, len(users))
	d.byUserID = make(map[string]domain.Profile, len(users))
	for _, u := range users {
		if u.Token != "" {
			d.byToken[u.Token] = u.Profile
		}
		d.byUserID[u.UserID] = u.Profile
	}
}

// Resolve implements Directory.
func (d *StaticDirectory) Resolve(ctx context.Context, token string) (*domain.Profile, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty credential", domain.ErrValidation)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if p, ok := d.byToken[token]; ok {
		out := p
		return &out, nil
	}
	return nil, fmt.Errorf("%w: unknown credential", domain.ErrNotFound)
}

// Lookup implements Directory.
func (d *StaticDirectory) Lookup(ctx context.Context, userID string) (*domain.Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", domain.ErrValidation)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if p, ok := d.byUserID[userID]; ok {
		out := p
		return &out, nil
	}
	return nil, fmt.Errorf("%w: unknown user %q", domain.ErrNotFound, userID)
}

var _ Directory = (*StaticDirectory)(nil)
