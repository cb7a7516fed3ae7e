package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxd/inboxd/internal/domain"
)

func TestStaticDirectory_Resolve(t *testing.T) {
	d := NewStaticDirectory(
		User{Profile: domain.Profile{UserID: "alice", Username: "Alice"}, Token: "tok-alice"},
		User{Profile: domain.Profile{UserID: "bob", Username: "Bob"}, Token: "tok-bob"},
	)
	ctx := context.Background()

	p, err := d.Resolve(ctx, "tok-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, "Alice", p.Username)

	_, err = d.Resolve(ctx, "tok-unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = d.Resolve(ctx, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStaticDirectory_Lookup(t *testing.T) {
	d := NewStaticDirectory(
		User{Profile: domain.Profile{UserID: "alice", Username: "Alice", AvatarURL: "https://example.com/a.png"}, Token: "tok-alice"},
	)
	ctx := context.Background()

	p, err := d.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Username)
	assert.Equal(t, "https://example.com/a.png", p.AvatarURL)

	_, err = d.Lookup(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = d.Lookup(ctx, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStaticDirectory_ReturnsCopies(t *testing.T) {
	d := NewStaticDirectory(
		User{Profile: domain.Profile{UserID: "alice", Username: "Alice"}, Token: "tok-alice"},
	)
	ctx := context.Background()

	p, err := d.Lookup(ctx, "alice")
	require.NoError(t, err)
	p.Username = "Mallory"

	again, err := d.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.Username)
}

func TestStaticDirectory_UserWithoutToken(t *testing.T) {
	d := NewStaticDirectory(
		User{Profile: domain.Profile{UserID: "system", Username: "System"}},
	)
	ctx := context.Background()

	// Lookup works, but no token resolves to the user.
	_, err := d.Lookup(ctx, "system")
	require.NoError(t, err)
}
