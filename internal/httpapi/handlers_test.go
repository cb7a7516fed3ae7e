package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxd/inboxd/internal/archive"
	"github.com/inboxd/inboxd/internal/broadcast"
	"github.com/inboxd/inboxd/internal/domain"
	"github.com/inboxd/inboxd/internal/identity"
	"github.com/inboxd/inboxd/internal/index"
	"github.com/inboxd/inboxd/internal/pubsub"
	"github.com/inboxd/inboxd/internal/relay"
	"github.com/inboxd/inboxd/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	bridge := pubsub.NewWatermillBridge()
	t.Cleanup(func() { bridge.Close() })

	directory := identity.NewStaticDirectory(
		identity.User{Profile: domain.Profile{UserID: "alice", Username: "Alice"}, Token: "tok-alice"},
		identity.User{Profile: domain.Profile{UserID: "bob", Username: "Bob"}, Token: "tok-bob"},
		identity.User{Profile: domain.Profile{UserID: "carol", Username: "Carol"}, Token: "tok-carol"},
	)
	r := relay.New(
		store.NewMemoryStore(),
		index.NewMemoryIndex(),
		broadcast.New(bridge, bridge),
		directory,
		archive.NewFileArchiver(afero.NewMemMapFs(), "archive"),
	)

	// Each server gets its own registry so instances never collide on the
	// process-global prometheus state.
	reg := prometheus.NewRegistry()
	return New(r, directory, append([]Option{WithMetrics(reg, reg)}, opts...)...)
}

func TestServer(t *testing.T) {
	s := newTestServer(t)

	do := func(method, path, token, body string) *httptest.ResponseRecorder {
		var reader *strings.Reader
		if body == "" {
			reader = strings.NewReader("")
		} else {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, reader)
		if body != "" {
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		s.E.ServeHTTP(rec, req)
		return rec
	}

	t.Run("healthz is open", func(t *testing.T) {
		rec := do(http.MethodGet, "/healthz", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		rec := do(http.MethodGet, "/api/conversations", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown token is unauthorized", func(t *testing.T) {
		rec := do(http.MethodGet, "/api/conversations", "tok-mallory", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("send requires a recipient and body", func(t *testing.T) {
		rec := do(http.MethodPost, "/api/messages", "tok-alice", `{"recipient_id": "bob"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(http.MethodPost, "/api/messages", "tok-alice", `{"body": "hello"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("send to self is rejected", func(t *testing.T) {
		rec := do(http.MethodPost, "/api/messages", "tok-alice", `{"recipient_id": "alice", "body": "hi me"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("send to unknown recipient is not found", func(t *testing.T) {
		rec := do(http.MethodPost, "/api/messages", "tok-alice", `{"recipient_id": "nobody", "body": "hello"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("send delivers and returns the message", func(t *testing.T) {
		rec := do(http.MethodPost, "/api/messages", "tok-alice", `{"recipient_id": "bob", "body": "hello bob"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var msg domain.Message
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
		assert.NotEmpty(t, msg.ID)
		assert.Equal(t, "alice", msg.SenderID)
		assert.Equal(t, "bob", msg.RecipientID)
		assert.Equal(t, "hello bob", msg.Body)
		assert.False(t, msg.CreatedAt.IsZero())

		// The recipient's mirror log has the message too.
		rec = do(http.MethodGet, "/api/conversations/alice/messages", "tok-bob", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var msgs []domain.Message
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
		require.Len(t, msgs, 1)
		assert.Equal(t, "hello bob", msgs[0].Body)
	})

	t.Run("list conversation pages by cursor", func(t *testing.T) {
		var cursor string
		for i := 0; i < 3; i++ {
			rec := do(http.MethodPost, "/api/messages", "tok-alice", fmt.Sprintf(`{"recipient_id": "carol", "body": "msg %d"}`, i))
			require.Equal(t, http.StatusCreated, rec.Code)
			if i == 0 {
				var msg domain.Message
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
				cursor = msg.CreatedAt.Format(time.RFC3339Nano)
			}
		}

		rec := do(http.MethodGet, "/api/conversations/carol/messages?after="+cursor, "tok-alice", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var msgs []domain.Message
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
		require.Len(t, msgs, 2)
		assert.Equal(t, "msg 1", msgs[0].Body)

		rec = do(http.MethodGet, "/api/conversations/carol/messages?after=whenever", "tok-alice", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("recent conversations are newest first", func(t *testing.T) {
		rec := do(http.MethodGet, "/api/conversations", "tok-alice", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var entries []domain.RecentEntry
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		require.Len(t, entries, 2)
		assert.Equal(t, "carol", entries[0].CounterpartID)
		assert.Equal(t, "bob", entries[1].CounterpartID)
		assert.True(t, entries[0].LastCreatedAt.After(entries[1].LastCreatedAt))
	})

	t.Run("delete conversation is one-sided", func(t *testing.T) {
		rec := do(http.MethodDelete, "/api/conversations/bob", "tok-alice", "")
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = do(http.MethodGet, "/api/conversations/bob/messages", "tok-alice", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var msgs []domain.Message
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
		assert.Empty(t, msgs)

		// Bob keeps his copy.
		rec = do(http.MethodGet, "/api/conversations/alice/messages", "tok-bob", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
		assert.Len(t, msgs, 1)
	})
}

func TestServer_InstancesDoNotCollideOnMetrics(t *testing.T) {
	first := newTestServer(t)
	second := newTestServer(t)

	for _, s := range []*Server{first, second} {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		s.E.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestServer_WebSocketRejectsCrossOrigin(t *testing.T) {
	s := newTestServer(t, WithOriginPatterns("app.example.com"))

	req := httptest.NewRequest(http.MethodGet, "/ws/conversations/bob", nil)
	req.Header.Set("Authorization", "Bearer tok-alice")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	req.Header.Set("Origin", "http://attacker.example")

	rec := httptest.NewRecorder()
	s.E.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
