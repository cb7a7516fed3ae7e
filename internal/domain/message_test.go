package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConversationKey_IsCanonical(t *testing.T) {
	assert.Equal(t, NewConversationKey("alice", "bob"), NewConversationKey("bob", "alice"))
	assert.Equal(t, "alice", NewConversationKey("bob", "alice").Low)
	assert.Equal(t, "bob", NewConversationKey("bob", "alice").High)
}

func TestConversationKey_Topic(t *testing.T) {
	key := NewConversationKey("bob", "alice")
	assert.Equal(t, "conversation.alice.bob", key.Topic())
	assert.Equal(t, key.Topic(), NewConversationKey("alice", "bob").Topic())

	assert.NotEqual(t, key.Topic(), NewConversationKey("alice", "carol").Topic())
}

func TestConversationKey_String(t *testing.T) {
	assert.Equal(t, "alice/bob", NewConversationKey("bob", "alice").String())
}
