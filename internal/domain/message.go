package domain

import "time"

// Message is a single direct message as stored in one participant's log.
// A message is immutable once created; the mirrored copy in the counterpart's
// log shares Body and CreatedAt but carries its own ID.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConversationKey identifies the pair of mirrored logs between two users.
// It is canonicalized so that {a, b} and {b, a} produce the same key.
type ConversationKey struct {
	Low  string
	High string
}

// NewConversationKey builds the canonical key for an unordered user pair.
func NewConversationKey(a, b string) ConversationKey {
	if a > b {
		a, b = b, a
	}
	return ConversationKey{Low: a, High: b}
}

// Topic returns the pub/sub topic carrying live messages for this conversation.
func (k ConversationKey) Topic() string {
	return "conversation." + k.Low + "." + k.High
}

func (k ConversationKey) String() string {
	return k.Low + "/" + k.High
}
