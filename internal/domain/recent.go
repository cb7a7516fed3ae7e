package domain

import "time"

// RecentEntry is one row of the recent-conversation index: the latest message
// exchanged between an owner and a counterpart, plus the counterpart's display
// metadata. It is overwritten, never appended, on every new message.
type RecentEntry struct {
	OwnerID       string    `json:"owner_id"`
	CounterpartID string    `json:"counterpart_id"`
	LastBody      string    `json:"last_body"`
	LastSenderID  string    `json:"last_sender_id"`
	LastCreatedAt time.Time `json:"last_created_at"`

	CounterpartName   string `json:"counterpart_name,omitempty"`
	CounterpartAvatar string `json:"counterpart_avatar,omitempty"`
}
