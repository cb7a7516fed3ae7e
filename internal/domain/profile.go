package domain

// Profile holds the public identity fields the identity directory returns for
// a user. The relay treats this as a pure lookup result.
type Profile struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}
