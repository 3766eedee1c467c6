package model

import "time"

// RefreshToken is a stored session record. The opaque token string itself is
// never persisted; TokenHash holds its SHA-256 fingerprint.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}
