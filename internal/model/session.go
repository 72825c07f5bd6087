package model

import "time"

// Session maps a hashed session token to the user it was issued for.
// The plaintext token only ever lives in the client cookie.
type Session struct {
	TokenHash string    `gorm:"primaryKey;size:64" json:"-"`
	UserID    string    `gorm:"size:36;not null;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
