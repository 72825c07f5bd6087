package model

import "time"

const (
	AuthEventRegister       = "register"
	AuthEventLoginSucceeded = "login_succeeded"
	AuthEventLoginFailed    = "login_failed"
	AuthEventLogout         = "logout"

	AuthReasonNoSuchAccount  = "no_such_account"
	AuthReasonBadCredentials = "bad_credentials"
)

type AuthEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Kind      string    `gorm:"size:32;not null;index" json:"kind"`
	UserID    string    `gorm:"size:36;index" json:"user_id,omitempty"`
	Email     string    `gorm:"size:128" json:"email,omitempty"`
	Reason    string    `gorm:"size:32" json:"reason,omitempty"`
	ClientIP  string    `gorm:"size:64" json:"client_ip,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
