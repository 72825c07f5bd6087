package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Username       string    `gorm:"size:64;not null" json:"username"`
	Email          string    `gorm:"size:128;not null;uniqueIndex" json:"email"`
	PasswordHash   string    `gorm:"size:255;not null" json:"-"`
	Age            *int      `json:"age,omitempty"`
	AvatarFilename *string   `gorm:"size:255" json:"avatar_filename,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
