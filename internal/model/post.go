package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Post struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Content   string    `gorm:"type:mediumtext;not null" json:"content"`
	AuthorID  string    `gorm:"size:36;not null;index" json:"author_id"`
	Author    *User     `gorm:"foreignKey:AuthorID;constraint:OnDelete:RESTRICT" json:"-"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Post) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// PostView is a post joined with the display fields of its author.
type PostView struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	AuthorID      string    `json:"author_id"`
	AuthorName    string    `json:"author_name"`
	AuthorPicture *string   `json:"author_profile_pic,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
