package models

import (
	"time"

	"gorm.io/gorm"
)

// BlogPost represents a CMS article for the marketing site
type BlogPost struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Title   string `gorm:"not null" json:"title"`
	Slug    string `gorm:"not null;uniqueIndex" json:"slug"`
	Excerpt string `gorm:"type:text" json:"excerpt"`
	Body    string `gorm:"type:text" json:"body"`

	Status      string     `gorm:"default:'draft';index" json:"status"` // draft, published
	PublishedAt *time.Time `json:"published_at"`
	Tags        string     `json:"tags"` // comma separated

	// Relations
	Author User `gorm:"foreignKey:UserID" json:"-"`
}
