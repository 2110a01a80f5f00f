package models

import (
	"time"

	"gorm.io/gorm"
)

// Subscriber represents a newsletter/sequence recipient
type Subscriber struct {
	gorm.Model
	Email     string `gorm:"not null;uniqueIndex" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	Source         string     `json:"source"` // contact_form, import, manual, api
	IsUnsubscribed bool       `gorm:"default:false" json:"is_unsubscribed"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at"`

	// Relations
	Fields      []SubscriberField    `gorm:"foreignKey:SubscriberID" json:"fields,omitempty"`
	Enrollments []SequenceEnrollment `gorm:"foreignKey:SubscriberEmail;references:Email" json:"enrollments,omitempty"`
}

// SubscriberField stores arbitrary metadata used for template substitution
type SubscriberField struct {
	gorm.Model
	SubscriberID uint   `gorm:"not null;index" json:"subscriber_id"`
	Name         string `gorm:"not null;index" json:"name"`
	Value        string `gorm:"type:text" json:"value"`
}

// Metadata flattens the subscriber's profile and custom fields into the
// key/value mapping the template renderer consumes.
func (s *Subscriber) Metadata() map[string]string {
	meta := map[string]string{}
	if s.FirstName != "" {
		meta["first_name"] = s.FirstName
	}
	if s.LastName != "" {
		meta["last_name"] = s.LastName
	}
	for _, f := range s.Fields {
		meta[f.Name] = f.Value
	}
	return meta
}
