package models

import (
	"time"

	"gorm.io/gorm"
)

// EmailLog is the append-only audit trail of dispatched email. The scheduler
// writes a row only after the transport reports success; failed dispatches
// surface in the run result instead of being persisted here.
type EmailLog struct {
	gorm.Model
	Recipient  string    `gorm:"not null;index" json:"recipient"`
	Subject    string    `gorm:"not null" json:"subject"` // post-render
	SequenceID *uint     `gorm:"index" json:"sequence_id,omitempty"`
	StepID     *uint     `json:"step_id,omitempty"`
	MessageID  string    `gorm:"index" json:"message_id"`
	EmailType  string    `gorm:"not null" json:"email_type"` // sequence, transactional
	Status     string    `gorm:"not null" json:"status"`     // sent
	SentAt     time.Time `gorm:"not null;index" json:"sent_at"`
}

// Unsubscribe records a subscriber opting out
type Unsubscribe struct {
	gorm.Model
	Email      string `gorm:"not null;index" json:"email"`
	SequenceID *uint  `json:"sequence_id,omitempty"`
	Reason     string `json:"reason"`
	IPAddress  string `json:"ip_address"`
	UserAgent  string `json:"user_agent"`
}
