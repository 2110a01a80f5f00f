package models

import (
	"time"

	"gorm.io/gorm"
)

// Enrollment statuses. Completed is terminal.
const (
	EnrollmentStatusActive    = "active"
	EnrollmentStatusCompleted = "completed"
	EnrollmentStatusPaused    = "paused"
)

// Sequence represents an automated drip-email sequence
type Sequence struct {
	gorm.Model
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`
	FromEmail   string `json:"from_email"`
	FromName    string `json:"from_name"`

	// Relations
	Steps       []SequenceStep       `gorm:"foreignKey:SequenceID" json:"steps,omitempty"`
	Enrollments []SequenceEnrollment `gorm:"foreignKey:SequenceID" json:"enrollments,omitempty"`
}

// SequenceStep represents one email in a sequence. Delays are relative to the
// previous send (or to enrollment creation for the first step).
type SequenceStep struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`

	StepOrder  int    `gorm:"not null" json:"step_order"` // 1-based position
	Subject    string `gorm:"not null" json:"subject"`    // template string
	BodyHTML   string `gorm:"type:text" json:"body_html"` // template string
	DelayDays  int    `gorm:"default:0" json:"delay_days"`
	DelayHours int    `gorm:"default:0" json:"delay_hours"`
	IsActive   bool   `gorm:"default:true" json:"is_active"` // inactive steps are skipped, not placeholders

	// Tracking
	SentCount int `gorm:"default:0" json:"sent_count"`
}

// SequenceEnrollment tracks a subscriber's progress through one sequence.
// Unique per (subscriber_email, sequence_id). CurrentStep only ever increases
// and is mutated by the scheduler alone.
type SequenceEnrollment struct {
	gorm.Model
	SequenceID      uint   `gorm:"not null;index;uniqueIndex:uni_enrollment_subscriber" json:"sequence_id"`
	SubscriberEmail string `gorm:"not null;index;uniqueIndex:uni_enrollment_subscriber" json:"subscriber_email"`

	CurrentStep int        `gorm:"default:1" json:"current_step"`
	Status      string     `gorm:"default:'active';index" json:"status"` // active, completed, paused
	NextDueAt   *time.Time `gorm:"index" json:"next_due_at"`
	LastSentAt  *time.Time `json:"last_sent_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Relations
	Sequence Sequence `json:"-"`
}

// Due reports whether the enrollment is eligible for processing at the given time.
func (e *SequenceEnrollment) Due(now time.Time) bool {
	return e.Status == EnrollmentStatusActive && e.NextDueAt != nil && !e.NextDueAt.After(now)
}

// StepDelay returns the step's delay as a duration from the previous send.
func (s *SequenceStep) StepDelay() time.Duration {
	return time.Duration(s.DelayDays)*24*time.Hour + time.Duration(s.DelayHours)*time.Hour
}
