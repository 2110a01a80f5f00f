package models

import (
	"time"

	"gorm.io/gorm"
)

// Lead pipeline stages
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusProposal  = "proposal"
	LeadStatusWon       = "won"
	LeadStatusLost      = "lost"
)

// Lead represents a single prospect in the agency pipeline
type Lead struct {
	gorm.Model
	Email     string `gorm:"not null;index" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Phone     string `json:"phone"`
	Website   string `json:"website"`

	// Pipeline state
	Status string `gorm:"default:'new';index" json:"status"` // new, contacted, qualified, proposal, won, lost

	// Derived score. Populated only via the pluggable scoring strategy; the
	// business rule itself lives outside this codebase.
	Score         int        `gorm:"default:0" json:"score"`
	LastScoredAt  *time.Time `json:"last_scored_at"`
	Source        string     `json:"source"` // contact_form, manual, import
	Message       string     `gorm:"type:text" json:"message"`
	LastContactAt *time.Time `json:"last_contact_at"`

	// Relations
	Notes []LeadNote `gorm:"foreignKey:LeadID" json:"notes,omitempty"`
}

// LeadNote is a free-form annotation on a lead
type LeadNote struct {
	gorm.Model
	LeadID uint   `gorm:"not null;index" json:"lead_id"`
	UserID uint   `gorm:"index" json:"user_id"`
	Body   string `gorm:"type:text;not null" json:"body"`

	// Relations
	Lead Lead `json:"-"`
}

// ValidLeadStatus reports whether s is a known pipeline stage.
func ValidLeadStatus(s string) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified,
		LeadStatusProposal, LeadStatusWon, LeadStatusLost:
		return true
	}
	return false
}
