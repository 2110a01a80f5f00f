package models

import (
	"time"

	"gorm.io/gorm"
)

// Invoice statuses
const (
	InvoiceStatusPending = "pending"
	InvoiceStatusPaid    = "paid"
	InvoiceStatusFailed  = "failed"
)

// Invoice is a client invoice settled through Stripe Checkout
type Invoice struct {
	gorm.Model
	LeadID      uint   `gorm:"not null;index" json:"lead_id"`
	AmountCents int64  `gorm:"not null" json:"amount_cents"`
	Currency    string `gorm:"default:'usd'" json:"currency"`
	Description string `json:"description"`
	Status      string `gorm:"default:'pending';index" json:"status"` // pending, paid, failed

	StripeSessionID string     `gorm:"index" json:"-"`
	PaidAt          *time.Time `json:"paid_at"`

	// Relations
	Lead Lead `json:"-"`
}
