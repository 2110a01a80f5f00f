package store

import (
	"context"

	"leadloop/models"

	"gorm.io/gorm"
)

// EmailLogStore appends audit rows for dispatched email.
type EmailLogStore struct {
	DB *gorm.DB
}

func NewEmailLogStore(db *gorm.DB) *EmailLogStore {
	return &EmailLogStore{DB: db}
}

func (s *EmailLogStore) Record(ctx context.Context, entry models.EmailLog) error {
	return s.DB.WithContext(ctx).Create(&entry).Error
}
