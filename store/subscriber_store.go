package store

import (
	"context"
	"errors"
	"fmt"

	"leadloop/models"

	"gorm.io/gorm"
)

// SubscriberStore resolves subscriber metadata for template rendering.
type SubscriberStore struct {
	DB *gorm.DB
}

func NewSubscriberStore(db *gorm.DB) *SubscriberStore {
	return &SubscriberStore{DB: db}
}

// Metadata returns the flattened key/value mapping for a subscriber. An
// unknown email yields an empty map, not an error; the renderer has its own
// fallbacks.
func (s *SubscriberStore) Metadata(ctx context.Context, email string) (map[string]string, error) {
	var subscriber models.Subscriber
	err := s.DB.WithContext(ctx).
		Preload("Fields").
		Where("email = ?", email).
		First(&subscriber).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to load subscriber %s: %w", email, err)
	}
	return subscriber.Metadata(), nil
}
