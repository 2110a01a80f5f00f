package store

import (
	"context"
	"errors"
	"fmt"

	"leadloop/models"

	"gorm.io/gorm"
)

// StepStore resolves sequence steps for the worker. Only active steps are
// visible; a deactivated step reads as absent rather than as a placeholder.
type StepStore struct {
	DB *gorm.DB
}

func NewStepStore(db *gorm.DB) *StepStore {
	return &StepStore{DB: db}
}

// ActiveStep returns the active step at the given position, or nil when none
// exists.
func (s *StepStore) ActiveStep(ctx context.Context, sequenceID uint, stepOrder int) (*models.SequenceStep, error) {
	var step models.SequenceStep
	err := s.DB.WithContext(ctx).
		Where("sequence_id = ? AND step_order = ? AND is_active = ?", sequenceID, stepOrder, true).
		First(&step).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up step %d of sequence %d: %w", stepOrder, sequenceID, err)
	}
	return &step, nil
}

// NextActiveStep returns the first active step ordered after afterOrder, or
// nil when the sequence is exhausted. Inactive steps in between are skipped.
func (s *StepStore) NextActiveStep(ctx context.Context, sequenceID uint, afterOrder int) (*models.SequenceStep, error) {
	var step models.SequenceStep
	err := s.DB.WithContext(ctx).
		Where("sequence_id = ? AND step_order > ? AND is_active = ?", sequenceID, afterOrder, true).
		Order("step_order asc").
		First(&step).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up next step after %d of sequence %d: %w", afterOrder, sequenceID, err)
	}
	return &step, nil
}

func (s *StepStore) IncrementSentCount(ctx context.Context, stepID uint) error {
	return s.DB.WithContext(ctx).Model(&models.SequenceStep{}).
		Where("id = ?", stepID).
		Update("sent_count", gorm.Expr("sent_count + ?", 1)).Error
}
