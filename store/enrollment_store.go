package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadloop/models"

	"gorm.io/gorm"
)

// claimLease is how long a claimed row stays invisible to other invocations.
// A row whose send failed becomes due again once the lease expires.
const claimLease = 15 * time.Minute

var (
	// ErrNoFirstStep means the sequence cannot accept enrollments because
	// it has no active step at order 1.
	ErrNoFirstStep = errors.New("sequence has no active first step")

	// ErrAlreadyEnrolled means the subscriber already has an enrollment in
	// this sequence.
	ErrAlreadyEnrolled = errors.New("subscriber already enrolled in sequence")
)

// EnrollmentStore is the GORM-backed enrollment persistence used by the
// sequence worker and the enrollment endpoints.
type EnrollmentStore struct {
	DB *gorm.DB
}

func NewEnrollmentStore(db *gorm.DB) *EnrollmentStore {
	return &EnrollmentStore{DB: db}
}

// DueEnrollments selects up to limit due enrollments with a plain read.
// Ordering is deterministic (next_due_at, then id) but nothing stops two
// overlapping invocations from picking the same rows.
func (s *EnrollmentStore) DueEnrollments(ctx context.Context, now time.Time, limit int) ([]models.SequenceEnrollment, error) {
	var enrollments []models.SequenceEnrollment
	err := s.DB.WithContext(ctx).
		Preload("Sequence").
		Where("status = ? AND next_due_at IS NOT NULL AND next_due_at <= ?", models.EnrollmentStatusActive, now).
		Order("next_due_at asc, id asc").
		Limit(limit).
		Find(&enrollments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due enrollments: %w", err)
	}
	return enrollments, nil
}

// ClaimDueEnrollments atomically leases the due rows by pushing next_due_at
// forward before returning them, so a concurrent invocation cannot select the
// same batch. A failed send is retried after the lease expires instead of on
// the very next run.
func (s *EnrollmentStore) ClaimDueEnrollments(ctx context.Context, now time.Time, limit int) ([]models.SequenceEnrollment, error) {
	var enrollments []models.SequenceEnrollment
	err := s.DB.WithContext(ctx).Raw(`
		WITH due AS (
			SELECT id FROM sequence_enrollments
			WHERE status = ? AND next_due_at IS NOT NULL AND next_due_at <= ? AND deleted_at IS NULL
			ORDER BY next_due_at asc, id asc
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)
		UPDATE sequence_enrollments e
		SET next_due_at = ?
		FROM due
		WHERE e.id = due.id
		RETURNING e.*`,
		models.EnrollmentStatusActive, now, limit, now.Add(claimLease),
	).Scan(&enrollments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to claim due enrollments: %w", err)
	}

	// RETURNING bypasses preloading, so attach sequences by hand.
	if err := s.attachSequences(ctx, enrollments); err != nil {
		return nil, err
	}
	return enrollments, nil
}

func (s *EnrollmentStore) attachSequences(ctx context.Context, enrollments []models.SequenceEnrollment) error {
	if len(enrollments) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.SequenceID)
	}
	var sequences []models.Sequence
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&sequences).Error; err != nil {
		return fmt.Errorf("failed to load sequences for claimed enrollments: %w", err)
	}
	byID := make(map[uint]models.Sequence, len(sequences))
	for _, seq := range sequences {
		byID[seq.ID] = seq
	}
	for i := range enrollments {
		enrollments[i].Sequence = byID[enrollments[i].SequenceID]
	}
	return nil
}

// AdvanceEnrollment moves the enrollment to the next step after a successful
// send. CurrentStep only ever increases.
func (s *EnrollmentStore) AdvanceEnrollment(ctx context.Context, id uint, nextStep int, sentAt, nextDueAt time.Time) error {
	return s.DB.WithContext(ctx).Model(&models.SequenceEnrollment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_step": nextStep,
			"last_sent_at": sentAt,
			"next_due_at":  nextDueAt,
		}).Error
}

// CompleteAfterSend marks the enrollment completed after its final step went out.
func (s *EnrollmentStore) CompleteAfterSend(ctx context.Context, id uint, sentAt time.Time) error {
	return s.DB.WithContext(ctx).Model(&models.SequenceEnrollment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.EnrollmentStatusCompleted,
			"completed_at": sentAt,
			"last_sent_at": sentAt,
			"next_due_at":  nil,
		}).Error
}

// CompleteSilently marks the enrollment completed without a send; used when no
// active step exists at the current position.
func (s *EnrollmentStore) CompleteSilently(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Model(&models.SequenceEnrollment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      models.EnrollmentStatusCompleted,
			"next_due_at": nil,
		}).Error
}

// Enroll creates an active enrollment at step 1 with the first step's own
// delay applied from now. Re-enrolling an existing pair is rejected.
func (s *EnrollmentStore) Enroll(ctx context.Context, sequenceID uint, email string, now time.Time) (*models.SequenceEnrollment, error) {
	var step models.SequenceStep
	err := s.DB.WithContext(ctx).
		Where("sequence_id = ? AND step_order = ? AND is_active = ?", sequenceID, 1, true).
		First(&step).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoFirstStep
		}
		return nil, fmt.Errorf("failed to look up first step: %w", err)
	}

	var existing int64
	if err := s.DB.WithContext(ctx).Model(&models.SequenceEnrollment{}).
		Where("sequence_id = ? AND subscriber_email = ?", sequenceID, email).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing enrollment: %w", err)
	}
	if existing > 0 {
		return nil, ErrAlreadyEnrolled
	}

	nextDue := now.Add(step.StepDelay())
	enrollment := models.SequenceEnrollment{
		SequenceID:      sequenceID,
		SubscriberEmail: email,
		CurrentStep:     1,
		Status:          models.EnrollmentStatusActive,
		NextDueAt:       &nextDue,
	}
	if err := s.DB.WithContext(ctx).Create(&enrollment).Error; err != nil {
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}
	return &enrollment, nil
}

// PauseForEmail pauses every active enrollment of a subscriber. Used by the
// unsubscribe endpoint and the reply-detection worker.
func (s *EnrollmentStore) PauseForEmail(ctx context.Context, email string) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.SequenceEnrollment{}).
		Where("subscriber_email = ? AND status = ?", email, models.EnrollmentStatusActive).
		Update("status", models.EnrollmentStatusPaused)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to pause enrollments for %s: %w", email, res.Error)
	}
	return res.RowsAffected, nil
}
