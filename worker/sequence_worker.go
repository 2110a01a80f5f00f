package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"leadloop/models"
	"leadloop/utils"

	"github.com/getsentry/sentry-go"
)

// RunResult aggregates one scheduler invocation. Errors holds per-enrollment
// dispatch failures; those rows keep their state so the next invocation
// retries the same step.
type RunResult struct {
	Processed int       `json:"processed"`
	Sent      int       `json:"sent"`
	Completed int       `json:"completed"`
	Errors    []string  `json:"errors"`
	RanAt     time.Time `json:"ran_at"`
}

// EnrollmentStore is the scheduler's view of enrollment persistence.
type EnrollmentStore interface {
	// DueEnrollments selects up to limit active enrollments whose next_due_at
	// has passed. Plain read, no claim: overlapping invocations can race.
	DueEnrollments(ctx context.Context, now time.Time, limit int) ([]models.SequenceEnrollment, error)
	// ClaimDueEnrollments atomically claims the same set via a conditional
	// update, so concurrent invocations cannot double-send.
	ClaimDueEnrollments(ctx context.Context, now time.Time, limit int) ([]models.SequenceEnrollment, error)
	// AdvanceEnrollment moves an enrollment to the next step and reschedules it.
	AdvanceEnrollment(ctx context.Context, id uint, nextStep int, sentAt, nextDueAt time.Time) error
	// CompleteAfterSend marks an enrollment completed after its last step was sent.
	CompleteAfterSend(ctx context.Context, id uint, sentAt time.Time) error
	// CompleteSilently marks an enrollment completed without a send. Used when
	// the current step no longer exists; that is end-of-sequence, not an error.
	CompleteSilently(ctx context.Context, id uint) error
}

// StepStore looks up sequence steps. Inactive steps are invisible: the next
// step after N is the first active step ordered after N, so deactivated steps
// are skipped over rather than terminating the sequence.
type StepStore interface {
	ActiveStep(ctx context.Context, sequenceID uint, stepOrder int) (*models.SequenceStep, error)
	NextActiveStep(ctx context.Context, sequenceID uint, afterOrder int) (*models.SequenceStep, error)
	IncrementSentCount(ctx context.Context, stepID uint) error
}

// SubscriberStore resolves template metadata for a recipient.
type SubscriberStore interface {
	Metadata(ctx context.Context, email string) (map[string]string, error)
}

// AuditLog appends sent-email records. Its failures never block dispatch.
type AuditLog interface {
	Record(ctx context.Context, entry models.EmailLog) error
}

// SequenceWorker is the drip-sequence scheduler. One invocation fetches a
// bounded batch of due enrollments and processes them sequentially:
// render, send, log, advance or complete.
type SequenceWorker struct {
	Enrollments EnrollmentStore
	Steps       StepStore
	Subscribers SubscriberStore
	Mailer      utils.Mailer
	Audit       AuditLog
	Logger      *log.Logger

	BatchSize    int
	Interval     time.Duration
	StartupDelay time.Duration
	ClaimRows    bool
	FromEmail    string
	FromName     string

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time

	mu         sync.RWMutex
	lastResult *RunResult
}

func NewSequenceWorker(enrollments EnrollmentStore, steps StepStore, subscribers SubscriberStore, mailer utils.Mailer, audit AuditLog, logger *log.Logger) *SequenceWorker {
	return &SequenceWorker{
		Enrollments:  enrollments,
		Steps:        steps,
		Subscribers:  subscribers,
		Mailer:       mailer,
		Audit:        audit,
		Logger:       logger,
		BatchSize:    50,
		Interval:     time.Minute,
		StartupDelay: 10 * time.Second,
		Now:          time.Now,
	}
}

func (sw *SequenceWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	select {
	case <-ctx.Done():
		return
	case <-time.After(sw.StartupDelay):
	}

	sw.Logger.Println("Sequence worker started")

	ticker := time.NewTicker(sw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.Logger.Println("Sequence worker shutting down...")
			return
		case <-ticker.C:
			result, err := sw.RunOnce(ctx)
			if err != nil {
				sw.Logger.Printf("Sequence run failed: %v", err)
				sentry.CaptureException(err)
				continue
			}
			if result.Processed > 0 || len(result.Errors) > 0 {
				sw.Logger.Printf("Sequence run: processed=%d sent=%d completed=%d errors=%d",
					result.Processed, result.Sent, result.Completed, len(result.Errors))
			}
		}
	}
}

// RunOnce executes a single scheduler invocation. Per-enrollment failures are
// collected into the result; only a failure to fetch the batch itself is
// returned as an error, in which case no partial result is produced.
func (sw *SequenceWorker) RunOnce(ctx context.Context) (*RunResult, error) {
	now := sw.Now()

	var enrollments []models.SequenceEnrollment
	var err error
	if sw.ClaimRows {
		enrollments, err = sw.Enrollments.ClaimDueEnrollments(ctx, now, sw.BatchSize)
	} else {
		enrollments, err = sw.Enrollments.DueEnrollments(ctx, now, sw.BatchSize)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due enrollments: %w", err)
	}

	result := &RunResult{Errors: []string{}, RanAt: now}
	for i := range enrollments {
		sw.processEnrollment(ctx, &enrollments[i], now, result)
		result.Processed++
	}

	sw.mu.Lock()
	sw.lastResult = result
	sw.mu.Unlock()

	return result, nil
}

// LastResult returns the most recent invocation's counters, or nil before the
// first run.
func (sw *SequenceWorker) LastResult() *RunResult {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.lastResult
}

func (sw *SequenceWorker) processEnrollment(ctx context.Context, enrollment *models.SequenceEnrollment, now time.Time, result *RunResult) {
	step, err := sw.Steps.ActiveStep(ctx, enrollment.SequenceID, enrollment.CurrentStep)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("step lookup failed for %s: %v", enrollment.SubscriberEmail, err))
		return
	}

	// No active step at the current position means the sequence is exhausted
	// (or the step was deactivated). Complete without sending.
	if step == nil {
		if err := sw.Enrollments.CompleteSilently(ctx, enrollment.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to complete enrollment for %s: %v", enrollment.SubscriberEmail, err))
			return
		}
		result.Completed++
		return
	}

	metadata, err := sw.Subscribers.Metadata(ctx, enrollment.SubscriberEmail)
	if err != nil || metadata == nil {
		metadata = map[string]string{}
	}

	subject := utils.RenderTemplate(step.Subject, enrollment.SubscriberEmail, metadata)
	body := utils.RenderTemplate(step.BodyHTML, enrollment.SubscriberEmail, metadata)

	messageID, err := sw.Mailer.Send(utils.Email{
		From:     sw.fromEmail(enrollment),
		FromName: sw.fromName(enrollment),
		To:       enrollment.SubscriberEmail,
		Subject:  subject,
		HTML:     body,
	})
	if err != nil {
		// Dispatch failure is isolated: state stays untouched so the same
		// step is retried when the row is re-selected.
		result.Errors = append(result.Errors, fmt.Sprintf("failed to send to %s: %v", enrollment.SubscriberEmail, err))
		return
	}

	entry := models.EmailLog{
		Recipient:  enrollment.SubscriberEmail,
		Subject:    subject,
		SequenceID: &enrollment.SequenceID,
		StepID:     &step.ID,
		MessageID:  messageID,
		EmailType:  "sequence",
		Status:     "sent",
		SentAt:     now,
	}
	if err := sw.Audit.Record(ctx, entry); err != nil {
		sw.Logger.Printf("Failed to record email log for %s: %v", enrollment.SubscriberEmail, err)
	}
	if err := sw.Steps.IncrementSentCount(ctx, step.ID); err != nil {
		sw.Logger.Printf("Failed to bump sent count for step %d: %v", step.ID, err)
	}

	next, err := sw.Steps.NextActiveStep(ctx, enrollment.SequenceID, enrollment.CurrentStep)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("next step lookup failed for %s: %v", enrollment.SubscriberEmail, err))
		return
	}

	if next != nil {
		// The delay belongs to the step being scheduled, counted from this send.
		nextDue := now.Add(next.StepDelay())
		if err := sw.Enrollments.AdvanceEnrollment(ctx, enrollment.ID, next.StepOrder, now, nextDue); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to advance enrollment for %s: %v", enrollment.SubscriberEmail, err))
			return
		}
	} else {
		if err := sw.Enrollments.CompleteAfterSend(ctx, enrollment.ID, now); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to complete enrollment for %s: %v", enrollment.SubscriberEmail, err))
			return
		}
		result.Completed++
	}

	result.Sent++
}

func (sw *SequenceWorker) fromEmail(enrollment *models.SequenceEnrollment) string {
	if enrollment.Sequence.FromEmail != "" {
		return enrollment.Sequence.FromEmail
	}
	return sw.FromEmail
}

func (sw *SequenceWorker) fromName(enrollment *models.SequenceEnrollment) string {
	if enrollment.Sequence.FromName != "" {
		return enrollment.Sequence.FromName
	}
	return sw.FromName
}
