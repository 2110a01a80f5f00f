package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"testing"
	"time"

	"leadloop/models"
	"leadloop/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnrollmentStore struct {
	enrollments map[uint]*models.SequenceEnrollment
	fetchErr    error
	claimCalls  int
	dueCalls    int
}

func (f *fakeEnrollmentStore) due(now time.Time, limit int) []models.SequenceEnrollment {
	var out []models.SequenceEnrollment
	for _, e := range f.enrollments {
		if e.Due(now) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NextDueAt.Equal(*out[j].NextDueAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].NextDueAt.Before(*out[j].NextDueAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *fakeEnrollmentStore) DueEnrollments(_ context.Context, now time.Time, limit int) ([]models.SequenceEnrollment, error) {
	f.dueCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.due(now, limit), nil
}

func (f *fakeEnrollmentStore) ClaimDueEnrollments(_ context.Context, now time.Time, limit int) ([]models.SequenceEnrollment, error) {
	f.claimCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	claimed := f.due(now, limit)
	lease := now.Add(15 * time.Minute)
	for _, e := range claimed {
		f.enrollments[e.ID].NextDueAt = &lease
	}
	return claimed, nil
}

func (f *fakeEnrollmentStore) AdvanceEnrollment(_ context.Context, id uint, nextStep int, sentAt, nextDueAt time.Time) error {
	e := f.enrollments[id]
	e.CurrentStep = nextStep
	sent := sentAt
	due := nextDueAt
	e.LastSentAt = &sent
	e.NextDueAt = &due
	return nil
}

func (f *fakeEnrollmentStore) CompleteAfterSend(_ context.Context, id uint, sentAt time.Time) error {
	e := f.enrollments[id]
	sent := sentAt
	e.Status = models.EnrollmentStatusCompleted
	e.CompletedAt = &sent
	e.LastSentAt = &sent
	e.NextDueAt = nil
	return nil
}

func (f *fakeEnrollmentStore) CompleteSilently(_ context.Context, id uint) error {
	e := f.enrollments[id]
	e.Status = models.EnrollmentStatusCompleted
	e.NextDueAt = nil
	return nil
}

type fakeStepStore struct {
	steps []models.SequenceStep
}

func (f *fakeStepStore) ActiveStep(_ context.Context, sequenceID uint, stepOrder int) (*models.SequenceStep, error) {
	for i := range f.steps {
		s := f.steps[i]
		if s.SequenceID == sequenceID && s.StepOrder == stepOrder && s.IsActive {
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeStepStore) NextActiveStep(_ context.Context, sequenceID uint, afterOrder int) (*models.SequenceStep, error) {
	var best *models.SequenceStep
	for i := range f.steps {
		s := f.steps[i]
		if s.SequenceID != sequenceID || s.StepOrder <= afterOrder || !s.IsActive {
			continue
		}
		if best == nil || s.StepOrder < best.StepOrder {
			best = &s
		}
	}
	return best, nil
}

func (f *fakeStepStore) IncrementSentCount(_ context.Context, stepID uint) error {
	for i := range f.steps {
		if f.steps[i].ID == stepID {
			f.steps[i].SentCount++
		}
	}
	return nil
}

type fakeSubscriberStore struct {
	metadata map[string]map[string]string
}

func (f *fakeSubscriberStore) Metadata(_ context.Context, email string) (map[string]string, error) {
	if meta, ok := f.metadata[email]; ok {
		return meta, nil
	}
	return map[string]string{}, nil
}

type fakeMailer struct {
	sent    []utils.Email
	failFor map[string]error
}

func (f *fakeMailer) Send(email utils.Email) (string, error) {
	if err, ok := f.failFor[email.To]; ok {
		return "", err
	}
	f.sent = append(f.sent, email)
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

type fakeAuditLog struct {
	entries []models.EmailLog
}

func (f *fakeAuditLog) Record(_ context.Context, entry models.EmailLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

type workerFixture struct {
	worker      *SequenceWorker
	enrollments *fakeEnrollmentStore
	steps       *fakeStepStore
	subscribers *fakeSubscriberStore
	mailer      *fakeMailer
	audit       *fakeAuditLog
	now         time.Time
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	fx := &workerFixture{
		enrollments: &fakeEnrollmentStore{enrollments: map[uint]*models.SequenceEnrollment{}},
		steps:       &fakeStepStore{},
		subscribers: &fakeSubscriberStore{metadata: map[string]map[string]string{}},
		mailer:      &fakeMailer{failFor: map[string]error{}},
		audit:       &fakeAuditLog{},
		now:         time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	logger := log.New(os.Stdout, "TEST: ", log.LstdFlags)
	fx.worker = NewSequenceWorker(fx.enrollments, fx.steps, fx.subscribers, fx.mailer, fx.audit, logger)
	fx.worker.FromEmail = "hello@leadloop.agency"
	fx.worker.Now = func() time.Time { return fx.now }
	return fx
}

func (fx *workerFixture) addSequence(id uint, steps ...models.SequenceStep) {
	for i := range steps {
		steps[i].SequenceID = id
		fx.steps.steps = append(fx.steps.steps, steps[i])
	}
}

func (fx *workerFixture) addEnrollment(id, sequenceID uint, email string, currentStep int, dueAt time.Time) *models.SequenceEnrollment {
	due := dueAt
	e := &models.SequenceEnrollment{
		SequenceID:      sequenceID,
		SubscriberEmail: email,
		CurrentStep:     currentStep,
		Status:          models.EnrollmentStatusActive,
		NextDueAt:       &due,
	}
	e.ID = id
	fx.enrollments.enrollments[id] = e
	return e
}

func step(id uint, order, delayDays, delayHours int, active bool) models.SequenceStep {
	s := models.SequenceStep{
		StepOrder:  order,
		Subject:    fmt.Sprintf("Step %d for {{first_name}}", order),
		BodyHTML:   fmt.Sprintf("<p>Step %d body for {{email}}</p>", order),
		DelayDays:  delayDays,
		DelayHours: delayHours,
		IsActive:   active,
	}
	s.ID = id
	return s
}

func TestRunOnceMonotonicAdvancement(t *testing.T) {
	fx := newWorkerFixture(t)
	fx.addSequence(1,
		step(10, 1, 0, 0, true),
		step(11, 2, 2, 0, true),
		step(12, 3, 0, 12, true),
	)
	e := fx.addEnrollment(100, 1, "jane@example.com", 1, fx.now)

	// First run sends step 1 and schedules step 2 with its own delay.
	result, err := fx.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 0, result.Completed)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 2, e.CurrentStep)
	require.NotNil(t, e.NextDueAt)
	assert.Equal(t, fx.now.Add(48*time.Hour), *e.NextDueAt)
	require.NotNil(t, e.LastSentAt)
	assert.Equal(t, fx.now, *e.LastSentAt)

	// Second run: jump past the due time, send step 2, schedule step 3.
	fx.now = fx.now.Add(49 * time.Hour)
	result, err = fx.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 3, e.CurrentStep)
	assert.Equal(t, fx.now.Add(12*time.Hour), *e.NextDueAt)

	// Third run: last step sent, enrollment completes.
	fx.now = fx.now.Add(13 * time.Hour)
	result, err = fx.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, models.EnrollmentStatusCompleted, e.Status)
	assert.Nil(t, e.NextDueAt)
	require.NotNil(t, e.CompletedAt)

	// Nothing left to do.
	fx.now = fx.now.Add(24 * time.Hour)
	result, err = fx.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Len(t, fx.mailer.sent, 3)
}

func TestRunOnceGapSkipping(t *testing.T) {
	fx := newWorkerFixture(t)
	fx.addSequence(1,
		step(10, 1, 0, 0, true),
		step(11, 2, 2, 0, false), // deactivated
		step(12, 3, 1, 0, true),
	)
	e := fx.addEnrollment(100, 1, "jane@example.com", 1, fx.now)

	result, err := fx.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)

	// The deactivated step 2 is invisible: advancement lands on step 3 with
	// step 3's delay.
	assert.Equal(t, 3, e.CurrentStep)
	require.NotNil(t, e.NextDueAt)
	assert.Equal(t, fx.now.Add(24*time.Hour), *e.NextDueAt)
}

func TestRunOnceFailureIsolation(t *testing.T) {
	fx := newWorkerFixture(t)
	fx.addSequence(1,
		step(10, 1, 0, 0, true),
		step(11, 2, 1, 0, true),
	)
	fx.addEnrollment(100, 1, "a@example.com", 1, fx.now.Add(-3*time.Minute))
	broken := fx.addEnrollment(101, 1, "b@example.com", 1, fx.now.Add(-2*time.Minute))
	fx.addEnrollment(102, 1, "c@example.com", 1, fx.now.Add(-1*time.Minute))

	fx.mailer.failFor["b@example.com"] = errors.New("provider 5xx")
	beforeDue := *broken.NextDueAt

	result, err := fx.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 2, result.Sent)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "b@example.com")

	// Failed row keeps its state so the same step retries next invocation.
	assert.Equal(t, 1, broken.CurrentStep)
	require.NotNil(t, broken.NextDueAt)
	assert.Equal(t, beforeDue, *broken.NextDueAt)
	assert.Equal(t, models.EnrollmentStatusActive, broken.Status)
	assert.Nil(t, broken.LastSentAt)
}

func TestRunOnceBatchCap(t *testing.T) {
	fx := newWorkerFixture(t)
	fx.addSequence(1, step(10, 1, 0, 0, true))
	for i := uint(0); i < 60; i++ {
		fx.addEnrollment(100+i, 1, fmt.Sprintf("user%d@example.com", i), 1, fx.now.Add(-time.Minute))
	}

	result, err := fx.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, result.Processed)
	assert.Equal(t, 50, result.Sent)

	// The overflow is picked up by the next invocation.
	result, err = fx.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, result.Processed)
}

func TestRunOnceMissingStepCompletesSilently(t *testing.T) {
	fx := newWorkerFixture(t)
	fx.addSequence(1, step(10, 1, 0, 0, true))
	e := fx.addEnrollment(100, 1, "jane@example.com", 4, fx.now)

	result, err := fx.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 1, result.Completed)
	assert.Empty(t, result.Errors)

	assert.Equal(t, models.EnrollmentStatusCompleted, e.Status)
	assert.Nil(t, e.NextDueAt)
	assert.Empty(t, fx.mailer.sent)
	assert.Empty(t, fx.audit.entries)
}

func TestRunOnceRendersTemplates(t *testing.T) {
	fx := newWorkerFixture(t)
	fx.addSequence(1, step(10, 1, 0, 0, true))
	fx.addEnrollment(100, 1, "jane.doe@example.com", 1, fx.now)
	fx.subscribers.metadata["jane.doe@example.com"] = map[string]string{"first_name": "Jane"}

	_, err := fx.worker.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, fx.mailer.sent, 1)
	assert.Equal(t, "Step 1 for Jane", fx.mailer.sent[0].Subject)
	assert.Equal(t, "<p>Step 1 body for jane.doe@example.com</p>", fx.mailer.sent[0].HTML)
}

func TestRunOnceAuditLogsSuccessOnly(t *testing.T) {
	fx := newWorkerFixture(t)
	fx.addSequence(1,
		step(10, 1, 0, 0, true),
		step(11, 2, 1, 0, true),
	)
	fx.addEnrollment(100, 1, "ok@example.com", 1, fx.now.Add(-2*time.Minute))
	fx.addEnrollment(101, 1, "bad@example.com", 1, fx.now.Add(-time.Minute))
	fx.mailer.failFor["bad@example.com"] = errors.New("timeout")

	_, err := fx.worker.RunOnce(context.Background())
	require.NoError(t, err)

	// Failures surface only in the run result; no log row is written for them.
	require.Len(t, fx.audit.entries, 1)
	entry := fx.audit.entries[0]
	assert.Equal(t, "ok@example.com", entry.Recipient)
	assert.Equal(t, "sequence", entry.EmailType)
	assert.Equal(t, "sent", entry.Status)
	assert.Equal(t, fx.now, entry.SentAt)
	require.NotNil(t, entry.SequenceID)
	assert.Equal(t, uint(1), *entry.SequenceID)
	require.NotNil(t, entry.StepID)
	assert.Equal(t, uint(10), *entry.StepID)
}

func TestRunOnceFetchFailureIsFatal(t *testing.T) {
	fx := newWorkerFixture(t)
	fx.enrollments.fetchErr = errors.New("connection refused")

	result, err := fx.worker.RunOnce(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestRunOnceClaimModeLeasesRows(t *testing.T) {
	fx := newWorkerFixture(t)
	fx.worker.ClaimRows = true
	fx.addSequence(1, step(10, 1, 0, 0, true))
	fx.addEnrollment(100, 1, "bad@example.com", 1, fx.now.Add(-time.Minute))
	fx.mailer.failFor["bad@example.com"] = errors.New("timeout")

	result, err := fx.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fx.enrollments.claimCalls)
	assert.Equal(t, 0, fx.enrollments.dueCalls)
	require.Len(t, result.Errors, 1)

	// The claimed row is leased out, so an immediate overlapping run cannot
	// pick it up again.
	result, err = fx.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
}

func TestRunOnceNotDueYet(t *testing.T) {
	fx := newWorkerFixture(t)
	fx.addSequence(1, step(10, 1, 0, 0, true))
	fx.addEnrollment(100, 1, "later@example.com", 1, fx.now.Add(time.Hour))

	result, err := fx.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Empty(t, fx.mailer.sent)
}

func TestStartReturnsWhenCancelledDuringStartupDelay(t *testing.T) {
	fx := newWorkerFixture(t)
	fx.worker.StartupDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		fx.worker.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}

func TestLastResult(t *testing.T) {
	fx := newWorkerFixture(t)
	assert.Nil(t, fx.worker.LastResult())

	fx.addSequence(1, step(10, 1, 0, 0, true))
	fx.addEnrollment(100, 1, "jane@example.com", 1, fx.now)

	result, err := fx.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result, fx.worker.LastResult())
}
