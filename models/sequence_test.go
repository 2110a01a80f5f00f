package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepDelay(t *testing.T) {
	step := SequenceStep{DelayDays: 2, DelayHours: 12}
	assert.Equal(t, 60*time.Hour, step.StepDelay())

	immediate := SequenceStep{}
	assert.Equal(t, time.Duration(0), immediate.StepDelay())
}

func TestEnrollmentDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name       string
		enrollment SequenceEnrollment
		want       bool
	}{
		{"due in the past", SequenceEnrollment{Status: EnrollmentStatusActive, NextDueAt: &past}, true},
		{"due exactly now", SequenceEnrollment{Status: EnrollmentStatusActive, NextDueAt: &now}, true},
		{"not yet due", SequenceEnrollment{Status: EnrollmentStatusActive, NextDueAt: &future}, false},
		{"paused", SequenceEnrollment{Status: EnrollmentStatusPaused, NextDueAt: &past}, false},
		{"completed with no due time", SequenceEnrollment{Status: EnrollmentStatusCompleted}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.enrollment.Due(now))
		})
	}
}

func TestSubscriberMetadata(t *testing.T) {
	s := Subscriber{
		Email:     "ada@example.com",
		FirstName: "Ada",
		Fields: []SubscriberField{
			{Name: "company", Value: "Analytical Engines"},
			{Name: "last_name", Value: "Lovelace"},
		},
	}

	meta := s.Metadata()
	assert.Equal(t, "Ada", meta["first_name"])
	assert.Equal(t, "Lovelace", meta["last_name"])
	assert.Equal(t, "Analytical Engines", meta["company"])

	empty := Subscriber{Email: "x@example.com"}
	assert.Empty(t, empty.Metadata())
}

func TestValidLeadStatus(t *testing.T) {
	for _, s := range []string{LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusProposal, LeadStatusWon, LeadStatusLost} {
		assert.True(t, ValidLeadStatus(s), s)
	}
	assert.False(t, ValidLeadStatus("archived"))
	assert.False(t, ValidLeadStatus(""))
}
