// Package scoring exposes lead scoring as a pluggable strategy. The actual
// business rule is owned outside this codebase (historically a database
// routine), so nothing here invents scoring semantics.
package scoring

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Scorer recomputes the derived score column for every lead.
type Scorer interface {
	RecalculateAll(ctx context.Context) error
}

// SQLFunctionScorer delegates to a named SQL function that owns the scoring
// rule, mirroring how the scores were historically maintained.
type SQLFunctionScorer struct {
	DB       *gorm.DB
	Function string
}

func NewSQLFunctionScorer(db *gorm.DB) *SQLFunctionScorer {
	return &SQLFunctionScorer{DB: db, Function: "recalculate_all_lead_scores"}
}

func (s *SQLFunctionScorer) RecalculateAll(ctx context.Context) error {
	if err := s.DB.WithContext(ctx).Exec(fmt.Sprintf("SELECT %s()", s.Function)).Error; err != nil {
		return fmt.Errorf("lead score recalculation failed: %w", err)
	}
	now := time.Now()
	return s.DB.WithContext(ctx).Exec("UPDATE leads SET last_scored_at = ? WHERE deleted_at IS NULL", now).Error
}

// NoopScorer leaves scores untouched. Used when no scoring function is
// installed in the database.
type NoopScorer struct{}

func (NoopScorer) RecalculateAll(context.Context) error { return nil }
