package jobs

import (
	"context"
	"log"
	"time"

	"leadloop/models"
	"leadloop/scoring"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// CronManager schedules the recurring maintenance jobs that are not part of
// the minute-level sequence loop.
type CronManager struct {
	cron   *cron.Cron
	db     *gorm.DB
	scorer scoring.Scorer
	logger *log.Logger
}

func NewCronManager(db *gorm.DB, scorer scoring.Scorer, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}
	return &CronManager{
		cron:   cron.New(),
		db:     db,
		scorer: scorer,
		logger: logger,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	cm.logger.Println("Setting up cron jobs...")

	// Nightly at 2 AM: recompute lead scores via the pluggable strategy.
	_, err := cm.cron.AddFunc("0 2 * * *", func() {
		cm.logger.Println("🕐 Running nightly lead score recalculation...")

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()

		if err := cm.scorer.RecalculateAll(ctx); err != nil {
			cm.logger.Printf("❌ Lead score recalculation failed: %v", err)
			return
		}
		cm.logger.Println("✅ Lead score recalculation completed")
	})
	if err != nil {
		return err
	}

	// Daily at 3 AM: log enrollment totals so operators see drift in the
	// morning without querying.
	_, err = cm.cron.AddFunc("0 3 * * *", func() {
		var active, completed, paused int64
		cm.db.Model(&models.SequenceEnrollment{}).Where("status = ?", models.EnrollmentStatusActive).Count(&active)
		cm.db.Model(&models.SequenceEnrollment{}).Where("status = ?", models.EnrollmentStatusCompleted).Count(&completed)
		cm.db.Model(&models.SequenceEnrollment{}).Where("status = ?", models.EnrollmentStatusPaused).Count(&paused)
		cm.logger.Printf("Enrollment totals: active=%d completed=%d paused=%d", active, completed, paused)
	})
	if err != nil {
		return err
	}

	return nil
}

// Start begins executing scheduled jobs
func (cm *CronManager) Start() {
	cm.cron.Start()
	cm.logger.Println("Cron jobs started")
}

// Stop halts job execution
func (cm *CronManager) Stop() {
	cm.cron.Stop()
	cm.logger.Println("Cron jobs stopped")
}
