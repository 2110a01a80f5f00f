package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadloop/models"
	"leadloop/utils"
)

type DashboardController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDashboardController(db *gorm.DB, logger *log.Logger) *DashboardController {
	return &DashboardController{
		DB:     db,
		Logger: logger,
	}
}

type DashboardStats struct {
	LeadsByStatus     map[string]int64 `json:"leads_by_status"`
	TotalSubscribers  int64            `json:"total_subscribers"`
	ActiveEnrollments int64            `json:"active_enrollments"`
	EmailsSentToday   int64            `json:"emails_sent_today"`
	EmailsSentWeek    int64            `json:"emails_sent_week"`
	PendingInvoices   int64            `json:"pending_invoices"`
	PaidThisMonth     int64            `json:"paid_cents_this_month"`
}

type dailyCount struct {
	Day   time.Time `json:"day"`
	Count int64     `json:"count"`
}

// GetStats returns the summary counters for the back-office dashboard
func (dc *DashboardController) GetStats(c *fiber.Ctx) error {
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfWeek := startOfDay.AddDate(0, 0, -6)
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	stats := DashboardStats{
		LeadsByStatus: map[string]int64{},
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var statuses []statusCount
	if err := dc.DB.Model(&models.Lead{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statuses).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count leads", err)
	}
	for _, s := range statuses {
		stats.LeadsByStatus[s.Status] = s.Count
	}

	dc.DB.Model(&models.Subscriber{}).
		Where("is_unsubscribed = ?", false).
		Count(&stats.TotalSubscribers)

	dc.DB.Model(&models.SequenceEnrollment{}).
		Where("status = ?", models.EnrollmentStatusActive).
		Count(&stats.ActiveEnrollments)

	dc.DB.Model(&models.EmailLog{}).
		Where("sent_at >= ?", startOfDay).
		Count(&stats.EmailsSentToday)

	dc.DB.Model(&models.EmailLog{}).
		Where("sent_at >= ?", startOfWeek).
		Count(&stats.EmailsSentWeek)

	dc.DB.Model(&models.Invoice{}).
		Where("status = ?", models.InvoiceStatusPending).
		Count(&stats.PendingInvoices)

	var paid struct{ Total int64 }
	dc.DB.Model(&models.Invoice{}).
		Select("COALESCE(SUM(amount_cents), 0) as total").
		Where("status = ? AND paid_at >= ?", models.InvoiceStatusPaid, startOfMonth).
		Scan(&paid)
	stats.PaidThisMonth = paid.Total

	return c.JSON(utils.SuccessResponse(stats))
}

// GetEmailActivity returns per-day sent counts for the last 30 days
func (dc *DashboardController) GetEmailActivity(c *fiber.Ctx) error {
	since := time.Now().AddDate(0, 0, -30)

	var rows []dailyCount
	if err := dc.DB.Model(&models.EmailLog{}).
		Select("DATE_TRUNC('day', sent_at) as day, count(*) as count").
		Where("sent_at >= ?", since).
		Group("day").
		Order("day asc").
		Scan(&rows).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch email activity", err)
	}

	return c.JSON(utils.SuccessResponse(rows))
}

// GetSequencePerformance returns per-step sent counts for every sequence
func (dc *DashboardController) GetSequencePerformance(c *fiber.Ctx) error {
	var sequences []models.Sequence
	if err := dc.DB.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_order asc")
	}).Find(&sequences).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequences", err)
	}

	type stepSummary struct {
		StepOrder int    `json:"step_order"`
		Subject   string `json:"subject"`
		SentCount int    `json:"sent_count"`
		IsActive  bool   `json:"is_active"`
	}
	type sequenceSummary struct {
		ID          uint          `json:"id"`
		Name        string        `json:"name"`
		Active      int64         `json:"active_enrollments"`
		Completed   int64         `json:"completed_enrollments"`
		Steps       []stepSummary `json:"steps"`
		TotalEmails int           `json:"total_emails"`
	}

	summaries := make([]sequenceSummary, 0, len(sequences))
	for _, seq := range sequences {
		summary := sequenceSummary{ID: seq.ID, Name: seq.Name}

		dc.DB.Model(&models.SequenceEnrollment{}).
			Where("sequence_id = ? AND status = ?", seq.ID, models.EnrollmentStatusActive).
			Count(&summary.Active)
		dc.DB.Model(&models.SequenceEnrollment{}).
			Where("sequence_id = ? AND status = ?", seq.ID, models.EnrollmentStatusCompleted).
			Count(&summary.Completed)

		for _, step := range seq.Steps {
			summary.Steps = append(summary.Steps, stepSummary{
				StepOrder: step.StepOrder,
				Subject:   step.Subject,
				SentCount: step.SentCount,
				IsActive:  step.IsActive,
			})
			summary.TotalEmails += step.SentCount
		}
		summaries = append(summaries, summary)
	}

	return c.JSON(utils.SuccessResponse(summaries))
}
