package controller

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"leadloop/models"
	"leadloop/utils"
	"leadloop/worker"
)

type SchedulerController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Worker *worker.SequenceWorker
}

func NewSchedulerController(db *gorm.DB, logger *log.Logger, w *worker.SequenceWorker) *SchedulerController {
	return &SchedulerController{
		DB:     db,
		Logger: logger,
		Worker: w,
	}
}

// RunNow triggers one scheduler pass outside the regular poll interval
func (sc *SchedulerController) RunNow(c *fiber.Ctx) error {
	result, err := sc.Worker.RunOnce(c.Context())
	if err != nil {
		sc.Logger.Printf("manual scheduler run failed: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Scheduler run failed", err)
	}
	return c.JSON(utils.SuccessResponse(result))
}

// LastRun returns the outcome of the most recent scheduler pass
func (sc *SchedulerController) LastRun(c *fiber.Ctx) error {
	result := sc.Worker.LastResult()
	if result == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Scheduler has not run yet", nil)
	}
	return c.JSON(utils.SuccessResponse(result))
}

// Status reports queue depth alongside the last run summary
func (sc *SchedulerController) Status(c *fiber.Ctx) error {
	now := time.Now()

	var due int64
	if err := sc.DB.Model(&models.SequenceEnrollment{}).
		Where("status = ? AND next_due_at IS NOT NULL AND next_due_at <= ?", models.EnrollmentStatusActive, now).
		Count(&due).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count due enrollments", err)
	}

	var active int64
	if err := sc.DB.Model(&models.SequenceEnrollment{}).
		Where("status = ?", models.EnrollmentStatusActive).
		Count(&active).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count active enrollments", err)
	}

	return c.JSON(fiber.Map{
		"due_now":            due,
		"active_enrollments": active,
		"last_run":           sc.Worker.LastResult(),
	})
}

// HandleSchedulerWS streams a live scheduler pass over a websocket. The
// client sends {"action": "run"} and receives per-stage progress followed
// by the run summary.
func (sc *SchedulerController) HandleSchedulerWS(c *websocket.Conn) {
	defer c.Close()

	var input struct {
		Action string `json:"action"`
	}
	if err := c.ReadJSON(&input); err != nil {
		sc.Logger.Printf("scheduler ws: error reading JSON: %v", err)
		return
	}
	if input.Action != "run" {
		_ = c.WriteJSON(fiber.Map{"error": "unknown action"})
		return
	}

	progress := func(message string, percent int, status string) bool {
		err := c.WriteJSON(struct {
			Message string `json:"message"`
			Percent int    `json:"percent"`
			Status  string `json:"status"`
		}{message, percent, status})
		if err != nil {
			sc.Logger.Printf("scheduler ws: error writing JSON: %v", err)
			return false
		}
		return true
	}

	if !progress("Fetching due enrollments...", 10, "running") {
		return
	}

	result, err := sc.Worker.RunOnce(context.Background())
	if err != nil {
		progress("Scheduler run failed: "+err.Error(), 100, "failed")
		return
	}

	if !progress("Sending step emails...", 70, "running") {
		return
	}
	if !progress("Run completed", 100, "completed") {
		return
	}
	_ = c.WriteJSON(utils.SuccessResponse(result))
}
