package controller

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadloop/models"
	"leadloop/store"
	"leadloop/utils"
)

type SequenceController struct {
	DB          *gorm.DB
	Logger      *log.Logger
	Enrollments *store.EnrollmentStore
}

func NewSequenceController(db *gorm.DB, logger *log.Logger, enrollments *store.EnrollmentStore) *SequenceController {
	return &SequenceController{
		DB:          db,
		Logger:      logger,
		Enrollments: enrollments,
	}
}

type sequenceStepInput struct {
	StepOrder  int    `json:"step_order" validate:"required,min=1"`
	Subject    string `json:"subject" validate:"required,max=255"`
	BodyHTML   string `json:"body_html" validate:"required"`
	DelayDays  int    `json:"delay_days" validate:"min=0"`
	DelayHours int    `json:"delay_hours" validate:"min=0,max=23"`
	IsActive   *bool  `json:"is_active"`
}

// CreateSequence creates a sequence along with its ordered steps
func (sc *SequenceController) CreateSequence(c *fiber.Ctx) error {
	var input struct {
		Name        string              `json:"name" validate:"required,max=200"`
		Description string              `json:"description" validate:"omitempty,max=2000"`
		Steps       []sequenceStepInput `json:"steps" validate:"omitempty,dive"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	seen := make(map[int]bool, len(input.Steps))
	for _, s := range input.Steps {
		if seen[s.StepOrder] {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Duplicate step order", nil)
		}
		seen[s.StepOrder] = true
	}

	sequence := models.Sequence{
		Name:        input.Name,
		Description: input.Description,
		IsActive:    true,
	}
	for _, s := range input.Steps {
		active := true
		if s.IsActive != nil {
			active = *s.IsActive
		}
		sequence.Steps = append(sequence.Steps, models.SequenceStep{
			StepOrder:  s.StepOrder,
			Subject:    s.Subject,
			BodyHTML:   s.BodyHTML,
			DelayDays:  s.DelayDays,
			DelayHours: s.DelayHours,
			IsActive:   active,
		})
	}

	if err := sc.DB.Create(&sequence).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create sequence", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(sequence))
}

func (sc *SequenceController) GetSequences(c *fiber.Ctx) error {
	var sequences []models.Sequence
	if err := sc.DB.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_order asc")
	}).Order("created_at desc").Find(&sequences).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch sequences", err)
	}
	return c.JSON(utils.SuccessResponse(sequences))
}

func (sc *SequenceController) GetSequence(c *fiber.Ctx) error {
	var sequence models.Sequence
	if err := sc.DB.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_order asc")
	}).First(&sequence, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}
	return c.JSON(utils.SuccessResponse(sequence))
}

func (sc *SequenceController) UpdateSequence(c *fiber.Ctx) error {
	var sequence models.Sequence
	if err := sc.DB.First(&sequence, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}

	var input struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No fields to update", nil)
	}

	if err := sc.DB.Model(&sequence).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update sequence", err)
	}
	return c.JSON(utils.SuccessResponse(sequence))
}

func (sc *SequenceController) DeleteSequence(c *fiber.Ctx) error {
	var sequence models.Sequence
	if err := sc.DB.First(&sequence, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}

	var active int64
	sc.DB.Model(&models.SequenceEnrollment{}).
		Where("sequence_id = ? AND status = ?", sequence.ID, models.EnrollmentStatusActive).
		Count(&active)
	if active > 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Sequence has active enrollments", nil)
	}

	if err := sc.DB.Select("Steps").Delete(&sequence).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete sequence", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UpsertStep creates or replaces a step at a given order within a sequence
func (sc *SequenceController) UpsertStep(c *fiber.Ctx) error {
	var sequence models.Sequence
	if err := sc.DB.First(&sequence, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}

	var input sequenceStepInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	var step models.SequenceStep
	err := sc.DB.Where("sequence_id = ? AND step_order = ?", sequence.ID, input.StepOrder).First(&step).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"subject":     input.Subject,
			"body_html":   input.BodyHTML,
			"delay_days":  input.DelayDays,
			"delay_hours": input.DelayHours,
			"is_active":   active,
		}
		if err := sc.DB.Model(&step).Updates(updates).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update step", err)
		}
		return c.JSON(utils.SuccessResponse(step))
	case err == gorm.ErrRecordNotFound:
		step = models.SequenceStep{
			SequenceID: sequence.ID,
			StepOrder:  input.StepOrder,
			Subject:    input.Subject,
			BodyHTML:   input.BodyHTML,
			DelayDays:  input.DelayDays,
			DelayHours: input.DelayHours,
			IsActive:   active,
		}
		if err := sc.DB.Create(&step).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create step", err)
		}
		return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(step))
	default:
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}
}

func (sc *SequenceController) DeleteStep(c *fiber.Ctx) error {
	result := sc.DB.Where("sequence_id = ? AND id = ?",
		utils.ParseUint(c.Params("id")), utils.ParseUint(c.Params("stepId"))).
		Delete(&models.SequenceStep{})
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete step", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Step not found", nil)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Enroll adds a subscriber to a sequence; the first step becomes due after its delay
func (sc *SequenceController) Enroll(c *fiber.Ctx) error {
	var sequence models.Sequence
	if err := sc.DB.First(&sequence, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	}

	var input struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	enrollment, err := sc.Enrollments.Enroll(c.Context(), sequence.ID, strings.ToLower(input.Email), time.Now())
	if err != nil {
		if err == store.ErrAlreadyEnrolled {
			return utils.ErrorResponse(c, fiber.StatusConflict, "Subscriber is already enrolled in this sequence", nil)
		}
		if err == store.ErrNoFirstStep {
			return utils.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Sequence has no active first step", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to enroll subscriber", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(enrollment))
}

// GetEnrollments lists enrollments for a sequence, optionally filtered by status
func (sc *SequenceController) GetEnrollments(c *fiber.Ctx) error {
	query := sc.DB.Where("sequence_id = ?", utils.ParseUint(c.Params("id")))
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var enrollments []models.SequenceEnrollment
	if err := query.Order("created_at desc").Find(&enrollments).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch enrollments", err)
	}
	return c.JSON(utils.SuccessResponse(enrollments))
}

// GetDueEnrollments lists the enrollments the next scheduler pass would pick
// up, in the order it would pick them.
func (sc *SequenceController) GetDueEnrollments(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	due, err := sc.Enrollments.DueEnrollments(c.Context(), time.Now(), limit)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch due enrollments", err)
	}
	return c.JSON(utils.SuccessResponse(due))
}

// CompleteEnrollment ends an enrollment manually. No further emails are sent
// and the subscriber's position is discarded.
func (sc *SequenceController) CompleteEnrollment(c *fiber.Ctx) error {
	var enrollment models.SequenceEnrollment
	if err := sc.DB.First(&enrollment, utils.ParseUint(c.Params("enrollmentId"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Enrollment not found", nil)
	}
	if enrollment.Status == models.EnrollmentStatusCompleted {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Enrollment is already completed", nil)
	}

	if err := sc.Enrollments.CompleteSilently(c.Context(), enrollment.ID); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to complete enrollment", err)
	}

	enrollment.Status = models.EnrollmentStatusCompleted
	enrollment.NextDueAt = nil
	return c.JSON(utils.SuccessResponse(enrollment))
}

// PauseEnrollment stops sends without losing the subscriber's position
func (sc *SequenceController) PauseEnrollment(c *fiber.Ctx) error {
	var enrollment models.SequenceEnrollment
	if err := sc.DB.First(&enrollment, utils.ParseUint(c.Params("enrollmentId"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Enrollment not found", nil)
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Only active enrollments can be paused", nil)
	}

	if err := sc.DB.Model(&enrollment).Update("status", models.EnrollmentStatusPaused).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to pause enrollment", err)
	}
	return c.JSON(utils.SuccessResponse(enrollment))
}

// ResumeEnrollment reactivates a paused enrollment. The current step is
// rescheduled relative to now so the subscriber does not get a burst of
// overdue sends.
func (sc *SequenceController) ResumeEnrollment(c *fiber.Ctx) error {
	var enrollment models.SequenceEnrollment
	if err := sc.DB.First(&enrollment, utils.ParseUint(c.Params("enrollmentId"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Enrollment not found", nil)
	}
	if enrollment.Status != models.EnrollmentStatusPaused {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Only paused enrollments can be resumed", nil)
	}

	var step models.SequenceStep
	nextDue := time.Now()
	err := sc.DB.Where("sequence_id = ? AND step_order = ? AND is_active = ?",
		enrollment.SequenceID, enrollment.CurrentStep, true).First(&step).Error
	if err == nil {
		nextDue = time.Now().Add(step.StepDelay())
	}

	updates := map[string]interface{}{
		"status":      models.EnrollmentStatusActive,
		"next_due_at": nextDue,
	}
	if err := sc.DB.Model(&enrollment).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resume enrollment", err)
	}
	return c.JSON(utils.SuccessResponse(enrollment))
}
