package controller

import (
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadloop/models"
	"leadloop/store"
	"leadloop/utils"
)

// ContactController handles the public contact form. Submissions become
// pipeline leads and, when requested, subscribers enrolled in the welcome
// sequence.
type ContactController struct {
	DB          *gorm.DB
	Logger      *log.Logger
	Enrollments *store.EnrollmentStore
}

func NewContactController(db *gorm.DB, logger *log.Logger, enrollments *store.EnrollmentStore) *ContactController {
	return &ContactController{
		DB:          db,
		Logger:      logger,
		Enrollments: enrollments,
	}
}

// SubmitContact processes a public contact form submission
func (cc *ContactController) SubmitContact(c *fiber.Ctx) error {
	var input struct {
		Email     string `json:"email" validate:"required,email"`
		FirstName string `json:"first_name" validate:"omitempty,max=100"`
		LastName  string `json:"last_name" validate:"omitempty,max=100"`
		Company   string `json:"company" validate:"omitempty,max=200"`
		Website   string `json:"website" validate:"omitempty,max=200"`
		Message   string `json:"message" validate:"required,max=5000"`
		Subscribe bool   `json:"subscribe"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	email := strings.ToLower(input.Email)

	// Reject throwaway and non-deliverable addresses up front.
	check := utils.CheckEmail(email)
	if check.Status != "valid" {
		utils.LogEvent("contact_rejected", map[string]interface{}{
			"email":  email,
			"status": check.Status,
			"reason": check.Reason,
			"ip":     c.IP(),
		})
		return utils.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Email address was rejected: "+check.Reason, nil)
	}

	var lead models.Lead
	err := cc.DB.Where("email = ?", email).First(&lead).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"message":         input.Message,
			"last_contact_at": time.Now(),
		}
		if err := cc.DB.Model(&lead).Updates(updates).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead", err)
		}
	case err == gorm.ErrRecordNotFound:
		lead = models.Lead{
			Email:     email,
			FirstName: input.FirstName,
			LastName:  input.LastName,
			Company:   input.Company,
			Website:   input.Website,
			Message:   input.Message,
			Status:    models.LeadStatusNew,
			Source:    "contact_form",
		}
		if err := cc.DB.Create(&lead).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create lead", err)
		}
	default:
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Database error", err)
	}

	if input.Subscribe {
		if err := cc.subscribeAndEnroll(c, email, input.FirstName, input.LastName); err != nil {
			// The lead is already saved. Losing the enrollment should not
			// fail the whole submission.
			cc.Logger.Printf("contact enrollment failed for %s: %v", email, err)
		}
	}

	utils.LogEvent("contact_submitted", map[string]interface{}{
		"email":  email,
		"leadID": lead.ID,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Thanks for reaching out. We'll get back to you shortly.",
	})
}

func (cc *ContactController) subscribeAndEnroll(c *fiber.Ctx, email, firstName, lastName string) error {
	var subscriber models.Subscriber
	err := cc.DB.Where("email = ?", email).First(&subscriber).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return err
		}
		subscriber = models.Subscriber{
			Email:     email,
			FirstName: firstName,
			LastName:  lastName,
			Source:    "contact_form",
		}
		if err := cc.DB.Create(&subscriber).Error; err != nil {
			return err
		}
	}
	if subscriber.IsUnsubscribed {
		return nil
	}

	var welcome models.Sequence
	if err := cc.DB.Where("name = ? AND is_active = ?", "welcome", true).First(&welcome).Error; err != nil {
		return err
	}

	_, err = cc.Enrollments.Enroll(c.Context(), welcome.ID, email, time.Now())
	if err == store.ErrAlreadyEnrolled {
		return nil
	}
	return err
}
