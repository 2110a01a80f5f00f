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

type SubscriberController struct {
	DB          *gorm.DB
	Logger      *log.Logger
	Enrollments *store.EnrollmentStore
}

func NewSubscriberController(db *gorm.DB, logger *log.Logger, enrollments *store.EnrollmentStore) *SubscriberController {
	return &SubscriberController{
		DB:          db,
		Logger:      logger,
		Enrollments: enrollments,
	}
}

// CreateSubscriber adds a subscriber with optional custom fields
func (sc *SubscriberController) CreateSubscriber(c *fiber.Ctx) error {
	var input struct {
		Email     string            `json:"email" validate:"required,email"`
		FirstName string            `json:"first_name" validate:"omitempty,max=100"`
		LastName  string            `json:"last_name" validate:"omitempty,max=100"`
		Fields    map[string]string `json:"fields"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	email := strings.ToLower(input.Email)
	var existing models.Subscriber
	if err := sc.DB.Where("email = ?", email).First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Subscriber already exists", nil)
	}

	subscriber := models.Subscriber{
		Email:     email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Source:    "manual",
	}
	for name, value := range input.Fields {
		subscriber.Fields = append(subscriber.Fields, models.SubscriberField{
			Name:  name,
			Value: value,
		})
	}

	if err := sc.DB.Create(&subscriber).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create subscriber", err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(subscriber))
}

func (sc *SubscriberController) GetSubscribers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "25"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 25
	}

	query := sc.DB.Model(&models.Subscriber{})
	if search := c.Query("search"); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like)
	}
	if c.Query("subscribed") == "true" {
		query = query.Where("is_unsubscribed = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count subscribers", err)
	}

	var subscribers []models.Subscriber
	if err := query.Preload("Fields").Order("created_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&subscribers).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch subscribers", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  subscribers,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (sc *SubscriberController) GetSubscriber(c *fiber.Ctx) error {
	var subscriber models.Subscriber
	if err := sc.DB.Preload("Fields").Preload("Enrollments").
		First(&subscriber, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Subscriber not found", nil)
	}
	return c.JSON(utils.SuccessResponse(subscriber))
}

// UpdateSubscriber updates profile fields and replaces named custom fields
func (sc *SubscriberController) UpdateSubscriber(c *fiber.Ctx) error {
	var subscriber models.Subscriber
	if err := sc.DB.First(&subscriber, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Subscriber not found", nil)
	}

	var input struct {
		FirstName *string           `json:"first_name"`
		LastName  *string           `json:"last_name"`
		Fields    map[string]string `json:"fields"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	updates := map[string]interface{}{}
	if input.FirstName != nil {
		updates["first_name"] = *input.FirstName
	}
	if input.LastName != nil {
		updates["last_name"] = *input.LastName
	}
	if len(updates) > 0 {
		if err := sc.DB.Model(&subscriber).Updates(updates).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update subscriber", err)
		}
	}

	for name, value := range input.Fields {
		field := models.SubscriberField{
			SubscriberID: subscriber.ID,
			Name:         name,
		}
		if err := sc.DB.Where("subscriber_id = ? AND name = ?", subscriber.ID, name).
			Assign(models.SubscriberField{Value: value}).
			FirstOrCreate(&field).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update subscriber field", err)
		}
	}

	return c.JSON(utils.SuccessResponse(subscriber))
}

func (sc *SubscriberController) DeleteSubscriber(c *fiber.Ctx) error {
	var subscriber models.Subscriber
	if err := sc.DB.First(&subscriber, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Subscriber not found", nil)
	}
	if err := sc.DB.Select("Fields").Delete(&subscriber).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete subscriber", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Unsubscribe is the public opt-out endpoint. It marks the subscriber,
// pauses all active enrollments and records the opt-out for compliance.
func (sc *SubscriberController) Unsubscribe(c *fiber.Ctx) error {
	var input struct {
		Email  string `json:"email" validate:"required,email"`
		Reason string `json:"reason" validate:"omitempty,max=1000"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	email := strings.ToLower(input.Email)

	var subscriber models.Subscriber
	if err := sc.DB.Where("email = ?", email).First(&subscriber).Error; err == nil && !subscriber.IsUnsubscribed {
		now := time.Now()
		updates := map[string]interface{}{
			"is_unsubscribed": true,
			"unsubscribed_at": now,
		}
		if err := sc.DB.Model(&subscriber).Updates(updates).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to unsubscribe", err)
		}
	}

	paused, err := sc.Enrollments.PauseForEmail(c.Context(), email)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to pause enrollments", err)
	}

	record := models.Unsubscribe{
		Email:     email,
		Reason:    input.Reason,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	}
	if err := sc.DB.Create(&record).Error; err != nil {
		sc.Logger.Printf("failed to record unsubscribe for %s: %v", email, err)
	}

	utils.LogEvent("unsubscribed", map[string]interface{}{
		"email":            email,
		"pausedEnrollment": paused,
	})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "You have been unsubscribed.",
	})
}
