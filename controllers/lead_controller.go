package controller

import (
	"encoding/csv"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadloop/models"
	"leadloop/scoring"
	"leadloop/utils"
)

type LeadController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Scorer scoring.Scorer
}

func NewLeadController(db *gorm.DB, logger *log.Logger, scorer scoring.Scorer) *LeadController {
	return &LeadController{
		DB:     db,
		Logger: logger,
		Scorer: scorer,
	}
}

// CreateLead creates a new lead with validation
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	var input struct {
		Email     string `json:"email" validate:"required,email"`
		FirstName string `json:"first_name" validate:"omitempty,max=100"`
		LastName  string `json:"last_name" validate:"omitempty,max=100"`
		Phone     string `json:"phone" validate:"omitempty,max=30"`
		Company   string `json:"company" validate:"omitempty,max=200"`
		Website   string `json:"website" validate:"omitempty,max=200"`
		Message   string `json:"message" validate:"omitempty,max=5000"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var existing models.Lead
	if err := lc.DB.Where("email = ?", strings.ToLower(input.Email)).First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Lead with this email already exists", nil)
	}

	lead := models.Lead{
		Email:     strings.ToLower(input.Email),
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Phone:     input.Phone,
		Company:   input.Company,
		Website:   input.Website,
		Message:   input.Message,
		Status:    models.LeadStatusNew,
		Source:    "manual",
	}

	if err := lc.DB.Create(&lead).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create lead", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(lead))
}

// GetLeads returns paginated leads with optional status and search filters
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "25"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 25
	}

	query := lc.DB.Model(&models.Lead{})

	if status := c.Query("status"); status != "" {
		if !models.ValidLeadStatus(status) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown lead status", nil)
		}
		query = query.Where("status = ?", status)
	}
	if search := c.Query("search"); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(company) LIKE ?",
			like, like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count leads", err)
	}

	var leads []models.Lead
	if err := query.Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&leads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  leads,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	var lead models.Lead
	if err := lc.DB.Preload("Notes").First(&lead, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	return c.JSON(utils.SuccessResponse(lead))
}

// UpdateLead updates lead profile fields and pipeline status
func (lc *LeadController) UpdateLead(c *fiber.Ctx) error {
	var lead models.Lead
	if err := lc.DB.First(&lead, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	var input struct {
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Phone     *string `json:"phone"`
		Company   *string `json:"company"`
		Website   *string `json:"website"`
		Status    *string `json:"status" validate:"omitempty,pipeline_stage"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	updates := map[string]interface{}{}
	if input.FirstName != nil {
		updates["first_name"] = *input.FirstName
	}
	if input.LastName != nil {
		updates["last_name"] = *input.LastName
	}
	if input.Phone != nil {
		updates["phone"] = *input.Phone
	}
	if input.Company != nil {
		updates["company"] = *input.Company
	}
	if input.Website != nil {
		updates["website"] = *input.Website
	}
	if input.Status != nil {
		updates["status"] = *input.Status
		if *input.Status == models.LeadStatusContacted {
			updates["last_contact_at"] = time.Now()
		}
	}
	if len(updates) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No fields to update", nil)
	}

	if err := lc.DB.Model(&lead).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead", err)
	}

	return c.JSON(utils.SuccessResponse(lead))
}

func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	var lead models.Lead
	if err := lc.DB.First(&lead, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	if err := lc.DB.Delete(&lead).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lead", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddLeadNote attaches a note to a lead
func (lc *LeadController) AddLeadNote(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var lead models.Lead
	if err := lc.DB.First(&lead, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	var input struct {
		Body string `json:"body" validate:"required,max=5000"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	note := models.LeadNote{
		LeadID: lead.ID,
		UserID: user.ID,
		Body:   input.Body,
	}
	if err := lc.DB.Create(&note).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create note", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(note))
}

// leadsFromCSV maps parsed CSV records onto leads. The first record is the
// header; rows with a column-count mismatch or without an email are skipped
// and counted rather than failing the whole file.
func leadsFromCSV(records [][]string) ([]models.Lead, int, error) {
	if len(records) < 2 {
		return nil, 0, errors.New("CSV file must have a header and at least one row")
	}

	header := records[0]
	var leads []models.Lead
	skipped := 0

	for _, row := range records[1:] {
		if len(row) != len(header) {
			skipped++
			continue
		}

		data := make(map[string]string, len(header))
		for i, col := range header {
			data[strings.ToLower(strings.TrimSpace(col))] = strings.TrimSpace(row[i])
		}

		email := strings.ToLower(data["email"])
		if email == "" {
			skipped++
			continue
		}

		leads = append(leads, models.Lead{
			Email:     email,
			FirstName: data["first_name"],
			LastName:  data["last_name"],
			Phone:     data["phone"],
			Company:   data["company"],
			Website:   data["website"],
			Status:    models.LeadStatusNew,
			Source:    "import",
		})
	}

	return leads, skipped, nil
}

// ImportLeads bulk-creates leads from an uploaded CSV file. Rows matching an
// existing email are reported as duplicates, not overwritten.
func (lc *LeadController) ImportLeads(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File upload error", err)
	}
	if file.Size > 5<<20 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File too large (max 5MB)", nil)
	}

	src, err := file.Open()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to open file", err)
	}
	defer src.Close()

	records, err := csv.NewReader(src).ReadAll()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to parse CSV file", err)
	}

	rows, skipped, err := leadsFromCSV(records)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var batch []models.Lead
	duplicates := 0
	for i := range rows {
		var existing models.Lead
		err := lc.DB.Where("email = ?", rows[i].Email).First(&existing).Error
		if err == nil {
			duplicates++
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check existing leads", err)
		}
		batch = append(batch, rows[i])
	}

	if len(batch) > 0 {
		if err := lc.DB.CreateInBatches(&batch, 100).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to import leads", err)
		}
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"total_rows": len(records) - 1,
		"imported":   len(batch),
		"duplicates": duplicates,
		"skipped":    skipped,
	}))
}

// RescoreLeads runs the pluggable scoring strategy over all leads
func (lc *LeadController) RescoreLeads(c *fiber.Ctx) error {
	if err := lc.Scorer.RecalculateAll(c.Context()); err != nil {
		lc.Logger.Printf("lead rescore failed: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to recalculate lead scores", err)
	}
	return c.JSON(fiber.Map{"success": true})
}
