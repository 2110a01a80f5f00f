package controller

import (
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadloop/models"
	"leadloop/utils"
)

type PostController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewPostController(db *gorm.DB, logger *log.Logger) *PostController {
	return &PostController{
		DB:     db,
		Logger: logger,
	}
}

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a title into a URL-safe slug
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugCleaner.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// CreatePost creates a draft post by default
func (pc *PostController) CreatePost(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Title   string `json:"title" validate:"required,max=255"`
		Slug    string `json:"slug" validate:"omitempty,max=255"`
		Excerpt string `json:"excerpt" validate:"omitempty,max=1000"`
		Body    string `json:"body" validate:"required"`
		Tags    string `json:"tags" validate:"omitempty,max=500"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	slug := input.Slug
	if slug == "" {
		slug = Slugify(input.Title)
	}
	var existing models.BlogPost
	if err := pc.DB.Where("slug = ?", slug).First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "A post with this slug already exists", nil)
	}

	post := models.BlogPost{
		UserID:  user.ID,
		Title:   input.Title,
		Slug:    slug,
		Excerpt: input.Excerpt,
		Body:    input.Body,
		Tags:    input.Tags,
		Status:  "draft",
	}
	if err := pc.DB.Create(&post).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create post", err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(post))
}

// GetPosts lists posts for the back office, all statuses included
func (pc *PostController) GetPosts(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "25"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 25
	}

	query := pc.DB.Model(&models.BlogPost{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count posts", err)
	}

	var posts []models.BlogPost
	if err := query.Order("created_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&posts).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch posts", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  posts,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (pc *PostController) GetPost(c *fiber.Ctx) error {
	var post models.BlogPost
	if err := pc.DB.First(&post, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Post not found", nil)
	}
	return c.JSON(utils.SuccessResponse(post))
}

func (pc *PostController) UpdatePost(c *fiber.Ctx) error {
	var post models.BlogPost
	if err := pc.DB.First(&post, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Post not found", nil)
	}

	var input struct {
		Title   *string `json:"title"`
		Slug    *string `json:"slug"`
		Excerpt *string `json:"excerpt"`
		Body    *string `json:"body"`
		Tags    *string `json:"tags"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		updates["title"] = *input.Title
	}
	if input.Slug != nil {
		var other models.BlogPost
		if err := pc.DB.Where("slug = ? AND id != ?", *input.Slug, post.ID).First(&other).Error; err == nil {
			return utils.ErrorResponse(c, fiber.StatusConflict, "A post with this slug already exists", nil)
		}
		updates["slug"] = *input.Slug
	}
	if input.Excerpt != nil {
		updates["excerpt"] = *input.Excerpt
	}
	if input.Body != nil {
		updates["body"] = *input.Body
	}
	if input.Tags != nil {
		updates["tags"] = *input.Tags
	}
	if len(updates) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No fields to update", nil)
	}

	if err := pc.DB.Model(&post).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update post", err)
	}
	return c.JSON(utils.SuccessResponse(post))
}

// PublishPost flips a draft to published and stamps the publish time
func (pc *PostController) PublishPost(c *fiber.Ctx) error {
	var post models.BlogPost
	if err := pc.DB.First(&post, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Post not found", nil)
	}
	if post.Status == "published" {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Post is already published", nil)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":       "published",
		"published_at": now,
	}
	if err := pc.DB.Model(&post).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to publish post", err)
	}
	return c.JSON(utils.SuccessResponse(post))
}

func (pc *PostController) UnpublishPost(c *fiber.Ctx) error {
	var post models.BlogPost
	if err := pc.DB.First(&post, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Post not found", nil)
	}

	updates := map[string]interface{}{
		"status":       "draft",
		"published_at": nil,
	}
	if err := pc.DB.Model(&post).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to unpublish post", err)
	}
	return c.JSON(utils.SuccessResponse(post))
}

func (pc *PostController) DeletePost(c *fiber.Ctx) error {
	result := pc.DB.Delete(&models.BlogPost{}, utils.ParseUint(c.Params("id")))
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete post", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Post not found", nil)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetPublishedPosts is the public feed used by the marketing site
func (pc *PostController) GetPublishedPosts(c *fiber.Ctx) error {
	var posts []models.BlogPost
	if err := pc.DB.Where("status = ?", "published").
		Order("published_at desc").
		Limit(50).
		Find(&posts).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch posts", err)
	}
	return c.JSON(utils.SuccessResponse(posts))
}

// GetPostBySlug is the public single-article endpoint
func (pc *PostController) GetPostBySlug(c *fiber.Ctx) error {
	var post models.BlogPost
	if err := pc.DB.Where("slug = ? AND status = ?", c.Params("slug"), "published").
		First(&post).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Post not found", nil)
	}
	return c.JSON(utils.SuccessResponse(post))
}
