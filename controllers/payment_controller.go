package controller

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"gorm.io/gorm"

	"leadloop/config"
	"leadloop/models"
	"leadloop/utils"
)

// PaymentController issues client invoices and settles them through Stripe
// Checkout.
type PaymentController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewPaymentController(db *gorm.DB, logger *log.Logger) *PaymentController {
	stripe.Key = config.AppConfig.StripeSecretKey
	return &PaymentController{
		DB:     db,
		Logger: logger,
	}
}

// CreateInvoice creates an invoice and a Stripe Checkout session for it
func (pc *PaymentController) CreateInvoice(c *fiber.Ctx) error {
	var input struct {
		LeadID      uint   `json:"lead_id" validate:"required"`
		AmountCents int64  `json:"amount_cents" validate:"required,min=100"`
		Currency    string `json:"currency" validate:"omitempty,len=3"`
		Description string `json:"description" validate:"required,max=500"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var lead models.Lead
	if err := pc.DB.First(&lead, input.LeadID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	currency := input.Currency
	if currency == "" {
		currency = "usd"
	}

	invoice := models.Invoice{
		LeadID:      lead.ID,
		AmountCents: input.AmountCents,
		Currency:    currency,
		Description: input.Description,
		Status:      models.InvoiceStatusPending,
	}
	if err := pc.DB.Create(&invoice).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create invoice", err)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(lead.Email),
		SuccessURL:    stripe.String(config.AppConfig.FrontendURL + "/invoices/paid"),
		CancelURL:     stripe.String(config.AppConfig.FrontendURL + "/invoices/cancelled"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(invoice.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(invoice.Description),
					},
				},
			},
		},
	}
	params.AddMetadata("invoice_id", utils.FormatUint(invoice.ID))

	sess, err := session.New(params)
	if err != nil {
		// Keep the invoice so the session can be retried.
		pc.Logger.Printf("stripe session creation failed for invoice %d: %v", invoice.ID, err)
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Failed to create checkout session", err)
	}

	if err := pc.DB.Model(&invoice).Update("stripe_session_id", sess.ID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save checkout session", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":      true,
		"invoice":      invoice,
		"checkout_url": sess.URL,
	})
}

func (pc *PaymentController) GetInvoices(c *fiber.Ctx) error {
	query := pc.DB.Model(&models.Invoice{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if leadID := c.Query("lead_id"); leadID != "" {
		query = query.Where("lead_id = ?", utils.ParseUint(leadID))
	}

	var invoices []models.Invoice
	if err := query.Order("created_at desc").Find(&invoices).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch invoices", err)
	}
	return c.JSON(utils.SuccessResponse(invoices))
}

// HandleStripeWebhook processes signed Stripe events
func (pc *PaymentController) HandleStripeWebhook(c *fiber.Ctx) error {
	event, err := utils.ConstructStripeEvent(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid webhook payload", err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to parse session", err)
		}
		if err := pc.markInvoicePaid(sess.ID); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update invoice", err)
		}
	case "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to parse session", err)
		}
		pc.DB.Model(&models.Invoice{}).
			Where("stripe_session_id = ? AND status = ?", sess.ID, models.InvoiceStatusPending).
			Update("status", models.InvoiceStatusFailed)
	default:
		pc.Logger.Printf("ignoring stripe event type %s", event.Type)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (pc *PaymentController) markInvoicePaid(sessionID string) error {
	var invoice models.Invoice
	if err := pc.DB.Where("stripe_session_id = ?", sessionID).First(&invoice).Error; err != nil {
		return err
	}
	if invoice.Status == models.InvoiceStatusPaid {
		return nil
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":  models.InvoiceStatusPaid,
		"paid_at": now,
	}
	if err := pc.DB.Model(&invoice).Updates(updates).Error; err != nil {
		return err
	}

	// A paying lead is a won lead.
	pc.DB.Model(&models.Lead{}).
		Where("id = ?", invoice.LeadID).
		Update("status", models.LeadStatusWon)

	utils.LogEvent("invoice_paid", map[string]interface{}{
		"invoiceID": invoice.ID,
		"leadID":    invoice.LeadID,
	})
	return nil
}
