package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	controller "leadloop/controllers"
	"leadloop/middleware"
	"leadloop/scoring"
	"leadloop/store"
	"leadloop/worker"
)

// SetupAuthRoutes registers authentication endpoints
func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	// Google OAuth routes
	auth.Get("/google", controller.GoogleOAuth)
	auth.Get("/google/callback", controller.GoogleOAuthCallback)

	// Protected auth endpoints
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Post("/logout", controller.Logout)
	protectedAuth.Get("/me", controller.GetCurrentUser)

	authLogger.Println("Authentication routes initialized successfully")
}

// SetupPublicRoutes registers the endpoints the marketing site calls without
// authentication: contact capture, unsubscribe, blog feed and the Stripe
// webhook.
func SetupPublicRoutes(app *fiber.App, db *gorm.DB) {
	enrollments := store.NewEnrollmentStore(db)

	contactController := controller.NewContactController(db, log.New(os.Stdout, "CONTACT: ", log.LstdFlags), enrollments)
	subscriberController := controller.NewSubscriberController(db, log.New(os.Stdout, "SUBSCRIBER: ", log.LstdFlags), enrollments)
	postController := controller.NewPostController(db, log.New(os.Stdout, "POST: ", log.LstdFlags))
	paymentController := controller.NewPaymentController(db, log.New(os.Stdout, "PAYMENT: ", log.LstdFlags))

	public := app.Group("/public", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	public.Post("/contact", middleware.ContactRateLimiter(), contactController.SubmitContact)
	public.Post("/unsubscribe", subscriberController.Unsubscribe)
	public.Get("/posts", postController.GetPublishedPosts)
	public.Get("/posts/:slug", postController.GetPostBySlug)

	// Stripe signs its own requests; no session auth here.
	app.Post("/webhooks/stripe", paymentController.HandleStripeWebhook)
}

// SetupAPIRoutes registers the protected back-office API
func SetupAPIRoutes(app *fiber.App, db *gorm.DB, sequenceWorker *worker.SequenceWorker, scorer scoring.Scorer) {
	enrollments := store.NewEnrollmentStore(db)

	leadController := controller.NewLeadController(db, log.New(os.Stdout, "LEAD: ", log.LstdFlags), scorer)
	sequenceController := controller.NewSequenceController(db, log.New(os.Stdout, "SEQUENCE: ", log.LstdFlags), enrollments)
	schedulerController := controller.NewSchedulerController(db, log.New(os.Stdout, "SCHEDULER: ", log.LstdFlags), sequenceWorker)
	subscriberController := controller.NewSubscriberController(db, log.New(os.Stdout, "SUBSCRIBER: ", log.LstdFlags), enrollments)
	postController := controller.NewPostController(db, log.New(os.Stdout, "POST: ", log.LstdFlags))
	paymentController := controller.NewPaymentController(db, log.New(os.Stdout, "PAYMENT: ", log.LstdFlags))
	dashboardController := controller.NewDashboardController(db, log.New(os.Stdout, "DASHBOARD: ", log.LstdFlags))

	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Dashboard routes
	dashboard := api.Group("/dashboard")
	dashboard.Get("/stats", dashboardController.GetStats)
	dashboard.Get("/email-activity", dashboardController.GetEmailActivity)
	dashboard.Get("/sequence-performance", dashboardController.GetSequencePerformance)

	// Lead routes
	lead := api.Group("/leads")
	lead.Post("/", leadController.CreateLead)
	lead.Get("/", leadController.GetLeads)
	lead.Get("/:id", leadController.GetLead)
	lead.Put("/:id", leadController.UpdateLead)
	lead.Delete("/:id", leadController.DeleteLead)
	lead.Post("/:id/notes", leadController.AddLeadNote)
	lead.Post("/import", leadController.ImportLeads)
	lead.Post("/rescore", leadController.RescoreLeads)

	// Subscriber routes
	subscriber := api.Group("/subscribers")
	subscriber.Post("/", subscriberController.CreateSubscriber)
	subscriber.Get("/", subscriberController.GetSubscribers)
	subscriber.Get("/:id", subscriberController.GetSubscriber)
	subscriber.Put("/:id", subscriberController.UpdateSubscriber)
	subscriber.Delete("/:id", subscriberController.DeleteSubscriber)

	// Sequence routes
	sequence := api.Group("/sequences")
	sequence.Post("/", sequenceController.CreateSequence)
	sequence.Get("/", sequenceController.GetSequences)
	sequence.Get("/:id", sequenceController.GetSequence)
	sequence.Put("/:id", sequenceController.UpdateSequence)
	sequence.Delete("/:id", sequenceController.DeleteSequence)
	sequence.Put("/:id/steps", sequenceController.UpsertStep)
	sequence.Delete("/:id/steps/:stepId", sequenceController.DeleteStep)
	sequence.Post("/:id/enroll", sequenceController.Enroll)
	sequence.Get("/:id/enrollments", sequenceController.GetEnrollments)
	sequence.Get("/enrollments/due", sequenceController.GetDueEnrollments)
	sequence.Post("/enrollments/:enrollmentId/pause", sequenceController.PauseEnrollment)
	sequence.Post("/enrollments/:enrollmentId/resume", sequenceController.ResumeEnrollment)
	sequence.Post("/enrollments/:enrollmentId/complete", sequenceController.CompleteEnrollment)

	// Scheduler admin routes
	scheduler := api.Group("/scheduler", middleware.AdminOnly())
	scheduler.Post("/run", schedulerController.RunNow)
	scheduler.Get("/last-run", schedulerController.LastRun)
	scheduler.Get("/status", schedulerController.Status)

	// WebSocket route for live scheduler progress
	app.Get("/api/v1/scheduler/progress", websocket.New(func(c *websocket.Conn) {
		schedulerController.HandleSchedulerWS(c)
	}))

	// Blog CMS routes
	post := api.Group("/posts")
	post.Post("/", postController.CreatePost)
	post.Get("/", postController.GetPosts)
	post.Get("/:id", postController.GetPost)
	post.Put("/:id", postController.UpdatePost)
	post.Post("/:id/publish", postController.PublishPost)
	post.Post("/:id/unpublish", postController.UnpublishPost)
	post.Delete("/:id", postController.DeletePost)

	// Invoice routes
	invoice := api.Group("/invoices")
	invoice.Post("/", paymentController.CreateInvoice)
	invoice.Get("/", paymentController.GetInvoices)
}
