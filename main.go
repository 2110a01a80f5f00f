package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"leadloop/config"
	controller "leadloop/controllers"
	"leadloop/jobs"
	"leadloop/middleware"
	"leadloop/routes"
	"leadloop/scoring"
	"leadloop/store"
	"leadloop/utils"
	"leadloop/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "LEADLOOP: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	controller.InitGoogleOAuth()

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Outbound mail transport: Resend when an API key is present, SMTP otherwise
	var mailer utils.Mailer
	if config.AppConfig.ResendAPIKey != "" {
		mailer = utils.NewResendMailer(config.AppConfig.ResendAPIKey, config.AppConfig.Scheduler.SendTimeout)
	} else {
		mailer = utils.NewSMTPMailer(
			config.AppConfig.SMTPHost,
			config.AppConfig.SMTPPort,
			config.AppConfig.SMTPUsername,
			config.AppConfig.SMTPPassword,
		)
	}

	enrollmentStore := store.NewEnrollmentStore(config.DB)
	stepStore := store.NewStepStore(config.DB)
	subscriberStore := store.NewSubscriberStore(config.DB)
	emailLogStore := store.NewEmailLogStore(config.DB)

	// Initialize and start the sequence scheduler
	sequenceWorker := worker.NewSequenceWorker(
		enrollmentStore,
		stepStore,
		subscriberStore,
		mailer,
		emailLogStore,
		log.New(os.Stdout, "SEQUENCE: ", log.LstdFlags),
	)
	sequenceWorker.BatchSize = config.AppConfig.Scheduler.BatchSize
	sequenceWorker.Interval = config.AppConfig.Scheduler.PollInterval
	sequenceWorker.ClaimRows = config.AppConfig.Scheduler.ClaimRows
	sequenceWorker.FromEmail = config.AppConfig.FromEmail
	sequenceWorker.FromName = config.AppConfig.FromName

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sequenceWorker.Start(ctx)

	// Reply detection pauses enrollments when a subscriber writes back
	replyWorker := worker.NewReplyWorker(
		enrollmentStore,
		log.New(os.Stdout, "REPLY: ", log.LstdFlags),
		config.AppConfig.IMAPHost,
		config.AppConfig.IMAPPort,
		config.AppConfig.IMAPUsername,
		config.AppConfig.IMAPPassword,
	)
	go replyWorker.Start(ctx)

	// Nightly jobs: lead rescoring and enrollment bookkeeping
	scorer := scoring.NewSQLFunctionScorer(config.DB)
	cronManager := jobs.NewCronManager(config.DB, scorer, log.New(os.Stdout, "CRON: ", log.LstdFlags))
	if err := cronManager.SetupJobs(); err != nil {
		logger.Fatalf("Failed to set up cron jobs: %v", err)
	}
	cronManager.Start()
	defer cronManager.Stop()

	// Setup routes
	routes.SetupAuthRoutes(app, config.DB)
	routes.SetupPublicRoutes(app, config.DB)
	routes.SetupAPIRoutes(app, config.DB, sequenceWorker, scorer)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
