package main

import (
	"context"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"github.com/agencyos/escrow/config"
	"github.com/agencyos/escrow/internal/constants"
	"github.com/agencyos/escrow/internal/db"
	"github.com/agencyos/escrow/internal/db/repos"
	"github.com/agencyos/escrow/internal/events"
	"github.com/agencyos/escrow/internal/logger"
	"github.com/agencyos/escrow/internal/payments"
	"github.com/agencyos/escrow/internal/services"
	"github.com/agencyos/escrow/pkg/api/v1/handlers"
	"github.com/agencyos/escrow/pkg/api/v1/middleware"
	"github.com/agencyos/escrow/pkg/api/v1/routes"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	logger.InitializeAndConfigure()

	// Connect to the database and run migrations
	gdb, err := db.New(db.Options{
		Host:     config.GetEnv(constants.EnvDBHost, db.DefaultHost),
		Port:     config.GetEnvInt(constants.EnvDBPort, db.DefaultPort),
		User:     config.GetEnv(constants.EnvDBUser, db.DefaultUser),
		Password: config.GetEnv(constants.EnvDBPassword, db.DefaultPassword),
		DBName:   config.GetEnv(constants.EnvDBName, db.DefaultDBName),
	})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Payment processor adapter
	processor, err := payments.NewStripeProcessor(config.GetEnv(constants.EnvProcessorSecretKey, ""))
	if err != nil {
		logger.Fatalf("Failed to initialize payment processor: %v", err)
	}

	// Services
	escrowService := services.NewEscrowService(gdb, processor)
	agencyService := services.NewAgencyService(gdb, processor)
	queryService := services.NewQueryService(gdb)

	// Handlers
	jobHandler := handlers.NewJobHandler(escrowService, queryService)
	agencyHandler := handlers.NewAgencyHandler(agencyService)
	businessHandler := handlers.NewBusinessHandler(repos.NewBusinessRepository(gdb))

	// Event processing loop with money-movement audit logging
	registerEventHandlers()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName: "escrow-api",
	})
	app.Use(middleware.Logger())

	routes.RegisterRoutes(app, jobHandler, agencyHandler, businessHandler)

	port := config.GetEnv(constants.EnvServerPort, routes.DefaultPort)
	logger.Infof("Starting escrow API server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		logger.Fatalf("Server stopped: %v", err)
	}
}

// registerEventHandlers logs every money movement as a structured event
func registerEventHandlers() {
	logMoneyEvent := func(_ context.Context, event events.Event) error {
		logger.InfoWithFields("Money movement", map[string]interface{}{
			"event":       string(event.Type),
			"job_id":      event.JobID,
			"actor_id":    event.ActorID,
			"external_id": event.ExternalID,
			"amount":      event.Amount,
			"currency":    event.Currency,
		})
		return nil
	}

	events.Subscribe(events.EventPaymentSucceeded, logMoneyEvent)
	events.Subscribe(events.EventPayoutCompleted, logMoneyEvent)
	events.Subscribe(events.EventJobRefunded, logMoneyEvent)
	events.Subscribe(events.EventJobCancelled, logMoneyEvent)
}
