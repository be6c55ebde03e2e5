// Package main provides the automation API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/vyomtech/automation/pkg/engine"
	"github.com/vyomtech/automation/pkg/eventbus"
	"github.com/vyomtech/automation/pkg/persistence"
	"github.com/vyomtech/automation/pkg/registry"
	"github.com/vyomtech/automation/pkg/services"
	"github.com/vyomtech/automation/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: p,
		registry:    reg,
		eventBus:    eventBus,
	}
}

func (a *API) App() *fiber.App {
	definitionService := services.NewDefinitionService(a.logger, a.persistence, a.registry)
	tracker := engine.NewTracker(a.logger, a.persistence, a.eventBus)

	handlers := web.NewAPIHandlers(definitionService, tracker, a.registry, a.eventBus, a.persistence)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Automation API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/enable", handlers.SetWorkflowEnabled)
	w.Post("/:id/trigger", handlers.TriggerWorkflow)
	w.Get("/:id/instances", handlers.GetWorkflowInstances)
	w.Get("/:id/stats", handlers.GetWorkflowStats)

	i := app.Group("/workflow-instances")
	i.Get("/:id", handlers.GetInstance)
	i.Post("/:id/cancel", handlers.CancelInstance)

	app.Post("/events", handlers.IngestEvent)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
