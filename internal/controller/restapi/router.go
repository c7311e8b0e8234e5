package restapi

import (
	"context"
	"net/http"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/config"
	v1 "github.com/andreyxaxa/Webhook-Pipeline/internal/controller/restapi/v1"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

const _healthTimeout = 2 * time.Second

// Pinger reports whether a backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// @title Webhook pipeline
// @version 1.0.0
// @host localhost:8080
// @BasePath /
func NewRouter(app *fiber.App, cfg *config.Config, intake usecase.IntakeUseCase, db Pinger, l logger.Interface) {
	// Swagger
	if cfg.Swagger.Enabled {
		app.Get("/swagger/*", swagger.HandlerDefault)
	}

	// Health checks
	app.Get("/healthz", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/readyz", func(ctx *fiber.Ctx) error {
		pingCtx, cancel := context.WithTimeout(ctx.UserContext(), _healthTimeout)
		defer cancel()

		if err := db.Ping(pingCtx); err != nil {
			l.Error(err, "restapi - readyz - db.Ping")

			return ctx.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return ctx.JSON(fiber.Map{"status": "ok"})
	})

	// Routers
	apiV1Group := app.Group("/v1")
	{
		v1.NewIntakeRoutes(apiV1Group, intake, l)
	}
}
