package v1

import (
	"github.com/andreyxaxa/Webhook-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

func NewIntakeRoutes(apiV1Group fiber.Router, intake usecase.IntakeUseCase, l logger.Interface) {
	r := &V1{intake: intake, logger: l}

	{
		// receive
		apiV1Group.Post("/intake", r.enqueue)
		apiV1Group.Post("/webhooks/:source/:event_type", r.receiveWebhook)

		// inspect
		apiV1Group.Get("/intake", r.listIntake)
		apiV1Group.Get("/intake/stats", r.intakeStats)
		apiV1Group.Get("/intake/:id", r.getIntake)
		apiV1Group.Get("/intake/:id/actions", r.getActions)
		apiV1Group.Get("/intake/:id/commands", r.getCommands)
		apiV1Group.Post("/intake/:id/replay", r.replay)

		apiV1Group.Get("/metrics/daily", r.dailyMetrics)
	}
}
