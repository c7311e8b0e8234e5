package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/controller/restapi/v1/request"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	_defaultListLimit = 50
	_maxListLimit     = 500

	deliveryIDHeader = "X-Delivery-Id"
)

// @Summary 	Enqueue intake event
// @Description Stores a webhook envelope as a pending intake event. A repeated delivery id returns the stored event.
// @Tags 		intake
// @Accept 		json
// @Produce 	json
// @Param 		request body request.Intake true "Intake envelope"
// @Success 	202 {object} response.Enqueued
// @Failure 	400 {object} response.Error "Unknown source or invalid payload"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/intake [post]
func (r *V1) enqueue(ctx *fiber.Ctx) error {
	var body request.Intake

	err := ctx.BodyParser(&body)
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	return r.store(ctx, entity.Source(body.Source), body.EventType, body.Payload, body.DeliveryID)
}

// @Summary 	Receive webhook
// @Description Stores the raw JSON body posted by a platform. The delivery id is taken from the X-Delivery-Id header.
// @Tags 		intake
// @Accept 		json
// @Produce 	json
// @Param 		source 		 path 	string true  "Source" Enums(payment_platform, cms_platform, messaging_platform, marketing_platform)
// @Param 		event_type 	 path 	string true  "Event type"
// @Param 		X-Delivery-Id header string false "Platform delivery id"
// @Success 	202 {object} response.Enqueued
// @Failure 	400 {object} response.Error "Unknown source or invalid payload"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/webhooks/{source}/{event_type} [post]
func (r *V1) receiveWebhook(ctx *fiber.Ctx) error {
	// fiber reuses the body buffer once the handler returns
	payload := append([]byte(nil), ctx.Body()...)

	return r.store(ctx, entity.Source(ctx.Params("source")), ctx.Params("event_type"), payload, ctx.Get(deliveryIDHeader))
}

func (r *V1) store(ctx *fiber.Ctx, source entity.Source, eventType string, payload []byte, deliveryID string) error {
	id, err := r.intake.Enqueue(ctx.UserContext(), source, eventType, payload, deliveryID)
	if err != nil {
		return r.useCaseError(ctx, err, "store")
	}

	return ctx.Status(http.StatusAccepted).JSON(response.Enqueued{
		ID:     id.String(),
		Status: string(entity.Pending),
	})
}

// @Summary 	List intake events
// @Tags 		intake
// @Produce 	json
// @Param 		status 	   query string false "Status" Enums(pending, processing, completed, failed)
// @Param 		source 	   query string false "Source"
// @Param 		event_type query string false "Event type"
// @Param 		limit 	   query int 	false "Max items (default 50, max 500)"
// @Success 	200 {object} response.IntakeList
// @Failure 	400 {object} response.Error "Invalid filter"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/intake [get]
func (r *V1) listIntake(ctx *fiber.Ctx) error {
	filter := entity.IntakeFilter{
		Status:    entity.Status(ctx.Query("status")),
		Source:    entity.Source(ctx.Query("source")),
		EventType: ctx.Query("event_type"),
		Limit:     _defaultListLimit,
	}

	if filter.Status != "" && !filter.Status.Valid() {
		return errorResponse(ctx, http.StatusBadRequest, "invalid status")
	}
	if filter.Source != "" && !filter.Source.Valid() {
		return errorResponse(ctx, http.StatusBadRequest, "unknown source")
	}

	if limitStr := ctx.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > _maxListLimit {
			return errorResponse(ctx, http.StatusBadRequest, "limit must be between 1 and 500")
		}
		filter.Limit = limit
	}

	events, err := r.intake.List(ctx.UserContext(), filter)
	if err != nil {
		return r.useCaseError(ctx, err, "listIntake")
	}

	return ctx.JSON(response.NewIntakeList(events))
}

// @Summary 	Intake counts by status
// @Tags 		intake
// @Produce 	json
// @Success 	200 {object} response.Stats
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/intake/stats [get]
func (r *V1) intakeStats(ctx *fiber.Ctx) error {
	counts, err := r.intake.Stats(ctx.UserContext())
	if err != nil {
		return r.useCaseError(ctx, err, "intakeStats")
	}

	return ctx.JSON(response.NewStats(counts))
}

// @Summary 	Get intake event
// @Tags 		intake
// @Produce 	json
// @Param 		id path string true "Intake event ID(uuid)"
// @Success 	200 {object} response.Intake
// @Failure 	400 {object} response.Error "Invalid ID"
// @Failure 	404 {object} response.Error "Not found"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/intake/{id} [get]
func (r *V1) getIntake(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	event, err := r.intake.Get(ctx.UserContext(), id)
	if err != nil {
		return r.useCaseError(ctx, err, "getIntake")
	}

	return ctx.JSON(response.NewIntake(event))
}

// @Summary 	Action log of an intake event
// @Description One entry per processing attempt, oldest first
// @Tags 		intake
// @Produce 	json
// @Param 		id path string true "Intake event ID(uuid)"
// @Success 	200 {array}  response.ActionLogEntry
// @Failure 	400 {object} response.Error "Invalid ID"
// @Failure 	404 {object} response.Error "Not found"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/intake/{id}/actions [get]
func (r *V1) getActions(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	entries, err := r.intake.Actions(ctx.UserContext(), id)
	if err != nil {
		return r.useCaseError(ctx, err, "getActions")
	}

	return ctx.JSON(response.NewActionLog(entries))
}

// @Summary 	Commands enqueued by an intake event
// @Tags 		intake
// @Produce 	json
// @Param 		id path string true "Intake event ID(uuid)"
// @Success 	200 {array}  response.Command
// @Failure 	400 {object} response.Error "Invalid ID"
// @Failure 	404 {object} response.Error "Not found"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/intake/{id}/commands [get]
func (r *V1) getCommands(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	cmds, err := r.intake.Commands(ctx.UserContext(), id)
	if err != nil {
		return r.useCaseError(ctx, err, "getCommands")
	}

	return ctx.JSON(response.NewCommands(cmds))
}

// @Summary 	Replay failed intake event
// @Description Enqueues the stored payload of a failed event as a new event. The failed event is left as is.
// @Tags 		intake
// @Produce 	json
// @Param 		id path string true "Intake event ID(uuid)"
// @Success 	202 {object} response.Replayed
// @Failure 	400 {object} response.Error "Invalid ID or event not failed"
// @Failure 	404 {object} response.Error "Not found"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/intake/{id}/replay [post]
func (r *V1) replay(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	newID, err := r.intake.Replay(ctx.UserContext(), id)
	if err != nil {
		return r.useCaseError(ctx, err, "replay")
	}

	return ctx.Status(http.StatusAccepted).JSON(response.Replayed{
		ReplayedFrom: id.String(),
		ID:           newID.String(),
	})
}

// @Summary 	Daily metrics
// @Tags 		metrics
// @Produce 	json
// @Param 		date query string false "Day as YYYY-MM-DD (default today, UTC)"
// @Success 	200 {object} response.DailyMetrics
// @Failure 	400 {object} response.Error "Invalid date"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/metrics/daily [get]
func (r *V1) dailyMetrics(ctx *fiber.Ctx) error {
	date := time.Now().UTC().Truncate(24 * time.Hour)

	if dateStr := ctx.Query("date"); dateStr != "" {
		parsed, err := time.Parse(time.DateOnly, dateStr)
		if err != nil {
			return errorResponse(ctx, http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		date = parsed
	}

	metrics, err := r.intake.DailyMetrics(ctx.UserContext(), date)
	if err != nil {
		return r.useCaseError(ctx, err, "dailyMetrics")
	}

	return ctx.JSON(response.NewDailyMetrics(date.Format(time.DateOnly), metrics))
}
