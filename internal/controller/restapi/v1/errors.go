package v1

import (
	"errors"
	"net/http"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
)

func errorResponse(ctx *fiber.Ctx, code int, msg string) error {
	return ctx.Status(code).JSON(response.Error{Error: msg})
}

// useCaseError maps use case errors onto statuses, logging only the unexpected ones.
func (r *V1) useCaseError(ctx *fiber.Ctx, err error, op string) error {
	switch {
	case errors.Is(err, errs.ErrRecordNotFound):
		return errorResponse(ctx, http.StatusNotFound, "intake event not found")
	case errors.Is(err, errs.ErrUnknownSource):
		return errorResponse(ctx, http.StatusBadRequest, "unknown source")
	case errors.Is(err, errs.ErrValidation):
		return errorResponse(ctx, http.StatusBadRequest, err.Error())
	}

	r.logger.Error(err, "restapi - v1 - "+op)

	return errorResponse(ctx, http.StatusInternalServerError, "storage problems")
}
