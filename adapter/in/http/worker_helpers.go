package http

import (
	"context"
	"errors"

	"jobtrack_worker/core/service/common"
	"jobtrack_worker/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// serviceError converts service sentinels into AppErrors for the error handler.
func serviceError(err error, operation string) error {
	switch {
	case err == nil:
		return nil
	case apperr.IsAppError(err):
		return err
	case errors.Is(err, common.ErrNotFound):
		return apperr.NotFound("staged import").WithError(err)
	case errors.Is(err, common.ErrBadRequest):
		return apperr.BadRequest(err.Error()).WithError(err)
	case errors.Is(err, common.ErrInvalidTransition):
		return apperr.Conflict(err.Error()).WithError(err)
	case errors.Is(err, common.ErrDuplicate):
		return apperr.AlreadyExists("staged import").WithError(err)
	case errors.Is(err, common.ErrCircuitOpen):
		return apperr.ExternalError(operation, err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Timeout(operation).WithError(err)
	default:
		return apperr.DatabaseError(operation, err)
	}
}

// paramUUID parses a path parameter already checked by middleware.ValidateUUID.
func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.InvalidInput(name, "invalid UUID format")
	}
	return id, nil
}
