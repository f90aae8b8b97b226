package serverutils

import (
	"errors"

	"shyra-hub-be/internal/pkg/apperror"
	"shyra-hub-be/pkg/engine"

	"github.com/gofiber/fiber/v2"
)

func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code, message := StatusFor(err)
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}

// StatusFor maps an error onto an HTTP status and the message shown to the
// caller. Unknown errors are reported as a bare 500.
func StatusFor(err error) (int, string) {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperror.KindAuthentication:
			return fiber.StatusUnauthorized, appErr.Message
		case apperror.KindValidation:
			return fiber.StatusBadRequest, appErr.Message
		case apperror.KindNotFound:
			return fiber.StatusNotFound, appErr.Message
		case apperror.KindConflict:
			return fiber.StatusConflict, appErr.Message
		case apperror.KindRateLimited:
			return fiber.StatusTooManyRequests, appErr.Message
		}
	}

	var engineErr *engine.Error
	if errors.As(err, &engineErr) {
		if engineErr.Kind == engine.KindTimeout {
			return fiber.StatusGatewayTimeout, engineErr.Message
		}
		return fiber.StatusBadGateway, engineErr.Message
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, fiberErr.Message
	}

	return fiber.StatusInternalServerError, "internal server error"
}
