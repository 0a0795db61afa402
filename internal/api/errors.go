package api

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"shop-flow/internal/apperr"
)

type errorResponse struct {
	Status int                 `json:"status"`
	Errors []apperr.FieldError `json:"errors"`
}

// ErrorHandler is the single place where typed errors become HTTP
// responses. Anything it does not recognize is a 500 with a generic body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status()).JSON(errorResponse{
			Status: appErr.Status(),
			Errors: appErr.Fields,
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(errorResponse{
			Status: fiberErr.Code,
			Errors: []apperr.FieldError{{Message: fiberErr.Message}},
		})
	}

	slog.ErrorContext(c.UserContext(), "unhandled error", "method", c.Method(), "path", c.Path(), "error", err)

	return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{
		Status: fiber.StatusInternalServerError,
		Errors: []apperr.FieldError{{Message: "something went very wrong"}},
	})
}

// validationError flattens validator.ValidationErrors into the API's
// field+message pairs.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.BadRequest("invalid input")
	}

	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{
			Field:   fe.Field(),
			Message: validationMessage(fe),
		})
	}

	return apperr.Validation(fields...)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "eqfield":
		return "must match " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}
