package middleware

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"yoma-api/errs"
	"yoma-api/store"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// ErrorHandler is the fiber error handler. It maps service errors to
// status codes; anything unknown is logged and hidden behind a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status, body := describe(err)
	if status >= fiber.StatusInternalServerError {
		zerolog.Ctx(c.UserContext()).Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
	}
	return c.Status(status).JSON(body)
}

func describe(err error) (int, ErrorResponse) {
	var (
		verr   *errs.ValidationError
		fields validator.ValidationErrors
		ferr   *fiber.Error
	)
	switch {
	case errors.As(err, &verr):
		return fiber.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: verr.Messages}
	case errors.As(err, &fields):
		details := make([]string, 0, len(fields))
		for _, fe := range fields {
			details = append(details, fe.Error())
		}
		return fiber.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: details}
	case errors.Is(err, errs.ErrNotFound):
		return fiber.StatusNotFound, ErrorResponse{Error: err.Error()}
	case errors.Is(err, errs.ErrUnauthorized):
		return fiber.StatusUnauthorized, ErrorResponse{Error: "unauthorized"}
	case errors.Is(err, errs.ErrForbidden):
		return fiber.StatusForbidden, ErrorResponse{Error: err.Error()}
	case errors.Is(err, errs.ErrConflict):
		return fiber.StatusConflict, ErrorResponse{Error: err.Error()}
	case errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound, ErrorResponse{Error: "resource not found"}
	case errors.Is(err, store.ErrDuplicate):
		return fiber.StatusConflict, ErrorResponse{Error: "resource already exists"}
	case errors.As(err, &ferr):
		return ferr.Code, ErrorResponse{Error: ferr.Message}
	}
	return fiber.StatusInternalServerError, ErrorResponse{Error: "an unexpected error occurred"}
}
