package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/transiteye/tracker/internal/core/domain"
	"github.com/transiteye/tracker/internal/scheduler"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"` // bad_request, not_found, conflict, internal_error
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusConflict, "conflict", msg)
}

func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// fromError maps service errors onto API errors. Internal details are logged, not returned.
func fromError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidStatus), errors.Is(err, domain.ErrInvalidPosition):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, scheduler.ErrUnknownTask):
		return errNotFound(c, err.Error())
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		return errConflict(c, err.Error())
	}
	LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
	return errInternal(c, "internal error")
}
