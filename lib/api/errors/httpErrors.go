package errors

import (
	goerrors "errors"

	"github.com/gofiber/fiber/v2"
)

var NotFoundError = Error{
	Message: "Not found",
	Error:   fiber.StatusNotFound,
}

var InternalServerError = Error{
	Message: "Internal server error",
	Error:   fiber.StatusInternalServerError,
}

// Handler renders errors returned by route handlers as Error bodies. Only fiber errors keep
// their message; anything else is reported as an internal error.
func Handler(c *fiber.Ctx, err error) error {
	body := InternalServerError
	var fiberErr *fiber.Error
	if goerrors.As(err, &fiberErr) {
		body = Error{Message: fiberErr.Message, Error: fiberErr.Code}
		if fiberErr.Code == fiber.StatusNotFound {
			body = NotFoundError
		}
	}
	return c.Status(body.Error).JSON(body)
}
