package api

import (
	"errors"
	"fmt"

	"nutriplan/logger"
	"nutriplan/types"

	"github.com/gofiber/fiber/v2"
)

// NewErrorHandler maps handler errors onto JSON responses.
func NewErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	log = logger.OrNop(log)
	return func(c *fiber.Ctx, err error) error {
		var (
			apiErr   Error
			valErr   ValidationError
			typedVal types.ValidationError
			fbErr    *fiber.Error
		)
		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &valErr):
			return c.Status(valErr.Status).JSON(valErr)
		case errors.As(err, &typedVal):
			return c.Status(typedVal.Status).JSON(ValidationError{Status: typedVal.Status, Errors: typedVal.Errors})
		case errors.As(err, &fbErr):
			apiErr = NewError(fbErr.Code, fbErr.Message)
		case errors.Is(err, types.ErrConfiguration):
			apiErr = NewError(fiber.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, types.ErrRetrieval):
			apiErr = NewError(fiber.StatusServiceUnavailable, err.Error())
		case errors.Is(err, types.ErrGeneration):
			apiErr = NewError(fiber.StatusBadGateway, err.Error())
		default:
			apiErr = NewError(fiber.StatusInternalServerError, err.Error())
		}
		if apiErr.Code >= fiber.StatusInternalServerError {
			log.Error("[API] request failed", "method", c.Method(), "path", c.Path(), "code", apiErr.Code, "error", apiErr.Message)
		} else {
			log.Info("[API] request rejected", "method", c.Method(), "path", c.Path(), "code", apiErr.Code, "error", apiErr.Message)
		}
		return c.Status(apiErr.Code).JSON(apiErr)
	}
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrInvalidID() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid id given",
	}
}

func ErrNotFound[T any](arg T, resource string) Error {
	return Error{
		Code:    fiber.StatusNotFound,
		Message: fmt.Sprintf("%s with %v not found", resource, arg),
	}
}
