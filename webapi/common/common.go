// Package common holds the response envelopes, error mapping and request
// binding shared by every dashboard API handler.
package common

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/rezkym/fx-exchange/pkg/currency"
	"github.com/rezkym/fx-exchange/pkg/dashboard"
	"github.com/rezkym/fx-exchange/pkg/provider"
)

var validate = validator.New()

// Response defines the standard API response structure for success cases.
type Response struct {
	Status  int    `json:"status"`         // HTTP status code
	Message string `json:"message"`        // Human-readable explanation
	Data    any    `json:"data,omitempty"` // Response data
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`     // A URI reference that identifies the problem type
	Title    string `json:"title"`              // Short, human-readable summary
	Status   int    `json:"status"`             // HTTP status code
	Detail   string `json:"detail,omitempty"`   // Human-readable explanation
	Instance string `json:"instance,omitempty"` // URI reference that identifies the specific occurrence
	Errors   any    `json:"errors,omitempty"`   // Optional: additional error details
}

// SuccessResponseJSON writes data inside the standard envelope.
func SuccessResponseJSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{Status: status, Message: message, Data: data})
}

// ProblemDetailsJSON writes an RFC 9457 problem. The status comes from
// ErrorToStatusCode unless an int is passed in extra; a string in extra
// overrides the detail taken from err.
func ProblemDetailsJSON(c *fiber.Ctx, title string, err error, extra ...any) error {
	status := ErrorToStatusCode(err)
	pd := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Instance: c.OriginalURL(),
	}
	if err != nil {
		pd.Detail = err.Error()
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			pd.Errors = fieldErrors(verrs)
		}
	}
	for _, x := range extra {
		switch v := x.(type) {
		case int:
			status = v
		case string:
			pd.Detail = v
		}
	}
	pd.Status = status
	c.Set(fiber.HeaderContentType, "application/problem+json")
	return c.Status(status).JSON(pd)
}

// ErrorToStatusCode maps domain errors to appropriate HTTP status codes.
func ErrorToStatusCode(err error) int {
	var fe *fiber.Error
	switch {
	case err == nil:
		return fiber.StatusInternalServerError
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, dashboard.ErrInvalidPair),
		errors.Is(err, dashboard.ErrInvalidWindow),
		errors.Is(err, currency.ErrInvalidCode):
		return fiber.StatusBadRequest
	case errors.Is(err, dashboard.ErrNotWatching):
		return fiber.StatusNotFound
	case errors.Is(err, provider.ErrProviderUnavailable),
		errors.Is(err, provider.ErrMalformedResponse):
		return fiber.StatusBadGateway
	case errors.Is(err, dashboard.ErrBoardClosed):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// BindAndValidate parses the request body and validates it using go-playground/validator.
// On failure it returns a nil input after writing the problem response; the
// returned error is that of the write.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		return nil, ProblemDetailsJSON(c, "Invalid request body", err, fiber.StatusBadRequest)
	}
	if err := validate.Struct(input); err != nil {
		return nil, ProblemDetailsJSON(c, "Validation failed", err, fiber.StatusBadRequest)
	}
	return &input, nil
}

// PairParams reads the :source and :target route parameters. Fiber reuses
// the request buffer that params point into, so they are copied before use.
func PairParams(c *fiber.Ctx) (currency.Pair, error) {
	src, err := currency.ParseCode(utils.CopyString(c.Params("source")))
	if err != nil {
		return currency.Pair{}, errors.Join(dashboard.ErrInvalidPair, err)
	}
	dst, err := currency.ParseCode(utils.CopyString(c.Params("target")))
	if err != nil {
		return currency.Pair{}, errors.Join(dashboard.ErrInvalidPair, err)
	}
	return currency.Pair{Source: src, Target: dst}, nil
}

func fieldErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
