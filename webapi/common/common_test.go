package common_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rezkym/fx-exchange/pkg/currency"
	"github.com/rezkym/fx-exchange/pkg/dashboard"
	"github.com/rezkym/fx-exchange/pkg/provider"
	"github.com/rezkym/fx-exchange/webapi/common"
	"github.com/stretchr/testify/assert"
)

func TestErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid pair", fmt.Errorf("%w: bad", dashboard.ErrInvalidPair), fiber.StatusBadRequest},
		{"invalid window", dashboard.ErrInvalidWindow, fiber.StatusBadRequest},
		{"invalid code", currency.ErrInvalidCode, fiber.StatusBadRequest},
		{"not watching", dashboard.ErrNotWatching, fiber.StatusNotFound},
		{"upstream down", fmt.Errorf("load: %w", provider.ErrProviderUnavailable), fiber.StatusBadGateway},
		{"malformed", provider.ErrMalformedResponse, fiber.StatusBadGateway},
		{"board closed", dashboard.ErrBoardClosed, fiber.StatusServiceUnavailable},
		{"fiber error", fiber.NewError(fiber.StatusMethodNotAllowed, "nope"), fiber.StatusMethodNotAllowed},
		{"unknown", errors.New("boom"), fiber.StatusInternalServerError},
		{"nil", nil, fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, common.ErrorToStatusCode(tt.err))
		})
	}
}
