package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/hupe1980/mascoordinator/coordinator"
)

const (
	errTypeInvalidRequest = "invalid_request_error"
	errTypeRateLimit      = "rate_limit_error"
	errTypeUpstream       = "upstream_error"
	errTypeInternal       = "internal_error"
)

// classify maps a pipeline error to an HTTP status and an error body.
func classify(err error) (int, APIError) {
	apiErr := APIError{Message: err.Error()}
	if phase, ok := coordinator.PhaseOf(err); ok {
		apiErr.Code = string(phase)
	}

	switch {
	case errors.Is(err, coordinator.ErrInvalidRequest):
		apiErr.Type = errTypeInvalidRequest
		return http.StatusBadRequest, apiErr
	case errors.Is(err, context.DeadlineExceeded):
		apiErr.Type = errTypeUpstream
		return http.StatusGatewayTimeout, apiErr
	case apiErr.Code == string(coordinator.PhaseSetup), apiErr.Code == "":
		apiErr.Type = errTypeInternal
		return http.StatusInternalServerError, apiErr
	default:
		apiErr.Type = errTypeUpstream
		return http.StatusBadGateway, apiErr
	}
}
