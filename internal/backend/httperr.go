package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/resilience"
)

// AppError maps a client error onto the HTTP error envelope served to callers.
func AppError(err error) *common.AppError {
	if err == nil {
		return nil
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var apiErr *APIError
	switch {
	case errors.Is(err, ErrNotFound):
		msg := "resource not found"
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return common.NotFound(msg, err)
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized:
		return common.NewAppError("UNAUTHORIZED", "authentication required", http.StatusUnauthorized, err)
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden:
		return common.NewAppError("FORBIDDEN", "access denied", http.StatusForbidden, err)
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests:
		code := apiErr.Code
		if code == "" {
			code = "UPSTREAM_REJECTED"
		}
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return common.NewAppError(code, msg, apiErr.StatusCode, err)
	case errors.Is(err, resilience.ErrOpenCircuit):
		return common.NewAppError("UPSTREAM_UNAVAILABLE", "commerce backend temporarily unavailable", http.StatusServiceUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return common.NewAppError("UPSTREAM_TIMEOUT", "commerce backend timed out", http.StatusGatewayTimeout, err)
	case errors.Is(err, pricing.ErrInvalidDiscount), errors.Is(err, ErrInvalidPayload):
		return common.Upstream("commerce backend returned an invalid payload", err)
	}
	return common.Upstream("commerce backend request failed", err)
}
