package gateway

import (
	"context"
	"errors"
	"net"

	"github.com/M-24rjgc/cognical/types"
)

// Normalize funnels any failure into one typed *types.AppError: a structured
// domain error passes through (message defaulted per code if empty), context
// and transport failures map onto the taxonomy, everything else becomes
// UNKNOWN. The correlation id is discovered recursively anywhere in the
// details tree.
func Normalize(err error) *types.AppError {
	if err == nil {
		return nil
	}

	var app *types.AppError
	if errors.As(err, &app) {
		out := *app
		if out.Message == "" {
			out.Message = types.DefaultMessage(out.Code)
		}
		if out.CorrelationID == "" {
			out.CorrelationID = findCorrelationID(out.Details)
		}
		return &out
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewAppError(types.ErrUpstreamUnavailable, "the planning request timed out", nil)
	}
	if errors.Is(err, context.Canceled) {
		return types.NewAppError(types.ErrUpstreamUnavailable, "the planning request was canceled", nil)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return types.NewAppError(types.ErrConnectivityUnavailable, err.Error(), nil)
	}

	return types.NewAppError(types.ErrUnknown, err.Error(), nil)
}

// validationFailed wraps a schema rejection of caller input.
func validationFailed(err error) *types.AppError {
	return types.NewAppError(types.ErrInputValidationFailed, err.Error(), nil)
}

// upstreamMalformed wraps a schema rejection of a collaborator response.
func upstreamMalformed(err error) *types.AppError {
	return types.NewAppError(types.ErrUpstreamMalformed, err.Error(), nil)
}

// findCorrelationID walks a details tree (maps and lists, any nesting) and
// returns the first correlation id it finds.
func findCorrelationID(node any) string {
	switch v := node.(type) {
	case map[string]any:
		for _, key := range []string{"correlationId", "correlation_id"} {
			if raw, ok := v[key]; ok {
				if id, ok := raw.(string); ok && id != "" {
					return id
				}
			}
		}
		for _, child := range v {
			if id := findCorrelationID(child); id != "" {
				return id
			}
		}
	case []any:
		for _, child := range v {
			if id := findCorrelationID(child); id != "" {
				return id
			}
		}
	}
	return ""
}
