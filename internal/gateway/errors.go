package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/ecoride/ecoride/pkg/common"
	"github.com/ecoride/ecoride/pkg/httpclient"
	"github.com/ecoride/ecoride/pkg/resilience"
)

// mapError converts transport failures into the application error kinds
// the domain layers act on. A 400 is the backend echoing a validation
// failure; everything transport-shaped becomes NetworkFailure so reads
// can degrade to stale data.
func mapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return common.NewNetworkError(operation+" temporarily unavailable", err)
	}

	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusBadRequest:
			return common.NewValidationError(operation + " rejected: " + httpErr.Body)
		case httpErr.StatusCode == http.StatusUnauthorized:
			return common.NewUnauthorizedError("session is invalid or expired")
		case httpErr.StatusCode == http.StatusNotFound:
			return common.NewNotFoundError(operation + " target not found")
		case httpErr.StatusCode == http.StatusConflict:
			return common.NewConflictError(operation + " conflicts with current state")
		default:
			return common.NewNetworkError(operation+" failed", err)
		}
	}

	return common.NewNetworkError(operation+" failed", err)
}
