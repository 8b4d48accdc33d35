package weather

import (
	"context"
	"errors"
	"fmt"

	"github.com/terraguard/climate-alerts/internal/models"
)

// Provider fetches a fixed-length historical window of daily observations.
// Implementations must return exactly days entries or fail the whole call:
// every downstream ratio assumes a fixed denominator.
type Provider interface {
	FetchWindow(ctx context.Context, coord models.Coordinate, days int) (models.ObservationWindow, error)
}

// UpstreamError classifies a provider failure. Timeouts and 5xx responses are
// retryable; malformed payloads and invalid coordinates are not.
type UpstreamError struct {
	Retryable bool
	Err       error
}

func (e *UpstreamError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("upstream error (%s): %v", kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Retryable reports whether err is an upstream error worth one more attempt.
func Retryable(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Retryable
}
