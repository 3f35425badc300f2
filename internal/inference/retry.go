package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// Retrying wraps a TextBackend with a fixed number of attempts and linear backoff
// (Delay, 2*Delay, ...). Permanent errors are returned immediately.
type Retrying struct {
	Backend  TextBackend
	Attempts int
	Delay    time.Duration
}

func NewRetrying(backend TextBackend) *Retrying {
	return &Retrying{Backend: backend, Attempts: 3, Delay: 2 * time.Second}
}

func (r *Retrying) InferText(ctx context.Context, prompt string) (string, error) {
	attempts := max(r.Attempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		answer, err := r.Backend.InferText(ctx, prompt)
		if err == nil {
			return answer, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if IsPermanent(err) {
			return "", err
		}
		if attempt == attempts {
			break
		}

		backoff := r.Delay * time.Duration(attempt)
		slog.Warn("Text backend call failed, will retry.",
			"attempt", attempt,
			"maxAttempts", attempts,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("text backend failed after %d attempts: %w", attempts, lastErr)
}

// IsPermanent reports whether retrying err cannot help.
func IsPermanent(err error) bool {
	switch {
	case errors.Is(err, context.Canceled),
		llms.IsAuthenticationError(err),
		llms.IsInvalidRequestError(err),
		llms.IsQuotaExceededError(err),
		llms.IsContentFilterError(err),
		llms.IsTokenLimitError(err),
		llms.IsNotImplementedError(err):
		return true
	}
	return false
}
