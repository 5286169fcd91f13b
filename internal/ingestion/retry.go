package ingestion

import (
	"context"
	"errors"
	"time"

	"docvault-backend/internal/shared/metrics"
	"docvault-backend/internal/shared/telemetry"
)

// permanentError stops RetryWithBackoff early.
type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// RetryWithBackoff runs op up to maxAttempts times, sleeping baseDelay,
// 2*baseDelay, 4*baseDelay... between attempts. Errors wrapped with Permanent
// end the loop at once. The returned error is the last one from op, unwrapped
// from Permanent, or the context error if ctx ends while waiting.
func RetryWithBackoff(ctx context.Context, stage Stage, maxAttempts int, baseDelay time.Duration, op func(ctx context.Context) error) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		var perm permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if attempt == maxAttempts {
			break
		}

		delay := baseDelay << (attempt - 1)
		metrics.IncStageRetry(string(stage))
		telemetry.Warn("ingestion.stage_retry", map[string]any{
			"stage":    string(stage),
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
			"error":    sanitizeDetail(lastErr),
		})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
