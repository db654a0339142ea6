package trackers

import (
	"context"
	"time"

	"github.com/secutils/core/internal/domain"
)

// fetchWithRetry consults tracker.JobConfig.RetryStrategy (spec.md §4.6,
// grounded on original_source's resources_trackers_fetch_job.rs retry
// handling): with no strategy configured, a single attempt is made and any
// error is returned to the sweep as-is. With a strategy, failed attempts
// are retried in-process up to MaxAttempts, backing off per
// RetryStrategy.NextDelay between tries.
func fetchWithRetry(ctx context.Context, fetcher Fetcher, t domain.Tracker) (domain.RevisionPayload, error) {
	strategy := t.JobConfig.RetryStrategy
	if strategy == nil {
		return fetcher.Fetch(ctx, t)
	}

	maxAttempts := strategy.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := uint32(1); attempt <= maxAttempts; attempt++ {
		payload, err := fetcher.Fetch(ctx, t)
		if err == nil {
			return payload, nil
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return domain.RevisionPayload{}, ctx.Err()
		case <-time.After(strategy.NextDelay(attempt)):
		}
	}
	return domain.RevisionPayload{}, lastErr
}
