package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pecportal/internal/platform/metrics"
	"pecportal/internal/profiles"
)

const (
	// DefaultMaxRetries bounds profile lookups to one attempt plus three retries.
	DefaultMaxRetries = 3
	// DefaultBackoff is the pause between profile lookups.
	DefaultBackoff = 500 * time.Millisecond
)

// ProfileFinder fetches exactly one profile row by subject id.
type ProfileFinder interface {
	FindByID(ctx context.Context, id string) (profiles.Profile, error)
}

// Resolver maps an authenticated identity to a portal user, retrying while the
// profile row has not been written yet.
type Resolver struct {
	finder     ProfileFinder
	maxRetries int
	backoff    time.Duration
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewResolver constructs a Resolver. Negative retries are treated as zero.
func NewResolver(finder ProfileFinder, maxRetries int, backoff time.Duration, m *metrics.Metrics, logger *slog.Logger) *Resolver {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Resolver{finder: finder, maxRetries: maxRetries, backoff: backoff, metrics: m, logger: logger}
}

// Resolve looks the profile up, retrying on any failure until the retry budget
// is spent or ctx is cancelled.
func (r *Resolver) Resolve(ctx context.Context, subjectID, fallbackEmail string) (profiles.User, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		profile, err := r.finder.FindByID(ctx, subjectID)
		if err == nil {
			r.metrics.ProfileLookup("found")
			return profile.ToUser(fallbackEmail), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.metrics.ProfileLookup("cancelled")
			return profiles.User{}, ctxErr
		}
		if errors.Is(err, profiles.ErrNotFound) {
			r.metrics.ProfileLookup("missing")
		} else {
			r.metrics.ProfileLookup("error")
		}
		lastErr = err

		if attempt >= r.maxRetries {
			break
		}
		r.logger.Debug("profile lookup failed, retrying", "subject_id", subjectID, "attempt", attempt+1, "error", err)

		timer := time.NewTimer(r.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.metrics.ProfileLookup("cancelled")
			return profiles.User{}, ctx.Err()
		case <-timer.C:
		}
	}
	return profiles.User{}, fmt.Errorf("%w: %d lookups for %s: %v", ErrProfileUnavailable, r.maxRetries+1, subjectID, lastErr)
}
