package srcapi

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinRequestInterval is the spacing the leaderboard API tolerates
// before it starts rejecting requests.
const DefaultMinRequestInterval = 600 * time.Millisecond

// Limiter enforces a minimum interval between outbound API calls. It wraps
// a token bucket with burst 1, which reduces to exactly "at least one
// interval since the previous call" and runs on the monotonic clock, so
// wall-clock adjustments cannot shorten the spacing.
type Limiter struct {
	rl *rate.Limiter
}

func NewLimiter(minInterval time.Duration) *Limiter {
	if minInterval <= 0 {
		minInterval = DefaultMinRequestInterval
	}
	return &Limiter{rl: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until the configured interval has elapsed since the previous
// permitted call, or until ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.rl.Wait(ctx)
}
