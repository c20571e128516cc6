package retry

import (
	"context"
	"time"
)

// Policy is a bounded exponential-backoff retry schedule. It is injected
// into every external-capability adapter so failure behavior can be tested
// with stub capabilities instead of live services.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Default is three attempts with 1s then 2s between them.
var Default = Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

// Do runs op until it succeeds, attempts are exhausted, or ctx is done.
// The delay doubles after every failed attempt, capped at MaxDelay.
// Returns the last error from op, or ctx.Err() if cancelled while waiting.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay *= 2
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
		if err = op(ctx); err == nil {
			return nil
		}
	}
	return err
}
