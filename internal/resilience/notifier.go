package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/cartkit/internal/events"
)

// Notifier retries an events.Notifier behind a breaker, so an unreachable
// broker fails fast instead of delaying every cart write.
type Notifier struct {
	Next        events.Notifier
	Breaker     *Breaker
	Attempts    int
	BaseBackoff time.Duration
	Jitter      float64
}

// Notify delivers event, retrying up to Attempts times with exponential backoff.
func (n Notifier) Notify(ctx context.Context, event events.Event) error {
	attempts := n.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		call := func(ctx context.Context) error { return n.Next.Notify(ctx, event) }
		if n.Breaker != nil {
			lastErr = n.Breaker.Do(ctx, call)
		} else {
			lastErr = call(ctx)
		}
		if lastErr == nil || errors.Is(lastErr, ErrOpenCircuit) {
			break
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(Backoff(n.BaseBackoff, attempt, n.Jitter)):
		}
	}
	if lastErr != nil {
		return fmt.Errorf("notify %s: %w", event.Topic, lastErr)
	}
	return nil
}
