package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned while a breaker refuses calls.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Settings tune when a breaker trips. Zero values select the defaults.
type Settings struct {
	Target       string
	MinRequests  int
	FailureRatio float64
	OpenFor      time.Duration
}

// Breaker opens once the failure ratio over at least MinRequests calls reaches
// FailureRatio. After OpenFor it lets one probe through in half-open state.
type Breaker struct {
	mu        sync.Mutex
	settings  Settings
	state     State
	failures  int
	successes int
	openedAt  time.Time
	now       func() time.Time
	metrics   *Metrics
	logger    zerolog.Logger
}

// NewBreaker returns a closed breaker.
func NewBreaker(s Settings, metrics *Metrics, logger zerolog.Logger) *Breaker {
	if s.MinRequests <= 0 {
		s.MinRequests = 1
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.5
	}
	if s.FailureRatio > 1 {
		s.FailureRatio = 1
	}
	if s.OpenFor <= 0 {
		s.OpenFor = 30 * time.Second
	}
	s.Target = strings.TrimSpace(s.Target)
	if s.Target == "" {
		s.Target = "default"
	}
	b := &Breaker{settings: s, state: Closed, now: time.Now, metrics: metrics, logger: logger}
	b.metrics.setState(s.Target, Closed)
	return b
}

// State returns the current state without transitioning.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. An open breaker moves to half-open
// once the cool-off has elapsed.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Open {
		return true
	}
	if b.now().Sub(b.openedAt) < b.settings.OpenFor {
		return false
	}
	b.transitionLocked(ctx, HalfOpen)
	return true
}

// Report records the outcome of an allowed call.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		if success {
			b.transitionLocked(ctx, Closed)
		} else {
			b.transitionLocked(ctx, Open)
		}
		return
	}

	if success {
		b.successes++
	} else {
		b.failures++
	}
	total := b.failures + b.successes
	if total < b.settings.MinRequests {
		return
	}
	if float64(b.failures)/float64(total) >= b.settings.FailureRatio {
		b.transitionLocked(ctx, Open)
	} else if total > b.settings.MinRequests*2 {
		// decay so old outcomes weigh less
		b.successes = int(math.Ceil(float64(b.successes) * 0.5))
		b.failures = int(math.Ceil(float64(b.failures) * 0.5))
	}
}

// Do runs fn when allowed and reports its outcome.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if !b.Allow(ctx) {
		return ErrOpenCircuit
	}
	err := fn(ctx)
	b.Report(ctx, err == nil)
	return err
}

func (b *Breaker) transitionLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	switch next {
	case Open:
		b.openedAt = b.now()
	case Closed:
		b.openedAt = time.Time{}
	}
	b.failures, b.successes = 0, 0
	b.metrics.setState(b.settings.Target, next)
	b.metrics.transition(b.settings.Target, prev, next)

	evt := b.loggerFor(ctx).Info().
		Str("target", b.settings.Target).
		Str("from_state", prev.String()).
		Str("to_state", next.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &b.logger
}

// Backoff returns base doubled per attempt, spread by jitterPct (0.2 is 20%).
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	jitter := float64(d) * jitterPct
	return d + time.Duration((rand.Float64()*2-1)*jitter)
}
