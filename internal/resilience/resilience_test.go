package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
)

var errUpstream = errors.New("upstream 502")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1709798400, 0)}
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: threshold,
		SuccessThreshold: 1,
		Cooldown:         time.Minute,
	}, zerolog.Nop())
	cb.now = clock.now
	return cb, clock
}

func fail(context.Context) error    { return errUpstream }
func succeed(context.Context) error { return nil }

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	cb, clock := newTestBreaker(2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, fail); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want OPEN", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("open circuit ran the call: err = %v", err)
	}

	clock.advance(time.Minute)
	if err := cb.Execute(ctx, succeed); err != nil {
		t.Fatalf("trial call: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("state = %s, want CLOSED after a good trial", cb.State())
	}

	s := cb.Stats()
	if s.Requests != 4 || s.Failures != 2 || s.Successes != 1 || s.Rejected != 1 {
		t.Errorf("stats = %+v", s)
	}
	if got := s.FailureRate(); got < 66 || got > 67 {
		t.Errorf("failure rate = %v", got)
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.advance(time.Minute)
	_ = cb.Execute(ctx, fail)
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want OPEN", cb.State())
	}
	clock.advance(30 * time.Second)
	if err := cb.Execute(ctx, succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("cooldown restarted on reopen, err = %v", err)
	}
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb, _ := newTestBreaker(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("cancelled call opened the circuit")
	}
	if s := cb.Stats(); s.Cancelled != 1 || s.Failures != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestCallReturnsResult(t *testing.T) {
	cb, _ := newTestBreaker(3)
	v, err := Call(context.Background(), cb, func(context.Context) (int, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Errorf("Call = %d, %v", v, err)
	}
	cb.Reset()
	if cb.Name() != "test" || cb.State() != CircuitClosed {
		t.Errorf("name %q state %s", cb.Name(), cb.State())
	}
}

// TestProperty_BreakerOpensAtThreshold checks that a closed circuit opens
// after exactly FailureThreshold consecutive failures.
func TestProperty_BreakerOpensAtThreshold(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("opens on the threshold-th failure", prop.ForAll(
		func(threshold int) bool {
			cb, _ := newTestBreaker(threshold)
			for i := 1; i <= threshold; i++ {
				_ = cb.Execute(context.Background(), fail)
				open := cb.State() == CircuitOpen
				if open != (i == threshold) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 20),
	))

	properties.Property("a success resets the failure count", prop.ForAll(
		func(threshold int) bool {
			cb, _ := newTestBreaker(threshold)
			for round := 0; round < 3; round++ {
				for i := 0; i < threshold-1; i++ {
					_ = cb.Execute(context.Background(), fail)
				}
				_ = cb.Execute(context.Background(), succeed)
			}
			return cb.State() == CircuitClosed
		},
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}

func newTestLimiter(rate float64, burst int) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1709798400, 0)}
	r := NewRateLimiter(rate, burst)
	r.now = clock.now
	r.lastUpdate = clock.t
	return r, clock
}

func TestRateLimiterBurstAndRefill(t *testing.T) {
	r, clock := newTestLimiter(2, 3)

	for i := 0; i < 3; i++ {
		if !r.Allow() {
			t.Fatalf("burst call %d refused", i)
		}
	}
	if r.Allow() {
		t.Fatal("allowed beyond burst")
	}

	clock.advance(500 * time.Millisecond)
	if !r.Allow() {
		t.Error("token not refilled after 1/rate")
	}

	clock.advance(time.Hour)
	for i := 0; i < 3; i++ {
		r.Allow()
	}
	if r.Allow() {
		t.Error("refill exceeded burst")
	}
}

func TestRateLimiterWait(t *testing.T) {
	var disabled *RateLimiter
	if err := disabled.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter: %v", err)
	}
	if !NewRateLimiter(0, 1).Allow() {
		t.Error("zero rate should not limit")
	}

	r := NewRateLimiter(1000, 1)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := r.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if time.Since(start) > time.Second {
		t.Error("Wait took far longer than the refill interval")
	}

	slow, _ := newTestLimiter(0.001, 1)
	slow.Allow()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := slow.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait err = %v, want deadline exceeded", err)
	}
}

func TestPerMinute(t *testing.T) {
	r := PerMinute(30)
	if r.rate != 0.5 || r.burst != 3 {
		t.Errorf("rate %v burst %v", r.rate, r.burst)
	}
	if PerMinute(5).burst != 1 {
		t.Error("burst should be at least 1")
	}
}
