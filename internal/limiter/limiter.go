package limiter

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"stock-analysis-bot/internal/types"
)

// Budget bounds one external service: at most MaxConcurrent in-flight calls
// and at least MinInterval between call starts.
type Budget struct {
	MaxConcurrent int
	MinInterval   time.Duration
}

// Policy controls retries for transient failures.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy mirrors the config defaults.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}
}

type serviceLimiter struct {
	sem         chan struct{}
	minInterval time.Duration

	mu     sync.Mutex
	nextAt time.Time
}

// Registry holds one limiter per external service and applies the shared
// retry policy around every call.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*serviceLimiter
	policy   Policy
}

// New creates an empty registry with the given retry policy.
func New(policy Policy) *Registry {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Registry{limiters: make(map[string]*serviceLimiter), policy: policy}
}

// AddService registers a budget for a service name. Calls to unregistered
// services run unthrottled but still retried.
func (r *Registry) AddService(name string, b Budget) {
	if b.MaxConcurrent < 1 {
		b.MaxConcurrent = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[name] = &serviceLimiter{
		sem:         make(chan struct{}, b.MaxConcurrent),
		minInterval: b.MinInterval,
	}
}

// Budget returns the configured concurrency budget for a service, 0 if none.
func (r *Registry) ConcurrencyBudget(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if l, ok := r.limiters[name]; ok {
		return cap(l.sem)
	}
	return 0
}

func (r *Registry) limiter(name string) *serviceLimiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[name]
}

// acquire takes a concurrency slot and waits out the inter-call interval.
// The returned release must be called when the call finishes.
func (l *serviceLimiter) acquire(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	l.mu.Lock()
	now := time.Now()
	wait := l.nextAt.Sub(now)
	if wait < 0 {
		wait = 0
	}
	l.nextAt = now.Add(wait + l.minInterval)
	l.mu.Unlock()

	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			<-l.sem
			return nil, ctx.Err()
		}
	}

	return func() { <-l.sem }, nil
}

// Execute runs fn under the service's budget, retrying transient failures
// with exponential backoff and jitter. It returns the number of attempts
// made alongside the final outcome; non-transient errors use exactly one
// attempt.
func (r *Registry) Execute(ctx context.Context, service string, fn func(context.Context) error) (int, error) {
	l := r.limiter(service)

	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return attempt - 1, lastErr
			}
			return attempt - 1, err
		}

		var release func()
		if l != nil {
			var err error
			release, err = l.acquire(ctx)
			if err != nil {
				if lastErr != nil {
					return attempt - 1, lastErr
				}
				return attempt - 1, err
			}
		}

		err := fn(ctx)
		if release != nil {
			release()
		}
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if !types.IsTransient(err) {
			return attempt, err
		}
		if attempt == r.policy.MaxAttempts {
			break
		}

		delay := r.backoff(attempt)
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return attempt, lastErr
		}
		t.Stop()
	}

	return r.policy.MaxAttempts, fmt.Errorf("retries exhausted after %d attempts: %w", r.policy.MaxAttempts, lastErr)
}

// backoff doubles the delay per attempt and adds up to 50% jitter.
func (r *Registry) backoff(attempt int) time.Duration {
	d := r.policy.BaseDelay << (attempt - 1)
	if r.policy.MaxDelay > 0 && d > r.policy.MaxDelay {
		d = r.policy.MaxDelay
	}
	if d <= 0 {
		return 0
	}
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}
