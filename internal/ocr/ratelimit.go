package ocr

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket refilled at perMinute tokens per minute.
// It starts full, so the first perMinute calls do not wait.
type Limiter struct {
	mu        sync.Mutex
	perMinute int
	tokens    float64
	last      time.Time

	consumed int64
	waited   time.Duration
}

// LimiterStatus reports limiter state.
type LimiterStatus struct {
	PerMinute int           `json:"per_minute"`
	Available int           `json:"available"`
	Consumed  int64         `json:"consumed"`
	Waited    time.Duration `json:"waited"`
}

// NewLimiter creates a limiter allowing perMinute calls per minute.
func NewLimiter(perMinute int) *Limiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &Limiter{
		perMinute: perMinute,
		tokens:    float64(perMinute),
		last:      time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refill(time.Now())
		if l.tokens >= 1 {
			l.tokens--
			l.consumed++
			l.mu.Unlock()
			return nil
		}
		wait := l.untilNextLocked()
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			l.mu.Lock()
			l.waited += wait
			l.mu.Unlock()
		}
	}
}

// Status returns a snapshot of the limiter.
func (l *Limiter) Status() LimiterStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill(time.Now())
	return LimiterStatus{
		PerMinute: l.perMinute,
		Available: int(l.tokens),
		Consumed:  l.consumed,
		Waited:    l.waited,
	}
}

func (l *Limiter) rate() float64 {
	return float64(l.perMinute) / 60
}

// untilNextLocked returns the time until one token is available. Must be called with lock held.
func (l *Limiter) untilNextLocked() time.Duration {
	need := 1 - l.tokens
	return time.Duration(need / l.rate() * float64(time.Second))
}

// refill adds tokens for the time since the last refill. Must be called with lock held.
func (l *Limiter) refill(now time.Time) {
	l.tokens += now.Sub(l.last).Seconds() * l.rate()
	l.last = now
	if limit := float64(l.perMinute); l.tokens > limit {
		l.tokens = limit
	}
}

// limitedEngine waits on a Limiter before every call.
type limitedEngine struct {
	Engine
	limiter *Limiter
}

// RateLimit wraps e so that at most perMinute Recognize calls start per minute.
// A non-positive perMinute returns e unchanged.
func RateLimit(e Engine, perMinute int) Engine {
	if perMinute <= 0 {
		return e
	}
	return &limitedEngine{Engine: e, limiter: NewLimiter(perMinute)}
}

func (l *limitedEngine) Recognize(ctx context.Context, in Input) (*Recognition, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.Engine.Recognize(ctx, in)
}

func (l *limitedEngine) Init(ctx context.Context) error { return Init(ctx, l.Engine) }

func (l *limitedEngine) Close() error { return Close(l.Engine) }

// Limiter returns the wrapped engine's limiter.
func (l *limitedEngine) Limiter() *Limiter { return l.limiter }
