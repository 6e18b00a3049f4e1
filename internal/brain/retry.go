package brain

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Limiter paces requests to the remote API. It slows down when the API
// pushes back and recovers after a quiet stretch.
type Limiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	min, max  rate.Limit
	lastError time.Time
}

// NewLimiter creates a limiter starting at max requests per second.
func NewLimiter(min, max rate.Limit) *Limiter {
	if min <= 0 {
		min = 0.2
	}
	if max < min {
		max = min
	}
	return &Limiter{limiter: rate.NewLimiter(max, 1), min: min, max: max}
}

// Wait blocks until a request may be made or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Success nudges the rate back up once errors have stopped.
func (l *Limiter) Success() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastError) > 10*time.Second {
		l.set(l.limiter.Limit() * 2)
	}
}

// RateLimited halves the rate.
func (l *Limiter) RateLimited() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastError = time.Now()
	l.set(l.limiter.Limit() / 2)
}

// Limit returns the current requests per second.
func (l *Limiter) Limit() rate.Limit {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limiter.Limit()
}

func (l *Limiter) set(r rate.Limit) {
	if r > l.max {
		r = l.max
	} else if r < l.min {
		r = l.min
	}
	l.limiter.SetLimit(r)
}

// HTTPError is a non-200 response from the remote API.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("remote returned %d %s: %s", e.Status, http.StatusText(e.Status), e.Body)
}

// StatusCode returns the HTTP status.
func (e *HTTPError) StatusCode() int { return e.Status }

// FatalError stops retries immediately.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// RetryConfig configures Retry.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultRetryConfig is five attempts with a one-second doubling backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2,
		Jitter:       true,
	}
}

// ErrExhausted wraps the last error once every attempt has failed.
var ErrExhausted = errors.New("retries exhausted")

// Retry runs fn until it succeeds, returns a FatalError, ctx ends, or the
// attempts run out.
func Retry(ctx context.Context, lim *Limiter, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	delay := cfg.InitialDelay

	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if lim != nil {
			if werr := lim.Wait(ctx); werr != nil {
				return werr
			}
		}

		err = fn()
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("remote call recovered")
			}
			return nil
		}

		var fatal *FatalError
		if errors.As(err, &fatal) {
			return err
		}
		if lim != nil && (isRateLimit(err) || isServerError(err)) {
			lim.RateLimited()
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := delay
		if cfg.Jitter {
			wait = addJitter(delay)
		}
		log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg("remote call failed")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, cfg.MaxAttempts, err)
}

// classify wraps non-retryable client errors as fatal.
func classify(err error) error {
	var he *HTTPError
	if errors.As(err, &he) && he.Status >= 400 && he.Status < 500 &&
		he.Status != http.StatusTooManyRequests && he.Status != http.StatusRequestTimeout {
		return &FatalError{Err: err}
	}
	return err
}

func isRateLimit(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == http.StatusTooManyRequests
}

func isServerError(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status >= 500
}

func addJitter(d time.Duration) time.Duration {
	if d < 4 {
		return d
	}
	return d + time.Duration(rand.Int63n(int64(d/4)))
}
