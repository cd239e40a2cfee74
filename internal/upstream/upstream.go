// Package upstream holds the retry, timeout and throttling policy shared by
// every outbound HTTP integration (TMDB and YouTube).
package upstream

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/iliyamo/aura/internal/config"
)

// ErrUnavailable is returned when every attempt failed with a transient
// error.  Handlers map it to 503.
var ErrUnavailable = errors.New("upstream service unavailable")

// StatusError reports a non-2xx response.
type StatusError struct {
	Service    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
}

// Observer receives one callback per finished attempt.  The metrics
// package implements it; nil is allowed.
type Observer interface {
	ObserveUpstream(service, outcome string, took time.Duration)
}

// Policy describes how a call is retried.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

// DefaultPolicy is three attempts, 2s doubling to 10s, 10s per attempt.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     10 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

// PolicyFromConfig copies the retry knobs out of the upstream config.
func PolicyFromConfig(cfg config.UpstreamConfig) Policy {
	return Policy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		AttemptTimeout: cfg.AttemptTimeout,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialBackoff
	eb.MaxInterval = p.MaxBackoff
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)
}

// Caller executes outbound requests for one named service under a Policy.
type Caller struct {
	service  string
	policy   Policy
	limiter  *rate.Limiter
	logger   *zap.Logger
	observer Observer
}

// NewCaller builds a Caller.  A nil limiter disables throttling.
func NewCaller(service string, policy Policy, limiter *rate.Limiter, logger *zap.Logger, observer Observer) *Caller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Caller{service: service, policy: policy, limiter: limiter, logger: logger, observer: observer}
}

// NewLimiter builds the token bucket used to throttle outbound calls.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Do runs fn until it succeeds, fails permanently or the attempts run out.
// fn receives a context bounded by the per-attempt timeout.  Transient
// failures are retried; once they are exhausted the last error is wrapped
// in ErrUnavailable.  Any other error is returned unchanged after the first
// attempt.
func (c *Caller) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		actx, cancel := context.WithTimeout(ctx, c.policy.AttemptTimeout)
		defer cancel()

		start := time.Now()
		err := fn(actx)
		c.observe(outcome(err), time.Since(start))
		if err == nil {
			return nil
		}
		// the caller's own context ending is never retried
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("upstream call failed, retrying",
			zap.String("service", c.service),
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}

	err := backoff.RetryNotify(operation, c.policy.backOff(ctx), notify)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && IsTransient(err) {
		c.logger.Error("upstream call exhausted retries",
			zap.String("service", c.service),
			zap.String("op", op),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, c.service, op, err)
	}
	return err
}

func (c *Caller) observe(outcome string, took time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstream(c.service, outcome, took)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}

// IsTransient reports whether err is worth another attempt: connection
// failures, timeouts, TLS handshake problems, other transport errors, and
// 429/502/503/504 responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var recErr tls.RecordHeaderError
	if errors.As(err, &recErr) {
		return true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuth x509.UnknownAuthorityError
	if errors.As(err, &unknownAuth) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
