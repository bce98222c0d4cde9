package resilience

import (
	"context"
	"errors"
	"strings"
	"time"
)

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration

	BreakerEnabled          bool
	BreakerFailureThreshold uint32
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	// OnBreakerStateChange is invoked on every breaker transition, after the
	// transition is logged.
	OnBreakerStateChange func(operation, from, to string)
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Second,
		RetryMaxBackoff:     10 * time.Second,

		BreakerEnabled:          true,
		BreakerFailureThreshold: 5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 1,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}

	if out.BreakerFailureThreshold == 0 {
		out.BreakerFailureThreshold = def.BreakerFailureThreshold
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}

// BackoffDelay returns the wait before retrying after attempt n (1-based):
// initial * 2^(n-1), capped at the configured maximum.
func (c Config) BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := c.RetryInitialBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.RetryMaxBackoff {
			return c.RetryMaxBackoff
		}
	}
	if delay > c.RetryMaxBackoff {
		return c.RetryMaxBackoff
	}
	return delay
}

// retryableFragments are the upstream error signatures treated as transient.
// Matching is substring-based on the error text because providers surface
// these conditions with inconsistent typing.
var retryableFragments = []string{
	"failed to parse stream",
	"network error",
	"timeout",
	"rate limit",
	"429",
	"503",
	"504",
}

// RetryableMessage reports whether err's message contains one of the known
// transient upstream signatures, case-insensitively. Everything else is
// terminal.
func RetryableMessage(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// ClassifyByMessage is the classifier for the model call: context cancellation
// is terminal and does not count against the breaker; an open circuit is
// retried so a cooldown elapsing mid-loop can still rescue the request; any
// other failure counts against the breaker and is retried only when the
// message looks transient.
func ClassifyByMessage(err error) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if IsCircuitOpen(err) {
		return ErrorClassification{Retryable: true, RecordFailure: false}
	}
	return ErrorClassification{
		Retryable:     RetryableMessage(err),
		RecordFailure: true,
	}
}
