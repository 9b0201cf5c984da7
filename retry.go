package realhttp

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryStrategyKind is the closed set of retry strategies a validator may
// choose between.
type RetryStrategyKind int

const (
	RetryKindImmediate RetryStrategyKind = iota
	RetryKindDelayed
	RetryKindExponential
	RetryKindFibonacci
	RetryKindAfterAltRequest
	RetryKindAfterTask
)

func (k RetryStrategyKind) String() string {
	switch k {
	case RetryKindImmediate:
		return "immediate"
	case RetryKindDelayed:
		return "delayed"
	case RetryKindExponential:
		return "exponential"
	case RetryKindFibonacci:
		return "fibonacci"
	case RetryKindAfterAltRequest:
		return "after_alt_request"
	case RetryKindAfterTask:
		return "after_task"
	default:
		return "unknown"
	}
}

// RetryStrategy is a validator's decision about how (and after how long) to
// retry a request. Built via the constructor functions below — Immediate,
// Delayed, Exponential, Fibonacci, After, AfterTask — never by hand, so the
// backoff math stays centralized.
type RetryStrategy struct {
	kind RetryStrategyKind

	// Delayed
	delay time.Duration

	// Exponential / Fibonacci
	base time.Duration

	// After (alt-request)
	altRequest        *Request
	delayBeforeOriginal time.Duration
	onAltResponse      func(*Response)

	// AfterTask
	asyncTask  func(ctx context.Context, original *Request) error
	onTaskError func(error)
}

// RetryImmediate re-fetches at once.
func RetryImmediate() RetryStrategy { return RetryStrategy{kind: RetryKindImmediate} }

// RetryDelayed sleeps for d then re-fetches.
func RetryDelayed(d time.Duration) RetryStrategy {
	return RetryStrategy{kind: RetryKindDelayed, delay: d}
}

// RetryExponential sleeps for an exponential backoff (base * 2^attempt,
// computed via github.com/sethvargo/go-retry) then re-fetches. Backoff is
// evaluated from Request.currentRetry.
func RetryExponential(base time.Duration) RetryStrategy {
	return RetryStrategy{kind: RetryKindExponential, base: base}
}

// RetryFibonacci sleeps for a Fibonacci-sequence backoff (via
// github.com/sethvargo/go-retry) then re-fetches.
func RetryFibonacci(base time.Duration) RetryStrategy {
	return RetryStrategy{kind: RetryKindFibonacci, base: base}
}

// RetryAfter marks altRequest as an alt-request, executes it, invokes
// onAltResponse with its Response (e.g. to store a refreshed token on the
// Client), sleeps delayBeforeOriginal, then re-fetches the original.
func RetryAfter(altRequest *Request, delayBeforeOriginal time.Duration, onAltResponse func(*Response)) RetryStrategy {
	altRequest.isAltRequest = true

	return RetryStrategy{
		kind:                RetryKindAfterAltRequest,
		altRequest:          altRequest,
		delayBeforeOriginal: delayBeforeOriginal,
		onAltResponse:       onAltResponse,
	}
}

// RetryAfterTask executes asyncTask (which may mutate the original request,
// e.g. inject a new auth header), swallowing its error (optionally
// reporting it via onTaskError), sleeps delay, then re-fetches.
func RetryAfterTask(delay time.Duration, asyncTask func(ctx context.Context, original *Request) error, onTaskError func(error)) RetryStrategy {
	return RetryStrategy{kind: RetryKindAfterTask, delay: delay, asyncTask: asyncTask, onTaskError: onTaskError}
}

// backoffDuration computes the sleep duration for strategy at the given
// attempt number (Request.currentRetry before incrementing), delegating the
// exponential/fibonacci math to github.com/sethvargo/go-retry rather than
// hand-rolling it.
func backoffDuration(strategy RetryStrategy, attempt int) (time.Duration, error) {
	switch strategy.kind {
	case RetryKindImmediate:
		return 0, nil

	case RetryKindDelayed:
		return strategy.delay, nil

	case RetryKindExponential:
		b, err := retry.NewExponential(strategy.base)
		if err != nil {
			return 0, err
		}

		return nthBackoff(b, attempt), nil

	case RetryKindFibonacci:
		b, err := retry.NewFibonacci(strategy.base)
		if err != nil {
			return 0, err
		}

		return nthBackoff(b, attempt), nil

	default:
		return 0, nil
	}
}

// nthBackoff advances a freshly constructed retry.Backoff attempt+1 times
// and returns the final duration, since retry.Backoff.Next() is stateful
// and advances one step per call.
func nthBackoff(b retry.Backoff, attempt int) time.Duration {
	var d time.Duration

	for i := 0; i <= attempt; i++ {
		next, stop := b.Next()
		if stop {
			break
		}

		d = next
	}

	return d
}

// sleepCtx waits for d or ctx cancellation, returning ctx.Err() on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
