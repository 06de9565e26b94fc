// Package wait provides the bounded polling primitives every readiness check in the harness is built on.
//
// Conditions are always evaluated on the calling goroutine. A cancelled context is
// reported as failure.ErrInterrupted and never silently resumed.
package wait

import (
	"context"
	"time"

	"github.com/pkg/errors"
	kwait "k8s.io/apimachinery/pkg/util/wait"

	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
)

const (
	// DefaultInterval is the poll cadence used when callers have no better value.
	DefaultInterval = 5 * time.Second
	// DefaultTimeout bounds waits when callers have no better value.
	DefaultTimeout = 3 * time.Minute
)

// Condition reports whether the awaited state was reached. A non-nil error aborts the wait.
type Condition func(ctx context.Context) (bool, error)

// Sleep blocks for d or until ctx is done, in which case an ErrInterrupted error is returned.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return interrupted(ctx)
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return interrupted(ctx)
	case <-t.C:
		return nil
	}
}

// Poll evaluates cond every interval until it returns true or timeout elapses. A timeout is
// not an error: Poll returns false and a nil error. A timeout of zero checks exactly once.
func Poll(ctx context.Context, timeout, interval time.Duration, cond Condition) (bool, error) {
	if interval <= 0 {
		return false, errors.Errorf("poll interval must be positive, got %s", interval)
	}
	if timeout < 0 {
		timeout = 0
	}
	if err := interrupted(ctx); err != nil {
		return false, err
	}

	// cond gets the caller's context; the poll deadline must not leak into API calls it makes.
	err := kwait.PollUntilContextTimeout(ctx, interval, timeout, true, func(context.Context) (bool, error) {
		return cond(ctx)
	})
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, interrupted(ctx)
	case kwait.Interrupted(err):
		return false, nil
	default:
		return false, err
	}
}

// Until is Poll for callers that must fail loudly: a timeout is reported as a
// *failure.DeploymentTimeoutError.
func Until(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	ok, err := Poll(ctx, timeout, interval, cond)
	if err != nil {
		return err
	}
	if !ok {
		return &failure.DeploymentTimeoutError{Timeout: timeout}
	}
	return nil
}

// For polls fn until it reports a usable value and returns that value.
func For[T any](ctx context.Context, timeout, interval time.Duration, fn func(ctx context.Context) (T, bool, error)) (T, error) {
	var value T
	err := Until(ctx, timeout, interval, func(ctx context.Context) (bool, error) {
		v, ok, err := fn(ctx)
		if err != nil || !ok {
			return false, err
		}
		value = v
		return true, nil
	})
	return value, err
}

// Ignoring wraps cond so that its errors count as "not yet", for conditions that hit
// transiently failing endpoints.
func Ignoring(cond Condition) Condition {
	return func(ctx context.Context) (bool, error) {
		ok, err := cond(ctx)
		if err != nil {
			return false, nil
		}
		return ok, nil
	}
}

func interrupted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(failure.ErrInterrupted, err.Error())
	}
	return nil
}
