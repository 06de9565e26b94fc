// Package autoscale runs actions while a deployment is temporarily scaled down.
package autoscale

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiegroup/kie-cloud-tests/pkg/deployment"
)

// WithScaledToZero scales d to zero replicas, waits for its pods to go away and runs action.
// The original replica count is restored afterwards, also when action fails or panics.
// Errors of the action and of the restore are joined.
func WithScaledToZero(ctx context.Context, d deployment.Deployment, action func(ctx context.Context) error) error {
	return WithScaledTo(ctx, d, 0, action)
}

// WithScaledTo is WithScaledToZero for an arbitrary temporary replica count.
func WithScaledTo(ctx context.Context, d deployment.Deployment, replicas int, action func(ctx context.Context) error) (err error) {
	original, err := d.Replicas(ctx)
	if err != nil {
		return fmt.Errorf("failed to read replicas of %s: %v", d.Name(), err)
	}

	defer func() {
		restoreErr := scale(context.WithoutCancel(ctx), d, original)
		if r := recover(); r != nil {
			if restoreErr != nil {
				panic(fmt.Sprintf("%v (restoring %s also failed: %v)", r, d.Name(), restoreErr))
			}
			panic(r)
		}
		if restoreErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to restore %s to %d replicas: %w", d.Name(), original, restoreErr))
		}
	}()

	if err := scale(ctx, d, replicas); err != nil {
		return err
	}
	return action(ctx)
}

func scale(ctx context.Context, d deployment.Deployment, replicas int) error {
	if err := d.Scale(ctx, replicas); err != nil {
		return err
	}
	return d.WaitForScale(ctx)
}
