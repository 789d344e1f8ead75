// File: internal/scenario/sweep.go
package scenario

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sweep runs every leaf scenario. Leaves cover their whole ancestor chains,
// so running the leaves runs the project. Each chain opens its own session,
// so parallelism > 1 runs leaf chains on independent devices.
func (e *Executor) Sweep(ctx context.Context, parallelism int) error {
	if parallelism < 1 {
		parallelism = 1
	}
	leaves := e.project.Leaves()
	if len(leaves) == 0 {
		return errors.New("project has no leaf scenarios to run")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, leaf := range leaves {
		id := leaf.ID
		g.Go(func() error {
			if err := e.RunScenario(ctx, id); err != nil {
				e.logger.Error("Leaf scenario failed", zap.String("scenario", id), zap.Error(err))
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
