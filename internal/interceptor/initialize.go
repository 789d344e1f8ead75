// File: internal/interceptor/initialize.go
package interceptor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/uipilot/uipilot/api/schemas"
)

// CommandRunner executes one declarative initialization command against the
// device. The agent supplies an implementation backed by its device handle.
type CommandRunner interface {
	RunInitCommand(ctx context.Context, cmd schemas.InitCommand) error
}

// InitCommandInterceptor executes the task's declarative initialization
// commands (back-press, wait, launch app, clear data, open link, replay a
// named script) before handing off to the rest of the initialization chain.
type InitCommandInterceptor struct {
	runner CommandRunner
	logger *zap.Logger
}

// NewInitCommandInterceptor wires a command runner into the initialization
// pipeline.
func NewInitCommandInterceptor(runner CommandRunner, logger *zap.Logger) *InitCommandInterceptor {
	return &InitCommandInterceptor{runner: runner, logger: logger.Named("init_commands")}
}

func (i *InitCommandInterceptor) Intercept(ctx context.Context, req InitRequest, proceed InitHandler) (InitResult, error) {
	for _, cmd := range req.Commands {
		if err := ctx.Err(); err != nil {
			return InitResult{}, err
		}
		i.logger.Debug("Running initialization command", zap.String("kind", string(cmd.Kind)), zap.String("value", cmd.Value))
		if err := i.runner.RunInitCommand(ctx, cmd); err != nil {
			return InitResult{}, fmt.Errorf("initialization command %s failed: %w", cmd.Kind, err)
		}
	}
	return proceed(ctx, req)
}
