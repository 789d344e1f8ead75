// File: internal/agent/commands.go
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/uipilot/uipilot/api/schemas"
	"github.com/uipilot/uipilot/internal/device"
	"github.com/uipilot/uipilot/internal/interceptor"
)

// deviceCommandRunner backs the initialization-command interceptor with the
// agent's device handle.
type deviceCommandRunner struct {
	device device.Device
}

// NewCommandRunner returns the device-backed runner for declarative
// initialization commands, for registration with an InitCommandInterceptor.
func NewCommandRunner(d device.Device) interceptor.CommandRunner {
	return &deviceCommandRunner{device: d}
}

func (r *deviceCommandRunner) RunInitCommand(ctx context.Context, cmd schemas.InitCommand) error {
	switch cmd.Kind {
	case schemas.InitBack:
		times := cmd.Times
		if times <= 0 {
			times = 1
		}
		for i := 0; i < times; i++ {
			if err := r.device.ExecuteAction(ctx, schemas.Action{Type: schemas.ActionBack}, nil); err != nil {
				return err
			}
			if err := r.device.WaitForSettle(ctx); err != nil {
				return err
			}
		}
		return nil

	case schemas.InitWait:
		d := cmd.Duration
		if d <= 0 {
			d = time.Second
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}

	case schemas.InitLaunchApp:
		return r.device.LaunchApp(ctx, cmd.Value)

	case schemas.InitClearAppData:
		return r.device.ClearAppData(ctx, cmd.Value)

	case schemas.InitOpenLink:
		return r.device.ExecuteAction(ctx, schemas.Action{Type: schemas.ActionOpenLink, Value: cmd.Value}, nil)

	case schemas.InitReplayScript:
		return r.device.ReplayScript(ctx, cmd.Value)

	default:
		return fmt.Errorf("unknown initialization command kind %q", cmd.Kind)
	}
}
