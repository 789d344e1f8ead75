// File: internal/agent/step.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uipilot/uipilot/api/schemas"
	"github.com/uipilot/uipilot/internal/cache"
	"github.com/uipilot/uipilot/internal/device"
	"github.com/uipilot/uipilot/internal/hierarchy"
	"github.com/uipilot/uipilot/internal/interceptor"
	"github.com/uipilot/uipilot/internal/mcp"
)

type stepOutcome int

const (
	stepContinue stepOutcome = iota
	stepGoalAchieved
	stepFailed
)

const (
	screenshotRetries = 3
	screenshotPause   = time.Second
	hierarchyRetries  = 3
)

// runStep executes one perceive-decide-(assert)-act cycle.
func (a *Agent) runStep(ctx context.Context) (stepOutcome, error) {
	a.stepIndex++

	shot, err := a.captureScreenshot(ctx)
	if err != nil {
		return stepFailed, fmt.Errorf("screenshot unavailable after %d attempts: %w", screenshotRetries, err)
	}
	shot, err = device.EnsureFormat(shot, a.cfg.ImageFormat)
	if err != nil {
		return stepFailed, err
	}

	snap, err := a.captureHierarchy(ctx)
	if err != nil {
		return stepFailed, err
	}
	opt := hierarchy.Optimize(snap)
	a.currentElements = opt.Elements

	focusedText := ""
	if a.cfg.Task.FormFactor == schemas.FormFactorTV {
		if focusedSnap, focusErr := a.cfg.Device.FocusedHierarchy(ctx); focusErr == nil {
			focusedText = hierarchy.Optimize(focusedSnap).Text
		} else {
			a.logger.Debug("Focused hierarchy unavailable", zap.Error(focusErr))
		}
	}

	contextText := a.holder.ContextText()
	cacheKey := cache.Key(a.cfg.BuildVersion, opt.Text, contextText)

	screenshotPath, err := a.saveScreenshot(shot)
	if err != nil {
		return stepFailed, err
	}

	if a.detectStuckScreen(shot) {
		a.logger.Info("Stuck screen detected, feeding back without consulting the model")
		a.holder.Append(schemas.Step{
			ID:             uuid.NewString(),
			Feedback:       "The last action had no visible effect: the screen is unchanged. Try a different action.",
			ScreenshotPath: screenshotPath,
			Timestamp:      time.Now(),
		})
		a.lastScreenshot = shot
		return stepContinue, nil
	}
	a.lastScreenshot = shot

	tools, err := a.enumerateTools(ctx)
	if err != nil {
		return stepFailed, err
	}

	result, err := a.decide(ctx, schemas.DecisionRequest{
		Goal:           a.cfg.Task.Goal,
		StepNumber:     a.holder.CurrentStepNumber(),
		MaxStep:        a.cfg.Task.MaxStepCount,
		FormFactor:     a.cfg.Task.FormFactor,
		ContextText:    contextText,
		TreeText:       opt.Text,
		FocusedText:    focusedText,
		ScreenshotPath: screenshotPath,
		ImageData:      shot,
		AllowedActions: a.cfg.Task.ActionTypes(),
		Tools:          tools,
		CacheKey:       cacheKey,
		CacheDisabled:  a.cfg.Task.CacheDisabled,
	})
	if err != nil {
		return stepFailed, err
	}

	if goalAchieved(result.Actions) {
		return a.gateGoalClaim(ctx, shot, screenshotPath, result.Step)
	}

	a.holder.Append(result.Step)

	for _, action := range result.Actions {
		if action.IsFailed() {
			return stepFailed, nil
		}
		out, actErr := a.act(ctx, interceptor.ActionRequest{Action: action})
		if actErr != nil {
			if ctx.Err() != nil {
				return stepFailed, ctx.Err()
			}
			a.logger.Warn("Action execution failed, recording feedback",
				zap.String("action", string(action.Type)), zap.Error(actErr))
			a.holder.Append(schemas.Step{
				ID:        uuid.NewString(),
				Feedback:  fmt.Sprintf("Executing %s failed: %v. Choose a different approach.", action.Type, actErr),
				Timestamp: time.Now(),
			})
			continue
		}
		if out.Output != "" {
			a.holder.Append(schemas.Step{
				ID:        uuid.NewString(),
				Feedback:  fmt.Sprintf("Tool %s returned: %s", action.Value, out.Output),
				Timestamp: time.Now(),
			})
		}
	}

	return stepContinue, nil
}

// gateGoalClaim accepts a GOAL_ACHIEVED decision only if every configured
// image assertion passes; otherwise it converts each failure into feedback
// and keeps the loop going.
func (a *Agent) gateGoalClaim(ctx context.Context, shot []byte, screenshotPath string, step schemas.Step) (stepOutcome, error) {
	if len(a.cfg.Task.Assertions) == 0 {
		a.holder.Append(step)
		return stepGoalAchieved, nil
	}

	result, err := a.assert(ctx, schemas.AssertionRequest{
		ScreenshotPath: screenshotPath,
		ImageData:      shot,
		Assertions:     a.cfg.Task.Assertions,
	})
	if err != nil {
		return stepFailed, err
	}

	var failed []schemas.AssertionVerdict
	for _, v := range result.Verdicts {
		if !v.Passed {
			failed = append(failed, v)
		}
	}
	if len(failed) == 0 {
		a.holder.Append(step)
		return stepGoalAchieved, nil
	}

	a.logger.Info("Goal claim rejected by image assertions", zap.Int("failed", len(failed)))
	for _, v := range failed {
		a.holder.Append(schemas.Step{
			ID: uuid.NewString(),
			Feedback: fmt.Sprintf(
				"You claimed the goal is achieved, but the screen does not satisfy %q (fulfilment %d/%d): %s",
				v.Assertion.Prompt, v.Fulfilment, v.Assertion.Threshold(), v.Explanation),
			ScreenshotPath: screenshotPath,
			Timestamp:      time.Now(),
		})
	}
	return stepContinue, nil
}

// actBase performs one action against the device or tool executor.
func (a *Agent) actBase(ctx context.Context, req interceptor.ActionRequest) (interceptor.ActionResult, error) {
	action := req.Action

	switch action.Type {
	case schemas.ActionExecuteTool:
		if a.cfg.Tools == nil {
			return interceptor.ActionResult{}, fmt.Errorf("no tool executor configured for EXECUTE_TOOL")
		}
		out, err := a.cfg.Tools.Invoke(ctx, action.Value, nil)
		if err != nil {
			return interceptor.ActionResult{}, err
		}
		return interceptor.ActionResult{Output: out}, nil

	case schemas.ActionMoveFocus:
		el, ok := a.currentElements.At(action.ElementIndex)
		if !ok {
			return interceptor.ActionResult{}, fmt.Errorf("element index %d out of range", action.ElementIndex)
		}
		return interceptor.ActionResult{}, a.navigator.MoveTo(ctx, el.ID)

	case schemas.ActionKeyPress:
		if dir, ok := dpadDirection(action); ok {
			if err := a.cfg.Device.PressKey(ctx, dir); err != nil {
				return interceptor.ActionResult{}, err
			}
			return interceptor.ActionResult{}, a.cfg.Device.WaitForSettle(ctx)
		}
		fallthrough

	default:
		if err := a.cfg.Device.ExecuteAction(ctx, action, a.currentElements); err != nil {
			return interceptor.ActionResult{}, err
		}
		return interceptor.ActionResult{}, a.cfg.Device.WaitForSettle(ctx)
	}
}

func dpadDirection(action schemas.Action) (device.Direction, bool) {
	key := strings.ToUpper(strings.TrimSpace(action.Direction))
	if key == "" {
		key = strings.ToUpper(strings.TrimSpace(action.Value))
	}
	switch device.Direction(key) {
	case device.DirUp, device.DirDown, device.DirLeft, device.DirRight:
		return device.Direction(key), true
	}
	return "", false
}

// captureScreenshot retries transient capture failures.
func (a *Agent) captureScreenshot(ctx context.Context) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= screenshotRetries; attempt++ {
		shot, err := a.cfg.Device.Screenshot(ctx)
		if err == nil {
			return shot, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Debug("Screenshot capture failed, retrying",
			zap.Int("attempt", attempt), zap.Error(err))
		if attempt < screenshotRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(screenshotPause):
			}
		}
	}
	return nil, lastErr
}

// captureHierarchy retries the transient empty-capture race that happens
// during screen transitions.
func (a *Agent) captureHierarchy(ctx context.Context) (*hierarchy.Snapshot, error) {
	var lastErr error
	for attempt := 1; attempt <= hierarchyRetries; attempt++ {
		snap, err := a.cfg.Device.CaptureHierarchy(ctx)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		if !errors.Is(err, device.ErrNoNodeInBounds) || ctx.Err() != nil {
			return nil, err
		}
		a.logger.Debug("Hierarchy capture raced a transition, retrying", zap.Int("attempt", attempt))
	}
	return nil, lastErr
}

// detectStuckScreen reports whether the new screenshot is pixel-identical to
// the previous step's and the previous step gave the model no feedback.
func (a *Agent) detectStuckScreen(shot []byte) bool {
	last, ok := a.holder.Last()
	if !ok || last.Feedback != "" || len(a.lastScreenshot) == 0 {
		return false
	}
	return device.IdenticalScreenshots(a.lastScreenshot, shot)
}

// enumerateTools lists and filters tools when a tool executor is configured.
func (a *Agent) enumerateTools(ctx context.Context) ([]schemas.ToolDescriptor, error) {
	if a.cfg.Tools == nil {
		return nil, nil
	}
	all, err := a.cfg.Tools.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}
	return mcp.FilterTools(all, a.cfg.ToolDefaults, a.cfg.Task.ToolOverrides), nil
}

// saveScreenshot writes the step's screenshot to the artifact directory and
// returns its path. Without an artifact dir the screenshot stays in memory.
func (a *Agent) saveScreenshot(shot []byte) (string, error) {
	if a.cfg.ArtifactDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(a.cfg.ArtifactDir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifact directory: %w", err)
	}
	name := fmt.Sprintf("%s-step-%03d.%s", a.cfg.Task.ScenarioID, a.stepIndex, a.cfg.ImageFormat)
	path := filepath.Join(a.cfg.ArtifactDir, name)
	if err := os.WriteFile(path, shot, 0o644); err != nil {
		return "", fmt.Errorf("writing screenshot: %w", err)
	}
	return path, nil
}

func goalAchieved(actions []schemas.Action) bool {
	for _, a := range actions {
		if a.IsGoalAchieved() {
			return true
		}
	}
	return false
}
