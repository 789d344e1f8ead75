// File: internal/device/focus.go
package device

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/uipilot/uipilot/internal/hierarchy"
)

// maxFocusIterations bounds the D-pad walk toward a target element. Focus
// traps and carousel loops otherwise never terminate.
const maxFocusIterations = 15

// FocusNavigator walks D-pad focus toward a target element on devices
// without a pointer. Both the focused element and the target are re-resolved
// from a fresh hierarchy capture on every iteration, because lists recycle
// rows and bounds shift as focus scrolls content.
type FocusNavigator struct {
	device Device
	logger *zap.Logger
	rng    *rand.Rand
}

// NewFocusNavigator creates a navigator. rng breaks diagonal ties; pass a
// seeded source in tests for determinism.
func NewFocusNavigator(d Device, logger *zap.Logger, rng *rand.Rand) *FocusNavigator {
	return &FocusNavigator{device: d, logger: logger.Named("focus"), rng: rng}
}

// MoveTo presses D-pad keys until focus overlaps the target element on both
// axes, or fails after maxFocusIterations presses.
func (f *FocusNavigator) MoveTo(ctx context.Context, target hierarchy.Identifier) error {
	for i := 0; i < maxFocusIterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		snap, err := f.device.CaptureHierarchy(ctx)
		if err != nil {
			return fmt.Errorf("capturing hierarchy during focus navigation: %w", err)
		}
		// Identifiers are minted from the optimized list, so re-resolution
		// must compact the fresh capture the same way. Occurrence indexes
		// diverge between the raw and optimized trees whenever compaction
		// prunes a fingerprint duplicate.
		elements := hierarchy.Optimize(snap).Elements

		targetEl, ok := elements.Find(target)
		if !ok {
			return fmt.Errorf("focus target %s no longer present on screen", target.Fingerprint)
		}
		focusedEl, focusedOK := elements.FindFocused()
		if !focusedOK {
			// Nothing holds focus yet. A single down-press lands focus on
			// the first focusable element on every platform we drive.
			if err := f.press(ctx, DirDown); err != nil {
				return err
			}
			continue
		}

		targetBounds := targetEl.Node.Bounds
		focusedBounds := focusedEl.Node.Bounds

		if targetBounds.OverlapsX(focusedBounds) && targetBounds.OverlapsY(focusedBounds) {
			f.logger.Debug("Focus reached target", zap.Int("presses", i))
			return nil
		}

		dir := f.pickDirection(targetBounds, focusedBounds)
		if err := f.press(ctx, dir); err != nil {
			return err
		}
	}
	return fmt.Errorf("focus did not reach target within %d key presses", maxFocusIterations)
}

func (f *FocusNavigator) press(ctx context.Context, dir Direction) error {
	f.logger.Debug("Pressing D-pad key", zap.String("direction", string(dir)))
	if err := f.device.PressKey(ctx, dir); err != nil {
		return fmt.Errorf("pressing %s: %w", dir, err)
	}
	return f.device.WaitForSettle(ctx)
}

// pickDirection chooses the next key press. When the two rectangles overlap
// on one axis, move along the other; when they overlap on neither, either
// axis makes progress, so pick one of the two diagonal candidates at random
// to avoid ping-ponging against focus traps.
func (f *FocusNavigator) pickDirection(target, focused hierarchy.Rect) Direction {
	vertical := DirDown
	if target.CenterY() < focused.CenterY() {
		vertical = DirUp
	}
	horizontal := DirRight
	if target.CenterX() < focused.CenterX() {
		horizontal = DirLeft
	}

	switch {
	case target.OverlapsX(focused):
		return vertical
	case target.OverlapsY(focused):
		return horizontal
	default:
		if f.rng.Intn(2) == 0 {
			return vertical
		}
		return horizontal
	}
}
