// File: internal/device/device.go

// Package device defines the automation capability the engine drives and the
// reliability wrappers around it: reconnection with backoff and the D-pad
// focus-navigation heuristic for non-pointer devices.
package device

import (
	"context"
	"errors"

	"github.com/uipilot/uipilot/api/schemas"
	"github.com/uipilot/uipilot/internal/hierarchy"
)

// Direction is one D-pad key.
type Direction string

const (
	DirUp    Direction = "UP"
	DirDown  Direction = "DOWN"
	DirLeft  Direction = "LEFT"
	DirRight Direction = "RIGHT"
)

// ErrNoNodeInBounds is returned by hierarchy captures that raced a screen
// transition and found nothing inside the device bounds. Callers retry.
var ErrNoNodeInBounds = errors.New("no node within device bounds")

// ErrUnsupportedAction marks actions a form factor cannot perform.
var ErrUnsupportedAction = errors.New("action not supported on this device")

// Device is the automation boundary. Implementations (ADB, TV remotes, the
// chromedp web adapter) live behind this interface; the engine never touches
// a protocol directly.
type Device interface {
	// Screenshot captures the current screen as encoded image bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// CaptureHierarchy captures the full raw UI tree and device bounds.
	CaptureHierarchy(ctx context.Context) (*hierarchy.Snapshot, error)

	// FocusedHierarchy captures the subtree under the focused node (TV).
	FocusedHierarchy(ctx context.Context) (*hierarchy.Snapshot, error)

	// ExecuteAction performs one decided action, resolving element targets
	// against the supplied element list.
	ExecuteAction(ctx context.Context, action schemas.Action, elements *hierarchy.ElementList) error

	// PressKey issues one D-pad key press.
	PressKey(ctx context.Context, dir Direction) error

	// LaunchApp, ClearAppData and ReplayScript back the declarative
	// initialization commands.
	LaunchApp(ctx context.Context, appID string) error
	ClearAppData(ctx context.Context, appID string) error
	ReplayScript(ctx context.Context, name string) error

	// WaitForSettle blocks until the UI is quiescent after an action.
	WaitForSettle(ctx context.Context) error

	Close() error
	IsClosed() bool
}
