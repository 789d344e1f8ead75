package device

import (
	"context"
	"sync"

	"github.com/uipilot/uipilot/api/schemas"
	"github.com/uipilot/uipilot/internal/hierarchy"
)

// fakeDevice is a scriptable Device for package tests. Zero value works;
// unset hooks succeed and return empty results.
type fakeDevice struct {
	mu sync.Mutex

	screenshotFn func(ctx context.Context) ([]byte, error)
	hierarchyFn  func(ctx context.Context) (*hierarchy.Snapshot, error)
	pressKeyFn   func(ctx context.Context, dir Direction) error
	executeFn    func(ctx context.Context, action schemas.Action, elements *hierarchy.ElementList) error

	screenshotCalls int
	pressedKeys     []Direction
	closed          bool
}

func (f *fakeDevice) Screenshot(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	f.screenshotCalls++
	f.mu.Unlock()
	if f.screenshotFn != nil {
		return f.screenshotFn(ctx)
	}
	return []byte("shot"), nil
}

func (f *fakeDevice) CaptureHierarchy(ctx context.Context) (*hierarchy.Snapshot, error) {
	if f.hierarchyFn != nil {
		return f.hierarchyFn(ctx)
	}
	return &hierarchy.Snapshot{Raw: &hierarchy.Node{Attrs: map[string]string{}}}, nil
}

func (f *fakeDevice) FocusedHierarchy(ctx context.Context) (*hierarchy.Snapshot, error) {
	return f.CaptureHierarchy(ctx)
}

func (f *fakeDevice) ExecuteAction(ctx context.Context, action schemas.Action, elements *hierarchy.ElementList) error {
	if f.executeFn != nil {
		return f.executeFn(ctx, action, elements)
	}
	return nil
}

func (f *fakeDevice) PressKey(ctx context.Context, dir Direction) error {
	f.mu.Lock()
	f.pressedKeys = append(f.pressedKeys, dir)
	f.mu.Unlock()
	if f.pressKeyFn != nil {
		return f.pressKeyFn(ctx, dir)
	}
	return nil
}

func (f *fakeDevice) LaunchApp(context.Context, string) error    { return nil }
func (f *fakeDevice) ClearAppData(context.Context, string) error { return nil }
func (f *fakeDevice) ReplayScript(context.Context, string) error { return nil }
func (f *fakeDevice) WaitForSettle(context.Context) error        { return nil }

func (f *fakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeDevice) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
