// File: internal/device/webdevice.go
package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/uipilot/uipilot/api/schemas"
	"github.com/uipilot/uipilot/internal/hierarchy"
)

// WebOptions configures the browser adapter.
type WebOptions struct {
	Headless       bool
	Width          int
	Height         int
	SettleDuration time.Duration
	UserAgent      string
}

func (o *WebOptions) applyDefaults() {
	if o.Width == 0 {
		o.Width = 1280
	}
	if o.Height == 0 {
		o.Height = 800
	}
	if o.SettleDuration == 0 {
		o.SettleDuration = 500 * time.Millisecond
	}
}

// WebDevice drives a headless Chrome tab through chromedp and presents it as
// a Device. The UI tree is the page DOM parsed into the shared hierarchy
// model; DOM nodes carry no layout bounds, so the compaction bounds filter is
// bypassed for web trees.
type WebDevice struct {
	browserCtx  context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
	settle      time.Duration
	viewport    hierarchy.Rect
	closed      atomic.Bool
}

// NewWebDevice launches a browser tab.
func NewWebDevice(parent context.Context, opts WebOptions, logger *zap.Logger) (*WebDevice, error) {
	opts.applyDefaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Force the browser process to start now so a broken Chrome install
	// fails session creation instead of the first screenshot.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	return &WebDevice{
		browserCtx:  browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      logger.Named("webdevice"),
		settle:      opts.SettleDuration,
		viewport:    hierarchy.Rect{Right: opts.Width, Bottom: opts.Height},
	}, nil
}

// run executes chromedp actions against the tab, honoring the caller's
// deadline on top of the long-lived browser context.
func (w *WebDevice) run(ctx context.Context, actions ...chromedp.Action) error {
	if w.closed.Load() {
		return fmt.Errorf("web device is closed")
	}
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(w.browserCtx, actions...) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (w *WebDevice) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := w.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

func (w *WebDevice) CaptureHierarchy(ctx context.Context) (*hierarchy.Snapshot, error) {
	var html string
	if err := w.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("reading page DOM: %w", err)
	}
	root, err := hierarchy.ParseHTML([]byte(html))
	if err != nil {
		return nil, fmt.Errorf("parsing page DOM: %w", err)
	}
	return &hierarchy.Snapshot{Raw: root, DeviceBounds: w.viewport}, nil
}

// FocusedHierarchy returns the full page tree; the web has no D-pad focus
// subtree distinct from the document.
func (w *WebDevice) FocusedHierarchy(ctx context.Context) (*hierarchy.Snapshot, error) {
	return w.CaptureHierarchy(ctx)
}

func (w *WebDevice) ExecuteAction(ctx context.Context, action schemas.Action, elements *hierarchy.ElementList) error {
	switch action.Type {
	case schemas.ActionTap:
		sel, err := w.selectorFor(action.ElementIndex, elements)
		if err != nil {
			return err
		}
		return w.run(ctx, chromedp.Click(sel, chromedp.ByQuery))

	case schemas.ActionInputText:
		sel, err := w.selectorFor(action.ElementIndex, elements)
		if err != nil {
			return err
		}
		return w.run(ctx,
			chromedp.Click(sel, chromedp.ByQuery),
			chromedp.SendKeys(sel, action.Value, chromedp.ByQuery),
		)

	case schemas.ActionScroll:
		return w.run(ctx, chromedp.Evaluate(scrollScript(action.Direction), nil))

	case schemas.ActionBack:
		return w.run(ctx, chromedp.NavigateBack())

	case schemas.ActionOpenLink:
		return w.run(ctx, chromedp.Navigate(action.Value))

	case schemas.ActionWait:
		return w.run(ctx, chromedp.Sleep(waitDuration(action.Value)))

	case schemas.ActionKeyPress, schemas.ActionMoveFocus:
		return fmt.Errorf("%w: %s", ErrUnsupportedAction, action.Type)

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedAction, action.Type)
	}
}

// selectorFor builds a CSS selector for an indexed element. The id attribute
// survives the DOM-to-hierarchy mapping as resource-id; elements without one
// fall back to an nth-of-type path which is only stable within one capture,
// which is exactly the lifetime of an element index.
func (w *WebDevice) selectorFor(index int, elements *hierarchy.ElementList) (string, error) {
	el, ok := elements.At(index)
	if !ok {
		return "", fmt.Errorf("element index %d out of range", index)
	}
	if id := el.Node.Attrs["resource-id"]; id != "" {
		return "#" + cssEscape(id), nil
	}
	tag := el.Node.Attrs["class"]
	if tag == "" {
		return "", fmt.Errorf("element %d has no id or tag to target", index)
	}
	if name := el.Node.Attrs["name"]; name != "" {
		return fmt.Sprintf(`%s[name=%q]`, tag, name), nil
	}
	if href := el.Node.Attrs["href"]; href != "" {
		return fmt.Sprintf(`%s[href=%q]`, tag, href), nil
	}
	return tag, nil
}

func cssEscape(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteString(`\` + string(r))
		}
	}
	return b.String()
}

func scrollScript(direction string) string {
	switch strings.ToUpper(direction) {
	case "UP":
		return "window.scrollBy(0, -600)"
	case "LEFT":
		return "window.scrollBy(-600, 0)"
	case "RIGHT":
		return "window.scrollBy(600, 0)"
	default:
		return "window.scrollBy(0, 600)"
	}
}

// waitDuration parses a WAIT action value as seconds, defaulting to one.
func waitDuration(value string) time.Duration {
	if secs, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return time.Second
}

func (w *WebDevice) PressKey(ctx context.Context, dir Direction) error {
	return fmt.Errorf("%w: D-pad %s", ErrUnsupportedAction, dir)
}

func (w *WebDevice) LaunchApp(ctx context.Context, appID string) error {
	// Web "apps" launch by navigation; scenario init commands use OPEN_LINK.
	return fmt.Errorf("%w: LAUNCH_APP", ErrUnsupportedAction)
}

func (w *WebDevice) ClearAppData(ctx context.Context, appID string) error {
	return w.run(ctx, chromedp.Evaluate("localStorage.clear(); sessionStorage.clear()", nil))
}

func (w *WebDevice) ReplayScript(ctx context.Context, name string) error {
	return fmt.Errorf("%w: REPLAY_SCRIPT", ErrUnsupportedAction)
}

func (w *WebDevice) WaitForSettle(ctx context.Context) error {
	return w.run(ctx, chromedp.Sleep(w.settle))
}

func (w *WebDevice) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	w.cancel()
	w.allocCancel()
	return nil
}

func (w *WebDevice) IsClosed() bool { return w.closed.Load() }
