// File: internal/device/reconnect.go
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/uipilot/uipilot/api/schemas"
	"github.com/uipilot/uipilot/internal/hierarchy"
)

const (
	defaultReconnectAttempts = 6
	maxReconnectDelay        = 60 * time.Second
)

// ReconnectExhaustedError is returned once every reconnection attempt has
// failed. It carries the last underlying connection error.
type ReconnectExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ReconnectExhaustedError) Error() string {
	return fmt.Sprintf("device reconnection exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ReconnectExhaustedError) Unwrap() error { return e.Last }

// Factory opens a fresh device session.
type Factory func(ctx context.Context) (Device, error)

// Reconnector wraps a Device and transparently re-establishes the session
// when an operation fails. Concurrent failures collapse into a single
// reconnection via singleflight; every caller observes the same outcome.
//
// The failed operation is retried once against the new session. Context
// cancellation is never treated as a connection loss.
type Reconnector struct {
	mu      sync.RWMutex
	current Device

	factory Factory
	group   singleflight.Group
	logger  *zap.Logger

	maxAttempts int
	// sleep is swappable so tests can observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewReconnector wraps an already-open session.
func NewReconnector(initial Device, factory Factory, logger *zap.Logger) *Reconnector {
	return &Reconnector{
		current:     initial,
		factory:     factory,
		logger:      logger.Named("reconnect"),
		maxAttempts: defaultReconnectAttempts,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Reconnector) device() Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// recoverable reports whether an operation failure should trigger a
// reconnection attempt. Cancellation and deadline expiry come from the
// caller, not the transport.
func recoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrNoNodeInBounds) || errors.Is(err, ErrUnsupportedAction) {
		return false
	}
	return true
}

// do runs op against the current session, reconnecting and retrying once on
// a recoverable failure.
func (r *Reconnector) do(ctx context.Context, op func(Device) error) error {
	err := op(r.device())
	if !recoverable(err) {
		return err
	}
	r.logger.Warn("Device operation failed, attempting reconnection", zap.Error(err))
	if reconnErr := r.reconnect(ctx); reconnErr != nil {
		return reconnErr
	}
	return op(r.device())
}

// reconnect re-establishes the session. Delay before attempt n (n >= 2) is
// min(2^n, 60) seconds; the first attempt runs immediately.
func (r *Reconnector) reconnect(ctx context.Context) error {
	_, err, _ := r.group.Do("reconnect", func() (any, error) {
		var last error
		for attempt := 1; attempt <= r.maxAttempts; attempt++ {
			if attempt > 1 {
				delay := time.Duration(1<<uint(attempt)) * time.Second
				if delay > maxReconnectDelay {
					delay = maxReconnectDelay
				}
				r.logger.Info("Waiting before reconnection attempt",
					zap.Int("attempt", attempt), zap.Duration("delay", delay))
				if err := r.sleep(ctx, delay); err != nil {
					return nil, err
				}
			}
			fresh, err := r.factory(ctx)
			if err != nil {
				last = err
				r.logger.Warn("Reconnection attempt failed",
					zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			r.swap(fresh)
			r.logger.Info("Device session re-established", zap.Int("attempt", attempt))
			return nil, nil
		}
		return nil, &ReconnectExhaustedError{Attempts: r.maxAttempts, Last: last}
	})
	return err
}

// swap installs the fresh session and closes the stale one best-effort.
func (r *Reconnector) swap(fresh Device) {
	r.mu.Lock()
	stale := r.current
	r.current = fresh
	r.mu.Unlock()

	if stale != nil && !stale.IsClosed() {
		if err := stale.Close(); err != nil {
			r.logger.Debug("Closing stale session failed", zap.Error(err))
		}
	}
}

func (r *Reconnector) Screenshot(ctx context.Context) ([]byte, error) {
	var out []byte
	err := r.do(ctx, func(d Device) error {
		var opErr error
		out, opErr = d.Screenshot(ctx)
		return opErr
	})
	return out, err
}

func (r *Reconnector) CaptureHierarchy(ctx context.Context) (*hierarchy.Snapshot, error) {
	var out *hierarchy.Snapshot
	err := r.do(ctx, func(d Device) error {
		var opErr error
		out, opErr = d.CaptureHierarchy(ctx)
		return opErr
	})
	return out, err
}

func (r *Reconnector) FocusedHierarchy(ctx context.Context) (*hierarchy.Snapshot, error) {
	var out *hierarchy.Snapshot
	err := r.do(ctx, func(d Device) error {
		var opErr error
		out, opErr = d.FocusedHierarchy(ctx)
		return opErr
	})
	return out, err
}

func (r *Reconnector) ExecuteAction(ctx context.Context, action schemas.Action, elements *hierarchy.ElementList) error {
	return r.do(ctx, func(d Device) error {
		return d.ExecuteAction(ctx, action, elements)
	})
}

func (r *Reconnector) PressKey(ctx context.Context, dir Direction) error {
	return r.do(ctx, func(d Device) error { return d.PressKey(ctx, dir) })
}

func (r *Reconnector) LaunchApp(ctx context.Context, appID string) error {
	return r.do(ctx, func(d Device) error { return d.LaunchApp(ctx, appID) })
}

func (r *Reconnector) ClearAppData(ctx context.Context, appID string) error {
	return r.do(ctx, func(d Device) error { return d.ClearAppData(ctx, appID) })
}

func (r *Reconnector) ReplayScript(ctx context.Context, name string) error {
	return r.do(ctx, func(d Device) error { return d.ReplayScript(ctx, name) })
}

func (r *Reconnector) WaitForSettle(ctx context.Context) error {
	return r.do(ctx, func(d Device) error { return d.WaitForSettle(ctx) })
}

func (r *Reconnector) Close() error { return r.device().Close() }

func (r *Reconnector) IsClosed() bool { return r.device().IsClosed() }
