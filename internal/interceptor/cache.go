// File: internal/interceptor/cache.go
package interceptor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/uipilot/uipilot/api/schemas"
)

// DecisionCacheInterceptor serves decisions from the content-addressed cache
// and records fresh AI decisions on miss. On a hit it short-circuits the
// pipeline: the model is never called and nothing is re-written to the cache.
type DecisionCacheInterceptor struct {
	cache  schemas.DecisionCache
	logger *zap.Logger
}

// NewDecisionCacheInterceptor wires the shared cache into a decision pipeline.
func NewDecisionCacheInterceptor(cache schemas.DecisionCache, logger *zap.Logger) *DecisionCacheInterceptor {
	return &DecisionCacheInterceptor{cache: cache, logger: logger.Named("cache_interceptor")}
}

func (i *DecisionCacheInterceptor) Intercept(ctx context.Context, req schemas.DecisionRequest, proceed DecisionHandler) (*schemas.DecisionResult, error) {
	if req.CacheKey != "" && !req.CacheDisabled {
		if entry, ok := i.cache.Get(ctx, req.CacheKey); ok {
			i.logger.Debug("Decision cache hit", zap.String("key", req.CacheKey))
			return replayEntry(entry, req), nil
		}
	}

	result, err := proceed(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.CacheKey != "" {
		entry := &schemas.DecisionEntry{Actions: result.Actions, Step: result.Step}
		if err := i.cache.Set(ctx, req.CacheKey, entry); err != nil {
			// A failed write degrades performance, not correctness.
			i.logger.Warn("Failed to store decision in cache", zap.String("key", req.CacheKey), zap.Error(err))
		}
	}
	return result, nil
}

// replayEntry rebuilds a decision result from a cached entry. The screenshot
// path and timestamp belong to the current step, so they are refreshed; the
// decision itself is replayed verbatim.
func replayEntry(entry *schemas.DecisionEntry, req schemas.DecisionRequest) *schemas.DecisionResult {
	step := entry.Step
	step.ScreenshotPath = req.ScreenshotPath
	step.Timestamp = time.Now()
	step.CacheKey = req.CacheKey
	step.CacheHit = true

	actions := make([]schemas.Action, len(entry.Actions))
	copy(actions, entry.Actions)
	return &schemas.DecisionResult{Actions: actions, Step: step}
}
