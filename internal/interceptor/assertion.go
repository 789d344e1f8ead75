// File: internal/interceptor/assertion.go
package interceptor

import (
	"context"
	"sync"

	"github.com/uipilot/uipilot/api/schemas"
)

// AssertionHistoryInterceptor injects the verdicts accumulated earlier in the
// run into every assertion request, so the model judges the current
// screenshot with the history of what it already accepted or rejected.
type AssertionHistoryInterceptor struct {
	mu      sync.Mutex
	history []schemas.AssertionVerdict
}

// NewAssertionHistoryInterceptor creates an empty history accumulator. One
// instance lives per agent run; it is not shared across retries.
func NewAssertionHistoryInterceptor() *AssertionHistoryInterceptor {
	return &AssertionHistoryInterceptor{}
}

func (i *AssertionHistoryInterceptor) Intercept(ctx context.Context, req schemas.AssertionRequest, proceed AssertionHandler) (*schemas.AssertionResult, error) {
	i.mu.Lock()
	req.History = append(append([]schemas.AssertionVerdict(nil), req.History...), i.history...)
	i.mu.Unlock()

	result, err := proceed(ctx, req)
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	i.history = append(i.history, result.Verdicts...)
	i.mu.Unlock()
	return result, nil
}
