// File: internal/interceptor/exectype.go
package interceptor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/uipilot/uipilot/api/schemas"
)

// ExecutionTypeInterceptor answers every decision with GOAL_ACHIEVED without
// consulting the model. It is registered for "execution" scenarios, whose
// work is done entirely by their declarative initialization commands.
type ExecutionTypeInterceptor struct{}

// NewExecutionTypeInterceptor creates the short-circuiting decision
// interceptor for execution-type scenarios.
func NewExecutionTypeInterceptor() *ExecutionTypeInterceptor {
	return &ExecutionTypeInterceptor{}
}

func (*ExecutionTypeInterceptor) Intercept(_ context.Context, req schemas.DecisionRequest, _ DecisionHandler) (*schemas.DecisionResult, error) {
	action := schemas.Action{
		Type:      schemas.ActionGoalAchieved,
		Rationale: "Execution scenario: initialization commands completed.",
		Timestamp: time.Now(),
	}
	return &schemas.DecisionResult{
		Actions: []schemas.Action{action},
		Step: schemas.Step{
			ID:             uuid.NewString(),
			Action:         &action,
			ScreenshotPath: req.ScreenshotPath,
			Timestamp:      time.Now(),
		},
	}, nil
}
