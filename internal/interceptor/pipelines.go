// File: internal/interceptor/pipelines.go
package interceptor

import (
	"github.com/uipilot/uipilot/api/schemas"
)

// The engine has five independent intercept points. Each gets its own
// strongly-typed request/response pair so interceptors cannot be registered
// against the wrong point.

// InitRequest carries the declarative initialization commands of one task.
type InitRequest struct {
	Task     schemas.AgentTask
	Commands []schemas.InitCommand
}

// InitResult is the (empty) outcome of the initialization point.
type InitResult struct{}

// ActionRequest is the execution of one decided action against the device.
type ActionRequest struct {
	Action schemas.Action
}

// ActionResult is the outcome of one executed action.
type ActionResult struct {
	// Output carries tool-call result text when the action invoked a tool.
	Output string
}

// ExecutionRequest wraps one whole task execution.
type ExecutionRequest struct {
	Task schemas.AgentTask
}

// Pipeline type aliases, one per intercept point.
type (
	InitHandler     = Handler[InitRequest, InitResult]
	InitInterceptor = Interceptor[InitRequest, InitResult]

	DecisionHandler     = Handler[schemas.DecisionRequest, *schemas.DecisionResult]
	DecisionInterceptor = Interceptor[schemas.DecisionRequest, *schemas.DecisionResult]

	AssertionHandler     = Handler[schemas.AssertionRequest, *schemas.AssertionResult]
	AssertionInterceptor = Interceptor[schemas.AssertionRequest, *schemas.AssertionResult]

	ActionHandler     = Handler[ActionRequest, ActionResult]
	ActionInterceptor = Interceptor[ActionRequest, ActionResult]

	ExecutionHandler     = Handler[ExecutionRequest, schemas.ExecutionResult]
	ExecutionInterceptor = Interceptor[ExecutionRequest, schemas.ExecutionResult]
)

// Registry is the full interceptor set of one agent configuration. The
// pipelines are built once per task from these lists.
type Registry struct {
	Initialization  []InitInterceptor
	Decision        []DecisionInterceptor
	ImageAssertion  []AssertionInterceptor
	ActionExecution []ActionInterceptor
	Execution       []ExecutionInterceptor
}
