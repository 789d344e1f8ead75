// File: api/schemas/tasks.go
package schemas

// ScenarioType distinguishes AI-driven scenarios from fixed "execution"
// scenarios that replay declarative commands and always report success.
type ScenarioType string

const (
	ScenarioTypeAi        ScenarioType = "Ai"
	ScenarioTypeExecution ScenarioType = "Execution"
)

// AgentTask is one resolved, executable unit of a scenario: either the
// scenario itself or one of its ancestors in the dependency chain. Built once
// per execution attempt and immutable afterwards.
type AgentTask struct {
	ScenarioID string `json:"scenarioId" yaml:"scenarioId"`
	Goal       string `json:"goal" yaml:"goal"`

	Type         ScenarioType `json:"type" yaml:"type"`
	MaxStepCount int          `json:"maxStepCount" yaml:"maxStepCount"`
	FormFactor   FormFactor   `json:"formFactor" yaml:"formFactor"`

	// AdditionalActions extends the default action vocabulary for this task
	// (union of project-level and scenario-level lists, de-duplicated).
	AdditionalActions []ActionType `json:"additionalActions,omitempty" yaml:"additionalActions,omitempty"`

	InitCommands []InitCommand    `json:"initCommands,omitempty" yaml:"initCommands,omitempty"`
	Assertions   []ImageAssertion `json:"assertions,omitempty" yaml:"assertions,omitempty"`

	// CacheDisabled forces decision-cache reads off for this task.
	CacheDisabled bool `json:"cacheDisabled" yaml:"cacheDisabled"`

	// ToolOverrides enables or disables individual tools, overriding the
	// project-level defaults.
	ToolOverrides map[string]bool `json:"toolOverrides,omitempty" yaml:"toolOverrides,omitempty"`
}

// ActionTypes returns the full action vocabulary for this task.
func (t AgentTask) ActionTypes() []ActionType {
	out := DefaultActionTypes(t.FormFactor)
	seen := make(map[ActionType]bool, len(out))
	for _, a := range out {
		seen[a] = true
	}
	for _, a := range t.AdditionalActions {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

// ImageAssertion is a screenshot-level check the model must pass before a
// GOAL_ACHIEVED claim is accepted.
type ImageAssertion struct {
	Prompt string `json:"prompt" yaml:"prompt"`
	// RequiredFulfilment is a 0-100 threshold; verdicts below it fail.
	RequiredFulfilment int `json:"requiredFulfilment,omitempty" yaml:"requiredFulfilment,omitempty"`
}

// Threshold returns the effective pass threshold. An unset RequiredFulfilment
// demands full fulfilment.
func (a ImageAssertion) Threshold() int {
	if a.RequiredFulfilment > 0 {
		return a.RequiredFulfilment
	}
	return 100
}

// AssertionVerdict is the model's judgement of one assertion.
type AssertionVerdict struct {
	Assertion   ImageAssertion `json:"assertion" yaml:"assertion"`
	Passed      bool           `json:"passed" yaml:"passed"`
	Fulfilment  int            `json:"fulfilment" yaml:"fulfilment"`
	Explanation string         `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// ExecutionStatus is the terminal state of one task execution.
type ExecutionStatus string

const (
	ExecutionSuccess   ExecutionStatus = "SUCCESS"
	ExecutionFailed    ExecutionStatus = "FAILED"
	ExecutionCancelled ExecutionStatus = "CANCELLED"
)

// ExecutionResult is the final outcome of one agent run, carrying the full
// step history for Failed and Cancelled runs so callers can inspect and
// invalidate state.
type ExecutionResult struct {
	Status ExecutionStatus `json:"status" yaml:"status"`
	Steps  []Step          `json:"steps,omitempty" yaml:"steps,omitempty"`
	Error  string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunningInfo is the progress snapshot published after every step of the
// currently-running task.
type RunningInfo struct {
	TotalTasks       int `json:"totalTasks" yaml:"totalTasks"`
	CurrentTaskIndex int `json:"currentTaskIndex" yaml:"currentTaskIndex"`
	CompletedSteps   int `json:"completedSteps" yaml:"completedSteps"`
	MaxStepCount     int `json:"maxStepCount" yaml:"maxStepCount"`
	RetriedTasks     int `json:"retriedTasks" yaml:"retriedTasks"`
	MaxRetry         int `json:"maxRetry" yaml:"maxRetry"`
}

// ToolDescriptor describes one invocable tool exposed by the tool executor.
type ToolDescriptor struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// InputSchema is the raw JSON schema of the tool's arguments.
	InputSchema string `json:"inputSchema,omitempty" yaml:"inputSchema,omitempty"`
}
