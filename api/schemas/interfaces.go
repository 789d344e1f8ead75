// File: api/schemas/interfaces.go
package schemas

import "context"

// DecisionRequest carries everything the model needs to choose the next
// actions for one step. The hierarchy is passed pre-serialized so the AI
// boundary stays independent of the tree implementation.
type DecisionRequest struct {
	Goal        string
	StepNumber  int
	MaxStep     int
	FormFactor  FormFactor
	ContextText string // formatted step history shown to the model
	TreeText    string // AI-legible rendering of the optimized hierarchy
	FocusedText string // TV only: rendering of the focused subtree

	ScreenshotPath string
	ImageData      []byte

	AllowedActions []ActionType
	Tools          []ToolDescriptor

	// CacheKey fingerprints this decision point; CacheDisabled skips reads.
	CacheKey      string
	CacheDisabled bool
}

// DecisionResult is the model's chosen actions plus the Step recording the
// exchange.
type DecisionResult struct {
	Actions []Action `json:"actions"`
	Step    Step     `json:"step"`
}

// AssertionRequest asks the model to judge a screenshot against assertions.
// History carries verdicts accumulated earlier in the same run.
type AssertionRequest struct {
	ScreenshotPath string
	ImageData      []byte
	Assertions     []ImageAssertion
	History        []AssertionVerdict
}

// AssertionResult is the per-assertion outcome list.
type AssertionResult struct {
	Verdicts []AssertionVerdict `json:"verdicts"`
}

// ScenarioGenRequest asks the model to draft scenarios from a description.
// Used by the authoring flow, not by the execution engine.
type ScenarioGenRequest struct {
	AppDescription string
	ExistingGoals  []string
}

// GeneratedScenario is one drafted scenario.
type GeneratedScenario struct {
	Goal         string `json:"goal"`
	DependencyID string `json:"dependencyId,omitempty"`
}

// Ai is the language-model capability consumed by the engine.
type Ai interface {
	DecideNextActions(ctx context.Context, req DecisionRequest) (*DecisionResult, error)
	AssertImages(ctx context.Context, req AssertionRequest) (*AssertionResult, error)
	GenerateScenarios(ctx context.Context, req ScenarioGenRequest) ([]GeneratedScenario, error)
}

// DecisionEntry is the cached value for one decision point.
type DecisionEntry struct {
	Actions []Action `json:"actions"`
	Step    Step     `json:"step"`
}

// DecisionCache is the content-addressed decision store. Implementations must
// be safe for concurrent use; the cache is shared across running agents.
type DecisionCache interface {
	Get(ctx context.Context, key string) (*DecisionEntry, bool)
	Set(ctx context.Context, key string, entry *DecisionEntry) error
	Remove(ctx context.Context, key string) error
}

// ToolExecutor is the MCP-style tool invocation capability.
type ToolExecutor interface {
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// ProgressReporter receives progress snapshots and status text from the
// executor. It replaces the legacy process-wide status singleton; callers
// scope its lifetime to the run.
type ProgressReporter interface {
	Report(info RunningInfo)
	Status(message string)
}

// NopReporter discards all progress output.
type NopReporter struct{}

func (NopReporter) Report(RunningInfo) {}
func (NopReporter) Status(string)      {}
