// File: api/schemas/actions.go
package schemas

import "time"

// FormFactor identifies the class of device a scenario targets. It determines
// which action types are available and how focus is moved (pointer vs D-pad).
type FormFactor string

const (
	FormFactorUnspecified FormFactor = "Unspecified"
	FormFactorMobile      FormFactor = "Mobile"
	FormFactorTV          FormFactor = "Tv"
	FormFactorWeb         FormFactor = "Web"
)

// Resolve applies the precedence chain explicit > fallback > Mobile.
func (f FormFactor) Resolve(fallback FormFactor) FormFactor {
	if f != "" && f != FormFactorUnspecified {
		return f
	}
	if fallback != "" && fallback != FormFactorUnspecified {
		return fallback
	}
	return FormFactorMobile
}

// ActionType enumerates every action the model may choose. The set is closed;
// dispatch is by switch, not subclassing.
type ActionType string

const (
	ActionTap        ActionType = "TAP"
	ActionInputText  ActionType = "INPUT_TEXT"
	ActionKeyPress   ActionType = "KEY_PRESS"
	ActionScroll     ActionType = "SCROLL"
	ActionWait       ActionType = "WAIT"
	ActionBack       ActionType = "BACK"
	ActionOpenLink   ActionType = "OPEN_LINK"
	ActionMoveFocus  ActionType = "MOVE_FOCUS"
	ActionExecuteTool ActionType = "EXECUTE_TOOL"

	// Sentinel decisions that terminate the agent loop.
	ActionGoalAchieved ActionType = "GOAL_ACHIEVED"
	ActionFailed       ActionType = "FAILED"
)

// DefaultActionTypes returns the action vocabulary offered to the model for a
// given form factor, before any scenario-level additions.
func DefaultActionTypes(f FormFactor) []ActionType {
	base := []ActionType{
		ActionInputText, ActionScroll, ActionWait, ActionBack, ActionOpenLink,
		ActionGoalAchieved, ActionFailed,
	}
	switch f {
	case FormFactorTV:
		return append(base, ActionKeyPress, ActionMoveFocus)
	default:
		return append(base, ActionTap)
	}
}

// Action is a single concrete step decided by the model.
type Action struct {
	Type ActionType `json:"type" yaml:"type"`

	// ElementIndex addresses an entry of the compacted element list. Negative
	// when the action does not target an element.
	ElementIndex int `json:"elementIndex" yaml:"elementIndex"`

	Value     string `json:"value,omitempty" yaml:"value,omitempty"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`

	// Thought carries the model's chain of reasoning; Rationale the short
	// justification. Both are kept for reports and debugging.
	Thought   string `json:"thought,omitempty" yaml:"thought,omitempty"`
	Rationale string `json:"rationale,omitempty" yaml:"rationale,omitempty"`

	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// IsGoalAchieved reports whether this action claims the task goal is met.
func (a Action) IsGoalAchieved() bool { return a.Type == ActionGoalAchieved }

// IsFailed reports whether this action declares the task unachievable.
func (a Action) IsFailed() bool { return a.Type == ActionFailed }

// InitCommandKind enumerates the declarative initialization commands that run
// before the first step of a task.
type InitCommandKind string

const (
	InitBack         InitCommandKind = "BACK"
	InitWait         InitCommandKind = "WAIT"
	InitLaunchApp    InitCommandKind = "LAUNCH_APP"
	InitClearAppData InitCommandKind = "CLEAR_APP_DATA"
	InitOpenLink     InitCommandKind = "OPEN_LINK"
	InitReplayScript InitCommandKind = "REPLAY_SCRIPT"
)

// InitCommand is one declarative initialization instruction.
type InitCommand struct {
	Kind     InitCommandKind `json:"kind" yaml:"kind"`
	Times    int             `json:"times,omitempty" yaml:"times,omitempty"`
	Duration time.Duration   `json:"duration,omitempty" yaml:"duration,omitempty"`
	// Value holds the app id, link, or script name depending on Kind.
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}
