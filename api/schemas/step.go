// File: api/schemas/step.go
package schemas

import "time"

// Step records one perceive-decide-(assert)-act cycle of a task execution.
// Steps are append-only: once added to a context they are never mutated.
type Step struct {
	ID string `json:"id" yaml:"id"`

	// Action is the action the model chose, or nil for synthetic feedback
	// steps (stuck screen, assertion failure, automation errors).
	Action *Action `json:"action,omitempty" yaml:"action,omitempty"`

	// Feedback is human-readable text fed back to the model on the next turn.
	Feedback string `json:"feedback,omitempty" yaml:"feedback,omitempty"`

	ScreenshotPath string `json:"screenshotPath,omitempty" yaml:"screenshotPath,omitempty"`

	// Raw AI exchange, persisted for reports.
	AIRequest  string `json:"aiRequest,omitempty" yaml:"aiRequest,omitempty"`
	AIResponse string `json:"aiResponse,omitempty" yaml:"aiResponse,omitempty"`

	CacheKey string `json:"cacheKey,omitempty" yaml:"cacheKey,omitempty"`
	CacheHit bool   `json:"cacheHit" yaml:"cacheHit"`

	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// IsMeaningful reports whether the step counts toward the step number shown
// to the model. Feedback-only steps and explicit failure steps do not.
func (s Step) IsMeaningful() bool {
	return s.Action != nil && !s.Action.IsFailed()
}
