// File: internal/agent/context.go

// Package agent runs one task's perceive-decide-act loop: screenshot and
// hierarchy capture, decision through the interceptor pipelines, assertion
// gating of goal claims, and action execution against the device.
package agent

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/uipilot/uipilot/api/schemas"
)

// ContextHolder is the append-only step log for one task execution. Steps are
// never mutated after append; the formatted context shown to the model is
// rebuilt from the log on demand.
type ContextHolder struct {
	mu    sync.RWMutex
	steps []schemas.Step

	goal      string
	maxStep   int
	startTime time.Time
}

// NewContextHolder starts an empty log for one task.
func NewContextHolder(goal string, maxStep int) *ContextHolder {
	return &ContextHolder{goal: goal, maxStep: maxStep, startTime: time.Now()}
}

func (c *ContextHolder) Goal() string         { return c.goal }
func (c *ContextHolder) MaxStep() int         { return c.maxStep }
func (c *ContextHolder) StartTime() time.Time { return c.startTime }

// Append records one or more completed steps.
func (c *ContextHolder) Append(steps ...schemas.Step) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, steps...)
}

// Steps returns a copy of the log.
func (c *ContextHolder) Steps() []schemas.Step {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]schemas.Step, len(c.steps))
	copy(out, c.steps)
	return out
}

// Last returns the most recent step, if any.
func (c *ContextHolder) Last() (schemas.Step, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.steps) == 0 {
		return schemas.Step{}, false
	}
	return c.steps[len(c.steps)-1], true
}

// MeaningfulCount counts steps that consumed step budget: those carrying a
// real action that was not an explicit failure.
func (c *ContextHolder) MeaningfulCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, s := range c.steps {
		if s.IsMeaningful() {
			n++
		}
	}
	return n
}

// CurrentStepNumber is the 1-based step number shown to the model.
func (c *ContextHolder) CurrentStepNumber() int {
	return c.MeaningfulCount() + 1
}

// CacheKeys returns the distinct cache keys recorded by the log's steps, used
// to invalidate the decision cache after a failed or cancelled run.
func (c *ContextHolder) CacheKeys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]bool, len(c.steps))
	var keys []string
	for _, s := range c.steps {
		if s.CacheKey != "" && !seen[s.CacheKey] {
			seen[s.CacheKey] = true
			keys = append(keys, s.CacheKey)
		}
	}
	return keys
}

// ContextText formats the step history for the model and for the cache key.
// It is deterministic over step content: timestamps and screenshot paths are
// excluded so identical histories fingerprint identically.
func (c *ContextHolder) ContextText() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "GOAL: %s\n", c.goal)
	for i, s := range c.steps {
		fmt.Fprintf(&b, "STEP %d:\n", i+1)
		if s.Action != nil {
			fmt.Fprintf(&b, "  action: %s", s.Action.Type)
			if s.Action.ElementIndex >= 0 {
				fmt.Fprintf(&b, " element=%d", s.Action.ElementIndex)
			}
			if s.Action.Value != "" {
				fmt.Fprintf(&b, " value=%q", s.Action.Value)
			}
			if s.Action.Direction != "" {
				fmt.Fprintf(&b, " direction=%s", s.Action.Direction)
			}
			b.WriteByte('\n')
			if s.Action.Rationale != "" {
				fmt.Fprintf(&b, "  rationale: %s\n", s.Action.Rationale)
			}
		}
		if s.Feedback != "" {
			fmt.Fprintf(&b, "  feedback: %s\n", s.Feedback)
		}
	}
	return b.String()
}
