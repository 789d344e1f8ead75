// File: internal/results/results.go

// Package results materializes a run into persisted artifacts: the YAML
// execution result tree plus the raw AI exchange logs consumed by reporting
// tools.
package results

import (
	"time"

	"github.com/uipilot/uipilot/api/schemas"
)

// TaskResult is the outcome of one task within one attempt.
type TaskResult struct {
	ScenarioID string                  `yaml:"scenarioId" json:"scenarioId"`
	Goal       string                  `yaml:"goal" json:"goal"`
	Status     schemas.ExecutionStatus `yaml:"status" json:"status"`
	Error      string                  `yaml:"error,omitempty" json:"error,omitempty"`
	Steps      []schemas.Step          `yaml:"steps,omitempty" json:"steps,omitempty"`
}

// AttemptResult is one full pass over a scenario's task chain.
type AttemptResult struct {
	Attempt int          `yaml:"attempt" json:"attempt"`
	Tasks   []TaskResult `yaml:"tasks" json:"tasks"`
}

// Succeeded reports whether every task of the attempt achieved its goal.
func (a AttemptResult) Succeeded() bool {
	if len(a.Tasks) == 0 {
		return false
	}
	for _, t := range a.Tasks {
		if t.Status != schemas.ExecutionSuccess {
			return false
		}
	}
	return true
}

// ScenarioResult is the full retry history of one scenario.
type ScenarioResult struct {
	ScenarioID string          `yaml:"scenarioId" json:"scenarioId"`
	Goal       string          `yaml:"goal" json:"goal"`
	Achieved   bool            `yaml:"achieved" json:"achieved"`
	Attempts   []AttemptResult `yaml:"attempts" json:"attempts"`
}

// RunResult is the root of the execution result tree for one engine run.
type RunResult struct {
	BuildVersion string           `yaml:"buildVersion,omitempty" json:"buildVersion,omitempty"`
	StartedAt    time.Time        `yaml:"startedAt" json:"startedAt"`
	FinishedAt   time.Time        `yaml:"finishedAt" json:"finishedAt"`
	Scenarios    []ScenarioResult `yaml:"scenarios" json:"scenarios"`
}

// Achieved reports whether every scenario of the run ended achieved.
func (r RunResult) Achieved() bool {
	if len(r.Scenarios) == 0 {
		return false
	}
	for _, s := range r.Scenarios {
		if !s.Achieved {
			return false
		}
	}
	return true
}
