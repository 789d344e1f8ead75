// File: internal/scenario/scenario.go

// Package scenario holds the declarative scenario graph, its resolution into
// ordered task chains, and the retrying executor that drives agents through
// those chains.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/uipilot/uipilot/api/schemas"
)

const (
	defaultMaxStepCount = 10
	defaultMaxRetry     = 0
)

// Scenario is one node of the declarative graph. A scenario optionally names
// exactly one dependency it builds on (a chain, not a DAG).
type Scenario struct {
	ID   string              `yaml:"id"`
	Goal string              `yaml:"goal"`
	Type schemas.ScenarioType `yaml:"type,omitempty"`

	// DependencyID names the scenario that must run first.
	DependencyID string `yaml:"dependencyId,omitempty"`

	MaxRetry     int                `yaml:"maxRetry,omitempty"`
	MaxStepCount int                `yaml:"maxStepCount,omitempty"`
	FormFactor   schemas.FormFactor `yaml:"formFactor,omitempty"`
	Tags         []string           `yaml:"tags,omitempty"`

	AdditionalActions []schemas.ActionType    `yaml:"additionalActions,omitempty"`
	InitCommands      []schemas.InitCommand   `yaml:"initCommands,omitempty"`
	Assertions        []schemas.ImageAssertion `yaml:"assertions,omitempty"`

	CacheDisabled bool            `yaml:"cacheDisabled,omitempty"`
	ToolOverrides map[string]bool `yaml:"toolOverrides,omitempty"`
}

// Project is the whole scenario file plus project-level defaults.
type Project struct {
	Scenarios []Scenario `yaml:"scenarios"`

	DefaultFormFactor schemas.FormFactor   `yaml:"defaultFormFactor,omitempty"`
	AdditionalActions []schemas.ActionType `yaml:"additionalActions,omitempty"`
	ToolDefaults      map[string]bool      `yaml:"toolDefaults,omitempty"`
	CacheDisabled     bool                 `yaml:"cacheDisabled,omitempty"`
	DefaultMaxStep    int                  `yaml:"defaultMaxStepCount,omitempty"`
}

// LoadProject reads and validates a project file.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project file: %w", err)
	}
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing project file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks identity and reference integrity of the graph.
func (p *Project) Validate() error {
	seen := make(map[string]bool, len(p.Scenarios))
	for _, s := range p.Scenarios {
		if s.ID == "" {
			return fmt.Errorf("scenario with goal %q has no id", s.Goal)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate scenario id %q", s.ID)
		}
		seen[s.ID] = true
	}
	for _, s := range p.Scenarios {
		if s.DependencyID != "" && !seen[s.DependencyID] {
			return fmt.Errorf("scenario %q depends on unknown scenario %q", s.ID, s.DependencyID)
		}
	}
	return nil
}

// Find returns the scenario with the given id.
func (p *Project) Find(id string) (Scenario, bool) {
	for _, s := range p.Scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

// IsLeaf reports whether no other scenario depends on the given one. A "run
// everything" sweep executes exactly the leaves, since each leaf's chain
// covers its ancestors.
func (p *Project) IsLeaf(id string) bool {
	for _, s := range p.Scenarios {
		if s.DependencyID == id {
			return false
		}
	}
	return true
}

// Leaves returns every leaf scenario in file order.
func (p *Project) Leaves() []Scenario {
	var out []Scenario
	for _, s := range p.Scenarios {
		if p.IsLeaf(s.ID) {
			out = append(out, s)
		}
	}
	return out
}

func (s Scenario) maxStepCount(p *Project) int {
	if s.MaxStepCount > 0 {
		return s.MaxStepCount
	}
	if p.DefaultMaxStep > 0 {
		return p.DefaultMaxStep
	}
	return defaultMaxStepCount
}
