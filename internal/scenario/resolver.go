// File: internal/scenario/resolver.go
package scenario

import (
	"fmt"

	"github.com/uipilot/uipilot/api/schemas"
)

// ResolveTasks turns one scenario into its ordered task chain: root ancestor
// first, the scenario itself last. A cyclic dependency chain is rejected with
// an explicit error rather than silently truncated.
func ResolveTasks(p *Project, scenarioID string) ([]schemas.AgentTask, error) {
	target, ok := p.Find(scenarioID)
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q", scenarioID)
	}

	var tasks []schemas.AgentTask
	visiting := make(map[string]bool)

	var walk func(s Scenario) error
	walk = func(s Scenario) error {
		if visiting[s.ID] {
			return fmt.Errorf("scenario dependency cycle detected at %q", s.ID)
		}
		visiting[s.ID] = true

		if s.DependencyID != "" {
			dep, ok := p.Find(s.DependencyID)
			if !ok {
				return fmt.Errorf("scenario %q depends on unknown scenario %q", s.ID, s.DependencyID)
			}
			if err := walk(dep); err != nil {
				return err
			}
		}

		tasks = append(tasks, buildTask(p, target, s))
		return nil
	}

	if err := walk(target); err != nil {
		return nil, err
	}
	return tasks, nil
}

// buildTask materializes one chain entry. Form factor precedence is the
// task's own explicit setting, then the target scenario's, then the project
// default, then Mobile. Additional actions are the de-duplicated union of
// project- and scenario-level lists.
func buildTask(p *Project, target, s Scenario) schemas.AgentTask {
	scenarioType := s.Type
	if scenarioType == "" {
		scenarioType = schemas.ScenarioTypeAi
	}

	return schemas.AgentTask{
		ScenarioID:        s.ID,
		Goal:              s.Goal,
		Type:              scenarioType,
		MaxStepCount:      s.maxStepCount(p),
		FormFactor:        s.FormFactor.Resolve(target.FormFactor.Resolve(p.DefaultFormFactor)),
		AdditionalActions: unionActions(p.AdditionalActions, s.AdditionalActions),
		InitCommands:      s.InitCommands,
		Assertions:        s.Assertions,
		CacheDisabled:     p.CacheDisabled || s.CacheDisabled,
		ToolOverrides:     s.ToolOverrides,
	}
}

func unionActions(a, b []schemas.ActionType) []schemas.ActionType {
	seen := make(map[schemas.ActionType]bool, len(a)+len(b))
	var out []schemas.ActionType
	for _, list := range [][]schemas.ActionType{a, b} {
		for _, action := range list {
			if !seen[action] {
				seen[action] = true
				out = append(out, action)
			}
		}
	}
	return out
}
