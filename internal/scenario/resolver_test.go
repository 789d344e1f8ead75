package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uipilot/uipilot/api/schemas"
)

func chainProject() *Project {
	return &Project{
		Scenarios: []Scenario{
			{ID: "login", Goal: "Log in"},
			{ID: "add-to-cart", Goal: "Add an item to the cart", DependencyID: "login"},
			{ID: "checkout", Goal: "Complete checkout", DependencyID: "add-to-cart"},
		},
	}
}

func taskIDs(tasks []schemas.AgentTask) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ScenarioID
	}
	return out
}

func TestResolveTasks_AncestorFirstOrdering(t *testing.T) {
	tasks, err := ResolveTasks(chainProject(), "checkout")
	require.NoError(t, err)
	assert.Equal(t, []string{"login", "add-to-cart", "checkout"}, taskIDs(tasks))

	tasks, err = ResolveTasks(chainProject(), "add-to-cart")
	require.NoError(t, err)
	assert.Equal(t, []string{"login", "add-to-cart"}, taskIDs(tasks))

	tasks, err = ResolveTasks(chainProject(), "login")
	require.NoError(t, err)
	assert.Equal(t, []string{"login"}, taskIDs(tasks))
}

func TestResolveTasks_CycleIsAnExplicitError(t *testing.T) {
	p := &Project{Scenarios: []Scenario{
		{ID: "a", Goal: "a", DependencyID: "b"},
		{ID: "b", Goal: "b", DependencyID: "a"},
	}}

	_, err := ResolveTasks(p, "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestResolveTasks_SelfDependencyIsACycle(t *testing.T) {
	p := &Project{Scenarios: []Scenario{{ID: "a", Goal: "a", DependencyID: "a"}}}

	_, err := ResolveTasks(p, "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestResolveTasks_UnknownScenario(t *testing.T) {
	_, err := ResolveTasks(chainProject(), "missing")
	require.Error(t, err)
}

func TestResolveTasks_FormFactorPrecedence(t *testing.T) {
	p := &Project{
		DefaultFormFactor: schemas.FormFactorWeb,
		Scenarios: []Scenario{
			{ID: "explicit", Goal: "g", FormFactor: schemas.FormFactorTV},
			{ID: "inherits-target", Goal: "g", DependencyID: "explicit"},
			{ID: "project-default", Goal: "g"},
		},
	}

	tasks, err := ResolveTasks(p, "explicit")
	require.NoError(t, err)
	assert.Equal(t, schemas.FormFactorTV, tasks[0].FormFactor, "explicit wins")

	// The ancestor has its own explicit form factor; the dependent inherits
	// it only for itself when unset, falling back to the project default.
	tasks, err = ResolveTasks(p, "inherits-target")
	require.NoError(t, err)
	assert.Equal(t, schemas.FormFactorTV, tasks[0].FormFactor, "ancestor keeps its explicit setting")
	assert.Equal(t, schemas.FormFactorWeb, tasks[1].FormFactor, "unset falls through to the project default")

	tasks, err = ResolveTasks(&Project{Scenarios: []Scenario{{ID: "bare", Goal: "g"}}}, "bare")
	require.NoError(t, err)
	assert.Equal(t, schemas.FormFactorMobile, tasks[0].FormFactor, "ultimate fallback is Mobile")
}

func TestResolveTasks_AdditionalActionsUnion(t *testing.T) {
	p := &Project{
		AdditionalActions: []schemas.ActionType{schemas.ActionKeyPress, schemas.ActionScroll},
		Scenarios: []Scenario{
			{ID: "s", Goal: "g", AdditionalActions: []schemas.ActionType{schemas.ActionScroll, schemas.ActionOpenLink}},
		},
	}

	tasks, err := ResolveTasks(p, "s")
	require.NoError(t, err)
	assert.Equal(t, []schemas.ActionType{
		schemas.ActionKeyPress, schemas.ActionScroll, schemas.ActionOpenLink,
	}, tasks[0].AdditionalActions, "union preserves order and de-duplicates")
}

func TestResolveTasks_Defaults(t *testing.T) {
	p := &Project{
		CacheDisabled: true,
		Scenarios:     []Scenario{{ID: "s", Goal: "g"}},
	}
	tasks, err := ResolveTasks(p, "s")
	require.NoError(t, err)
	assert.Equal(t, defaultMaxStepCount, tasks[0].MaxStepCount)
	assert.Equal(t, schemas.ScenarioTypeAi, tasks[0].Type)
	assert.True(t, tasks[0].CacheDisabled, "project-level force-disable propagates")

	p.DefaultMaxStep = 25
	tasks, err = ResolveTasks(p, "s")
	require.NoError(t, err)
	assert.Equal(t, 25, tasks[0].MaxStepCount)
}

func TestProject_Validate(t *testing.T) {
	dup := &Project{Scenarios: []Scenario{{ID: "a", Goal: "g"}, {ID: "a", Goal: "g"}}}
	require.Error(t, dup.Validate())

	unknown := &Project{Scenarios: []Scenario{{ID: "a", Goal: "g", DependencyID: "ghost"}}}
	require.Error(t, unknown.Validate())

	require.NoError(t, chainProject().Validate())
}

func TestProject_Leaves(t *testing.T) {
	p := chainProject()
	assert.False(t, p.IsLeaf("login"))
	assert.False(t, p.IsLeaf("add-to-cart"))
	assert.True(t, p.IsLeaf("checkout"))

	leaves := p.Leaves()
	require.Len(t, leaves, 1)
	assert.Equal(t, "checkout", leaves[0].ID)
}
