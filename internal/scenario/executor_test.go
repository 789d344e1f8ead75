package scenario

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uipilot/uipilot/api/schemas"
)

// scriptedRunner reports a fixed result and simulates step progress.
type scriptedRunner struct {
	result     schemas.ExecutionResult
	steps      int
	onStepDone func(int)
	cancelled  bool
}

func (r *scriptedRunner) Execute(context.Context) schemas.ExecutionResult {
	for i := 1; i <= r.steps; i++ {
		if r.onStepDone != nil {
			r.onStepDone(i)
		}
	}
	return r.result
}

func (r *scriptedRunner) Cancel()         { r.cancelled = true }
func (r *scriptedRunner) IsRunning() bool { return false }

// recordingReporter captures every published snapshot.
type recordingReporter struct {
	mu       sync.Mutex
	infos    []schemas.RunningInfo
	statuses []string
}

func (r *recordingReporter) Report(info schemas.RunningInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, info)
}

func (r *recordingReporter) Status(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, msg)
}

// scriptedFactory returns results per (task, attempt) from a plan keyed by
// scenario id; each entry is consumed in order and the last repeats.
type scriptedFactory struct {
	mu      sync.Mutex
	plan    map[string][]schemas.ExecutionStatus
	served  map[string]int
	created int
}

func newScriptedFactory(plan map[string][]schemas.ExecutionStatus) *scriptedFactory {
	return &scriptedFactory{plan: plan, served: make(map[string]int)}
}

func (f *scriptedFactory) factory(task schemas.AgentTask, onStepDone func(int)) Runner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++

	statuses := f.plan[task.ScenarioID]
	idx := f.served[task.ScenarioID]
	f.served[task.ScenarioID]++
	if idx >= len(statuses) {
		idx = len(statuses) - 1
	}
	status := statuses[idx]

	result := schemas.ExecutionResult{Status: status}
	if status != schemas.ExecutionSuccess {
		result.Error = "did not reach the goal"
	}
	return &scriptedRunner{result: result, steps: 2, onStepDone: onStepDone}
}

func testExecutor(p *Project, f *scriptedFactory, r schemas.ProgressReporter) *Executor {
	return NewExecutor(p, SharedSession(f.factory), r, zap.NewNop())
}

func TestExecutor_RunsChainInOrder(t *testing.T) {
	factory := newScriptedFactory(map[string][]schemas.ExecutionStatus{
		"login":       {schemas.ExecutionSuccess},
		"add-to-cart": {schemas.ExecutionSuccess},
		"checkout":    {schemas.ExecutionSuccess},
	})
	reporter := &recordingReporter{}
	ex := testExecutor(chainProject(), factory, reporter)

	require.NoError(t, ex.RunScenario(context.Background(), "checkout"))
	assert.Equal(t, 3, factory.created, "one fresh agent per task")

	history := ex.History("checkout")
	require.Len(t, history, 1)
	require.Len(t, history[0], 3)
	assert.Equal(t, "login", history[0][0].Task.ScenarioID)
	assert.Equal(t, "checkout", history[0][2].Task.ScenarioID)

	require.NotEmpty(t, reporter.infos)
	first := reporter.infos[0]
	assert.Equal(t, 3, first.TotalTasks)
	assert.Equal(t, 0, first.CurrentTaskIndex)
	last := reporter.infos[len(reporter.infos)-1]
	assert.Equal(t, 2, last.CurrentTaskIndex)
}

func TestExecutor_StopsChainAtFirstFailure(t *testing.T) {
	factory := newScriptedFactory(map[string][]schemas.ExecutionStatus{
		"login":       {schemas.ExecutionSuccess},
		"add-to-cart": {schemas.ExecutionFailed},
		"checkout":    {schemas.ExecutionSuccess},
	})
	ex := testExecutor(chainProject(), factory, nil)

	err := ex.RunScenario(context.Background(), "checkout")
	var archiveErr *ArchiveFailureError
	require.ErrorAs(t, err, &archiveErr)

	history := ex.History("checkout")
	require.Len(t, history, 1)
	assert.Len(t, history[0], 2, "checkout never ran after add-to-cart failed")
}

func TestExecutor_RetryBudgetIsExact(t *testing.T) {
	project := chainProject()
	project.Scenarios[2].MaxRetry = 2

	factory := newScriptedFactory(map[string][]schemas.ExecutionStatus{
		"login":       {schemas.ExecutionSuccess},
		"add-to-cart": {schemas.ExecutionSuccess},
		"checkout":    {schemas.ExecutionFailed},
	})
	reporter := &recordingReporter{}
	ex := testExecutor(project, factory, reporter)

	err := ex.RunScenario(context.Background(), "checkout")
	var archiveErr *ArchiveFailureError
	require.ErrorAs(t, err, &archiveErr)
	assert.Equal(t, 3, archiveErr.Attempts, "initial attempt plus exactly two retries")
	assert.Contains(t, archiveErr.StatusDump, "checkout: FAILED")

	assert.Len(t, ex.History("checkout"), 3)

	// RetriedTasks in the published snapshots increments once per retry.
	seen := map[int]bool{}
	for _, info := range reporter.infos {
		seen[info.RetriedTasks] = true
		assert.Equal(t, 2, info.MaxRetry)
	}
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true}, seen)
}

func TestExecutor_SucceedsOnRetry(t *testing.T) {
	project := chainProject()
	project.Scenarios[2].MaxRetry = 2

	factory := newScriptedFactory(map[string][]schemas.ExecutionStatus{
		"login":       {schemas.ExecutionSuccess},
		"add-to-cart": {schemas.ExecutionSuccess},
		"checkout":    {schemas.ExecutionFailed, schemas.ExecutionSuccess},
	})
	ex := testExecutor(project, factory, nil)

	require.NoError(t, ex.RunScenario(context.Background(), "checkout"))
	assert.Len(t, ex.History("checkout"), 2, "success on the second attempt stops retrying")
}

func TestExecutor_CancellationDoesNotConsumeRetries(t *testing.T) {
	project := chainProject()
	project.Scenarios[2].MaxRetry = 5

	factory := newScriptedFactory(map[string][]schemas.ExecutionStatus{
		"login":       {schemas.ExecutionCancelled},
		"add-to-cart": {schemas.ExecutionSuccess},
		"checkout":    {schemas.ExecutionSuccess},
	})
	ex := testExecutor(project, factory, nil)

	err := ex.RunScenario(context.Background(), "checkout")
	require.ErrorIs(t, err, ErrCancelled)
	assert.Len(t, ex.History("checkout"), 1, "a cancelled attempt is not retried")
}

// countingSessions records which scenario chains opened sessions and how many
// were closed.
type countingSessions struct {
	mu     sync.Mutex
	opened []string
	closed int
}

func (c *countingSessions) open(_ context.Context, scenarioID string) (RunnerSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened = append(c.opened, scenarioID)
	return &countedSession{owner: c}, nil
}

type countedSession struct {
	owner *countingSessions
}

func (s *countedSession) NewRunner(schemas.AgentTask, func(int)) Runner {
	return &scriptedRunner{result: schemas.ExecutionResult{Status: schemas.ExecutionSuccess}}
}

func (s *countedSession) Close() error {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	s.owner.closed++
	return nil
}

func TestExecutor_SweepOpensOneSessionPerLeaf(t *testing.T) {
	project := &Project{
		Scenarios: []Scenario{
			{ID: "login", Goal: "Log in"},
			{ID: "checkout", Goal: "Complete checkout", DependencyID: "login"},
			{ID: "wishlist", Goal: "Save an item for later", DependencyID: "login"},
		},
	}
	sessions := &countingSessions{}
	ex := NewExecutor(project, sessions.open, nil, zap.NewNop())

	require.NoError(t, ex.Sweep(context.Background(), 2))
	assert.ElementsMatch(t, []string{"checkout", "wishlist"}, sessions.opened,
		"each leaf chain gets its own session")
	assert.Equal(t, 2, sessions.closed, "every chain closes its session")
}

func TestExecutor_Sweep(t *testing.T) {
	factory := newScriptedFactory(map[string][]schemas.ExecutionStatus{
		"login":       {schemas.ExecutionSuccess},
		"add-to-cart": {schemas.ExecutionSuccess},
		"checkout":    {schemas.ExecutionSuccess},
	})
	ex := testExecutor(chainProject(), factory, nil)

	require.NoError(t, ex.Sweep(context.Background(), 1))
	assert.Len(t, ex.History("checkout"), 1, "only the leaf's chain runs")
	assert.Empty(t, ex.History("login"), "non-leaves are covered by the leaf chain")
}
