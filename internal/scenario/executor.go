// File: internal/scenario/executor.go
package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/uipilot/uipilot/api/schemas"
)

// Runner is the executable face of an agent. The executor never constructs
// agents directly; a factory supplies fresh ones per attempt so no per-agent
// state survives a retry.
type Runner interface {
	Execute(ctx context.Context) schemas.ExecutionResult
	Cancel()
	IsRunning() bool
}

// RunnerFactory builds one fresh Runner for a task. onStepDone is invoked
// after every step with the meaningful step count, for progress publication.
type RunnerFactory func(task schemas.AgentTask, onStepDone func(completedSteps int)) Runner

// RunnerSession owns the resources one scenario chain's runners share, most
// importantly an exclusive device handle. The executor opens one session per
// RunScenario call, keeps it across retries so app state carries through the
// chain, and closes it when the chain is done.
type RunnerSession interface {
	NewRunner(task schemas.AgentTask, onStepDone func(completedSteps int)) Runner
	Close() error
}

// SessionFactory opens a session for one scenario chain. Concurrent chains
// get independent sessions, so sweeps never share a device.
type SessionFactory func(ctx context.Context, scenarioID string) (RunnerSession, error)

// sharedSession adapts a plain RunnerFactory into a session that owns no
// resources of its own.
type sharedSession struct {
	factory RunnerFactory
}

func (s sharedSession) NewRunner(task schemas.AgentTask, onStepDone func(int)) Runner {
	return s.factory(task, onStepDone)
}

func (s sharedSession) Close() error { return nil }

// SharedSession lifts a RunnerFactory whose runners share externally owned
// resources into the session contract. Close is a no-op; the owner tears the
// resources down itself.
func SharedSession(factory RunnerFactory) SessionFactory {
	return func(context.Context, string) (RunnerSession, error) {
		return sharedSession{factory: factory}, nil
	}
}

// TaskAssignment pairs a task with the runner that executed (or is
// executing) it and the result it produced.
type TaskAssignment struct {
	Task   schemas.AgentTask
	Runner Runner
	Result schemas.ExecutionResult
}

// ArchiveFailureError is raised when the retry budget is exhausted without a
// fully successful attempt. It carries a human-readable status dump of every
// attempt.
type ArchiveFailureError struct {
	ScenarioID string
	Attempts   int
	StatusDump string
}

func (e *ArchiveFailureError) Error() string {
	return fmt.Sprintf("scenario %q failed to archive after %d attempts:\n%s",
		e.ScenarioID, e.Attempts, e.StatusDump)
}

// ErrCancelled marks a run stopped by cooperative cancellation. Cancellation
// never consumes retry budget.
var ErrCancelled = errors.New("scenario execution cancelled")

// Executor runs scenarios: resolve the chain, run agents strictly in order,
// retry the whole chain on failure, publish progress.
type Executor struct {
	project  *Project
	sessions SessionFactory
	reporter schemas.ProgressReporter
	logger   *zap.Logger

	mu      sync.Mutex
	history map[string][][]TaskAssignment
}

// NewExecutor builds an executor over a project.
func NewExecutor(project *Project, sessions SessionFactory, reporter schemas.ProgressReporter, logger *zap.Logger) *Executor {
	if reporter == nil {
		reporter = schemas.NopReporter{}
	}
	return &Executor{
		project:  project,
		sessions: sessions,
		reporter: reporter,
		logger:   logger.Named("executor"),
		history:  make(map[string][][]TaskAssignment),
	}
}

// History returns the full retry history of one scenario: one assignment
// list per attempt.
func (e *Executor) History(scenarioID string) [][]TaskAssignment {
	e.mu.Lock()
	defer e.mu.Unlock()
	attempts := e.history[scenarioID]
	out := make([][]TaskAssignment, len(attempts))
	for i, a := range attempts {
		out[i] = append([]TaskAssignment(nil), a...)
	}
	return out
}

func (e *Executor) recordAttempt(scenarioID string, assignments []TaskAssignment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history[scenarioID] = append(e.history[scenarioID], assignments)
}

// RunScenario executes one scenario's chain with retries. It returns nil iff
// the last attempt's agents all achieved their goals, ErrCancelled on
// cooperative cancellation, and an ArchiveFailureError once the retry budget
// is spent.
func (e *Executor) RunScenario(ctx context.Context, scenarioID string) error {
	target, ok := e.project.Find(scenarioID)
	if !ok {
		return fmt.Errorf("unknown scenario %q", scenarioID)
	}
	tasks, err := ResolveTasks(e.project, scenarioID)
	if err != nil {
		return err
	}

	maxRetry := target.MaxRetry
	if maxRetry < 0 {
		maxRetry = defaultMaxRetry
	}

	session, err := e.sessions(ctx, scenarioID)
	if err != nil {
		return fmt.Errorf("opening session for scenario %q: %w", scenarioID, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			e.logger.Warn("Closing scenario session failed",
				zap.String("scenario", scenarioID), zap.Error(cerr))
		}
	}()

	var previous []TaskAssignment
	for attempt := 0; attempt <= maxRetry; attempt++ {
		if err := ctx.Err(); err != nil {
			return ErrCancelled
		}
		if attempt > 0 {
			e.logger.Info("Retrying scenario chain",
				zap.String("scenario", scenarioID),
				zap.Int("retry", attempt), zap.Int("maxRetry", maxRetry))
			e.reporter.Status(fmt.Sprintf("Retrying %s (attempt %d of %d)", scenarioID, attempt+1, maxRetry+1))
		}

		// Agents from the previous attempt are done or dying; make sure
		// nothing keeps driving the device before fresh agents start.
		cancelAll(previous)

		assignments, cancelled := e.runAttempt(ctx, session, scenarioID, tasks, attempt, maxRetry)
		e.recordAttempt(scenarioID, assignments)
		previous = assignments

		if cancelled {
			return ErrCancelled
		}
		if chainSucceeded(assignments, len(tasks)) {
			e.logger.Info("Scenario achieved", zap.String("scenario", scenarioID), zap.Int("attempts", attempt+1))
			return nil
		}
	}

	return &ArchiveFailureError{
		ScenarioID: scenarioID,
		Attempts:   maxRetry + 1,
		StatusDump: e.statusDump(scenarioID),
	}
}

// runAttempt executes the chain once, strictly in order, stopping at the
// first task that does not achieve its goal.
func (e *Executor) runAttempt(ctx context.Context, session RunnerSession, scenarioID string, tasks []schemas.AgentTask, attempt, maxRetry int) ([]TaskAssignment, bool) {
	assignments := make([]TaskAssignment, 0, len(tasks))

	for i, task := range tasks {
		taskIndex := i
		taskBudget := task.MaxStepCount
		runner := session.NewRunner(task, func(completedSteps int) {
			e.reporter.Report(schemas.RunningInfo{
				TotalTasks:       len(tasks),
				CurrentTaskIndex: taskIndex,
				CompletedSteps:   completedSteps,
				MaxStepCount:     taskBudget,
				RetriedTasks:     attempt,
				MaxRetry:         maxRetry,
			})
		})

		e.reporter.Status(fmt.Sprintf("Running %s (task %d/%d)", task.ScenarioID, i+1, len(tasks)))
		result := runner.Execute(ctx)
		assignments = append(assignments, TaskAssignment{Task: task, Runner: runner, Result: result})

		switch result.Status {
		case schemas.ExecutionCancelled:
			return assignments, true
		case schemas.ExecutionSuccess:
			continue
		default:
			e.logger.Warn("Task did not achieve its goal, stopping this attempt",
				zap.String("scenario", scenarioID),
				zap.String("task", task.ScenarioID),
				zap.String("error", result.Error))
			return assignments, false
		}
	}
	return assignments, false
}

func cancelAll(assignments []TaskAssignment) {
	for _, a := range assignments {
		if a.Runner != nil && a.Runner.IsRunning() {
			a.Runner.Cancel()
		}
	}
}

func chainSucceeded(assignments []TaskAssignment, totalTasks int) bool {
	if len(assignments) != totalTasks {
		return false
	}
	for _, a := range assignments {
		if a.Result.Status != schemas.ExecutionSuccess {
			return false
		}
	}
	return true
}

// statusDump renders the full retry history of one scenario for the archive
// failure report.
func (e *Executor) statusDump(scenarioID string) string {
	var b strings.Builder
	for attemptIdx, assignments := range e.History(scenarioID) {
		fmt.Fprintf(&b, "attempt %d:\n", attemptIdx+1)
		for _, a := range assignments {
			fmt.Fprintf(&b, "  %s: %s", a.Task.ScenarioID, a.Result.Status)
			if a.Result.Error != "" {
				fmt.Fprintf(&b, " (%s)", a.Result.Error)
			}
			fmt.Fprintf(&b, " [%d steps]\n", len(a.Result.Steps))
		}
	}
	return b.String()
}
