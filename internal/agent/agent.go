// File: internal/agent/agent.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/uipilot/uipilot/api/schemas"
	"github.com/uipilot/uipilot/internal/device"
	"github.com/uipilot/uipilot/internal/hierarchy"
	"github.com/uipilot/uipilot/internal/interceptor"
)

// Config assembles everything one agent needs. Built once per execution
// attempt; agents are never reused across attempts.
type Config struct {
	Task   schemas.AgentTask
	Device device.Device
	Ai     schemas.Ai
	Cache  schemas.DecisionCache

	// Tools is optional; ToolDefaults is the project-level enable map that
	// the task's overrides refine.
	Tools        schemas.ToolExecutor
	ToolDefaults map[string]bool

	Registry *interceptor.Registry

	BuildVersion string
	ImageFormat  string
	ArtifactDir  string

	Logger *zap.Logger

	// OnStepDone is called after every step with the meaningful step count.
	OnStepDone func(completedSteps int)

	// Rand breaks focus-navigation ties; nil seeds from the clock.
	Rand *rand.Rand
}

// Agent executes exactly one task. It owns its ContextHolder and the device
// handle for the duration of the run.
type Agent struct {
	cfg    Config
	logger *zap.Logger
	holder *ContextHolder

	decide     interceptor.DecisionHandler
	assert     interceptor.AssertionHandler
	act        interceptor.ActionHandler
	initialize interceptor.InitHandler
	execute    interceptor.ExecutionHandler

	navigator *device.FocusNavigator

	// Per-step scratch owned by the strictly sequential loop: the element
	// list of the latest capture (consumed by the action base handler) and
	// the previous screenshot for stuck-screen detection.
	currentElements *hierarchy.ElementList
	lastScreenshot  []byte
	stepIndex       int

	running  atomic.Bool
	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// New builds an agent and folds its five pipelines.
func New(cfg Config) *Agent {
	if cfg.Registry == nil {
		cfg.Registry = &interceptor.Registry{}
	}
	if cfg.ImageFormat == "" {
		cfg.ImageFormat = "png"
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	a := &Agent{
		cfg:    cfg,
		logger: cfg.Logger.Named("agent").With(zap.String("scenario", cfg.Task.ScenarioID)),
		holder: NewContextHolder(cfg.Task.Goal, cfg.Task.MaxStepCount),
	}
	a.navigator = device.NewFocusNavigator(cfg.Device, a.logger, rng)

	a.decide = interceptor.BuildChain(a.decideBase, cfg.Registry.Decision)
	a.assert = interceptor.BuildChain(a.assertBase, cfg.Registry.ImageAssertion)
	a.act = interceptor.BuildChain(a.actBase, cfg.Registry.ActionExecution)
	a.initialize = interceptor.BuildChain(a.initBase, cfg.Registry.Initialization)

	execInterceptors := append([]interceptor.ExecutionInterceptor{
		newCacheInvalidator(cfg.Cache, cfg.Logger),
	}, cfg.Registry.Execution...)
	a.execute = interceptor.BuildChain(a.runLoop, execInterceptors)

	return a
}

// Context exposes the step log (read-only use by callers).
func (a *Agent) Context() *ContextHolder { return a.holder }

// IsRunning reports whether Execute is in flight.
func (a *Agent) IsRunning() bool { return a.running.Load() }

// Cancel requests cooperative cancellation of a running Execute.
func (a *Agent) Cancel() {
	a.cancelMu.Lock()
	defer a.cancelMu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// Execute runs the task to a terminal result. Errors from the pipelines are
// folded into the result; Execute never panics through interceptors.
func (a *Agent) Execute(parent context.Context) schemas.ExecutionResult {
	ctx, cancel := context.WithCancel(parent)
	a.cancelMu.Lock()
	a.cancel = cancel
	a.cancelMu.Unlock()
	defer cancel()

	a.running.Store(true)
	defer a.running.Store(false)

	result, err := a.execute(ctx, interceptor.ExecutionRequest{Task: a.cfg.Task})
	if err != nil {
		return a.terminal(ctx, err)
	}
	return result
}

// runLoop is the execution pipeline's base handler: initialization once, then
// the step machine until a terminal outcome or budget exhaustion.
func (a *Agent) runLoop(ctx context.Context, req interceptor.ExecutionRequest) (schemas.ExecutionResult, error) {
	task := req.Task

	if _, err := a.initialize(ctx, interceptor.InitRequest{Task: task, Commands: task.InitCommands}); err != nil {
		a.logger.Warn("Task initialization failed", zap.Error(err))
		return a.terminal(ctx, fmt.Errorf("initialization: %w", err)), nil
	}

	// Feedback-only steps do not consume budget, so a second bound on raw
	// iterations keeps a permanently stuck screen from looping forever.
	maxIterations := task.MaxStepCount * 3
	for iteration := 0; iteration < maxIterations; iteration++ {
		if a.holder.MeaningfulCount() >= task.MaxStepCount {
			break
		}
		if err := ctx.Err(); err != nil {
			return a.terminal(ctx, err), nil
		}

		outcome, err := a.runStep(ctx)
		if a.cfg.OnStepDone != nil {
			a.cfg.OnStepDone(a.holder.MeaningfulCount())
		}
		if err != nil {
			return a.terminal(ctx, err), nil
		}

		switch outcome {
		case stepGoalAchieved:
			a.logger.Info("Goal achieved", zap.Int("steps", a.holder.MeaningfulCount()))
			return schemas.ExecutionResult{Status: schemas.ExecutionSuccess, Steps: a.holder.Steps()}, nil
		case stepFailed:
			return a.terminal(ctx, errors.New("the model declared the goal unachievable")), nil
		}
	}

	return a.terminal(ctx, fmt.Errorf("step budget of %d exhausted without achieving the goal", task.MaxStepCount)), nil
}

// terminal classifies a failure as Cancelled or Failed and attaches the full
// step history.
func (a *Agent) terminal(ctx context.Context, err error) schemas.ExecutionResult {
	status := schemas.ExecutionFailed
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		status = schemas.ExecutionCancelled
	}
	return schemas.ExecutionResult{
		Status: status,
		Steps:  a.holder.Steps(),
		Error:  err.Error(),
	}
}

// decideBase asks the AI capability directly; caching and execution-type
// short-circuits sit above it as interceptors.
func (a *Agent) decideBase(ctx context.Context, req schemas.DecisionRequest) (*schemas.DecisionResult, error) {
	return a.cfg.Ai.DecideNextActions(ctx, req)
}

func (a *Agent) assertBase(ctx context.Context, req schemas.AssertionRequest) (*schemas.AssertionResult, error) {
	return a.cfg.Ai.AssertImages(ctx, req)
}

// initBase verifies the task's image assertions against a fresh screenshot
// once the declarative commands (run by the init interceptors) completed. A
// failed assertion here means the scenario's precondition does not hold.
func (a *Agent) initBase(ctx context.Context, req interceptor.InitRequest) (interceptor.InitResult, error) {
	if len(req.Task.Assertions) == 0 {
		return interceptor.InitResult{}, nil
	}

	shot, err := a.captureScreenshot(ctx)
	if err != nil {
		return interceptor.InitResult{}, fmt.Errorf("capturing initialization screenshot: %w", err)
	}
	result, err := a.assert(ctx, schemas.AssertionRequest{
		ImageData:  shot,
		Assertions: req.Task.Assertions,
	})
	if err != nil {
		return interceptor.InitResult{}, err
	}
	for _, v := range result.Verdicts {
		if !v.Passed {
			return interceptor.InitResult{}, fmt.Errorf(
				"initialization assertion %q failed (fulfilment %d): %s",
				v.Assertion.Prompt, v.Fulfilment, v.Explanation)
		}
	}
	return interceptor.InitResult{}, nil
}

// newCacheInvalidator removes every cache entry recorded by a run that ends
// Failed or Cancelled, so aborted runs never poison future lookups.
func newCacheInvalidator(cache schemas.DecisionCache, logger *zap.Logger) interceptor.ExecutionInterceptor {
	log := logger.Named("cache_invalidator")
	return interceptor.Func[interceptor.ExecutionRequest, schemas.ExecutionResult](
		func(ctx context.Context, req interceptor.ExecutionRequest, proceed interceptor.ExecutionHandler) (schemas.ExecutionResult, error) {
			result, err := proceed(ctx, req)
			if err != nil || result.Status == schemas.ExecutionSuccess || cache == nil {
				return result, err
			}
			removed := 0
			seen := make(map[string]bool)
			for _, step := range result.Steps {
				if step.CacheKey == "" || seen[step.CacheKey] {
					continue
				}
				seen[step.CacheKey] = true
				if rmErr := cache.Remove(context.WithoutCancel(ctx), step.CacheKey); rmErr != nil {
					log.Warn("Removing cache entry failed", zap.String("key", step.CacheKey), zap.Error(rmErr))
					continue
				}
				removed++
			}
			if removed > 0 {
				log.Info("Invalidated decision cache entries for unsuccessful run",
					zap.Int("removed", removed), zap.String("status", string(result.Status)))
			}
			return result, err
		})
}
