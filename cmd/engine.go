// File: cmd/engine.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/uipilot/uipilot/api/schemas"
	"github.com/uipilot/uipilot/internal/agent"
	"github.com/uipilot/uipilot/internal/cache"
	"github.com/uipilot/uipilot/internal/config"
	"github.com/uipilot/uipilot/internal/device"
	"github.com/uipilot/uipilot/internal/interceptor"
	"github.com/uipilot/uipilot/internal/llmclient"
	"github.com/uipilot/uipilot/internal/mcp"
	"github.com/uipilot/uipilot/internal/results"
	"github.com/uipilot/uipilot/internal/scenario"
	"github.com/uipilot/uipilot/internal/store"
)

// engine bundles the wired capabilities one run needs. Built once per command
// invocation and torn down with Close.
type engine struct {
	cfg    *config.Config
	logger *zap.Logger

	ai            schemas.Ai
	cache         schemas.DecisionCache
	deviceFactory device.Factory
	tools         schemas.ToolExecutor
	writer        *results.Writer
	store         *store.Store

	closers []func()
}

// newEngine wires every capability from configuration.
func newEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*engine, error) {
	e := &engine{cfg: cfg, logger: logger}

	clients, err := llmclient.Factory(cfg.AI.Models, logger)
	if err != nil {
		return nil, fmt.Errorf("building model clients: %w", err)
	}
	router, err := llmclient.NewRouter(clients, logger)
	if err != nil {
		return nil, err
	}
	e.ai = llmclient.NewAI(router, logger)

	if e.cache, err = buildCache(cfg.Cache, logger); err != nil {
		return nil, err
	}

	// Devices are opened per scenario chain, not here: every chain gets an
	// exclusive handle, so concurrent sweeps never share one.
	e.deviceFactory = func(ctx context.Context) (device.Device, error) {
		return device.NewWebDevice(ctx, device.WebOptions{
			Headless:       cfg.Device.Headless,
			Width:          cfg.Device.Width,
			Height:         cfg.Device.Height,
			SettleDuration: cfg.Device.SettleDuration,
			UserAgent:      cfg.Device.UserAgent,
		}, logger)
	}

	if cfg.Tools.Command != "" {
		transport, err := mcp.NewStdioTransport(ctx, cfg.Tools.Command, cfg.Tools.Args, logger)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("starting tool server: %w", err)
		}
		client := mcp.NewClient(transport, logger)
		e.tools = client
		e.closers = append(e.closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("Closing tool server failed", zap.Error(err))
			}
		})
	}

	if e.writer, err = results.NewWriter(cfg.Run.OutputDir, logger); err != nil {
		e.Close()
		return nil, err
	}

	if cfg.Store.Enabled {
		pool, err := pgxpool.New(ctx, cfg.Store.DSN)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("connecting to run archive: %w", err)
		}
		e.closers = append(e.closers, pool.Close)
		if e.store, err = store.New(ctx, pool, logger); err != nil {
			e.Close()
			return nil, err
		}
	}

	return e, nil
}

// Close tears down in reverse wiring order.
func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func buildCache(cfg config.CacheConfig, logger *zap.Logger) (schemas.DecisionCache, error) {
	if cfg.Disabled {
		return cache.Noop{}, nil
	}
	switch cfg.Backend {
	case "disk":
		return cache.NewDisk(cfg.Dir, cfg.MaxSizeBytes, logger)
	case "memory":
		return cache.NewMemory(cfg.MaxEntries, cfg.TTL, logger), nil
	case "none":
		return cache.Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// toolDefaults merges the config-level enable map with the project's; the
// project wins on conflicts.
func (e *engine) toolDefaults(project *scenario.Project) map[string]bool {
	merged := make(map[string]bool, len(e.cfg.Tools.Defaults)+len(project.ToolDefaults))
	for name, enabled := range e.cfg.Tools.Defaults {
		merged[name] = enabled
	}
	for name, enabled := range project.ToolDefaults {
		merged[name] = enabled
	}
	return merged
}

// buildRegistry assembles the standard interceptor set for one task. Later
// registrations wrap earlier ones, so the execution-type short circuit sits
// outside the cache and the cache outside the model call.
func buildRegistry(task schemas.AgentTask, dev device.Device, decisionCache schemas.DecisionCache, logger *zap.Logger) *interceptor.Registry {
	reg := &interceptor.Registry{}
	reg.Initialization = append(reg.Initialization,
		interceptor.NewInitCommandInterceptor(agent.NewCommandRunner(dev), logger))
	reg.ImageAssertion = append(reg.ImageAssertion,
		interceptor.NewAssertionHistoryInterceptor())
	reg.Decision = append(reg.Decision,
		interceptor.NewDecisionCacheInterceptor(decisionCache, logger))
	if task.Type == schemas.ScenarioTypeExecution {
		reg.Decision = append(reg.Decision, interceptor.NewExecutionTypeInterceptor())
	}
	return reg
}

// deviceSession owns one exclusive device handle for one scenario chain.
type deviceSession struct {
	engine   *engine
	device   *device.Reconnector
	defaults map[string]bool
}

func (s *deviceSession) NewRunner(task schemas.AgentTask, onStepDone func(int)) scenario.Runner {
	e := s.engine
	return agent.New(agent.Config{
		Task:         task,
		Device:       s.device,
		Ai:           e.ai,
		Cache:        e.cache,
		Tools:        e.tools,
		ToolDefaults: s.defaults,
		Registry:     buildRegistry(task, s.device, e.cache, e.logger),
		BuildVersion: e.cfg.Run.BuildVersion,
		ImageFormat:  e.cfg.Run.ImageFormat,
		ArtifactDir:  e.writer.ScreenshotDir(),
		Logger:       e.logger,
		OnStepDone:   onStepDone,
	})
}

func (s *deviceSession) Close() error { return s.device.Close() }

// sessionFactory adapts the wired engine into the executor's session
// contract: one fresh device behind a reconnector per scenario chain.
func (e *engine) sessionFactory(project *scenario.Project) scenario.SessionFactory {
	defaults := e.toolDefaults(project)
	return func(ctx context.Context, scenarioID string) (scenario.RunnerSession, error) {
		initial, err := e.deviceFactory(ctx)
		if err != nil {
			return nil, fmt.Errorf("opening device session: %w", err)
		}
		return &deviceSession{
			engine:   e,
			device:   device.NewReconnector(initial, e.deviceFactory, e.logger),
			defaults: defaults,
		}, nil
	}
}

// consoleReporter surfaces executor progress through the logger.
type consoleReporter struct {
	logger *zap.Logger
}

func (r *consoleReporter) Report(info schemas.RunningInfo) {
	r.logger.Debug("Progress",
		zap.Int("task", info.CurrentTaskIndex+1),
		zap.Int("totalTasks", info.TotalTasks),
		zap.Int("completedSteps", info.CompletedSteps),
		zap.Int("maxSteps", info.MaxStepCount),
		zap.Int("retry", info.RetriedTasks))
}

func (r *consoleReporter) Status(message string) {
	r.logger.Info(message)
}

// finishRun materializes the executor history into artifacts and the optional
// archive. scenarios lists the scenario ids that were targeted.
func (e *engine) finishRun(ctx context.Context, ex *scenario.Executor, project *scenario.Project, scenarioIDs []string, startedAt time.Time) error {
	run := results.RunResult{
		BuildVersion: e.cfg.Run.BuildVersion,
		StartedAt:    startedAt,
		FinishedAt:   time.Now().UTC(),
	}
	for _, id := range scenarioIDs {
		s, ok := project.Find(id)
		if !ok {
			continue
		}
		history := ex.History(id)
		run.Scenarios = append(run.Scenarios, results.BuildScenarioResult(s, history))

		for attemptIdx, assignments := range history {
			for _, a := range assignments {
				if err := e.writer.WriteExchanges(a.Task.ScenarioID, attemptIdx, a.Result.Steps); err != nil {
					e.logger.Warn("Writing AI exchanges failed", zap.Error(err))
				}
			}
		}
	}

	if err := e.writer.WriteRun(run); err != nil {
		return err
	}
	if e.store != nil {
		// Persist with a fresh context so a cancelled run still archives.
		runID, err := e.store.PersistRun(context.WithoutCancel(ctx), run)
		if err != nil {
			return fmt.Errorf("archiving run: %w", err)
		}
		e.logger.Info("Run persisted", zap.String("runId", runID))
	}
	return nil
}
