package interceptor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uipilot/uipilot/api/schemas"
)

// fakeCache is a map-backed schemas.DecisionCache for interceptor tests.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*schemas.DecisionEntry
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*schemas.DecisionEntry)}
}

func (f *fakeCache) Get(_ context.Context, key string) (*schemas.DecisionEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	return e, ok
}

func (f *fakeCache) Set(_ context.Context, key string, entry *schemas.DecisionEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = entry
	f.sets++
	return nil
}

func (f *fakeCache) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}

func decisionBase(calls *int) DecisionHandler {
	return func(ctx context.Context, req schemas.DecisionRequest) (*schemas.DecisionResult, error) {
		*calls++
		action := schemas.Action{Type: schemas.ActionTap, ElementIndex: 1, Timestamp: time.Now()}
		return &schemas.DecisionResult{
			Actions: []schemas.Action{action},
			Step: schemas.Step{
				ID:             "fresh",
				Action:         &action,
				ScreenshotPath: req.ScreenshotPath,
				CacheKey:       req.CacheKey,
				Timestamp:      time.Now(),
			},
		}, nil
	}
}

func TestDecisionCacheInterceptor_MissThenHit(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	aiCalls := 0

	chain := BuildChain(decisionBase(&aiCalls), []DecisionInterceptor{
		NewDecisionCacheInterceptor(cache, zap.NewNop()),
	})

	req := schemas.DecisionRequest{CacheKey: "key-1", ScreenshotPath: "/runs/s1.png"}

	first, err := chain(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Step.CacheHit)
	assert.Equal(t, 1, aiCalls)
	assert.Equal(t, 1, cache.sets, "a genuine AI decision is written once")

	req.ScreenshotPath = "/runs/s2.png"
	second, err := chain(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, aiCalls, "cache hit must not call the model")
	assert.True(t, second.Step.CacheHit)
	assert.Equal(t, "/runs/s2.png", second.Step.ScreenshotPath, "replayed step carries the current screenshot")
	assert.Equal(t, first.Actions, second.Actions)
	assert.Equal(t, 1, cache.sets, "a replay never re-writes the cache")
}

func TestDecisionCacheInterceptor_DisabledSkipsReads(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	aiCalls := 0

	chain := BuildChain(decisionBase(&aiCalls), []DecisionInterceptor{
		NewDecisionCacheInterceptor(cache, zap.NewNop()),
	})

	req := schemas.DecisionRequest{CacheKey: "key-1", CacheDisabled: true}
	_, err := chain(ctx, req)
	require.NoError(t, err)
	_, err = chain(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, 2, aiCalls, "force-disabled cache must not serve reads")
}

func TestDecisionCacheInterceptor_ErrorNotCached(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()

	failing := func(ctx context.Context, req schemas.DecisionRequest) (*schemas.DecisionResult, error) {
		return nil, errors.New("model unavailable")
	}
	chain := BuildChain(failing, []DecisionInterceptor{
		NewDecisionCacheInterceptor(cache, zap.NewNop()),
	})

	_, err := chain(ctx, schemas.DecisionRequest{CacheKey: "key-1"})
	require.Error(t, err)
	assert.Zero(t, cache.sets)
}

func TestAssertionHistoryInterceptor_AccumulatesVerdicts(t *testing.T) {
	ctx := context.Background()

	var seenHistory [][]schemas.AssertionVerdict
	base := func(ctx context.Context, req schemas.AssertionRequest) (*schemas.AssertionResult, error) {
		seenHistory = append(seenHistory, req.History)
		return &schemas.AssertionResult{
			Verdicts: []schemas.AssertionVerdict{{Passed: true, Fulfilment: 90}},
		}, nil
	}

	chain := BuildChain(base, []AssertionInterceptor{NewAssertionHistoryInterceptor()})

	_, err := chain(ctx, schemas.AssertionRequest{})
	require.NoError(t, err)
	_, err = chain(ctx, schemas.AssertionRequest{})
	require.NoError(t, err)

	require.Len(t, seenHistory, 2)
	assert.Empty(t, seenHistory[0], "first assertion sees no history")
	require.Len(t, seenHistory[1], 1, "second assertion sees the first verdict")
	assert.True(t, seenHistory[1][0].Passed)
}

func TestExecutionTypeInterceptor_ShortCircuits(t *testing.T) {
	ctx := context.Background()
	aiCalls := 0

	chain := BuildChain(decisionBase(&aiCalls), []DecisionInterceptor{
		NewExecutionTypeInterceptor(),
	})

	result, err := chain(ctx, schemas.DecisionRequest{ScreenshotPath: "/runs/s.png"})
	require.NoError(t, err)
	assert.Zero(t, aiCalls)
	require.Len(t, result.Actions, 1)
	assert.True(t, result.Actions[0].IsGoalAchieved())
	assert.Equal(t, "/runs/s.png", result.Step.ScreenshotPath)
}

type recordingRunner struct {
	commands []schemas.InitCommandKind
	failOn   schemas.InitCommandKind
}

func (r *recordingRunner) RunInitCommand(_ context.Context, cmd schemas.InitCommand) error {
	r.commands = append(r.commands, cmd.Kind)
	if cmd.Kind == r.failOn {
		return errors.New("device rejected command")
	}
	return nil
}

func TestInitCommandInterceptor_RunsCommandsInOrder(t *testing.T) {
	ctx := context.Background()
	runner := &recordingRunner{}

	proceeded := false
	base := func(ctx context.Context, req InitRequest) (InitResult, error) {
		proceeded = true
		return InitResult{}, nil
	}

	chain := BuildChain(base, []InitInterceptor{NewInitCommandInterceptor(runner, zap.NewNop())})
	_, err := chain(ctx, InitRequest{Commands: []schemas.InitCommand{
		{Kind: schemas.InitClearAppData, Value: "com.example"},
		{Kind: schemas.InitLaunchApp, Value: "com.example"},
		{Kind: schemas.InitWait, Duration: time.Millisecond},
	}})

	require.NoError(t, err)
	assert.True(t, proceeded)
	assert.Equal(t, []schemas.InitCommandKind{
		schemas.InitClearAppData, schemas.InitLaunchApp, schemas.InitWait,
	}, runner.commands)
}

func TestInitCommandInterceptor_StopsOnFailure(t *testing.T) {
	ctx := context.Background()
	runner := &recordingRunner{failOn: schemas.InitLaunchApp}

	base := func(ctx context.Context, req InitRequest) (InitResult, error) {
		t.Fatal("base must not run after a failed command")
		return InitResult{}, nil
	}

	chain := BuildChain(base, []InitInterceptor{NewInitCommandInterceptor(runner, zap.NewNop())})
	_, err := chain(ctx, InitRequest{Commands: []schemas.InitCommand{
		{Kind: schemas.InitLaunchApp},
		{Kind: schemas.InitWait},
	}})

	require.Error(t, err)
	assert.Len(t, runner.commands, 1, "commands after the failure must not run")
}
