package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/uipilot/uipilot/api/schemas"
	"github.com/uipilot/uipilot/internal/results"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(interface{}) bool

func (f ArgumentMatcherFunc) Match(v interface{}) bool {
	return f(v)
}

var anyArg = ArgumentMatcherFunc(func(v interface{}) bool {
	return true
})

func sampleRun() results.RunResult {
	return results.RunResult{
		BuildVersion: "1.4.2",
		StartedAt:    time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
		FinishedAt:   time.Date(2026, 8, 23, 10, 5, 0, 0, time.UTC),
		Scenarios: []results.ScenarioResult{{
			ScenarioID: "checkout",
			Goal:       "Complete checkout",
			Achieved:   true,
			Attempts: []results.AttemptResult{{
				Attempt: 1,
				Tasks: []results.TaskResult{{
					ScenarioID: "checkout",
					Goal:       "Complete checkout",
					Status:     schemas.ExecutionSuccess,
					Steps: []schemas.Step{
						{
							Action:         &schemas.Action{Type: schemas.ActionTap},
							ScreenshotPath: "checkout-step-001.png",
							CacheKey:       "1.4.2-uitree-abc-context-def",
						},
						{
							Action: &schemas.Action{Type: schemas.ActionGoalAchieved},
						},
					},
				}},
			}},
		}},
	}
}

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPersistRun(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist a full run successfully without rollback errors", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		observedLogger := zap.New(observedZapCore)

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(ctx, mockPool, observedLogger)
		require.NoError(t, err)

		run := sampleRun()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(anyArg, run.BuildVersion, run.StartedAt, run.FinishedAt, true).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		batchExp := mockPool.ExpectBatch()
		batchExp.ExpectExec(flexibleSQLMatcher(sqlInsertTaskResult)).
			WithArgs(anyArg, "checkout", "checkout", 1, "Complete checkout", "SUCCESS", "", 2).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		mockPool.ExpectCopyFrom(pgx.Identifier{"steps"}, stepColumns).
			WillReturnResult(2)

		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		runID, err := store.PersistRun(ctx, run)
		require.NoError(t, err)
		assert.NotEmpty(t, runID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, observedLogs.All(), "Expected no errors logged on successful commit")
	})

	t.Run("should fail on step copy count mismatch", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		run := sampleRun()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(anyArg, run.BuildVersion, run.StartedAt, run.FinishedAt, true).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		batchExp := mockPool.ExpectBatch()
		batchExp.ExpectExec(flexibleSQLMatcher(sqlInsertTaskResult)).
			WithArgs(anyArg, "checkout", "checkout", 1, "Complete checkout", "SUCCESS", "", 2).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		// Two step rows exist but only one lands.
		mockPool.ExpectCopyFrom(pgx.Identifier{"steps"}, stepColumns).
			WillReturnResult(1)

		mockPool.ExpectRollback()

		_, err = store.PersistRun(ctx, run)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mismatch in copied steps count")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should roll back when the run insert fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		insertErr := errors.New("relation runs does not exist")
		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(anyArg, anyArg, anyArg, anyArg, anyArg).
			WillReturnError(insertErr)
		mockPool.ExpectRollback()

		_, err = store.PersistRun(ctx, sampleRun())
		require.Error(t, err)
		assert.ErrorIs(t, err, insertErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestGetRunSummaries(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectPing().WillReturnError(nil)
	store, err := New(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)

	started := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	finished := started.Add(5 * time.Minute)

	rows := pgxmock.NewRows([]string{"id", "build_version", "started_at", "finished_at", "achieved"}).
		AddRow("run-1", "1.4.2", started, finished, true)
	mockPool.ExpectQuery("SELECT id, build_version, started_at, finished_at, achieved").
		WithArgs(10).
		WillReturnRows(rows)

	summaries, err := store.GetRunSummaries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "run-1", summaries[0].ID)
	assert.True(t, summaries[0].Achieved)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
