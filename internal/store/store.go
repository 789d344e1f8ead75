// File: internal/store/store.go

// Package store persists run results to PostgreSQL. Persistence is optional;
// when no DSN is configured the engine only writes the YAML artifacts.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/uipilot/uipilot/internal/results"
)

// DBPool abstracts pgxpool.Pool so the store can be exercised with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store is a PostgreSQL-backed run archive.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const sqlInsertRun = `
    INSERT INTO runs (id, build_version, started_at, finished_at, achieved)
    VALUES ($1, $2, $3, $4, $5);
`

const sqlInsertTaskResult = `
    INSERT INTO task_results (run_id, scenario_id, task_id, attempt, goal, status, error, step_count)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`

var stepColumns = []string{
	"run_id", "scenario_id", "task_id", "attempt", "step_index",
	"action_type", "feedback", "screenshot_path", "cache_key", "cache_hit", "observed_at",
}

// PersistRun writes one full run, all scenarios and attempts included, in a
// single transaction. It returns the run id assigned to the archive.
func (s *Store) PersistRun(ctx context.Context, run results.RunResult) (string, error) {
	runID := uuid.NewString()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit reports ErrTxClosed; that is the
		// normal path, not a failure.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, sqlInsertRun,
		runID, run.BuildVersion, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Achieved()); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, scenario := range run.Scenarios {
		if err := s.persistScenario(ctx, tx, runID, scenario); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Run archived", zap.String("runId", runID), zap.Int("scenarios", len(run.Scenarios)))
	return runID, nil
}

func (s *Store) persistScenario(ctx context.Context, tx pgx.Tx, runID string, scenario results.ScenarioResult) error {
	batch := &pgx.Batch{}
	var stepRows [][]interface{}

	for _, attempt := range scenario.Attempts {
		for _, task := range attempt.Tasks {
			batch.Queue(sqlInsertTaskResult,
				runID, scenario.ScenarioID, task.ScenarioID, attempt.Attempt,
				task.Goal, string(task.Status), task.Error, len(task.Steps))

			for stepIdx, step := range task.Steps {
				actionType := ""
				if step.Action != nil {
					actionType = string(step.Action.Type)
				}
				observedAt := step.Timestamp.UTC()
				if step.Timestamp.IsZero() {
					observedAt = time.Now().UTC()
				}
				stepRows = append(stepRows, []interface{}{
					runID, scenario.ScenarioID, task.ScenarioID, attempt.Attempt, stepIdx + 1,
					actionType, step.Feedback, step.ScreenshotPath, step.CacheKey, step.CacheHit, observedAt,
				})
			}
		}
	}

	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		if br == nil {
			return fmt.Errorf("failed to send batch: batch results is nil")
		}
		defer func() {
			_ = br.Close()
		}()
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("failed to insert task result for scenario %s (index %d): %w", scenario.ScenarioID, i, err)
			}
		}
	}

	if len(stepRows) > 0 {
		copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"steps"}, stepColumns, pgx.CopyFromRows(stepRows))
		if err != nil {
			return fmt.Errorf("failed to copy steps: %w", err)
		}
		if int(copyCount) != len(stepRows) {
			return fmt.Errorf("mismatch in copied steps count: expected %d, got %d", len(stepRows), copyCount)
		}
	}

	return nil
}

// RunSummary is one archived run as listed by GetRunSummaries.
type RunSummary struct {
	ID           string
	BuildVersion string
	StartedAt    time.Time
	FinishedAt   time.Time
	Achieved     bool
}

// GetRunSummaries lists the most recent archived runs, newest first.
func (s *Store) GetRunSummaries(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
        SELECT id, build_version, started_at, finished_at, achieved
        FROM runs
        ORDER BY started_at DESC
        LIMIT $1;
    `
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.BuildVersion, &r.StartedAt, &r.FinishedAt, &r.Achieved); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		summaries = append(summaries, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return summaries, nil
}
