package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apresai/podcaster-async/internal/domain"
)

// PostgresStore is the alternate Store backend for deployments that prefer
// a relational engine over DynamoDB. One table, task_id primary key,
// request/result/logs/artifacts stored as JSON columns rather than
// modeled relationally — the Store contract doesn't need more than that.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and ensures the backing table
// exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tasks (
	task_id        TEXT PRIMARY KEY,
	owner_id       TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	progress_pct   DOUBLE PRECISION NOT NULL DEFAULT 0,
	request_data   JSONB NOT NULL,
	artifacts      JSONB NOT NULL,
	logs           JSONB NOT NULL DEFAULT '[]',
	error_data     JSONB,
	result_episode JSONB,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	started_at     TIMESTAMPTZ,
	completed_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS tasks_owner_created_idx ON tasks (owner_id, created_at DESC);
`)
	if err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, rec *domain.TaskRecord) error {
	rec.CreatedAt = now()
	rec.UpdatedAt = rec.CreatedAt
	reqJSON, artJSON, errJSON, resJSON, logsJSON, err := marshalColumns(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO tasks (task_id, owner_id, status, progress_pct, request_data, artifacts, logs, error_data, result_episode, created_at, updated_at, started_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		rec.TaskID, rec.OwnerID, string(rec.Status), rec.ProgressPct,
		reqJSON, artJSON, logsJSON, errJSON, resJSON,
		rec.CreatedAt, rec.UpdatedAt, rec.StartedAt, rec.CompletedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("store: insert task: %w", err)
	}
	return nil
}

func marshalColumns(rec *domain.TaskRecord) (reqJSON, artJSON, errJSON, resJSON, logsJSON []byte, err error) {
	if reqJSON, err = json.Marshal(rec.Request); err != nil {
		return
	}
	if artJSON, err = json.Marshal(rec.Artifacts); err != nil {
		return
	}
	if errJSON, err = json.Marshal(rec.Error); err != nil {
		return
	}
	if resJSON, err = json.Marshal(rec.ResultEpisode); err != nil {
		return
	}
	if logsJSON, err = json.Marshal(rec.Logs); err != nil {
		return
	}
	return
}

func isUniqueViolation(err error) bool {
	return err != nil && (contains(err.Error(), "duplicate key") || contains(err.Error(), "unique constraint"))
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func scanRecord(row pgx.Row) (*domain.TaskRecord, error) {
	var rec domain.TaskRecord
	var status string
	var reqJSON, artJSON, errJSON, resJSON, logsJSON []byte
	if err := row.Scan(&rec.TaskID, &rec.OwnerID, &status, &rec.ProgressPct,
		&reqJSON, &artJSON, &logsJSON, &errJSON, &resJSON,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.StartedAt, &rec.CompletedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan task: %w", err)
	}
	rec.Status = domain.TaskStatus(status)
	if err := json.Unmarshal(reqJSON, &rec.Request); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(artJSON, &rec.Artifacts); err != nil {
		return nil, err
	}
	if len(errJSON) > 0 {
		if err := json.Unmarshal(errJSON, &rec.Error); err != nil {
			return nil, err
		}
	}
	if len(resJSON) > 0 {
		if err := json.Unmarshal(resJSON, &rec.ResultEpisode); err != nil {
			return nil, err
		}
	}
	if len(logsJSON) > 0 {
		if err := json.Unmarshal(logsJSON, &rec.Logs); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

const selectColumns = `task_id, owner_id, status, progress_pct, request_data, artifacts, logs, error_data, result_episode, created_at, updated_at, started_at, completed_at`

func (s *PostgresStore) Get(ctx context.Context, taskID string) (*domain.TaskRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM tasks WHERE task_id = $1`, taskID)
	return scanRecord(row)
}

func (s *PostgresStore) Update(ctx context.Context, taskID string, mutate func(*domain.TaskRecord) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+selectColumns+` FROM tasks WHERE task_id = $1 FOR UPDATE`, taskID)
	rec, err := scanRecord(row)
	if err != nil {
		return err
	}
	if rec.Status.Terminal() {
		return ErrTerminal
	}
	if err := mutate(rec); err != nil {
		return err
	}
	rec.UpdatedAt = now()
	reqJSON, artJSON, errJSON, resJSON, logsJSON, err := marshalColumns(rec)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
UPDATE tasks SET owner_id=$2, status=$3, progress_pct=$4, request_data=$5, artifacts=$6, logs=$7, error_data=$8, result_episode=$9, updated_at=$10, started_at=$11, completed_at=$12
WHERE task_id=$1`,
		rec.TaskID, rec.OwnerID, string(rec.Status), rec.ProgressPct,
		reqJSON, artJSON, logsJSON, errJSON, resJSON, rec.UpdatedAt, rec.StartedAt, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("store: update task: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) AppendLog(ctx context.Context, taskID, line string) error {
	return s.Update(ctx, taskID, func(rec *domain.TaskRecord) error {
		rec.AppendLog(line)
		return nil
	})
}

func (s *PostgresStore) List(ctx context.Context, ownerID string, limit int, cursor string) (*Page, error) {
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if cursor != "" {
		if _, err := fmt.Sscanf(cursor, "%d", &offset); err != nil {
			return nil, fmt.Errorf("store: invalid cursor: %w", err)
		}
	}
	var rows pgx.Rows
	var err error
	if ownerID == "" {
		rows, err = s.pool.Query(ctx, `SELECT `+selectColumns+` FROM tasks ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit+1, offset)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT `+selectColumns+` FROM tasks WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, ownerID, limit+1, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	defer rows.Close()

	page := &Page{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		page.Tasks = append(page.Tasks, rec)
	}
	if len(page.Tasks) > limit {
		page.Tasks = page.Tasks[:limit]
		page.NextCursor = fmt.Sprintf("%d", offset+limit)
	}
	return page, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
