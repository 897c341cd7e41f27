// Package postgres adapts the teacher's internal/repo/postgres/jobs_repo.go
// query style (pgxpool, observed ops, pgx.ErrNoRows translation) into a
// store.JobStore implementation backed by a single jobs table with JSONB
// columns for the job's free-form fields.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/observability"
	"github.com/jobforge/jobforge/internal/store"
)

type Store struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func New(pool *pgxpool.Pool, prom *observability.Prom) *Store {
	return &Store{pool: pool, prom: prom}
}

func (s *Store) observe(op string, fn func() error) error {
	if s.prom != nil {
		return s.prom.ObserveDB(op, fn)
	}
	return fn()
}

// Upsert persists a job keyed by ID via INSERT ... ON CONFLICT, matching
// the idempotent-write invariant in store.JobStore's doc comment.
func (s *Store) Upsert(ctx context.Context, j job.Job) error {
	params, err := json.Marshal(j.Params)
	if err != nil {
		return fmt.Errorf("postgres: marshal params: %w", err)
	}
	deps, err := json.Marshal(j.Dependencies)
	if err != nil {
		return fmt.Errorf("postgres: marshal dependencies: %w", err)
	}
	tags, err := json.Marshal(j.Tags)
	if err != nil {
		return fmt.Errorf("postgres: marshal tags: %w", err)
	}
	meta, err := json.Marshal(j.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: marshal metadata: %w", err)
	}

	op := "jobs.upsert"
	return s.observe(op, func() error {
		_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (
			id, type, status, priority, params, progress,
			created_at, updated_at, started_at, finished_at,
			created_by_id, digest_id, retry_count, max_retries,
			schedule_time, dependencies, tags, metadata, error, idempotency_key
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20
		)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			params = EXCLUDED.params,
			progress = EXCLUDED.progress,
			updated_at = EXCLUDED.updated_at,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			digest_id = EXCLUDED.digest_id,
			retry_count = EXCLUDED.retry_count,
			max_retries = EXCLUDED.max_retries,
			schedule_time = EXCLUDED.schedule_time,
			dependencies = EXCLUDED.dependencies,
			tags = EXCLUDED.tags,
			metadata = EXCLUDED.metadata,
			error = EXCLUDED.error,
			idempotency_key = EXCLUDED.idempotency_key
		`,
			j.ID, string(j.Type), string(j.Status), j.Priority, params, j.Progress,
			j.CreatedAt, j.UpdatedAt, j.StartedAt, j.FinishedAt,
			j.CreatedByID, j.DigestID, j.RetryCount, j.MaxRetries,
			j.ScheduleTime, deps, tags, meta, j.Error, j.IdempotencyKey,
		)
		if err != nil && IsForeignKeyViolation(err) {
			return store.ErrForeignKeyViolation
		}
		return err
	})
}

const selectColumns = `
	id, type, status, priority, params, progress,
	created_at, updated_at, started_at, finished_at,
	created_by_id, digest_id, retry_count, max_retries,
	schedule_time, dependencies, tags, metadata, error, idempotency_key
`

func scanJob(row pgx.Row) (job.Job, error) {
	var j job.Job
	var jType, status string
	var params, deps, tags, meta []byte

	err := row.Scan(
		&j.ID, &jType, &status, &j.Priority, &params, &j.Progress,
		&j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.FinishedAt,
		&j.CreatedByID, &j.DigestID, &j.RetryCount, &j.MaxRetries,
		&j.ScheduleTime, &deps, &tags, &meta, &j.Error, &j.IdempotencyKey,
	)
	if err != nil {
		return job.Job{}, err
	}

	j.Type = job.Type(jType)
	j.Status = job.Status(status)

	if len(params) > 0 {
		if err := json.Unmarshal(params, &j.Params); err != nil {
			return job.Job{}, fmt.Errorf("postgres: unmarshal params: %w", err)
		}
	}
	if len(deps) > 0 {
		if err := json.Unmarshal(deps, &j.Dependencies); err != nil {
			return job.Job{}, fmt.Errorf("postgres: unmarshal dependencies: %w", err)
		}
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &j.Tags); err != nil {
			return job.Job{}, fmt.Errorf("postgres: unmarshal tags: %w", err)
		}
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &j.Metadata); err != nil {
			return job.Job{}, fmt.Errorf("postgres: unmarshal metadata: %w", err)
		}
	}
	return j, nil
}

func buildFilter(f store.Filter, argsPos int) (string, []any, int) {
	var conds []string
	var args []any

	if len(f.Statuses) > 0 {
		placeholders := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", argsPos)
			args = append(args, string(st))
			argsPos++
		}
		conds = append(conds, "status IN ("+strings.Join(placeholders, ",")+")")
	}
	if f.Type != nil {
		conds = append(conds, fmt.Sprintf("type = $%d", argsPos))
		args = append(args, string(*f.Type))
		argsPos++
	}
	if f.StartedBefore != nil {
		conds = append(conds, fmt.Sprintf("started_at IS NOT NULL AND started_at < $%d", argsPos))
		args = append(args, *f.StartedBefore)
		argsPos++
	}
	if f.FinishedBefore != nil {
		conds = append(conds, fmt.Sprintf("finished_at IS NOT NULL AND finished_at < $%d", argsPos))
		args = append(args, *f.FinishedBefore)
		argsPos++
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	return where, args, argsPos
}

func (s *Store) FindMany(ctx context.Context, f store.Filter) ([]job.Job, error) {
	where, args, argsPos := buildFilter(f, 1)
	q := "SELECT " + selectColumns + " FROM jobs" + where + " ORDER BY created_at ASC"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d", argsPos)
		args = append(args, f.Limit)
	}

	var rows pgx.Rows
	op := "jobs.find_many"
	err := s.observe(op, func() error {
		var qerr error
		rows, qerr = s.pool.Query(ctx, q, args...)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]job.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// FindFirst supports orderBy "updatedAt" (ascending) in addition to the
// store's default created_at ordering.
func (s *Store) FindFirst(ctx context.Context, f store.Filter, orderBy string) (*job.Job, error) {
	where, args, argsPos := buildFilter(f, 1)
	order := "created_at ASC"
	if orderBy == "updatedAt" {
		order = "updated_at ASC"
	}
	q := "SELECT " + selectColumns + " FROM jobs" + where + " ORDER BY " + order + fmt.Sprintf(" LIMIT $%d", argsPos)
	args = append(args, 1)

	var j job.Job
	op := "jobs.find_first"
	err := s.observe(op, func() error {
		row := s.pool.QueryRow(ctx, q, args...)
		var scanErr error
		j, scanErr = scanJob(row)
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}

func (s *Store) Count(ctx context.Context, f store.Filter) (int, error) {
	where, args, _ := buildFilter(f, 1)
	q := "SELECT COUNT(*) FROM jobs" + where

	var count int
	op := "jobs.count"
	err := s.observe(op, func() error {
		return s.pool.QueryRow(ctx, q, args...).Scan(&count)
	})
	return count, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	op := "jobs.delete"
	return s.observe(op, func() error {
		_, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
		return err
	})
}

// ListCursor keyset-paginates on (updated_at, id), the same tuple shape the
// teacher's JobsRepo.ListCursor paginates events on.
func (s *Store) ListCursor(ctx context.Context, f store.Filter, afterUpdatedAt time.Time, afterID string) ([]job.Job, error) {
	where, args, argsPos := buildFilter(f, 1)

	cursorCond := fmt.Sprintf("(updated_at, id) > ($%d, $%d)", argsPos, argsPos+1)
	args = append(args, afterUpdatedAt, afterID)
	argsPos += 2

	if where == "" {
		where = " WHERE " + cursorCond
	} else {
		where += " AND " + cursorCond
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	q := "SELECT " + selectColumns + " FROM jobs" + where +
		" ORDER BY updated_at ASC, id ASC" + fmt.Sprintf(" LIMIT $%d", argsPos)
	args = append(args, limit+1)

	var rows pgx.Rows
	op := "jobs.list_cursor"
	err := s.observe(op, func() error {
		var qerr error
		rows, qerr = s.pool.Query(ctx, q, args...)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]job.Job, 0, limit+1)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
