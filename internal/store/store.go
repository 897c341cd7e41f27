// Package store defines the external persistence contract the Queue relies
// on (SPEC_FULL.md §6 / spec.md §6). The engine never talks to a database
// directly — it talks to this interface, which internal/store/postgres and
// internal/store/memory implement.
package store

import (
	"context"
	"time"

	"github.com/jobforge/jobforge/internal/engine/job"
)

// Filter narrows FindMany/Count queries. Zero-value fields are unfiltered.
type Filter struct {
	Statuses       []job.Status
	Type           *job.Type
	StartedBefore  *time.Time
	FinishedBefore *time.Time
	Limit          int
}

// JobStore is the abstract record store described in spec.md §6.
type JobStore interface {
	// Upsert persists a job keyed by ID. Implementations must be
	// idempotent: calling Upsert twice with the same record is a no-op
	// the second time (spec.md §5 "Persistence writes are idempotent
	// upserts").
	Upsert(ctx context.Context, j job.Job) error

	// FindMany is used at startup to recover non-terminal jobs.
	FindMany(ctx context.Context, filter Filter) ([]job.Job, error)

	// FindFirst is used for oldest-pending / last-processed lookups. An
	// empty orderBy means the store's default order (created_at ascending
	// in both the postgres and memory stores).
	FindFirst(ctx context.Context, filter Filter, orderBy string) (*job.Job, error)

	// Count is used for stuck-job detection and admin summaries.
	Count(ctx context.Context, filter Filter) (int, error)

	// Delete removes a job record; used by cleanup sweeps.
	Delete(ctx context.Context, id string) error

	// ListCursor keyset-paginates jobs ordered by (updated_at, id), grounded
	// on the teacher's JobsRepo.ListCursor. afterUpdatedAt/afterID select
	// the page strictly after that tuple; pass the zero time and "" for the
	// first page. Returns one more row than filter.Limit when there's a
	// next page, so callers can compute hasMore without a second query.
	ListCursor(ctx context.Context, filter Filter, afterUpdatedAt time.Time, afterID string) ([]job.Job, error)
}

// ErrForeignKeyViolation classifies the one recoverable store error
// subclass named in spec.md §7/§9: a digestId pointing nowhere. Concrete
// stores should wrap their driver-specific constraint-violation error so
// that errors.Is(err, ErrForeignKeyViolation) works for callers.
var ErrForeignKeyViolation = errFK{}

type errFK struct{}

func (errFK) Error() string { return "foreign key violation" }
