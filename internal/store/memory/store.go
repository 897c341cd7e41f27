// Package memory provides an in-memory JobStore, grounded on the teacher's
// internal/repo/memory/events_repo.go pattern (map + RWMutex + sorted
// List). It backs engine unit tests and the reference Queue examples; it is
// not meant for production durability.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jobforge/jobforge/internal/engine/job"
	"github.com/jobforge/jobforge/internal/store"
)

type Store struct {
	mu    sync.RWMutex
	items map[string]job.Job
}

func New() *Store {
	return &Store{items: make(map[string]job.Job)}
}

func (s *Store) Upsert(_ context.Context, j job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[j.ID] = j.Clone()
	return nil
}

func matches(j job.Job, f store.Filter) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if j.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Type != nil && j.Type != *f.Type {
		return false
	}
	if f.StartedBefore != nil {
		if j.StartedAt == nil || !j.StartedAt.Before(*f.StartedBefore) {
			return false
		}
	}
	if f.FinishedBefore != nil {
		if j.FinishedAt == nil || !j.FinishedAt.Before(*f.FinishedBefore) {
			return false
		}
	}
	return true
}

func (s *Store) FindMany(_ context.Context, f store.Filter) ([]job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]job.Job, 0, len(s.items))
	for _, j := range s.items {
		if matches(j, f) {
			out = append(out, j.Clone())
		}
	}

	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) FindFirst(ctx context.Context, f store.Filter, orderBy string) (*job.Job, error) {
	all, err := s.FindMany(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	if orderBy == "updatedAt" {
		sort.Slice(all, func(i, k int) bool { return all[i].UpdatedAt.Before(all[k].UpdatedAt) })
	}
	j := all[0]
	return &j, nil
}

func (s *Store) Count(ctx context.Context, f store.Filter) (int, error) {
	all, err := s.FindMany(ctx, f)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *Store) ListCursor(ctx context.Context, f store.Filter, afterUpdatedAt time.Time, afterID string) ([]job.Job, error) {
	limit := f.Limit
	f.Limit = 0
	all, err := s.FindMany(ctx, f)
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, k int) bool {
		if !all[i].UpdatedAt.Equal(all[k].UpdatedAt) {
			return all[i].UpdatedAt.Before(all[k].UpdatedAt)
		}
		return all[i].ID < all[k].ID
	})

	out := make([]job.Job, 0, len(all))
	for _, j := range all {
		if j.UpdatedAt.After(afterUpdatedAt) || (j.UpdatedAt.Equal(afterUpdatedAt) && j.ID > afterID) {
			out = append(out, j)
		}
	}

	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit+1 {
		out = out[:limit+1]
	}
	return out, nil
}
