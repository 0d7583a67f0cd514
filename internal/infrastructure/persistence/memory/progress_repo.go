// Package memory provides in-memory repository implementations. They back
// the dev mode of the server (no DATABASE_URL configured) and the
// application-layer tests. All types are safe for concurrent use.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/learnora/learnora-progress/internal/domain/progress"
	"github.com/learnora/learnora-progress/internal/domain/shared"
)

// ProgressRepository is an in-memory progress.Repository.
type ProgressRepository struct {
	mu      sync.RWMutex
	records map[string]*progress.UserProgress
}

// NewProgressRepository creates an empty in-memory progress store.
func NewProgressRepository() *ProgressRepository {
	return &ProgressRepository{
		records: make(map[string]*progress.UserProgress),
	}
}

// Get implements progress.Repository.
func (r *ProgressRepository) Get(ctx context.Context, userID, entityID string, entityType shared.EntityType) (*progress.UserProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[progress.ProgressKey(userID, entityID, entityType)]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return rec.Clone(), nil
}

// CompleteIfPending implements progress.Repository. The whole upsert runs
// under one lock, matching the atomicity of the SQL compare-and-set.
func (r *ProgressRepository) CompleteIfPending(ctx context.Context, userID, entityID string, entityType shared.EntityType, at time.Time) (*progress.UserProgress, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := progress.ProgressKey(userID, entityID, entityType)
	rec, ok := r.records[key]
	if !ok {
		rec = progress.NewUserProgress(userID, entityID, entityType)
		r.records[key] = rec
	}

	transitioned := rec.MarkCompleted(at)
	return rec.Clone(), transitioned, nil
}

// CompletedSet implements progress.Repository.
func (r *ProgressRepository) CompletedSet(ctx context.Context, userID string, entityType shared.EntityType, entityIDs []string) (map[string]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		rec, ok := r.records[progress.ProgressKey(userID, id, entityType)]
		out[id] = ok && rec.Completed
	}
	return out, nil
}

// CountCompletedByType implements progress.Repository.
func (r *ProgressRepository) CountCompletedByType(ctx context.Context, userID string, entityType shared.EntityType) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, rec := range r.records {
		if rec.UserID == userID && rec.EntityType == entityType && rec.Completed {
			count++
		}
	}
	return count, nil
}

// ListByUser implements progress.Repository.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID string) ([]*progress.UserProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*progress.UserProgress
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}
