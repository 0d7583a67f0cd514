package progress

import (
	"context"
	"time"

	"github.com/learnora/learnora-progress/internal/domain/shared"
)

// Repository persists UserProgress records.
//
// Implementations must enforce the (UserID, EntityID, EntityType) uniqueness
// constraint and must make CompleteIfPending an atomic compare-and-set so
// that concurrent writers observe exactly one pending-to-completed
// transition per record.
type Repository interface {
	// Get returns the record for the key, or an error matching
	// shared.ErrNotFound when no record exists.
	Get(ctx context.Context, userID, entityID string, entityType shared.EntityType) (*UserProgress, error)

	// CompleteIfPending upserts the record for the key as completed.
	//
	// The returned bool reports whether this call performed the
	// pending-to-completed transition. When the record was already
	// completed, the stored record is returned unchanged with false and
	// a nil error; duplicate completions are not an error.
	CompleteIfPending(ctx context.Context, userID, entityID string, entityType shared.EntityType, at time.Time) (*UserProgress, bool, error)

	// CompletedSet reports, for each of the given entity IDs of one type,
	// whether the user has completed it. IDs with no record map to false.
	CompletedSet(ctx context.Context, userID string, entityType shared.EntityType, entityIDs []string) (map[string]bool, error)

	// CountCompletedByType returns the number of completed records the user
	// has for the given entity type.
	CountCompletedByType(ctx context.Context, userID string, entityType shared.EntityType) (int, error)

	// ListByUser returns all progress records for the user, completed or not.
	ListByUser(ctx context.Context, userID string) ([]*UserProgress, error)
}
