// Package progress contains the per-user, per-entity completion records and
// the repository contract backing them.
package progress

import (
	"fmt"
	"time"

	"github.com/learnora/learnora-progress/internal/domain/shared"
)

// UserProgress is one user's completion record for one entity.
//
// Identity key = (UserID, EntityID, EntityType); at most one record exists
// per key (upsert semantics). Completion is monotonic: once Completed is
// true, nothing in this subsystem sets it back to false.
type UserProgress struct {
	// UserID identifies the learner.
	UserID string

	// EntityID identifies the content entity.
	EntityID string

	// EntityType is the hierarchy level of the entity.
	EntityType shared.EntityType

	// Completed reports whether the user has completed the entity.
	Completed bool

	// CompletedAt is when completion happened. Nil while incomplete.
	CompletedAt *time.Time

	// CreatedAt is when the record was first created.
	CreatedAt time.Time

	// UpdatedAt is when the record was last modified.
	UpdatedAt time.Time
}

// NewUserProgress creates an incomplete progress record for the key.
func NewUserProgress(userID, entityID string, entityType shared.EntityType) *UserProgress {
	now := time.Now().UTC()
	return &UserProgress{
		UserID:     userID,
		EntityID:   entityID,
		EntityType: entityType,
		Completed:  false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Key returns the canonical identity key of the record.
func (p *UserProgress) Key() string {
	return ProgressKey(p.UserID, p.EntityID, p.EntityType)
}

// ProgressKey builds the canonical identity key for a (user, entity, type)
// triple. Used by in-memory stores and caches.
func ProgressKey(userID, entityID string, entityType shared.EntityType) string {
	return fmt.Sprintf("%s:%s:%s", userID, entityType, entityID)
}

// MarkCompleted transitions the record to completed at the given time.
// Returns false without modifying anything when the record is already
// completed; the first CompletedAt always wins.
func (p *UserProgress) MarkCompleted(at time.Time) bool {
	if p.Completed {
		return false
	}
	at = at.UTC()
	p.Completed = true
	p.CompletedAt = &at
	p.UpdatedAt = at
	return true
}

// Validate checks the identity key of the record.
func (p *UserProgress) Validate() error {
	if p.UserID == "" {
		return shared.ErrProgressInvalidUser
	}
	if p.EntityID == "" || !p.EntityType.IsValid() {
		return shared.ErrProgressInvalidKey
	}
	return nil
}

// Clone returns a deep copy of the record.
func (p *UserProgress) Clone() *UserProgress {
	cp := *p
	if p.CompletedAt != nil {
		at := *p.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}
