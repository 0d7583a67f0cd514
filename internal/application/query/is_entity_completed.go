package query

import (
	"context"

	"github.com/learnora/learnora-progress/internal/domain/progress"
	"github.com/learnora/learnora-progress/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IS ENTITY COMPLETED QUERY
// Point lookup of one user's completion state for one entity.
// ══════════════════════════════════════════════════════════════════════════════

// IsEntityCompletedQuery contains parameters for the completion lookup.
type IsEntityCompletedQuery struct {
	UserID     string
	EntityID   string
	EntityType shared.EntityType
}

// Validate checks the query parameters.
func (q IsEntityCompletedQuery) Validate() error {
	if q.UserID == "" {
		return shared.ErrProgressInvalidUser
	}
	if q.EntityID == "" || !q.EntityType.IsValid() {
		return shared.ErrProgressInvalidKey
	}
	return nil
}

// IsEntityCompletedHandler handles completion lookups.
type IsEntityCompletedHandler struct {
	progressRepo progress.Repository
}

// NewIsEntityCompletedHandler creates a new handler.
func NewIsEntityCompletedHandler(progressRepo progress.Repository) *IsEntityCompletedHandler {
	return &IsEntityCompletedHandler{progressRepo: progressRepo}
}

// Handle executes the lookup. An entity the user never touched reads as not
// completed; only store failures surface as errors.
func (h *IsEntityCompletedHandler) Handle(ctx context.Context, query IsEntityCompletedQuery) (bool, error) {
	if err := query.Validate(); err != nil {
		return false, shared.WrapError("query", "IsEntityCompleted", shared.ErrValidation, "invalid query", err)
	}

	rec, err := h.progressRepo.Get(ctx, query.UserID, query.EntityID, query.EntityType)
	if err != nil {
		if shared.IsNotFound(err) {
			return false, nil
		}
		return false, shared.WrapError("query", "IsEntityCompleted", shared.ErrStoreUnavailable, "failed to load progress", err)
	}
	return rec.Completed, nil
}
