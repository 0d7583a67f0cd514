// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/learnora/learnora-progress/internal/domain/progress"
	"github.com/learnora/learnora-progress/internal/domain/shared"
	"github.com/learnora/learnora-progress/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS SUMMARY QUERY
// Aggregates a user's completion counts across all hierarchy levels.
// Backs the profile screen and the user progress API endpoint.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressSummaryQuery contains parameters for the summary query.
type GetProgressSummaryQuery struct {
	// UserID is the learner to summarize.
	UserID string
}

// Validate checks the query parameters.
func (q GetProgressSummaryQuery) Validate() error {
	if q.UserID == "" {
		return shared.ErrProgressInvalidUser
	}
	return nil
}

// TypeSummaryDTO is the completion summary for one hierarchy level.
type TypeSummaryDTO struct {
	// EntityType is the hierarchy level.
	EntityType shared.EntityType `json:"entity_type"`

	// Completed is the number of completed entities of this type.
	Completed int `json:"completed"`
}

// ProgressSummaryDTO is the aggregated summary for a user.
type ProgressSummaryDTO struct {
	// UserID is the learner.
	UserID string `json:"user_id"`

	// ByType lists completion counts ordered from exercise to roadmap.
	ByType []TypeSummaryDTO `json:"by_type"`

	// TotalCompleted is the number of completed entities across all types.
	TotalCompleted int `json:"total_completed"`

	// CompletedToday is the number of entities completed today (UTC day).
	CompletedToday int `json:"completed_today"`

	// LastCompletedAt is the most recent completion time, if any.
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`

	// GeneratedAt is when the summary was built.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetProgressSummaryHandler handles the summary query.
type GetProgressSummaryHandler struct {
	progressRepo progress.Repository
}

// NewGetProgressSummaryHandler creates a new handler.
func NewGetProgressSummaryHandler(progressRepo progress.Repository) *GetProgressSummaryHandler {
	return &GetProgressSummaryHandler{progressRepo: progressRepo}
}

// Handle executes the query.
func (h *GetProgressSummaryHandler) Handle(ctx context.Context, query GetProgressSummaryQuery) (*ProgressSummaryDTO, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetProgressSummary", shared.ErrValidation, "invalid query", err)
	}

	records, err := h.progressRepo.ListByUser(ctx, query.UserID)
	if err != nil {
		return nil, shared.WrapError("query", "GetProgressSummary", shared.ErrStoreUnavailable, "failed to load progress", err)
	}

	summary := &ProgressSummaryDTO{
		UserID:      query.UserID,
		GeneratedAt: time.Now().UTC(),
	}

	counts := make(map[shared.EntityType]int)
	for _, rec := range records {
		if !rec.Completed {
			continue
		}
		counts[rec.EntityType]++
		summary.TotalCompleted++
		if rec.CompletedAt != nil {
			if timeutil.IsToday(*rec.CompletedAt) {
				summary.CompletedToday++
			}
			if summary.LastCompletedAt == nil || rec.CompletedAt.After(*summary.LastCompletedAt) {
				at := *rec.CompletedAt
				summary.LastCompletedAt = &at
			}
		}
	}

	for _, entityType := range shared.AllEntityTypes() {
		summary.ByType = append(summary.ByType, TypeSummaryDTO{
			EntityType: entityType,
			Completed:  counts[entityType],
		})
	}

	return summary, nil
}
