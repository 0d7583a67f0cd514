package query

import (
	"context"
	"time"

	"github.com/learnora/learnora-progress/internal/domain/achievement"
	"github.com/learnora/learnora-progress/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST ACHIEVEMENTS QUERY
// Returns the full achievement catalog annotated with the user's awards.
// ══════════════════════════════════════════════════════════════════════════════

// ListAchievementsQuery contains parameters for the achievements listing.
type ListAchievementsQuery struct {
	// UserID is the learner whose awards annotate the listing.
	UserID string

	// ObtainedOnly limits the result to awarded achievements.
	ObtainedOnly bool
}

// Validate checks the query parameters.
func (q ListAchievementsQuery) Validate() error {
	if q.UserID == "" {
		return shared.ErrProgressInvalidUser
	}
	return nil
}

// AchievementDTO is one achievement with the user's award state.
type AchievementDTO struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Obtained    bool       `json:"obtained"`
	ObtainedAt  *time.Time `json:"obtained_at,omitempty"`
}

// ListAchievementsResult contains the achievements listing.
type ListAchievementsResult struct {
	UserID        string           `json:"user_id"`
	Achievements  []AchievementDTO `json:"achievements"`
	ObtainedCount int              `json:"obtained_count"`
	TotalCount    int              `json:"total_count"`
}

// ListAchievementsHandler handles the achievements listing.
type ListAchievementsHandler struct {
	achievementRepo achievement.Repository
}

// NewListAchievementsHandler creates a new handler.
func NewListAchievementsHandler(achievementRepo achievement.Repository) *ListAchievementsHandler {
	return &ListAchievementsHandler{achievementRepo: achievementRepo}
}

// Handle executes the query.
func (h *ListAchievementsHandler) Handle(ctx context.Context, query ListAchievementsQuery) (*ListAchievementsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "ListAchievements", shared.ErrValidation, "invalid query", err)
	}

	defs, err := h.achievementRepo.ListDefinitions(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "ListAchievements", shared.ErrStoreUnavailable, "failed to load definitions", err)
	}

	awards, err := h.achievementRepo.ListByUser(ctx, query.UserID)
	if err != nil {
		return nil, shared.WrapError("query", "ListAchievements", shared.ErrStoreUnavailable, "failed to load awards", err)
	}
	obtained := make(map[string]time.Time, len(awards))
	for _, ua := range awards {
		obtained[ua.AchievementID] = ua.ObtainedAt
	}

	result := &ListAchievementsResult{
		UserID:     query.UserID,
		TotalCount: len(defs),
	}
	for _, def := range defs {
		dto := AchievementDTO{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
		}
		if at, ok := obtained[def.ID]; ok {
			dto.Obtained = true
			dto.ObtainedAt = &at
			result.ObtainedCount++
		} else if query.ObtainedOnly {
			continue
		}
		result.Achievements = append(result.Achievements, dto)
	}

	return result, nil
}
