// Package achievement defines achievement definitions, award records, and
// the pure evaluation logic that decides when a user has earned one.
package achievement

import (
	"time"

	"github.com/learnora/learnora-progress/internal/domain/shared"
)

// CriterionKind selects the evaluation rule of an achievement.
type CriterionKind string

const (
	// CriterionCountCompleted awards when the user has completed at least
	// Threshold entities of EntityType.
	CriterionCountCompleted CriterionKind = "count_completed"

	// CriterionSpecificEntity awards when the user has completed one named
	// entity.
	CriterionSpecificEntity CriterionKind = "specific_entity"
)

// Criterion is the declarative condition attached to an achievement.
type Criterion struct {
	Kind       CriterionKind     `json:"kind"`
	EntityType shared.EntityType `json:"entity_type"`

	// Threshold applies to count_completed criteria.
	Threshold int `json:"threshold,omitempty"`

	// EntityID applies to specific_entity criteria.
	EntityID string `json:"entity_id,omitempty"`
}

// Validate checks the criterion is well-formed for its kind.
func (c Criterion) Validate() error {
	if !c.EntityType.IsValid() {
		return shared.NewDomainError("achievement", "Validate", shared.ErrInvalidEntityType, "criterion entity type is unknown")
	}
	switch c.Kind {
	case CriterionCountCompleted:
		if c.Threshold <= 0 {
			return shared.NewDomainError("achievement", "Validate", shared.ErrInvalidInput, "count criterion requires a positive threshold")
		}
	case CriterionSpecificEntity:
		if c.EntityID == "" {
			return shared.NewDomainError("achievement", "Validate", shared.ErrEmptyValue, "specific-entity criterion requires an entity ID")
		}
	default:
		return shared.ErrUnknownCriterion
	}
	return nil
}

// Achievement is a static definition of an earnable badge.
type Achievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Criterion   Criterion `json:"criterion"`
}

// Validate checks the definition.
func (a *Achievement) Validate() error {
	if a.ID == "" || a.Name == "" {
		return shared.NewDomainError("achievement", "Validate", shared.ErrEmptyValue, "achievement ID and name are required")
	}
	return a.Criterion.Validate()
}

// UserAchievement records that a user earned an achievement. At most one
// record exists per (UserID, AchievementID) pair; the first award wins and
// ObtainedAt never changes afterwards.
type UserAchievement struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	ObtainedAt    time.Time `json:"obtained_at"`
}

// NewUserAchievement creates an award record.
func NewUserAchievement(id, userID, achievementID string, obtainedAt time.Time) *UserAchievement {
	return &UserAchievement{
		ID:            id,
		UserID:        userID,
		AchievementID: achievementID,
		ObtainedAt:    obtainedAt.UTC(),
	}
}
