package achievement

import (
	"context"
)

// Repository persists achievement definitions and user award records.
//
// Implementations must enforce the (UserID, AchievementID) uniqueness
// constraint so that Award is the single point deciding exactly-once
// semantics under concurrent evaluations.
type Repository interface {
	// ListDefinitions returns all achievement definitions.
	ListDefinitions(ctx context.Context) ([]*Achievement, error)

	// GetDefinition returns one definition by ID, or an error matching
	// shared.ErrNotFound.
	GetDefinition(ctx context.Context, achievementID string) (*Achievement, error)

	// SaveDefinition creates or replaces a definition.
	SaveDefinition(ctx context.Context, def *Achievement) error

	// ListByUser returns all award records of the user.
	ListByUser(ctx context.Context, userID string) ([]*UserAchievement, error)

	// Has reports whether the user already holds the achievement.
	Has(ctx context.Context, userID, achievementID string) (bool, error)

	// Award inserts the record unless the user already holds the
	// achievement. The returned bool reports whether this call created the
	// record; losing a concurrent insert race returns false with nil error.
	Award(ctx context.Context, record *UserAchievement) (bool, error)
}
