package postgres

import (
	"context"

	"github.com/learnora/learnora-progress/internal/domain/achievement"
	"github.com/learnora/learnora-progress/internal/domain/shared"
)

// AchievementRepository is the PostgreSQL implementation of
// achievement.Repository.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new achievement repository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

// SaveDefinition implements achievement.Repository.
func (r *AchievementRepository) SaveDefinition(ctx context.Context, def *achievement.Achievement) error {
	if err := def.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO achievements (id, name, description, criterion_kind, criterion_entity_type, criterion_threshold, criterion_entity_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    criterion_kind = EXCLUDED.criterion_kind,
		    criterion_entity_type = EXCLUDED.criterion_entity_type,
		    criterion_threshold = EXCLUDED.criterion_threshold,
		    criterion_entity_id = EXCLUDED.criterion_entity_id
	`

	_, err := r.conn.Exec(ctx, query,
		def.ID,
		def.Name,
		def.Description,
		string(def.Criterion.Kind),
		string(def.Criterion.EntityType),
		def.Criterion.Threshold,
		def.Criterion.EntityID,
	)
	if err != nil {
		return shared.WrapError("achievement", "SaveDefinition", shared.ErrStoreUnavailable, "upsert failed", err)
	}
	return nil
}

// GetDefinition implements achievement.Repository.
func (r *AchievementRepository) GetDefinition(ctx context.Context, achievementID string) (*achievement.Achievement, error) {
	query := `
		SELECT id, name, description, criterion_kind, criterion_entity_type, criterion_threshold, criterion_entity_id
		FROM achievements
		WHERE id = $1
	`

	def, err := scanDefinition(r.conn.QueryRow(ctx, query, achievementID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAchievementNotFound
		}
		return nil, shared.WrapError("achievement", "GetDefinition", shared.ErrStoreUnavailable, "query failed", err)
	}
	return def, nil
}

// ListDefinitions implements achievement.Repository.
func (r *AchievementRepository) ListDefinitions(ctx context.Context) ([]*achievement.Achievement, error) {
	query := `
		SELECT id, name, description, criterion_kind, criterion_entity_type, criterion_threshold, criterion_entity_id
		FROM achievements
		ORDER BY id
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, shared.WrapError("achievement", "ListDefinitions", shared.ErrStoreUnavailable, "query failed", err)
	}
	defer rows.Close()

	var out []*achievement.Achievement
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, shared.WrapError("achievement", "ListDefinitions", shared.ErrStoreUnavailable, "scan failed", err)
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

// ListByUser implements achievement.Repository.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID string) ([]*achievement.UserAchievement, error) {
	query := `
		SELECT id, user_id, achievement_id, obtained_at
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY obtained_at
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, shared.WrapError("achievement", "ListByUser", shared.ErrStoreUnavailable, "query failed", err)
	}
	defer rows.Close()

	var out []*achievement.UserAchievement
	for rows.Next() {
		var ua achievement.UserAchievement
		if err := rows.Scan(&ua.ID, &ua.UserID, &ua.AchievementID, &ua.ObtainedAt); err != nil {
			return nil, shared.WrapError("achievement", "ListByUser", shared.ErrStoreUnavailable, "scan failed", err)
		}
		out = append(out, &ua)
	}
	return out, rows.Err()
}

// Has implements achievement.Repository.
func (r *AchievementRepository) Has(ctx context.Context, userID, achievementID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM user_achievements WHERE user_id = $1 AND achievement_id = $2)`

	var exists bool
	if err := r.conn.QueryRow(ctx, query, userID, achievementID).Scan(&exists); err != nil {
		return false, shared.WrapError("achievement", "Has", shared.ErrStoreUnavailable, "query failed", err)
	}
	return exists, nil
}

// Award implements achievement.Repository. Exactly-once comes from the
// unique constraint: concurrent inserts race and the loser affects zero
// rows, which reads back as created=false.
func (r *AchievementRepository) Award(ctx context.Context, record *achievement.UserAchievement) (bool, error) {
	query := `
		INSERT INTO user_achievements (id, user_id, achievement_id, obtained_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`

	tag, err := r.conn.Exec(ctx, query, record.ID, record.UserID, record.AchievementID, record.ObtainedAt)
	if err != nil {
		return false, shared.WrapError("achievement", "Award", shared.ErrStoreUnavailable, "insert failed", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanDefinition(row rowScanner) (*achievement.Achievement, error) {
	var def achievement.Achievement
	var kind, entityType string
	err := row.Scan(
		&def.ID,
		&def.Name,
		&def.Description,
		&kind,
		&entityType,
		&def.Criterion.Threshold,
		&def.Criterion.EntityID,
	)
	if err != nil {
		return nil, err
	}
	def.Criterion.Kind = achievement.CriterionKind(kind)
	def.Criterion.EntityType = shared.EntityType(entityType)
	return &def, nil
}
