package postgres

import (
	"context"
	"time"

	"github.com/learnora/learnora-progress/internal/domain/progress"
	"github.com/learnora/learnora-progress/internal/domain/shared"
)

// ProgressRepository is the PostgreSQL implementation of progress.Repository.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new progress repository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// Get implements progress.Repository.
func (r *ProgressRepository) Get(ctx context.Context, userID, entityID string, entityType shared.EntityType) (*progress.UserProgress, error) {
	query := `
		SELECT user_id, entity_id, entity_type, completed, completed_at, created_at, updated_at
		FROM user_progress
		WHERE user_id = $1 AND entity_id = $2 AND entity_type = $3
	`

	rec, err := scanProgress(r.conn.QueryRow(ctx, query, userID, entityID, string(entityType)))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, shared.WrapError("progress", "Get", shared.ErrStoreUnavailable, "query failed", err)
	}
	return rec, nil
}

// CompleteIfPending implements progress.Repository.
//
// The conditional upsert only touches rows that are still pending, so the
// RETURNING clause yields a row exactly when this call performed the
// transition. Losing the race is not an error; the stored record is
// fetched and returned with transitioned=false.
func (r *ProgressRepository) CompleteIfPending(ctx context.Context, userID, entityID string, entityType shared.EntityType, at time.Time) (*progress.UserProgress, bool, error) {
	query := `
		INSERT INTO user_progress (user_id, entity_id, entity_type, completed, completed_at)
		VALUES ($1, $2, $3, TRUE, $4)
		ON CONFLICT (user_id, entity_id, entity_type) DO UPDATE
		SET completed = TRUE,
		    completed_at = COALESCE(user_progress.completed_at, EXCLUDED.completed_at),
		    updated_at = NOW()
		WHERE user_progress.completed = FALSE
		RETURNING user_id, entity_id, entity_type, completed, completed_at, created_at, updated_at
	`

	rec, err := scanProgress(r.conn.QueryRow(ctx, query, userID, entityID, string(entityType), at.UTC()))
	if err == nil {
		return rec, true, nil
	}
	if !IsNoRows(err) {
		return nil, false, shared.WrapError("progress", "CompleteIfPending", shared.ErrStoreUnavailable, "upsert failed", err)
	}

	// No row returned: the record exists and was already completed.
	rec, err = r.Get(ctx, userID, entityID, entityType)
	if err != nil {
		return nil, false, err
	}
	return rec, false, nil
}

// CompletedSet implements progress.Repository.
func (r *ProgressRepository) CompletedSet(ctx context.Context, userID string, entityType shared.EntityType, entityIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		out[id] = false
	}
	if len(entityIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT entity_id
		FROM user_progress
		WHERE user_id = $1 AND entity_type = $2 AND completed AND entity_id = ANY($3)
	`

	rows, err := r.conn.Query(ctx, query, userID, string(entityType), entityIDs)
	if err != nil {
		return nil, shared.WrapError("progress", "CompletedSet", shared.ErrStoreUnavailable, "query failed", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, shared.WrapError("progress", "CompletedSet", shared.ErrStoreUnavailable, "scan failed", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

// CountCompletedByType implements progress.Repository.
func (r *ProgressRepository) CountCompletedByType(ctx context.Context, userID string, entityType shared.EntityType) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM user_progress
		WHERE user_id = $1 AND entity_type = $2 AND completed
	`

	var count int
	if err := r.conn.QueryRow(ctx, query, userID, string(entityType)).Scan(&count); err != nil {
		return 0, shared.WrapError("progress", "CountCompletedByType", shared.ErrStoreUnavailable, "query failed", err)
	}
	return count, nil
}

// ListByUser implements progress.Repository.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID string) ([]*progress.UserProgress, error) {
	query := `
		SELECT user_id, entity_id, entity_type, completed, completed_at, created_at, updated_at
		FROM user_progress
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, shared.WrapError("progress", "ListByUser", shared.ErrStoreUnavailable, "query failed", err)
	}
	defer rows.Close()

	var out []*progress.UserProgress
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, shared.WrapError("progress", "ListByUser", shared.ErrStoreUnavailable, "scan failed", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProgress(row rowScanner) (*progress.UserProgress, error) {
	var rec progress.UserProgress
	var entityType string
	err := row.Scan(
		&rec.UserID,
		&rec.EntityID,
		&entityType,
		&rec.Completed,
		&rec.CompletedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.EntityType = shared.EntityType(entityType)
	return &rec, nil
}
