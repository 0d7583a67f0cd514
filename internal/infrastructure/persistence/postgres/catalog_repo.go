package postgres

import (
	"context"

	"github.com/learnora/learnora-progress/internal/domain/catalog"
	"github.com/learnora/learnora-progress/internal/domain/shared"
)

// CatalogRepository is the PostgreSQL implementation of catalog.Repository.
type CatalogRepository struct {
	conn *Connection
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(conn *Connection) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

// Upsert implements catalog.Repository.
func (r *CatalogRepository) Upsert(ctx context.Context, entity *catalog.Entity) error {
	if err := entity.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO catalog_entities (entity_id, entity_type, parent_id, title)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (entity_type, entity_id) DO UPDATE
		SET parent_id = EXCLUDED.parent_id,
		    title = EXCLUDED.title,
		    updated_at = NOW()
	`

	_, err := r.conn.Exec(ctx, query, entity.ID, string(entity.Type), entity.ParentID, entity.Title)
	if err != nil {
		return shared.WrapError("catalog", "Upsert", shared.ErrStoreUnavailable, "upsert failed", err)
	}
	return nil
}

// Get implements catalog.Repository.
func (r *CatalogRepository) Get(ctx context.Context, id string, entityType shared.EntityType) (*catalog.Entity, error) {
	query := `
		SELECT entity_id, entity_type, COALESCE(parent_id, ''), title
		FROM catalog_entities
		WHERE entity_type = $1 AND entity_id = $2
	`

	var e catalog.Entity
	var typ string
	err := r.conn.QueryRow(ctx, query, string(entityType), id).Scan(&e.ID, &typ, &e.ParentID, &e.Title)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCatalogEntityNotFound
		}
		return nil, shared.WrapError("catalog", "Get", shared.ErrStoreUnavailable, "query failed", err)
	}
	e.Type = shared.EntityType(typ)
	return &e, nil
}

// ParentOf implements catalog.Resolver.
func (r *CatalogRepository) ParentOf(ctx context.Context, childID string, childType shared.EntityType) (string, error) {
	entity, err := r.Get(ctx, childID, childType)
	if err != nil {
		return "", err
	}
	if entity.ParentID == "" {
		return "", shared.ErrCatalogOrphanEntity
	}
	return entity.ParentID, nil
}

// ChildrenOf implements catalog.Resolver.
func (r *CatalogRepository) ChildrenOf(ctx context.Context, parentID string, parentType shared.EntityType) ([]string, error) {
	// Verify the parent exists: an unknown parent is a hard error, while a
	// known parent with no children is an empty slice.
	if _, err := r.Get(ctx, parentID, parentType); err != nil {
		return nil, err
	}

	childType, ok := parentType.Child()
	if !ok {
		return []string{}, nil
	}

	query := `
		SELECT entity_id
		FROM catalog_entities
		WHERE parent_id = $1 AND entity_type = $2
		ORDER BY entity_id
	`

	rows, err := r.conn.Query(ctx, query, parentID, string(childType))
	if err != nil {
		return nil, shared.WrapError("catalog", "ChildrenOf", shared.ErrStoreUnavailable, "query failed", err)
	}
	defer rows.Close()

	children := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, shared.WrapError("catalog", "ChildrenOf", shared.ErrStoreUnavailable, "scan failed", err)
		}
		children = append(children, id)
	}
	return children, rows.Err()
}
