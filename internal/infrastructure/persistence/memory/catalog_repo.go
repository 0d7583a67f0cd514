package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/learnora/learnora-progress/internal/domain/catalog"
	"github.com/learnora/learnora-progress/internal/domain/shared"
)

// CatalogRepository is an in-memory catalog.Repository.
type CatalogRepository struct {
	mu       sync.RWMutex
	entities map[string]*catalog.Entity // keyed by type:id
	children map[string][]string        // parent type:id -> child IDs
}

func catalogKey(id string, entityType shared.EntityType) string {
	return string(entityType) + ":" + id
}

// NewCatalogRepository creates an empty in-memory catalog.
func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		entities: make(map[string]*catalog.Entity),
		children: make(map[string][]string),
	}
}

// Upsert implements catalog.Repository.
func (r *CatalogRepository) Upsert(ctx context.Context, entity *catalog.Entity) error {
	if err := entity.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := catalogKey(entity.ID, entity.Type)
	if prev, ok := r.entities[key]; ok && prev.ParentID != "" {
		r.removeChild(prev)
	}

	cp := *entity
	r.entities[key] = &cp

	if entity.ParentID != "" {
		parentType, _ := entity.Type.Parent()
		pkey := catalogKey(entity.ParentID, parentType)
		r.children[pkey] = append(r.children[pkey], entity.ID)
		sort.Strings(r.children[pkey])
	}
	return nil
}

func (r *CatalogRepository) removeChild(e *catalog.Entity) {
	parentType, ok := e.Type.Parent()
	if !ok {
		return
	}
	pkey := catalogKey(e.ParentID, parentType)
	kids := r.children[pkey]
	for i, id := range kids {
		if id == e.ID {
			r.children[pkey] = append(kids[:i], kids[i+1:]...)
			return
		}
	}
}

// Get implements catalog.Repository.
func (r *CatalogRepository) Get(ctx context.Context, id string, entityType shared.EntityType) (*catalog.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entities[catalogKey(id, entityType)]
	if !ok {
		return nil, shared.ErrCatalogEntityNotFound
	}
	cp := *e
	return &cp, nil
}

// ParentOf implements catalog.Resolver.
func (r *CatalogRepository) ParentOf(ctx context.Context, childID string, childType shared.EntityType) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entities[catalogKey(childID, childType)]
	if !ok {
		return "", shared.ErrCatalogEntityNotFound
	}
	if e.ParentID == "" {
		return "", shared.ErrCatalogOrphanEntity
	}
	return e.ParentID, nil
}

// ChildrenOf implements catalog.Resolver.
func (r *CatalogRepository) ChildrenOf(ctx context.Context, parentID string, parentType shared.EntityType) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.entities[catalogKey(parentID, parentType)]; !ok {
		return nil, shared.ErrCatalogEntityNotFound
	}
	kids := r.children[catalogKey(parentID, parentType)]
	out := make([]string, len(kids))
	copy(out, kids)
	return out, nil
}
