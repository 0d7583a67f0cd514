// Package catalog models the learning-content graph (roadmaps, courses,
// modules, lessons, exercises) and defines how parent/child relationships
// are resolved for completion propagation. The catalog is read-mostly
// reference data owned by the education catalog store.
package catalog

import (
	"context"

	"github.com/learnora/learnora-progress/internal/domain/shared"
)

// Entity is one node of the content graph.
type Entity struct {
	// ID uniquely identifies the entity within its type.
	ID string

	// Type is the hierarchy level of the entity.
	Type shared.EntityType

	// ParentID is the ID of the entity one level up. Empty for roadmaps.
	ParentID string

	// Title is a human-readable name, informational only.
	Title string
}

// Resolver resolves parent/child relationships in the completion hierarchy.
//
// Both operations are pure lookups over reference data; implementations
// must be safe for concurrent use. A missing child ID indicates referential
// corruption and is reported as shared.ErrNotFound, never silently ignored.
type Resolver interface {
	// ParentOf returns the ID of the parent of the given child entity.
	// Returns an error matching shared.ErrNotFound when the child does not
	// exist or has no parent recorded in the catalog.
	ParentOf(ctx context.Context, childID string, childType shared.EntityType) (string, error)

	// ChildrenOf returns the full set of child IDs of the given parent
	// entity. A parent with no children yields an empty slice, not an error.
	// Returns an error matching shared.ErrNotFound when the parent does not
	// exist.
	ChildrenOf(ctx context.Context, parentID string, parentType shared.EntityType) ([]string, error)
}

// Repository persists catalog entities. Used by the catalog administration
// boundary and by persistence-backed Resolver implementations.
type Repository interface {
	Resolver

	// Get returns a single entity by ID and type.
	Get(ctx context.Context, id string, entityType shared.EntityType) (*Entity, error)

	// Upsert creates or replaces a catalog entity.
	Upsert(ctx context.Context, entity *Entity) error
}

// Validate checks structural consistency of an entity.
func (e *Entity) Validate() error {
	if e.ID == "" {
		return shared.NewDomainError("catalog", "Validate", shared.ErrEmptyValue, "entity ID is required")
	}
	if !e.Type.IsValid() {
		return shared.NewDomainError("catalog", "Validate", shared.ErrInvalidEntityType, "unknown entity type")
	}
	if e.Type == shared.EntityRoadmap && e.ParentID != "" {
		return shared.NewDomainError("catalog", "Validate", shared.ErrInvalidEntity, "roadmap cannot have a parent")
	}
	if e.Type != shared.EntityRoadmap && e.ParentID == "" {
		return shared.NewDomainError("catalog", "Validate", shared.ErrInvalidEntity, "non-roadmap entity requires a parent")
	}
	return nil
}
