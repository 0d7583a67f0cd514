// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import "strings"

// EntityType tags a node in the learning-content hierarchy.
// The hierarchy is fixed and five levels deep:
//
//	EXERCISE < LESSON < MODULE < COURSE < ROADMAP
//
// Completion propagates strictly upward along this ordering.
type EntityType string

const (
	EntityExercise EntityType = "exercise"
	EntityLesson   EntityType = "lesson"
	EntityModule   EntityType = "module"
	EntityCourse   EntityType = "course"
	EntityRoadmap  EntityType = "roadmap"
)

// HierarchyDepth is the number of levels in the entity hierarchy.
// The upward propagation loop is bounded by HierarchyDepth - 1 steps.
const HierarchyDepth = 5

// hierarchyRank orders entity types from leaf (0) to root.
var hierarchyRank = map[EntityType]int{
	EntityExercise: 0,
	EntityLesson:   1,
	EntityModule:   2,
	EntityCourse:   3,
	EntityRoadmap:  4,
}

// IsValid reports whether t is one of the known entity types.
func (t EntityType) IsValid() bool {
	_, ok := hierarchyRank[t]
	return ok
}

// Rank returns the position of t in the hierarchy (0 = exercise).
// Returns -1 for unknown types.
func (t EntityType) Rank() int {
	rank, ok := hierarchyRank[t]
	if !ok {
		return -1
	}
	return rank
}

// Parent returns the entity type one level up in the hierarchy.
// The second return value is false when t is the root (ROADMAP) or unknown.
func (t EntityType) Parent() (EntityType, bool) {
	switch t {
	case EntityExercise:
		return EntityLesson, true
	case EntityLesson:
		return EntityModule, true
	case EntityModule:
		return EntityCourse, true
	case EntityCourse:
		return EntityRoadmap, true
	default:
		return "", false
	}
}

// Child returns the entity type one level down in the hierarchy.
// The second return value is false when t is the leaf (EXERCISE) or unknown.
func (t EntityType) Child() (EntityType, bool) {
	switch t {
	case EntityLesson:
		return EntityExercise, true
	case EntityModule:
		return EntityLesson, true
	case EntityCourse:
		return EntityModule, true
	case EntityRoadmap:
		return EntityCourse, true
	default:
		return "", false
	}
}

// String implements fmt.Stringer.
func (t EntityType) String() string {
	return string(t)
}

// ParseEntityType parses a string into an EntityType. Matching is
// case-insensitive: clients send the uppercase hierarchy tags ("EXERCISE",
// "ROADMAP") while the canonical values are lowercase.
// Returns ErrInvalidEntityType for unknown values.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", ErrInvalidEntityType
	}
	return t, nil
}

// AllEntityTypes returns the entity types ordered from leaf to root.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityExercise,
		EntityLesson,
		EntityModule,
		EntityCourse,
		EntityRoadmap,
	}
}
