package achievement

import (
	"github.com/learnora/learnora-progress/internal/domain/shared"
)

// ProgressSnapshot is the persisted completion state an evaluation runs
// against. It is built from the progress store at evaluation time, never
// from the triggering event payload, so that evaluation is a pure function
// of stored state.
type ProgressSnapshot struct {
	// CompletedCounts maps entity type to the number of completed entities.
	CompletedCounts map[shared.EntityType]int

	// CompletedEntities maps entity type to the set of completed entity IDs.
	CompletedEntities map[shared.EntityType]map[string]bool
}

// NewProgressSnapshot returns an empty snapshot.
func NewProgressSnapshot() *ProgressSnapshot {
	return &ProgressSnapshot{
		CompletedCounts:   make(map[shared.EntityType]int),
		CompletedEntities: make(map[shared.EntityType]map[string]bool),
	}
}

// Record marks one entity as completed in the snapshot.
func (s *ProgressSnapshot) Record(entityID string, entityType shared.EntityType) {
	s.CompletedCounts[entityType]++
	set, ok := s.CompletedEntities[entityType]
	if !ok {
		set = make(map[string]bool)
		s.CompletedEntities[entityType] = set
	}
	set[entityID] = true
}

// HasCompleted reports whether the snapshot contains the entity.
func (s *ProgressSnapshot) HasCompleted(entityID string, entityType shared.EntityType) bool {
	return s.CompletedEntities[entityType][entityID]
}

// Checker evaluates achievement criteria against a progress snapshot.
// It is stateless and safe for concurrent use.
type Checker struct{}

// NewChecker creates a Checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Satisfied reports whether the snapshot satisfies the achievement's
// criterion. Unknown criterion kinds return ErrUnknownCriterion so that
// misconfigured definitions surface instead of silently never awarding.
func (c *Checker) Satisfied(def *Achievement, snapshot *ProgressSnapshot) (bool, error) {
	crit := def.Criterion
	switch crit.Kind {
	case CriterionCountCompleted:
		return snapshot.CompletedCounts[crit.EntityType] >= crit.Threshold, nil
	case CriterionSpecificEntity:
		return snapshot.HasCompleted(crit.EntityID, crit.EntityType), nil
	default:
		return false, shared.ErrUnknownCriterion
	}
}

// Evaluate returns the subset of definitions the snapshot satisfies,
// excluding those already held. Order of the input is preserved.
func (c *Checker) Evaluate(defs []*Achievement, held map[string]bool, snapshot *ProgressSnapshot) ([]*Achievement, error) {
	var earned []*Achievement
	for _, def := range defs {
		if held[def.ID] {
			continue
		}
		ok, err := c.Satisfied(def, snapshot)
		if err != nil {
			return nil, err
		}
		if ok {
			earned = append(earned, def)
		}
	}
	return earned, nil
}
