package achievement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnora/learnora-progress/internal/domain/shared"
)

func countDef(id string, entityType shared.EntityType, threshold int) *Achievement {
	return &Achievement{
		ID:   id,
		Name: id,
		Criterion: Criterion{
			Kind:       CriterionCountCompleted,
			EntityType: entityType,
			Threshold:  threshold,
		},
	}
}

func TestChecker_SatisfiedCountCriterion(t *testing.T) {
	checker := NewChecker()
	def := countDef("five-lessons", shared.EntityLesson, 5)

	snapshot := NewProgressSnapshot()
	for i := 0; i < 4; i++ {
		snapshot.Record(string(rune('a'+i)), shared.EntityLesson)
	}

	ok, err := checker.Satisfied(def, snapshot)
	require.NoError(t, err)
	assert.False(t, ok, "4 lessons should not satisfy a threshold of 5")

	snapshot.Record("e", shared.EntityLesson)
	ok, err = checker.Satisfied(def, snapshot)
	require.NoError(t, err)
	assert.True(t, ok, "5 lessons should satisfy a threshold of 5")
}

func TestChecker_SatisfiedSpecificEntityCriterion(t *testing.T) {
	checker := NewChecker()
	def := &Achievement{
		ID:   "finish-go-course",
		Name: "finish-go-course",
		Criterion: Criterion{
			Kind:       CriterionSpecificEntity,
			EntityType: shared.EntityCourse,
			EntityID:   "course-go",
		},
	}

	snapshot := NewProgressSnapshot()
	snapshot.Record("course-python", shared.EntityCourse)

	ok, err := checker.Satisfied(def, snapshot)
	require.NoError(t, err)
	assert.False(t, ok)

	snapshot.Record("course-go", shared.EntityCourse)
	ok, err = checker.Satisfied(def, snapshot)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestChecker_SatisfiedCountsOnlyMatchingType(t *testing.T) {
	checker := NewChecker()
	def := countDef("first-module", shared.EntityModule, 1)

	snapshot := NewProgressSnapshot()
	snapshot.Record("lesson-1", shared.EntityLesson)
	snapshot.Record("exercise-1", shared.EntityExercise)

	ok, err := checker.Satisfied(def, snapshot)
	require.NoError(t, err)
	assert.False(t, ok, "completions of other types must not count")
}

func TestChecker_UnknownCriterionKind(t *testing.T) {
	checker := NewChecker()
	def := &Achievement{
		ID:   "broken",
		Name: "broken",
		Criterion: Criterion{
			Kind:       CriterionKind("streak_days"),
			EntityType: shared.EntityLesson,
		},
	}

	_, err := checker.Satisfied(def, NewProgressSnapshot())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestChecker_EvaluateSkipsHeldAchievements(t *testing.T) {
	checker := NewChecker()
	defs := []*Achievement{
		countDef("first-exercise", shared.EntityExercise, 1),
		countDef("ten-exercises", shared.EntityExercise, 10),
	}

	snapshot := NewProgressSnapshot()
	for i := 0; i < 10; i++ {
		snapshot.Record(string(rune('a'+i)), shared.EntityExercise)
	}

	held := map[string]bool{"first-exercise": true}
	earned, err := checker.Evaluate(defs, held, snapshot)
	require.NoError(t, err)
	require.Len(t, earned, 1)
	assert.Equal(t, "ten-exercises", earned[0].ID)
}

func TestChecker_EvaluateEmptySnapshot(t *testing.T) {
	checker := NewChecker()
	earned, err := checker.Evaluate(DefaultDefinitions(), nil, NewProgressSnapshot())
	require.NoError(t, err)
	assert.Empty(t, earned)
}

func TestCriterion_Validate(t *testing.T) {
	tests := []struct {
		name      string
		criterion Criterion
		wantErr   bool
	}{
		{
			name: "valid count criterion",
			criterion: Criterion{
				Kind:       CriterionCountCompleted,
				EntityType: shared.EntityLesson,
				Threshold:  3,
			},
		},
		{
			name: "count criterion with zero threshold",
			criterion: Criterion{
				Kind:       CriterionCountCompleted,
				EntityType: shared.EntityLesson,
			},
			wantErr: true,
		},
		{
			name: "specific entity without ID",
			criterion: Criterion{
				Kind:       CriterionSpecificEntity,
				EntityType: shared.EntityCourse,
			},
			wantErr: true,
		},
		{
			name: "unknown entity type",
			criterion: Criterion{
				Kind:       CriterionCountCompleted,
				EntityType: shared.EntityType("quiz"),
				Threshold:  1,
			},
			wantErr: true,
		},
		{
			name: "unknown kind",
			criterion: Criterion{
				Kind:       CriterionKind("streak"),
				EntityType: shared.EntityLesson,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.criterion.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultDefinitions_AllValid(t *testing.T) {
	seen := make(map[string]bool)
	for _, def := range DefaultDefinitions() {
		require.NoError(t, def.Validate(), "definition %s", def.ID)
		assert.False(t, seen[def.ID], "duplicate definition ID %s", def.ID)
		seen[def.ID] = true
	}
}
