package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityType_AcceptsBothCases(t *testing.T) {
	tests := []struct {
		input string
		want  EntityType
	}{
		{"exercise", EntityExercise},
		{"EXERCISE", EntityExercise},
		{"LESSON", EntityLesson},
		{"MODULE", EntityModule},
		{"COURSE", EntityCourse},
		{"ROADMAP", EntityRoadmap},
		{"Roadmap", EntityRoadmap},
		{" lesson ", EntityLesson},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseEntityType(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEntityType_RejectsUnknown(t *testing.T) {
	for _, input := range []string{"", "workshop", "EXERCISES", "lesson1"} {
		_, err := ParseEntityType(input)
		assert.ErrorIs(t, err, ErrInvalidEntityType, input)
	}
}

func TestEntityType_HierarchyNavigation(t *testing.T) {
	// Walking Parent from the leaf visits every level exactly once.
	current := EntityExercise
	visited := []EntityType{current}
	for {
		parent, ok := current.Parent()
		if !ok {
			break
		}
		visited = append(visited, parent)
		current = parent
	}
	assert.Equal(t, AllEntityTypes(), visited)
	assert.Len(t, visited, HierarchyDepth)

	// Child is the inverse of Parent at every level.
	for _, entityType := range AllEntityTypes() {
		if parent, ok := entityType.Parent(); ok {
			child, ok := parent.Child()
			require.True(t, ok)
			assert.Equal(t, entityType, child)
		}
	}

	assert.Equal(t, -1, EntityType("workshop").Rank())
	assert.False(t, EntityType("workshop").IsValid())
}
