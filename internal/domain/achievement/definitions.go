package achievement

import "github.com/learnora/learnora-progress/internal/domain/shared"

// DefaultDefinitions is the built-in achievement set seeded on startup when
// the store has no definitions yet. IDs are stable; renaming an achievement
// must keep its ID so existing awards stay linked.
func DefaultDefinitions() []*Achievement {
	return []*Achievement{
		{
			ID:          "first-exercise",
			Name:        "First Steps",
			Description: "Complete your first exercise",
			Criterion: Criterion{
				Kind:       CriterionCountCompleted,
				EntityType: shared.EntityExercise,
				Threshold:  1,
			},
		},
		{
			ID:          "ten-exercises",
			Name:        "Getting Warmed Up",
			Description: "Complete 10 exercises",
			Criterion: Criterion{
				Kind:       CriterionCountCompleted,
				EntityType: shared.EntityExercise,
				Threshold:  10,
			},
		},
		{
			ID:          "first-lesson",
			Name:        "Lesson Learned",
			Description: "Complete your first lesson",
			Criterion: Criterion{
				Kind:       CriterionCountCompleted,
				EntityType: shared.EntityLesson,
				Threshold:  1,
			},
		},
		{
			ID:          "five-lessons",
			Name:        "Steady Learner",
			Description: "Complete 5 lessons",
			Criterion: Criterion{
				Kind:       CriterionCountCompleted,
				EntityType: shared.EntityLesson,
				Threshold:  5,
			},
		},
		{
			ID:          "first-module",
			Name:        "Module Master",
			Description: "Complete your first module",
			Criterion: Criterion{
				Kind:       CriterionCountCompleted,
				EntityType: shared.EntityModule,
				Threshold:  1,
			},
		},
		{
			ID:          "first-course",
			Name:        "Course Conqueror",
			Description: "Complete your first course",
			Criterion: Criterion{
				Kind:       CriterionCountCompleted,
				EntityType: shared.EntityCourse,
				Threshold:  1,
			},
		},
		{
			ID:          "first-roadmap",
			Name:        "Road Warrior",
			Description: "Complete an entire roadmap",
			Criterion: Criterion{
				Kind:       CriterionCountCompleted,
				EntityType: shared.EntityRoadmap,
				Threshold:  1,
			},
		},
	}
}
