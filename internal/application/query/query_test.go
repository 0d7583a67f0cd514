package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnora/learnora-progress/internal/domain/achievement"
	"github.com/learnora/learnora-progress/internal/domain/shared"
	"github.com/learnora/learnora-progress/internal/infrastructure/persistence/memory"
)

func complete(t *testing.T, repo *memory.ProgressRepository, userID, entityID string, entityType shared.EntityType, at time.Time) {
	t.Helper()
	_, _, err := repo.CompleteIfPending(context.Background(), userID, entityID, entityType, at)
	require.NoError(t, err)
}

func TestGetProgressSummary_AggregatesByType(t *testing.T) {
	repo := memory.NewProgressRepository()
	handler := NewGetProgressSummaryHandler(repo)
	ctx := context.Background()

	now := time.Now().UTC()
	complete(t, repo, "42", "e1", shared.EntityExercise, now.Add(-48*time.Hour))
	complete(t, repo, "42", "e2", shared.EntityExercise, now)
	complete(t, repo, "42", "l1", shared.EntityLesson, now)
	complete(t, repo, "99", "e9", shared.EntityExercise, now) // another user

	summary, err := handler.Handle(ctx, GetProgressSummaryQuery{UserID: "42"})
	require.NoError(t, err)

	assert.Equal(t, "42", summary.UserID)
	assert.Equal(t, 3, summary.TotalCompleted)
	assert.Equal(t, 2, summary.CompletedToday)
	require.NotNil(t, summary.LastCompletedAt)
	assert.WithinDuration(t, now, *summary.LastCompletedAt, time.Second)

	byType := make(map[shared.EntityType]int)
	for _, ts := range summary.ByType {
		byType[ts.EntityType] = ts.Completed
	}
	assert.Equal(t, 2, byType[shared.EntityExercise])
	assert.Equal(t, 1, byType[shared.EntityLesson])
	assert.Equal(t, 0, byType[shared.EntityCourse])
}

func TestGetProgressSummary_EmptyUser(t *testing.T) {
	handler := NewGetProgressSummaryHandler(memory.NewProgressRepository())

	summary, err := handler.Handle(context.Background(), GetProgressSummaryQuery{UserID: "42"})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TotalCompleted)
	assert.Nil(t, summary.LastCompletedAt)
	assert.Len(t, summary.ByType, len(shared.AllEntityTypes()), "every level present even with zero counts")
}

func TestGetProgressSummary_RequiresUser(t *testing.T) {
	handler := NewGetProgressSummaryHandler(memory.NewProgressRepository())

	_, err := handler.Handle(context.Background(), GetProgressSummaryQuery{})
	assert.True(t, shared.IsValidation(err))
}

func TestIsEntityCompleted(t *testing.T) {
	repo := memory.NewProgressRepository()
	handler := NewIsEntityCompletedHandler(repo)
	ctx := context.Background()

	complete(t, repo, "42", "lesson-1", shared.EntityLesson, time.Now().UTC())

	completed, err := handler.Handle(ctx, IsEntityCompletedQuery{
		UserID: "42", EntityID: "lesson-1", EntityType: shared.EntityLesson,
	})
	require.NoError(t, err)
	assert.True(t, completed)

	// Never-touched entity reads as not completed, not as an error.
	completed, err = handler.Handle(ctx, IsEntityCompletedQuery{
		UserID: "42", EntityID: "lesson-2", EntityType: shared.EntityLesson,
	})
	require.NoError(t, err)
	assert.False(t, completed)

	// Same ID under a different type is a different progress record.
	completed, err = handler.Handle(ctx, IsEntityCompletedQuery{
		UserID: "42", EntityID: "lesson-1", EntityType: shared.EntityExercise,
	})
	require.NoError(t, err)
	assert.False(t, completed)
}

func TestIsEntityCompleted_Validation(t *testing.T) {
	handler := NewIsEntityCompletedHandler(memory.NewProgressRepository())

	tests := []struct {
		name  string
		query IsEntityCompletedQuery
	}{
		{"missing user", IsEntityCompletedQuery{EntityID: "e1", EntityType: shared.EntityExercise}},
		{"missing entity", IsEntityCompletedQuery{UserID: "42", EntityType: shared.EntityExercise}},
		{"invalid type", IsEntityCompletedQuery{UserID: "42", EntityID: "e1", EntityType: "WORKSHOP"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handler.Handle(context.Background(), tt.query)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestListAchievements_AnnotatesAwards(t *testing.T) {
	achievementRepo := memory.NewAchievementRepository()
	ctx := context.Background()
	for _, def := range achievement.DefaultDefinitions() {
		require.NoError(t, achievementRepo.SaveDefinition(ctx, def))
	}

	ua := achievement.NewUserAchievement("ua-1", "42", "first-exercise", time.Now().UTC())
	created, err := achievementRepo.Award(ctx, ua)
	require.NoError(t, err)
	require.True(t, created)

	handler := NewListAchievementsHandler(achievementRepo)

	result, err := handler.Handle(ctx, ListAchievementsQuery{UserID: "42"})
	require.NoError(t, err)

	assert.Equal(t, len(achievement.DefaultDefinitions()), result.TotalCount)
	assert.Equal(t, 1, result.ObtainedCount)
	assert.Len(t, result.Achievements, result.TotalCount)

	var obtained *AchievementDTO
	for i := range result.Achievements {
		if result.Achievements[i].ID == "first-exercise" {
			obtained = &result.Achievements[i]
		}
	}
	require.NotNil(t, obtained)
	assert.True(t, obtained.Obtained)
	assert.NotNil(t, obtained.ObtainedAt)
}

func TestListAchievements_ObtainedOnly(t *testing.T) {
	achievementRepo := memory.NewAchievementRepository()
	ctx := context.Background()
	for _, def := range achievement.DefaultDefinitions() {
		require.NoError(t, achievementRepo.SaveDefinition(ctx, def))
	}

	handler := NewListAchievementsHandler(achievementRepo)

	result, err := handler.Handle(ctx, ListAchievementsQuery{UserID: "42", ObtainedOnly: true})
	require.NoError(t, err)
	assert.Empty(t, result.Achievements)

	ua := achievement.NewUserAchievement("ua-1", "42", "first-lesson", time.Now().UTC())
	_, err = achievementRepo.Award(ctx, ua)
	require.NoError(t, err)

	result, err = handler.Handle(ctx, ListAchievementsQuery{UserID: "42", ObtainedOnly: true})
	require.NoError(t, err)
	require.Len(t, result.Achievements, 1)
	assert.Equal(t, "first-lesson", result.Achievements[0].ID)
}
