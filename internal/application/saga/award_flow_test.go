package saga

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnora/learnora-progress/internal/domain/achievement"
	"github.com/learnora/learnora-progress/internal/domain/shared"
	"github.com/learnora/learnora-progress/internal/infrastructure/persistence/memory"
)

type seqIDGenerator struct{ n atomic.Int64 }

func (g *seqIDGenerator) NewID() string {
	return fmt.Sprintf("id-%d", g.n.Add(1))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) awardedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == shared.EventAchievementAwarded {
			n++
		}
	}
	return n
}

func newTestFlow(t *testing.T) (*AwardFlow, *memory.ProgressRepository, *memory.AchievementRepository, *recordingPublisher) {
	t.Helper()
	achievementRepo := memory.NewAchievementRepository()
	for _, def := range achievement.DefaultDefinitions() {
		require.NoError(t, achievementRepo.SaveDefinition(context.Background(), def))
	}
	progressRepo := memory.NewProgressRepository()
	pub := &recordingPublisher{}
	flow := NewAwardFlow(achievementRepo, progressRepo, achievement.NewChecker(), pub, &seqIDGenerator{}, nil)
	return flow, progressRepo, achievementRepo, pub
}

func completeEntities(t *testing.T, repo *memory.ProgressRepository, userID string, entityType shared.EntityType, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, _, err := repo.CompleteIfPending(context.Background(), userID, id, entityType, time.Now().UTC())
		require.NoError(t, err)
	}
}

func TestAwardFlow_GrantsEarnedAchievement(t *testing.T) {
	flow, progressRepo, achievementRepo, pub := newTestFlow(t)
	ctx := context.Background()

	completeEntities(t, progressRepo, "42", shared.EntityExercise, "exercise-1")

	result, err := flow.Execute(ctx, AwardFlowInput{UserID: "42", TriggerEvent: "progress.updated"})
	require.NoError(t, err)
	require.Len(t, result.Awarded, 1)
	assert.Equal(t, "first-exercise", result.Awarded[0].AchievementID)
	assert.Equal(t, 1, pub.awardedCount())

	has, err := achievementRepo.Has(ctx, "42", "first-exercise")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestAwardFlow_ReEvaluationDoesNotReAward(t *testing.T) {
	flow, progressRepo, _, pub := newTestFlow(t)
	ctx := context.Background()

	completeEntities(t, progressRepo, "42", shared.EntityExercise, "exercise-1")

	first, err := flow.Execute(ctx, AwardFlowInput{UserID: "42"})
	require.NoError(t, err)
	require.True(t, first.HasAwards())

	second, err := flow.Execute(ctx, AwardFlowInput{UserID: "42"})
	require.NoError(t, err)
	assert.False(t, second.HasAwards(), "re-evaluation must not re-award")
	assert.Equal(t, 1, pub.awardedCount(), "awarded event must fire exactly once")
}

func TestAwardFlow_EvaluatesStoredStateNotTrigger(t *testing.T) {
	flow, progressRepo, _, _ := newTestFlow(t)
	ctx := context.Background()

	// Nothing stored yet: even with a trigger claiming a completion, the
	// flow must grant nothing.
	result, err := flow.Execute(ctx, AwardFlowInput{UserID: "42", TriggerEvent: "progress.updated"})
	require.NoError(t, err)
	assert.False(t, result.HasAwards())

	// One trigger arriving after several completions grants everything the
	// stored state supports.
	completeEntities(t, progressRepo, "42", shared.EntityExercise,
		"e1", "e2", "e3", "e4", "e5", "e6", "e7", "e8", "e9", "e10")

	result, err = flow.Execute(ctx, AwardFlowInput{UserID: "42"})
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, ua := range result.Awarded {
		ids[ua.AchievementID] = true
	}
	assert.True(t, ids["first-exercise"])
	assert.True(t, ids["ten-exercises"])
}

func TestAwardFlow_ConcurrentEvaluationsAwardOnce(t *testing.T) {
	flow, progressRepo, _, pub := newTestFlow(t)
	ctx := context.Background()

	completeEntities(t, progressRepo, "42", shared.EntityLesson, "lesson-7")

	var wg sync.WaitGroup
	var granted atomic.Int64
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := flow.Execute(ctx, AwardFlowInput{UserID: "42"})
			if err == nil {
				granted.Add(int64(len(result.Awarded)))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), granted.Load(), "first-lesson must be granted exactly once")
	assert.Equal(t, 1, pub.awardedCount())
}

func TestAwardFlow_ValidatesInput(t *testing.T) {
	flow, _, _, _ := newTestFlow(t)
	_, err := flow.Execute(context.Background(), AwardFlowInput{})
	assert.Error(t, err)
}
