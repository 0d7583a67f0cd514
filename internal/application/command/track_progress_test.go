package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnora/learnora-progress/internal/domain/catalog"
	"github.com/learnora/learnora-progress/internal/domain/shared"
	"github.com/learnora/learnora-progress/internal/infrastructure/persistence/memory"
)

// capturingPublisher records published events and optionally fails.
type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
	err    error
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) published() []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *capturingPublisher) countOfType(t shared.EventType) int {
	n := 0
	for _, e := range p.published() {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

// seedHierarchy builds a single-path catalog:
// roadmap-1 > course-1 > module-1 > lesson-7 > exercises 1..n.
func seedHierarchy(t *testing.T, repo *memory.CatalogRepository, exercises int) {
	t.Helper()
	ctx := context.Background()

	entities := []*catalog.Entity{
		{ID: "roadmap-1", Type: shared.EntityRoadmap},
		{ID: "course-1", Type: shared.EntityCourse, ParentID: "roadmap-1"},
		{ID: "module-1", Type: shared.EntityModule, ParentID: "course-1"},
		{ID: "lesson-7", Type: shared.EntityLesson, ParentID: "module-1"},
	}
	for i := 1; i <= exercises; i++ {
		entities = append(entities, &catalog.Entity{
			ID:       fmt.Sprintf("exercise-%d", i),
			Type:     shared.EntityExercise,
			ParentID: "lesson-7",
		})
	}
	for _, e := range entities {
		require.NoError(t, repo.Upsert(ctx, e))
	}
}

func newTestHandler(catalogRepo *memory.CatalogRepository, progressRepo *memory.ProgressRepository, pub *capturingPublisher) *TrackProgressHandler {
	return NewTrackProgressHandler(progressRepo, catalogRepo, pub, nil, TrackProgressHandlerConfig{
		EmitLessonCompletedEvent: true,
	})
}

func TestTrackProgress_Validation(t *testing.T) {
	handler := newTestHandler(memory.NewCatalogRepository(), memory.NewProgressRepository(), &capturingPublisher{})

	tests := []struct {
		name string
		cmd  TrackProgressCommand
	}{
		{"missing user", TrackProgressCommand{EntityID: "exercise-1", EntityType: shared.EntityExercise}},
		{"missing entity ID", TrackProgressCommand{UserID: "42", EntityType: shared.EntityExercise}},
		{"unknown entity type", TrackProgressCommand{UserID: "42", EntityID: "x", EntityType: shared.EntityType("quiz")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handler.Handle(context.Background(), tt.cmd)
			assert.Error(t, err)
		})
	}
}

func TestTrackProgress_FirstCompletionPublishesEvent(t *testing.T) {
	catalogRepo := memory.NewCatalogRepository()
	seedHierarchy(t, catalogRepo, 3)
	pub := &capturingPublisher{}
	handler := newTestHandler(catalogRepo, memory.NewProgressRepository(), pub)

	result, err := handler.Handle(context.Background(), TrackProgressCommand{
		UserID:     "42",
		EntityID:   "exercise-1",
		EntityType: shared.EntityExercise,
	})
	require.NoError(t, err)
	assert.True(t, result.Transitioned)
	require.Len(t, result.Completed, 1)
	assert.Equal(t, "exercise-1", result.Completed[0].EntityID)
	assert.Equal(t, 1, pub.countOfType(shared.EventProgressUpdated))
}

func TestTrackProgress_DuplicateIsIdempotent(t *testing.T) {
	catalogRepo := memory.NewCatalogRepository()
	seedHierarchy(t, catalogRepo, 3)
	pub := &capturingPublisher{}
	handler := newTestHandler(catalogRepo, memory.NewProgressRepository(), pub)

	cmd := TrackProgressCommand{UserID: "42", EntityID: "exercise-1", EntityType: shared.EntityExercise}

	first, err := handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	require.True(t, first.Transitioned)
	before := len(pub.published())

	second, err := handler.Handle(context.Background(), cmd)
	require.NoError(t, err, "duplicate completion must not be an error")
	assert.False(t, second.Transitioned)
	assert.Empty(t, second.Completed)
	assert.Len(t, pub.published(), before, "duplicate must not publish events")
}

func TestTrackProgress_CompletedAtIsMonotonic(t *testing.T) {
	catalogRepo := memory.NewCatalogRepository()
	seedHierarchy(t, catalogRepo, 3)
	progressRepo := memory.NewProgressRepository()
	handler := newTestHandler(catalogRepo, progressRepo, &capturingPublisher{})

	firstAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	_, err := handler.Handle(context.Background(), TrackProgressCommand{
		UserID: "42", EntityID: "exercise-1", EntityType: shared.EntityExercise, CompletedAt: firstAt,
	})
	require.NoError(t, err)

	_, err = handler.Handle(context.Background(), TrackProgressCommand{
		UserID: "42", EntityID: "exercise-1", EntityType: shared.EntityExercise, CompletedAt: firstAt.Add(time.Hour),
	})
	require.NoError(t, err)

	rec, err := progressRepo.Get(context.Background(), "42", "exercise-1", shared.EntityExercise)
	require.NoError(t, err)
	require.NotNil(t, rec.CompletedAt)
	assert.True(t, rec.CompletedAt.Equal(firstAt), "the first completion time must win")
}

func TestTrackProgress_LastChildCascadesToRoadmap(t *testing.T) {
	catalogRepo := memory.NewCatalogRepository()
	seedHierarchy(t, catalogRepo, 3)
	pub := &capturingPublisher{}
	handler := newTestHandler(catalogRepo, memory.NewProgressRepository(), pub)
	ctx := context.Background()

	for _, id := range []string{"exercise-1", "exercise-2"} {
		result, err := handler.Handle(ctx, TrackProgressCommand{UserID: "42", EntityID: id, EntityType: shared.EntityExercise})
		require.NoError(t, err)
		require.Len(t, result.Completed, 1, "lesson must not complete while a sibling is pending")
	}

	// The single-path fixture means the lesson is the module's only child,
	// and so on up, so the last exercise cascades all the way to the roadmap.
	result, err := handler.Handle(ctx, TrackProgressCommand{UserID: "42", EntityID: "exercise-3", EntityType: shared.EntityExercise})
	require.NoError(t, err)

	want := []CompletedEntity{
		{"exercise-3", shared.EntityExercise},
		{"lesson-7", shared.EntityLesson},
		{"module-1", shared.EntityModule},
		{"course-1", shared.EntityCourse},
		{"roadmap-1", shared.EntityRoadmap},
	}
	assert.Equal(t, want, result.Completed)
	assert.Equal(t, 7, pub.countOfType(shared.EventProgressUpdated), "3 exercises + 4 propagated ancestors")
	assert.Equal(t, 1, pub.countOfType(shared.EventLessonCompleted))
}

func TestTrackProgress_LegacyLessonEventDisabled(t *testing.T) {
	catalogRepo := memory.NewCatalogRepository()
	seedHierarchy(t, catalogRepo, 1)
	pub := &capturingPublisher{}
	handler := NewTrackProgressHandler(memory.NewProgressRepository(), catalogRepo, pub, nil, TrackProgressHandlerConfig{})

	_, err := handler.Handle(context.Background(), TrackProgressCommand{
		UserID: "42", EntityID: "exercise-1", EntityType: shared.EntityExercise,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, pub.countOfType(shared.EventLessonCompleted))
}

func TestTrackProgress_ChildlessModule(t *testing.T) {
	catalogRepo := memory.NewCatalogRepository()
	ctx := context.Background()
	require.NoError(t, catalogRepo.Upsert(ctx, &catalog.Entity{ID: "roadmap-1", Type: shared.EntityRoadmap}))
	require.NoError(t, catalogRepo.Upsert(ctx, &catalog.Entity{ID: "course-1", Type: shared.EntityCourse, ParentID: "roadmap-1"}))
	require.NoError(t, catalogRepo.Upsert(ctx, &catalog.Entity{ID: "module-1", Type: shared.EntityModule, ParentID: "course-1"}))

	pub := &capturingPublisher{}
	handler := newTestHandler(catalogRepo, memory.NewProgressRepository(), pub)

	// Completing the module directly: course-1 has module-1 as its only
	// child, so the course completes. But a second childless module under
	// the same course must not have completed vacuously beforehand.
	result, err := handler.Handle(ctx, TrackProgressCommand{UserID: "42", EntityID: "module-1", EntityType: shared.EntityModule})
	require.NoError(t, err)
	assert.Equal(t, []CompletedEntity{
		{"module-1", shared.EntityModule},
		{"course-1", shared.EntityCourse},
		{"roadmap-1", shared.EntityRoadmap},
	}, result.Completed)
}

func TestTrackProgress_VacuousCompletionGuard(t *testing.T) {
	catalogRepo := memory.NewCatalogRepository()
	ctx := context.Background()
	// A lesson whose module has zero registered lessons cannot exist, so
	// model the guard directly: a course with no modules under a roadmap,
	// and a sibling course whose module completes. The roadmap must not
	// complete because the empty course never auto-completes.
	require.NoError(t, catalogRepo.Upsert(ctx, &catalog.Entity{ID: "roadmap-1", Type: shared.EntityRoadmap}))
	require.NoError(t, catalogRepo.Upsert(ctx, &catalog.Entity{ID: "course-full", Type: shared.EntityCourse, ParentID: "roadmap-1"}))
	require.NoError(t, catalogRepo.Upsert(ctx, &catalog.Entity{ID: "course-empty", Type: shared.EntityCourse, ParentID: "roadmap-1"}))
	require.NoError(t, catalogRepo.Upsert(ctx, &catalog.Entity{ID: "module-1", Type: shared.EntityModule, ParentID: "course-full"}))

	pub := &capturingPublisher{}
	progressRepo := memory.NewProgressRepository()
	handler := newTestHandler(catalogRepo, progressRepo, pub)

	result, err := handler.Handle(ctx, TrackProgressCommand{UserID: "42", EntityID: "module-1", EntityType: shared.EntityModule})
	require.NoError(t, err)

	// course-full completes (module-1 is its only child) but the roadmap
	// stays pending because course-empty is not complete.
	assert.Equal(t, []CompletedEntity{
		{"module-1", shared.EntityModule},
		{"course-full", shared.EntityCourse},
	}, result.Completed)

	_, err = progressRepo.Get(ctx, "42", "roadmap-1", shared.EntityRoadmap)
	assert.True(t, shared.IsNotFound(err), "roadmap must not complete while a childless course is pending")
}

func TestTrackProgress_UnknownEntityParentIsHardError(t *testing.T) {
	catalogRepo := memory.NewCatalogRepository()
	pub := &capturingPublisher{}
	handler := newTestHandler(catalogRepo, memory.NewProgressRepository(), pub)

	// The exercise is not in the catalog at all. The completion persists
	// but the propagation step must surface the missing reference.
	_, err := handler.Handle(context.Background(), TrackProgressCommand{
		UserID: "42", EntityID: "ghost", EntityType: shared.EntityExercise,
	})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestTrackProgress_PublishFailureDoesNotRollBack(t *testing.T) {
	catalogRepo := memory.NewCatalogRepository()
	seedHierarchy(t, catalogRepo, 3)
	progressRepo := memory.NewProgressRepository()
	pub := &capturingPublisher{err: errors.New("bus down")}
	handler := newTestHandler(catalogRepo, progressRepo, pub)

	result, err := handler.Handle(context.Background(), TrackProgressCommand{
		UserID: "42", EntityID: "exercise-1", EntityType: shared.EntityExercise,
	})
	require.NoError(t, err, "dispatch failure must not fail the command")
	assert.True(t, result.Transitioned)

	rec, err := progressRepo.Get(context.Background(), "42", "exercise-1", shared.EntityExercise)
	require.NoError(t, err)
	assert.True(t, rec.Completed, "stored progress must survive publish failures")
}

func TestTrackProgress_ConcurrentSiblingsCompleteParentOnce(t *testing.T) {
	for iter := 0; iter < 20; iter++ {
		catalogRepo := memory.NewCatalogRepository()
		seedHierarchy(t, catalogRepo, 2)
		pub := &capturingPublisher{}
		handler := newTestHandler(catalogRepo, memory.NewProgressRepository(), pub)
		ctx := context.Background()

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = handler.Handle(ctx, TrackProgressCommand{
					UserID:     "42",
					EntityID:   fmt.Sprintf("exercise-%d", i+1),
					EntityType: shared.EntityExercise,
				})
			}(i)
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		lessonEvents := 0
		for _, e := range pub.published() {
			pe, ok := e.(shared.ProgressUpdatedEvent)
			if ok && pe.EntityType == shared.EntityLesson {
				lessonEvents++
			}
		}
		require.Equal(t, 1, lessonEvents, "exactly one completion event per entity transition")
	}
}

func TestTrackProgress_ConcurrentDuplicatesTransitionOnce(t *testing.T) {
	catalogRepo := memory.NewCatalogRepository()
	seedHierarchy(t, catalogRepo, 3)
	pub := &capturingPublisher{}
	handler := newTestHandler(catalogRepo, memory.NewProgressRepository(), pub)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	transitions := make([]bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := handler.Handle(ctx, TrackProgressCommand{
				UserID: "42", EntityID: "exercise-1", EntityType: shared.EntityExercise,
			})
			if err == nil {
				transitions[i] = res.Transitioned
			}
		}(i)
	}
	wg.Wait()

	count := 0
	for _, tr := range transitions {
		if tr {
			count++
		}
	}
	assert.Equal(t, 1, count, "concurrent duplicates must transition exactly once")
	assert.Equal(t, 1, pub.countOfType(shared.EventProgressUpdated))
}

func TestTrackProgress_ResultCarriesStoredRecord(t *testing.T) {
	catalogRepo := memory.NewCatalogRepository()
	seedHierarchy(t, catalogRepo, 3)
	handler := newTestHandler(catalogRepo, memory.NewProgressRepository(), &capturingPublisher{})
	ctx := context.Background()

	first := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	result, err := handler.Handle(ctx, TrackProgressCommand{
		UserID: "42", EntityID: "exercise-1", EntityType: shared.EntityExercise, CompletedAt: first,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Record)
	assert.True(t, result.Record.Completed)
	require.NotNil(t, result.Record.CompletedAt)
	assert.Equal(t, first, *result.Record.CompletedAt)

	// The duplicate call still returns the stored record, carrying the
	// original completion time.
	result, err = handler.Handle(ctx, TrackProgressCommand{
		UserID: "42", EntityID: "exercise-1", EntityType: shared.EntityExercise,
		CompletedAt: first.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, result.Transitioned)
	require.NotNil(t, result.Record)
	require.NotNil(t, result.Record.CompletedAt)
	assert.Equal(t, first, *result.Record.CompletedAt)
}
