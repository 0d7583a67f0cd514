package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/learnora/learnora-progress/internal/domain/achievement"
	"github.com/learnora/learnora-progress/internal/domain/shared"
)

// AchievementRepository is an in-memory achievement.Repository.
type AchievementRepository struct {
	mu          sync.RWMutex
	definitions map[string]*achievement.Achievement
	awards      map[string]*achievement.UserAchievement // keyed by userID:achievementID
}

// NewAchievementRepository creates an empty in-memory achievement store.
func NewAchievementRepository() *AchievementRepository {
	return &AchievementRepository{
		definitions: make(map[string]*achievement.Achievement),
		awards:      make(map[string]*achievement.UserAchievement),
	}
}

func awardKey(userID, achievementID string) string {
	return userID + ":" + achievementID
}

// SaveDefinition implements achievement.Repository.
func (r *AchievementRepository) SaveDefinition(ctx context.Context, def *achievement.Achievement) error {
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *def
	r.definitions[def.ID] = &cp
	return nil
}

// GetDefinition implements achievement.Repository.
func (r *AchievementRepository) GetDefinition(ctx context.Context, achievementID string) (*achievement.Achievement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[achievementID]
	if !ok {
		return nil, shared.ErrAchievementNotFound
	}
	cp := *def
	return &cp, nil
}

// ListDefinitions implements achievement.Repository. Ordered by ID for
// deterministic evaluation.
func (r *AchievementRepository) ListDefinitions(ctx context.Context) ([]*achievement.Achievement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*achievement.Achievement, 0, len(r.definitions))
	for _, def := range r.definitions {
		cp := *def
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListByUser implements achievement.Repository.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID string) ([]*achievement.UserAchievement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*achievement.UserAchievement
	for _, ua := range r.awards {
		if ua.UserID == userID {
			cp := *ua
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObtainedAt.Before(out[j].ObtainedAt) })
	return out, nil
}

// Has implements achievement.Repository.
func (r *AchievementRepository) Has(ctx context.Context, userID, achievementID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.awards[awardKey(userID, achievementID)]
	return ok, nil
}

// Award implements achievement.Repository. Insert-if-absent under one lock,
// matching the SQL ON CONFLICT DO NOTHING semantics.
func (r *AchievementRepository) Award(ctx context.Context, record *achievement.UserAchievement) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := awardKey(record.UserID, record.AchievementID)
	if _, ok := r.awards[key]; ok {
		return false, nil
	}
	cp := *record
	r.awards[key] = &cp
	return true, nil
}
