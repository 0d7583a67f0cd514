// Package saga contains business processes that orchestrate multiple domain
// operations in a coordinated manner.
package saga

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/learnora/learnora-progress/internal/domain/achievement"
	"github.com/learnora/learnora-progress/internal/domain/progress"
	"github.com/learnora/learnora-progress/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD FLOW
// Evaluates achievement criteria for a user and grants the ones newly earned.
// Flow: Load Definitions → Load Existing Awards → Build Progress Snapshot →
// Evaluate Criteria → Award (insert-if-absent) → Publish Events
//
// The evaluation reads only persisted progress, never the triggering event's
// payload, so a stale or duplicated trigger can over-evaluate but never
// mis-award. The repository's insert-if-absent makes each award exactly-once
// even when evaluations race.
// ══════════════════════════════════════════════════════════════════════════════

// IDGenerator produces unique IDs for award records.
type IDGenerator interface {
	NewID() string
}

// AwardFlowInput contains data needed to run an evaluation.
type AwardFlowInput struct {
	// UserID is the learner to evaluate.
	UserID string

	// TriggerEvent names what prompted this evaluation, for logging only.
	TriggerEvent string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate checks the input.
func (i AwardFlowInput) Validate() error {
	if i.UserID == "" {
		return shared.ErrProgressInvalidUser
	}
	return nil
}

// AwardFlowResult contains the outcome of one evaluation run.
type AwardFlowResult struct {
	// UserID is the evaluated learner.
	UserID string

	// Awarded lists the achievements granted by this run.
	Awarded []*achievement.UserAchievement

	// ProcessedAt is when the run completed.
	ProcessedAt time.Time
}

// HasAwards reports whether this run granted anything.
func (r *AwardFlowResult) HasAwards() bool {
	return len(r.Awarded) > 0
}

// AwardFlow orchestrates achievement evaluation and granting.
type AwardFlow struct {
	achievementRepo achievement.Repository
	progressRepo    progress.Repository
	checker         *achievement.Checker
	eventPublisher  shared.EventPublisher
	idGenerator     IDGenerator
	logger          *slog.Logger
}

// NewAwardFlow creates a new award flow with all dependencies.
func NewAwardFlow(
	achievementRepo achievement.Repository,
	progressRepo progress.Repository,
	checker *achievement.Checker,
	eventPublisher shared.EventPublisher,
	idGenerator IDGenerator,
	logger *slog.Logger,
) *AwardFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &AwardFlow{
		achievementRepo: achievementRepo,
		progressRepo:    progressRepo,
		checker:         checker,
		eventPublisher:  eventPublisher,
		idGenerator:     idGenerator,
		logger:          logger,
	}
}

// Execute runs one evaluation for the user.
func (f *AwardFlow) Execute(ctx context.Context, input AwardFlowInput) (*AwardFlowResult, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("award_flow: validation failed: %w", err)
	}

	defs, err := f.achievementRepo.ListDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("award_flow: failed to load definitions: %w", err)
	}

	existing, err := f.achievementRepo.ListByUser(ctx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("award_flow: failed to load existing awards: %w", err)
	}
	held := make(map[string]bool, len(existing))
	for _, ua := range existing {
		held[ua.AchievementID] = true
	}

	snapshot, err := f.buildSnapshot(ctx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("award_flow: failed to build progress snapshot: %w", err)
	}

	earned, err := f.checker.Evaluate(defs, held, snapshot)
	if err != nil {
		return nil, fmt.Errorf("award_flow: evaluation failed: %w", err)
	}

	result := &AwardFlowResult{
		UserID:      input.UserID,
		ProcessedAt: time.Now().UTC(),
	}

	for _, def := range earned {
		record := achievement.NewUserAchievement(f.idGenerator.NewID(), input.UserID, def.ID, result.ProcessedAt)
		created, err := f.achievementRepo.Award(ctx, record)
		if err != nil {
			return nil, fmt.Errorf("award_flow: failed to award %s: %w", def.ID, err)
		}
		if !created {
			// A concurrent evaluation granted it first. Fine, and the
			// winner already published the event.
			continue
		}

		result.Awarded = append(result.Awarded, record)
		f.logger.Info("achievement awarded",
			slog.String("user_id", input.UserID),
			slog.String("achievement_id", def.ID),
			slog.String("trigger", input.TriggerEvent),
		)

		event := shared.NewAchievementAwardedEvent(input.UserID, def.ID, record.ObtainedAt)
		if input.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(input.CorrelationID)
		}
		if err := f.eventPublisher.Publish(event); err != nil {
			f.logger.Warn("failed to publish achievement.awarded",
				slog.String("user_id", input.UserID),
				slog.String("achievement_id", def.ID),
				slog.Any("error", err),
			)
		}
	}

	return result, nil
}

// buildSnapshot loads the user's persisted completions into an evaluation
// snapshot.
func (f *AwardFlow) buildSnapshot(ctx context.Context, userID string) (*achievement.ProgressSnapshot, error) {
	records, err := f.progressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot := achievement.NewProgressSnapshot()
	for _, rec := range records {
		if rec.Completed {
			snapshot.Record(rec.EntityID, rec.EntityType)
		}
	}
	return snapshot, nil
}
