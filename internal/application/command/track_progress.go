// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/learnora/learnora-progress/internal/domain/catalog"
	"github.com/learnora/learnora-progress/internal/domain/progress"
	"github.com/learnora/learnora-progress/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRACK PROGRESS COMMAND
// Records a completion for a user and propagates it up the content hierarchy.
// This is the single write path of the progress subsystem.
// ══════════════════════════════════════════════════════════════════════════════

// TrackProgressCommand contains the data needed to record a completion.
type TrackProgressCommand struct {
	// UserID is the learner completing the entity.
	UserID string

	// EntityID identifies the completed entity.
	EntityID string

	// EntityType is the hierarchy level of the entity.
	EntityType shared.EntityType

	// CompletedAt is the completion time. Zero means "now".
	CompletedAt time.Time

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c TrackProgressCommand) Validate() error {
	if c.UserID == "" {
		return shared.ErrProgressInvalidUser
	}
	if c.EntityID == "" || !c.EntityType.IsValid() {
		return shared.ErrProgressInvalidKey
	}
	return nil
}

// CompletedEntity is one entity that transitioned to completed during a
// single TrackProgress call.
type CompletedEntity struct {
	EntityID   string
	EntityType shared.EntityType
}

// TrackProgressResult contains the result of tracking a completion.
type TrackProgressResult struct {
	// Transitioned reports whether the tracked entity itself moved from
	// pending to completed. False means the call was a duplicate.
	Transitioned bool

	// Record is the stored progress for the tracked entity. On a duplicate
	// call it carries the original completion, so CompletedAt never moves.
	Record *progress.UserProgress

	// Completed lists every entity completed by this call, the tracked
	// entity first, then propagated ancestors in upward order.
	Completed []CompletedEntity

	// Events contains the domain events published during the call.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// TrackProgressHandler handles the TrackProgressCommand.
//
// Concurrency: ancestor evaluation runs under a per-(user, parent) lock so
// that when several children of the same parent complete at once, at least
// one evaluator observes the full child set. The repository's
// compare-and-set guarantees at most one pending-to-completed transition
// per record, so together exactly one caller completes the parent and
// publishes its event.
type TrackProgressHandler struct {
	progressRepo   progress.Repository
	resolver       catalog.Resolver
	eventPublisher shared.EventPublisher
	logger         *slog.Logger

	// emitLessonCompleted keeps the legacy lesson signal flowing next to
	// progress.updated for consumers that still key on it.
	emitLessonCompleted bool

	parentLocks *keyedMutex
}

// TrackProgressHandlerConfig contains configuration for the handler.
type TrackProgressHandlerConfig struct {
	// EmitLessonCompletedEvent controls whether the legacy
	// LessonCompletedEvent is published alongside ProgressUpdatedEvent
	// when a lesson completes.
	EmitLessonCompletedEvent bool
}

// NewTrackProgressHandler creates a new TrackProgressHandler.
func NewTrackProgressHandler(
	progressRepo progress.Repository,
	resolver catalog.Resolver,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config TrackProgressHandlerConfig,
) *TrackProgressHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrackProgressHandler{
		progressRepo:        progressRepo,
		resolver:            resolver,
		eventPublisher:      eventPublisher,
		logger:              logger,
		emitLessonCompleted: config.EmitLessonCompletedEvent,
		parentLocks:         newKeyedMutex(),
	}
}

// Handle executes the track progress command.
//
// The call is idempotent: tracking an already-completed entity returns a
// result with Transitioned=false, publishes nothing, and is not an error.
// Event publishing failures are logged and never roll back stored progress.
func (h *TrackProgressHandler) Handle(ctx context.Context, cmd TrackProgressCommand) (*TrackProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("track_progress: validation failed: %w", err)
	}

	at := cmd.CompletedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	result := &TrackProgressResult{}

	rec, transitioned, err := h.progressRepo.CompleteIfPending(ctx, cmd.UserID, cmd.EntityID, cmd.EntityType, at)
	if err != nil {
		return nil, fmt.Errorf("track_progress: failed to persist completion: %w", err)
	}
	result.Record = rec
	if !transitioned {
		// Duplicate submission. Nothing changed, nothing to announce.
		return result, nil
	}

	result.Transitioned = true
	result.Completed = append(result.Completed, CompletedEntity{cmd.EntityID, cmd.EntityType})
	h.publishCompletion(cmd.UserID, cmd.EntityID, cmd.EntityType, cmd.CorrelationID, result)

	if err := h.propagate(ctx, cmd, at, result); err != nil {
		return nil, err
	}

	return result, nil
}

// propagate walks the hierarchy upward from the tracked entity, completing
// each parent whose children are now all complete. The walk performs at
// most one step per hierarchy level above the starting entity.
func (h *TrackProgressHandler) propagate(ctx context.Context, cmd TrackProgressCommand, at time.Time, result *TrackProgressResult) error {
	currentID := cmd.EntityID
	currentType := cmd.EntityType

	for step := 0; step < shared.HierarchyDepth-1; step++ {
		parentType, ok := currentType.Parent()
		if !ok {
			return nil
		}

		parentID, err := h.resolver.ParentOf(ctx, currentID, currentType)
		if err != nil {
			// A tracked entity with no resolvable parent is referential
			// corruption in the catalog, not a soft stop.
			return fmt.Errorf("track_progress: failed to resolve parent of %s %s: %w", currentType, currentID, err)
		}

		transitioned, err := h.completeParentIfReady(ctx, cmd.UserID, parentID, parentType, at)
		if err != nil {
			return err
		}
		if !transitioned {
			return nil
		}

		result.Completed = append(result.Completed, CompletedEntity{parentID, parentType})
		h.publishCompletion(cmd.UserID, parentID, parentType, cmd.CorrelationID, result)

		currentID = parentID
		currentType = parentType
	}

	return nil
}

// completeParentIfReady checks the parent's children under the per-(user,
// parent) lock and completes the parent when every child is done.
func (h *TrackProgressHandler) completeParentIfReady(
	ctx context.Context,
	userID, parentID string,
	parentType shared.EntityType,
	at time.Time,
) (bool, error) {
	mu := h.parentLocks.lock(userID + "|" + parentID)
	defer mu.Unlock()

	children, err := h.resolver.ChildrenOf(ctx, parentID, parentType)
	if err != nil {
		return false, fmt.Errorf("track_progress: failed to resolve children of %s %s: %w", parentType, parentID, err)
	}

	// A parent with zero registered children never auto-completes; an
	// empty lesson must not cascade a roadmap.
	if len(children) == 0 {
		h.logger.Debug("parent has no children, propagation stops",
			slog.String("user_id", userID),
			slog.String("parent_id", parentID),
			slog.String("parent_type", parentType.String()),
		)
		return false, nil
	}

	childType, _ := parentType.Child()
	completed, err := h.progressRepo.CompletedSet(ctx, userID, childType, children)
	if err != nil {
		return false, fmt.Errorf("track_progress: failed to load child completions: %w", err)
	}
	for _, childID := range children {
		if !completed[childID] {
			return false, nil
		}
	}

	_, transitioned, err := h.progressRepo.CompleteIfPending(ctx, userID, parentID, parentType, at)
	if err != nil {
		return false, fmt.Errorf("track_progress: failed to complete parent %s %s: %w", parentType, parentID, err)
	}
	return transitioned, nil
}

// publishCompletion emits the progress events for one completed entity.
// Failures are logged only; stored progress is already durable and the
// dispatcher owns retries.
func (h *TrackProgressHandler) publishCompletion(userID, entityID string, entityType shared.EntityType, correlationID string, result *TrackProgressResult) {
	event := shared.NewProgressUpdatedEvent(userID, entityID, entityType)
	if correlationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(correlationID)
	}
	result.Events = append(result.Events, event)
	if err := h.eventPublisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish progress.updated",
			slog.String("user_id", userID),
			slog.String("entity_id", entityID),
			slog.String("entity_type", entityType.String()),
			slog.Any("error", err),
		)
	}

	if entityType == shared.EntityLesson && h.emitLessonCompleted {
		legacy := shared.NewLessonCompletedEvent(userID, entityID)
		if correlationID != "" {
			legacy.BaseEvent = legacy.BaseEvent.WithCorrelationID(correlationID)
		}
		result.Events = append(result.Events, legacy)
		if err := h.eventPublisher.Publish(legacy); err != nil {
			h.logger.Warn("failed to publish lesson_completed",
				slog.String("user_id", userID),
				slog.String("lesson_id", entityID),
				slog.Any("error", err),
			)
		}
	}
}
