// Package eventhandler contains subscribers that react to domain events.
package eventhandler

import (
	"context"
	"log/slog"

	"github.com/learnora/learnora-progress/internal/application/saga"
	"github.com/learnora/learnora-progress/internal/domain/shared"
)

// OnProgressUpdated triggers achievement evaluation whenever a completion
// event arrives. Both progress.updated and the legacy lesson_completed
// signal route here; the flow itself re-reads stored progress, so handling
// both shapes never double-awards.
type OnProgressUpdated struct {
	flow   *saga.AwardFlow
	logger *slog.Logger
}

// NewOnProgressUpdated creates the handler.
func NewOnProgressUpdated(flow *saga.AwardFlow, logger *slog.Logger) *OnProgressUpdated {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnProgressUpdated{flow: flow, logger: logger}
}

// Handle implements shared.EventHandler.
func (h *OnProgressUpdated) Handle(event shared.Event) error {
	var userID string

	switch e := event.(type) {
	case shared.ProgressUpdatedEvent:
		userID = e.UserID
	case shared.LessonCompletedEvent:
		userID = e.UserID
	default:
		// Not ours. Subscriptions are per event type, so this indicates a
		// wiring mistake; ignore rather than fail the dispatch.
		h.logger.Warn("unexpected event type in progress handler",
			slog.String("event_type", string(event.EventType())),
		)
		return nil
	}

	result, err := h.flow.Execute(context.Background(), saga.AwardFlowInput{
		UserID:       userID,
		TriggerEvent: string(event.EventType()),
	})
	if err != nil {
		h.logger.Error("achievement evaluation failed",
			slog.String("user_id", userID),
			slog.String("trigger", string(event.EventType())),
			slog.Any("error", err),
		)
		return err
	}

	if result.HasAwards() {
		h.logger.Info("achievement evaluation granted awards",
			slog.String("user_id", userID),
			slog.Int("count", len(result.Awarded)),
		)
	}
	return nil
}

// Register subscribes the handler to the completion events.
func (h *OnProgressUpdated) Register(subscriber shared.EventSubscriber) error {
	if err := subscriber.Subscribe(shared.EventProgressUpdated, h.Handle); err != nil {
		return err
	}
	return subscriber.Subscribe(shared.EventLessonCompleted, h.Handle)
}
