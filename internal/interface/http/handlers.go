package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/learnora/learnora-progress/internal/application/command"
	"github.com/learnora/learnora-progress/internal/application/query"
	"github.com/learnora/learnora-progress/internal/domain/catalog"
	"github.com/learnora/learnora-progress/internal/domain/shared"
	"github.com/learnora/learnora-progress/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot returns basic service information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Endpoint not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "learnora-progress",
		"status":  "running",
		"uptime":  s.Uptime().Round(time.Second).String(),
	})
}

// handleHealth returns the aggregated health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// handleReady reports readiness for traffic.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSONError(w, http.StatusServiceUnavailable, "not_ready", status.Message)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive reports process liveness.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// trackProgressRequest is the body of POST /api/v1/progress/complete.
type trackProgressRequest struct {
	UserID      string     `json:"user_id"`
	EntityID    string     `json:"entity_id"`
	EntityType  string     `json:"entity_type"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// completedEntityDTO is one entity completed by a tracking call.
type completedEntityDTO struct {
	EntityID   string `json:"entity_id"`
	EntityType string `json:"entity_type"`
}

// trackProgressResponse is the body returned by the completion endpoint.
type trackProgressResponse struct {
	Transitioned bool                 `json:"transitioned"`
	Completed    []completedEntityDTO `json:"completed"`

	// CompletedAt is the stored completion time of the tracked entity. On
	// a duplicate call it is the original one.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// handleTrackProgress records a completion and propagates it upward.
// Duplicate completions return 200 with transitioned=false.
func (s *Server) handleTrackProgress(w http.ResponseWriter, r *http.Request) {
	var req trackProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	entityType, err := shared.ParseEntityType(req.EntityType)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_entity_type", "Unknown entity type: "+req.EntityType)
		return
	}

	cmd := command.TrackProgressCommand{
		UserID:        req.UserID,
		EntityID:      req.EntityID,
		EntityType:    entityType,
		CorrelationID: getRequestID(r.Context()),
	}
	if req.CompletedAt != nil {
		cmd.CompletedAt = *req.CompletedAt
	}

	result, err := s.deps.TrackProgressHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	resp := trackProgressResponse{
		Transitioned: result.Transitioned,
		Completed:    make([]completedEntityDTO, 0, len(result.Completed)),
	}
	if result.Record != nil {
		resp.CompletedAt = result.Record.CompletedAt
	}
	for _, c := range result.Completed {
		resp.Completed = append(resp.Completed, completedEntityDTO{
			EntityID:   c.EntityID,
			EntityType: c.EntityType.String(),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGetProgressSummary returns the per-type completion summary for a user.
func (s *Server) handleGetProgressSummary(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	summary, err := s.deps.GetProgressSummaryHandler.Handle(r.Context(), query.GetProgressSummaryQuery{
		UserID: userID,
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleIsEntityCompleted reports whether one entity is completed for a user.
func (s *Server) handleIsEntityCompleted(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	entityID := r.PathValue("entityId")

	entityType, err := shared.ParseEntityType(r.PathValue("type"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_entity_type", "Unknown entity type: "+r.PathValue("type"))
		return
	}

	completed, err := s.deps.IsEntityCompletedHandler.Handle(r.Context(), query.IsEntityCompletedQuery{
		UserID:     userID,
		EntityID:   entityID,
		EntityType: entityType,
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":     userID,
		"entity_id":   entityID,
		"entity_type": entityType.String(),
		"completed":   completed,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListAchievements returns the achievement listing for a user.
// ?obtained=true limits the result to awarded achievements.
func (s *Server) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	result, err := s.deps.ListAchievementsHandler.Handle(r.Context(), query.ListAchievementsQuery{
		UserID:       userID,
		ObtainedOnly: getQueryParamBool(r, "obtained"),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// catalogEntityRequest is the body of PUT /api/v1/catalog/entities.
type catalogEntityRequest struct {
	ID         string `json:"id"`
	EntityType string `json:"entity_type"`
	ParentID   string `json:"parent_id,omitempty"`
	Title      string `json:"title,omitempty"`
}

// handleUpsertCatalogEntity creates or replaces a catalog entity.
func (s *Server) handleUpsertCatalogEntity(w http.ResponseWriter, r *http.Request) {
	var req catalogEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	entityType, err := shared.ParseEntityType(req.EntityType)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_entity_type", "Unknown entity type: "+req.EntityType)
		return
	}

	entity := &catalog.Entity{
		ID:       req.ID,
		Type:     entityType,
		ParentID: req.ParentID,
		Title:    req.Title,
	}
	if err := entity.Validate(); err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	if err := s.deps.CatalogRepository.Upsert(r.Context(), entity); err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	// Cached lookups for the entity and its parent's child set are stale now.
	if s.deps.CatalogInvalidator != nil {
		if err := s.deps.CatalogInvalidator.Invalidate(r.Context(), entity.ID, entity.Type); err != nil {
			s.logger.Warn("catalog cache invalidation failed",
				logger.EntityID(entity.ID),
				logger.Err(err),
			)
		}
		if parentType, ok := entity.Type.Parent(); ok && entity.ParentID != "" {
			if err := s.deps.CatalogInvalidator.Invalidate(r.Context(), entity.ParentID, parentType); err != nil {
				s.logger.Warn("catalog cache invalidation failed",
					logger.EntityID(entity.ParentID),
					logger.Err(err),
				)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":          entity.ID,
		"entity_type": entity.Type.String(),
		"parent_id":   entity.ParentID,
		"title":       entity.Title,
	})
}

// handleGetCatalogEntity returns a single catalog entity.
func (s *Server) handleGetCatalogEntity(w http.ResponseWriter, r *http.Request) {
	entityType, err := shared.ParseEntityType(r.PathValue("type"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_entity_type", "Unknown entity type: "+r.PathValue("type"))
		return
	}

	entity, err := s.deps.CatalogRepository.Get(r.Context(), r.PathValue("id"), entityType)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":          entity.ID,
		"entity_type": entity.Type.String(),
		"parent_id":   entity.ParentID,
		"title":       entity.Title,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// respondDomainError maps domain errors to HTTP status codes.
func (s *Server) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		s.logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Err(err),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
