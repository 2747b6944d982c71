// Package api provides HTTP handlers for the assistant endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/InterlagosConectado/Assistente/internal/models"
)

// MaxHistoryPageSize bounds GET /chat/history requests.
const MaxHistoryPageSize = 50

// resolveUserID derives the caller identity. With a verifier configured the
// bearer token is the only source of truth; the fallback (body or query
// user_id) exists for dev mode only.
func (s *Server) resolveUserID(r *http.Request, fallback string) (string, int, error) {
	if s.verifier != nil {
		uid, err := s.verifier.VerifyAuthorization(r.Header.Get("Authorization"))
		if err != nil {
			return "", http.StatusUnauthorized, err
		}
		return uid, 0, nil
	}
	if fallback == "" {
		fallback = r.URL.Query().Get("user_id")
	}
	if fallback == "" {
		return "", http.StatusBadRequest, models.ErrEmptyUserID
	}
	return fallback, 0, nil
}

// chatHandler handles POST /chat, the core pipeline.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.chatHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	userID, status, err := s.resolveUserID(r, req.UserID)
	if err != nil {
		slog.Warn("Server.chatHandler: identity resolution failed", "error", err)
		writeJSONResponse(w, status, models.Error(err.Error()))
		return
	}

	resp, err := s.chatFlow.ProcessMessage(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, models.ErrEmptyMessage) || errors.Is(err, models.ErrMessageTooLong) {
			slog.Warn("Server.chatHandler: validation failed", "error", err, "uid", userID)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.chatHandler: pipeline failed", "error", err, "uid", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to generate response"))
		return
	}

	slog.Info("Server.chatHandler: responded", "uid", userID, "persona", resp.PersonaUsed)
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// historyHandler handles GET /chat/history for the authenticated user.
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.historyHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID, status, err := s.resolveUserID(r, "")
	if err != nil {
		writeJSONResponse(w, status, models.Error(err.Error()))
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid limit parameter"))
			return
		}
		if n > MaxHistoryPageSize {
			n = MaxHistoryPageSize
		}
		limit = n
	}

	turns, err := s.st.ListRecentTurns(userID, limit)
	if err != nil {
		slog.Error("Server.historyHandler: failed to list turns", "error", err, "uid", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch history"))
		return
	}
	slog.Debug("Server.historyHandler succeeded", "uid", userID, "count", len(turns))
	writeJSONResponse(w, http.StatusOK, models.Success(turns))
}

// profileHandler handles GET and PUT /profile for the authenticated user.
func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.profileHandler invoked", "method", r.Method, "path", r.URL.Path)
	switch r.Method {
	case http.MethodGet:
		s.getProfileHandler(w, r)
	case http.MethodPut:
		s.updateProfileHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, PUT")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) getProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, status, err := s.resolveUserID(r, "")
	if err != nil {
		writeJSONResponse(w, status, models.Error(err.Error()))
		return
	}

	profile, err := s.st.GetUserProfile(userID)
	if err != nil {
		slog.Error("Server.getProfileHandler failed", "error", err, "uid", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch profile"))
		return
	}
	if profile == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrProfileNotFound.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(profile))
}

func (s *Server) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	userID, status, err := s.resolveUserID(r, "")
	if err != nil {
		writeJSONResponse(w, status, models.Error(err.Error()))
		return
	}

	var req models.UserProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.updateProfileHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	profile, err := s.st.GetUserProfile(userID)
	if err != nil {
		slog.Error("Server.updateProfileHandler: fetch failed", "error", err, "uid", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch profile"))
		return
	}
	now := time.Now()
	if profile == nil {
		profile = &models.UserProfile{UID: userID, CreatedAt: now}
	}
	if req.DisplayName != nil {
		profile.DisplayName = *req.DisplayName
	}
	profile.UpdatedAt = now

	if err := s.st.SaveUserProfile(*profile); err != nil {
		slog.Error("Server.updateProfileHandler: save failed", "error", err, "uid", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update profile"))
		return
	}
	slog.Info("Server.updateProfileHandler: profile updated", "uid", userID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Profile updated successfully", profile))
}

// plansHandler handles GET /plans (active plans) and POST /plans (create).
func (s *Server) plansHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.plansHandler invoked", "method", r.Method, "path", r.URL.Path)
	switch r.Method {
	case http.MethodGet:
		s.listPlansHandler(w, r)
	case http.MethodPost:
		s.createPlanHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) listPlansHandler(w http.ResponseWriter, r *http.Request) {
	plans, err := s.st.ListActivePlans()
	if err != nil {
		slog.Error("Server.listPlansHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch plans"))
		return
	}
	slog.Debug("Server.listPlansHandler succeeded", "count", len(plans))
	writeJSONResponse(w, http.StatusOK, models.Success(plans))
}

func (s *Server) createPlanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if _, status, err := s.resolveUserID(r, ""); err != nil {
		writeJSONResponse(w, status, models.Error(err.Error()))
		return
	}

	var plan models.Plan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		slog.Warn("Server.createPlanHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := plan.Validate(); err != nil {
		slog.Warn("Server.createPlanHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.Currency == "" {
		plan.Currency = "BRL"
	}

	if err := s.st.SavePlan(plan); err != nil {
		slog.Error("Server.createPlanHandler: save failed", "error", err, "planID", plan.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save plan"))
		return
	}
	slog.Info("Server.createPlanHandler: plan saved", "planID", plan.ID, "name", plan.Name)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Plan saved successfully", plan))
}

// healthHandler provides a health check endpoint for monitoring and load balancing.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	// Use a cheap store read as the reachability probe.
	if plans, err := s.st.ListActivePlans(); err != nil {
		slog.Warn("Health check: store probe failed", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Store unreachable"
	} else {
		healthData["active_plans"] = len(plans)
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, statusCode, healthData)
}
