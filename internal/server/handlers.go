package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ovenai/adstudio-api/internal/artifact"
	"github.com/ovenai/adstudio-api/internal/generations"
	"github.com/ovenai/adstudio-api/internal/project"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	engine    *generations.Engine
	repo      generations.Repository
	store     artifact.Store
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(engine *generations.Engine, repo generations.Repository, store artifact.Store, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		engine:    engine,
		repo:      repo,
		store:     store,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// SubmitGeneration handles POST /generate requests. The body is the
// approved project; the response is the initial generation tree with a
// freshly assigned project ID.
func (h *Handlers) SubmitGeneration(w http.ResponseWriter, r *http.Request) {
	var proj project.Project
	if err := json.NewDecoder(r.Body).Decode(&proj); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(proj); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	projectID := uuid.NewString()

	gens, err := h.engine.GenerateFromProject(r.Context(), projectID, proj)
	if err != nil {
		h.logger.Error("generation submission failed",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to submit generation", "GENERATION_FAILED")
		return
	}

	if err := h.repo.Save(r.Context(), gens); err != nil {
		h.logger.Error("failed to save generations",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to save generations", "SAVE_FAILED")
		return
	}

	h.logger.Info("generation submitted",
		slog.String("project_id", projectID),
		slog.Int("segments", len(gens.Segments)),
		slog.String("status", string(gens.Status)),
	)

	writeJSON(w, http.StatusOK, gens)
}

// PollGenerationStatus handles POST /generate/status requests. The body
// is a generation tree; one reconciliation pass runs against it and the
// refreshed tree is returned and persisted.
func (h *Handlers) PollGenerationStatus(w http.ResponseWriter, r *http.Request) {
	var gens generations.VideoGenerations
	if err := json.NewDecoder(r.Body).Decode(&gens); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if gens.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "project_id is required", "MISSING_PROJECT_ID")
		return
	}

	refreshed, err := h.engine.PollAndSave(r.Context(), &gens)
	if err != nil {
		h.logger.Error("reconciliation pass failed",
			slog.String("project_id", gens.ProjectID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to poll generation status", "POLL_FAILED")
		return
	}

	if err := h.repo.Save(r.Context(), refreshed); err != nil {
		h.logger.Error("failed to save generations",
			slog.String("project_id", refreshed.ProjectID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to save generations", "SAVE_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, refreshed)
}

// WaitGeneration handles POST /generate/wait requests. Like
// PollGenerationStatus, but blocks through repeated reconciliation
// passes until the tree is terminal or the configured timeout elapses.
func (h *Handlers) WaitGeneration(w http.ResponseWriter, r *http.Request) {
	var gens generations.VideoGenerations
	if err := json.NewDecoder(r.Body).Decode(&gens); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if gens.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "project_id is required", "MISSING_PROJECT_ID")
		return
	}

	refreshed, err := h.engine.AwaitCompletion(r.Context(), &gens)
	if err != nil {
		h.logger.Error("await completion failed",
			slog.String("project_id", gens.ProjectID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to wait for generation", "WAIT_FAILED")
		return
	}

	if err := h.repo.Save(r.Context(), refreshed); err != nil {
		h.logger.Error("failed to save generations",
			slog.String("project_id", refreshed.ProjectID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to save generations", "SAVE_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, refreshed)
}

// GetGeneration handles GET /generate/{project_id} requests, returning
// the last persisted generation tree for the project.
func (h *Handlers) GetGeneration(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project_id")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "project ID is required", "MISSING_PROJECT_ID")
		return
	}

	gens, err := h.repo.FindByProjectID(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, generations.ErrNotFound) {
			writeError(w, http.StatusNotFound, "generations not found", "NOT_FOUND")
			return
		}
		h.logger.Error("failed to get generations",
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get generations", "FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, gens)
}

// ServeVideo handles GET /videos/{project_id}/{segment_index}/{input_index}/{video_id}
// requests, streaming a downloaded artifact from the local store.
func (h *Handlers) ServeVideo(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project_id")
	videoID := r.PathValue("video_id")
	if strings.Contains(projectID, "..") || strings.Contains(videoID, "..") {
		writeError(w, http.StatusBadRequest, "invalid path", "INVALID_PATH")
		return
	}

	segmentIndex, err := strconv.Atoi(r.PathValue("segment_index"))
	if err != nil || segmentIndex < 0 {
		writeError(w, http.StatusBadRequest, "invalid segment index", "INVALID_SEGMENT_INDEX")
		return
	}
	inputIndex, err := strconv.Atoi(r.PathValue("input_index"))
	if err != nil || inputIndex < 0 {
		writeError(w, http.StatusBadRequest, "invalid input index", "INVALID_INPUT_INDEX")
		return
	}

	path := h.store.VideoPath(projectID, segmentIndex, inputIndex, videoID)
	if !h.store.Exists(path) {
		writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
