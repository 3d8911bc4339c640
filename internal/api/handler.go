// internal/api/handler.go
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	custom_errors "vcs-release-tracker/internal/errors"
	"vcs-release-tracker/internal/model"
	"vcs-release-tracker/internal/registry"
	"vcs-release-tracker/internal/release"
)

// Handler is the container for API dependencies.
type Handler struct {
	repos    *registry.Service
	releases *release.Service
	logger   *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(repos *registry.Service, releases *release.Service, logger *slog.Logger) http.Handler {
	h := &Handler{
		repos:    repos,
		releases: releases,
		logger:   logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/hooks/{provider}", h.receiveHook)
		r.Route("/repos/{provider}/{providerID}", func(r chi.Router) {
			r.Get("/", h.getRepository)
			r.Get("/latest-release", h.getLatestRelease)
			r.Get("/access", h.listAccess)
			r.Post("/access", h.grantAccess)
			r.Delete("/access/{userID}", h.revokeAccess)
		})
		r.Post("/releases/{releaseID}/resolve", h.resolveRelease)
		r.Get("/records/{recordID}/release", h.getReleaseForRecord)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// hookPayload is the minimal ingress DTO supplied by the webhook transport.
// Payload parsing and signature verification live upstream.
type hookPayload struct {
	RepositoryID string     `json:"repository_id"`
	ReleaseID    string     `json:"release_id"`
	Tag          string     `json:"tag"`
	EventID      *uuid.UUID `json:"event_id,omitempty"`
	SenderUserID int64      `json:"sender_user_id"`
}

// receiveHook ingests a release webhook event.
// POST /v1/hooks/{provider}
func (h *Handler) receiveHook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	var payload hookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if payload.RepositoryID == "" || payload.ReleaseID == "" {
		respondWithError(w, http.StatusBadRequest, "repository_id and release_id are required")
		return
	}

	repo, err := h.repos.Lookup(r.Context(), provider, payload.RepositoryID)
	if err != nil {
		var notFound *custom_errors.RepositoryNotFoundError
		if errors.As(err, &notFound) {
			respondWithError(w, http.StatusNotFound, notFound.Error())
			return
		}
		h.serverError(w, "Failed to look up repository", err)
		return
	}

	if !repo.Enabled() {
		respondWithError(w, http.StatusForbidden, (&custom_errors.RepositoryDisabledError{FullName: repo.FullName}).Error())
		return
	}

	authorized, err := h.repos.HasAccess(r.Context(), repo.ID, payload.SenderUserID)
	if err != nil {
		h.serverError(w, "Failed to check sender access", err)
		return
	}
	if !authorized {
		respondWithError(w, http.StatusForbidden, (&custom_errors.InvalidSenderError{UserID: payload.SenderUserID, RepositoryID: repo.ID}).Error())
		return
	}

	rel, err := h.releases.Ingest(r.Context(), release.IngestParams{
		Provider:     provider,
		ProviderID:   payload.ReleaseID,
		RepositoryID: repo.ID,
		Tag:          payload.Tag,
		EventID:      payload.EventID,
	})
	if err != nil {
		var dup *custom_errors.ReleaseAlreadyReceivedError
		if errors.As(err, &dup) {
			// Redelivery resolves to the same row; acknowledge it without
			// pretending a new resource was created.
			respondWithJSON(w, http.StatusAccepted, map[string]any{
				"result":  "already_received",
				"release": dup.Release,
			})
			return
		}
		h.serverError(w, "Failed to ingest release", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]any{
		"result":  "created",
		"release": rel,
	})
}

// getRepository returns a registered repository.
// GET /v1/repos/{provider}/{providerID}
func (h *Handler) getRepository(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.lookupRepo(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, repo)
}

// getLatestRelease returns the newest published, non-draft release.
// GET /v1/repos/{provider}/{providerID}/latest-release
func (h *Handler) getLatestRelease(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.lookupRepo(w, r)
	if !ok {
		return
	}

	rel, err := h.repos.LatestPublishedRelease(r.Context(), repo.ID)
	if err != nil {
		var notFound *custom_errors.ReleaseNotFoundError
		if errors.As(err, &notFound) {
			respondWithError(w, http.StatusNotFound, "Repository has no published release")
			return
		}
		h.serverError(w, "Failed to get latest release", err)
		return
	}
	respondWithJSON(w, http.StatusOK, rel)
}

// listAccess returns the access grants of a repository.
// GET /v1/repos/{provider}/{providerID}/access
func (h *Handler) listAccess(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.lookupRepo(w, r)
	if !ok {
		return
	}
	grants, err := h.repos.ListAccess(r.Context(), repo.ID)
	if err != nil {
		h.serverError(w, "Failed to list access grants", err)
		return
	}
	if grants == nil {
		grants = []model.AccessGrant{}
	}
	respondWithJSON(w, http.StatusOK, grants)
}

// grantAccess adds a user to the repository access list.
// POST /v1/repos/{provider}/{providerID}/access
func (h *Handler) grantAccess(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.lookupRepo(w, r)
	if !ok {
		return
	}

	var payload struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.UserID == 0 {
		respondWithError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.repos.GrantAccess(r.Context(), repo.ID, payload.UserID); err != nil {
		h.serverError(w, "Failed to grant access", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// revokeAccess removes a user from the repository access list.
// DELETE /v1/repos/{provider}/{providerID}/access/{userID}
func (h *Handler) revokeAccess(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.lookupRepo(w, r)
	if !ok {
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	if err := h.repos.RevokeAccess(r.Context(), repo.ID, userID); err != nil {
		h.serverError(w, "Failed to revoke access", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveRelease finalizes a publish-pending release after the external
// approval step completes.
// POST /v1/releases/{releaseID}/resolve
func (h *Handler) resolveRelease(w http.ResponseWriter, r *http.Request) {
	releaseID, err := uuid.Parse(chi.URLParam(r, "releaseID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid release id")
		return
	}

	var payload struct {
		Outcome string `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var outcome model.ReleaseStatus
	switch payload.Outcome {
	case "published":
		outcome = model.StatusPublished
	case "failed":
		outcome = model.StatusFailed
	default:
		respondWithError(w, http.StatusBadRequest, "outcome must be 'published' or 'failed'")
		return
	}

	rel, err := h.releases.ResolvePending(r.Context(), releaseID, outcome)
	if err != nil {
		var notFound *custom_errors.ReleaseNotFoundError
		if errors.As(err, &notFound) {
			respondWithError(w, http.StatusNotFound, "Release not found")
			return
		}
		var invalid *custom_errors.InvalidTransitionError
		if errors.As(err, &invalid) {
			respondWithError(w, http.StatusConflict, invalid.Error())
			return
		}
		h.serverError(w, "Failed to resolve release", err)
		return
	}
	respondWithJSON(w, http.StatusOK, rel)
}

// getReleaseForRecord is the reverse lookup from a record identifier.
// GET /v1/records/{recordID}/release?only_draft=true
func (h *Handler) getReleaseForRecord(w http.ResponseWriter, r *http.Request) {
	recordID, err := uuid.Parse(chi.URLParam(r, "recordID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid record id")
		return
	}
	onlyDraft := r.URL.Query().Get("only_draft") == "true"

	rel, err := h.releases.GetForRecord(r.Context(), recordID, onlyDraft)
	if err != nil {
		var notFound *custom_errors.ReleaseNotFoundError
		if errors.As(err, &notFound) {
			respondWithError(w, http.StatusNotFound, "No release for record")
			return
		}
		h.serverError(w, "Failed to look up release for record", err)
		return
	}
	respondWithJSON(w, http.StatusOK, rel)
}

func (h *Handler) lookupRepo(w http.ResponseWriter, r *http.Request) (model.Repository, bool) {
	provider := chi.URLParam(r, "provider")
	providerID := chi.URLParam(r, "providerID")

	repo, err := h.repos.Lookup(r.Context(), provider, providerID)
	if err != nil {
		var notFound *custom_errors.RepositoryNotFoundError
		if errors.As(err, &notFound) {
			respondWithError(w, http.StatusNotFound, "Repository not found")
			return model.Repository{}, false
		}
		h.serverError(w, "Failed to get repository", err)
		return model.Repository{}, false
	}
	return repo, true
}

func (h *Handler) serverError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, "error", err)
	respondWithError(w, http.StatusInternalServerError, "Internal server error")
}
