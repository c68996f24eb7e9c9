// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"

	custom_errors "issue-triage/internal/errors"
	"issue-triage/internal/model"
	"issue-triage/internal/store"
)

// Engine is the slice of the sync engine the API depends on. Satisfied by
// engine.Engine.
type Engine interface {
	SyncRepo(ctx context.Context, repoID int64) model.SyncResult
	SyncAllRepos(ctx context.Context, userID int64) ([]model.SyncResult, error)
	PushBatchChanges(ctx context.Context, userID int64) (model.PushResult, error)
	ApplyTriage(ctx context.Context, userID, issueID int64, change model.PendingChange, mode model.SyncMode) error
	ConnectRepository(ctx context.Context, userID int64, origin model.Origin, owner, slug string, mode model.SyncMode) (model.TrackedRepository, error)
	DisconnectRepository(ctx context.Context, userID, repoID int64) error
	RepoLabels(ctx context.Context, userID, repoID int64) ([]string, error)
	RepoCollaborators(ctx context.Context, userID, repoID int64) ([]string, error)
	CountBatchPending(ctx context.Context, userID int64) (int64, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	db     store.Querier
	engine Engine
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(db store.Querier, eng Engine, logger *slog.Logger) http.Handler {
	h := &Handler{
		db:     db,
		engine: eng,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/repos", h.connectRepo)
		r.Delete("/repos/{repoID}", h.disconnectRepo)
		r.Post("/repos/{repoID}/sync", h.syncRepo)
		r.Get("/repos/{repoID}/labels", h.repoLabels)
		r.Get("/repos/{repoID}/collaborators", h.repoCollaborators)
		r.Post("/sync", h.syncAll)
		r.Post("/push", h.pushBatch)
		r.Post("/issues/{issueID}/triage", h.triageIssue)
		r.Get("/issues", h.listIssues)
		r.Get("/pending/count", h.pendingCount)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// callerID reads the already-authenticated user id handed in by the fronting
// auth layer. The service performs no authentication itself.
func callerID(r *http.Request) (int64, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 0, errors.New("missing X-User-ID header")
	}
	return strconv.ParseInt(raw, 10, 64)
}

type connectRepoRequest struct {
	Origin   string `json:"origin"`
	Owner    string `json:"owner"`
	Slug     string `json:"slug"`
	Repo     string `json:"repo"` // "owner/slug" shorthand, alternative to the split fields
	SyncMode string `json:"syncMode"`
}

func splitRepo(raw string) (owner, slug string, err error) {
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &custom_errors.ErrInvalidRepoFormat{Repo: raw}
	}
	return parts[0], parts[1], nil
}

// connectRepo handles POST /v1/repos.
func (h *Handler) connectRepo(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var req connectRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Repo != "" {
		req.Owner, req.Slug, err = splitRepo(req.Repo)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Owner == "" || req.Slug == "" {
		respondWithError(w, http.StatusBadRequest, "owner and slug are required")
		return
	}
	mode := model.SyncMode(req.SyncMode)
	if mode == "" {
		mode = model.SyncModeLive
	}
	if mode != model.SyncModeLive && mode != model.SyncModeBatch {
		respondWithError(w, http.StatusBadRequest, "syncMode must be 'live' or 'batch'")
		return
	}

	repo, err := h.engine.ConnectRepository(r.Context(), userID, model.Origin(req.Origin), req.Owner, req.Slug, mode)
	if err != nil {
		if errors.Is(err, custom_errors.ErrNoToken) {
			respondWithError(w, http.StatusPreconditionFailed, "No access token registered for this origin")
			return
		}
		h.logger.Error("Failed to connect repository", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusCreated, toRepoResponse(repo))
}

// disconnectRepo handles DELETE /v1/repos/{repoID}.
func (h *Handler) disconnectRepo(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	repoID, err := strconv.ParseInt(chi.URLParam(r, "repoID"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return
	}
	if err := h.engine.DisconnectRepository(r.Context(), userID, repoID); err != nil {
		h.logger.Error("Failed to disconnect repository", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// syncRepo handles POST /v1/repos/{repoID}/sync.
func (h *Handler) syncRepo(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	repoID, err := strconv.ParseInt(chi.URLParam(r, "repoID"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return
	}
	repo, err := h.db.GetRepository(r.Context(), repoID)
	if err != nil || repo.UserID != userID {
		respondWithError(w, http.StatusNotFound, "Repository not found")
		return
	}
	respondWithJSON(w, http.StatusOK, h.engine.SyncRepo(r.Context(), repoID))
}

// syncAll handles POST /v1/sync.
func (h *Handler) syncAll(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	results, err := h.engine.SyncAllRepos(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to sync repositories", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, results)
}

// pushBatch handles POST /v1/push.
func (h *Handler) pushBatch(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	result, err := h.engine.PushBatchChanges(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to push batch changes", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

type triageRequest struct {
	Mode   string              `json:"mode"`
	Change model.PendingChange `json:"change"`
}

// triageIssue handles POST /v1/issues/{issueID}/triage. The mode flag is
// explicit; when omitted the repository's configured sync mode decides.
func (h *Handler) triageIssue(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	issueID, err := strconv.ParseInt(chi.URLParam(r, "issueID"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid issue id")
		return
	}
	var req triageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	mode := model.SyncMode(req.Mode)
	if mode == "" {
		issue, err := h.db.GetIssue(r.Context(), issueID)
		if err != nil {
			respondWithError(w, http.StatusNotFound, "Issue not found")
			return
		}
		repo, err := h.db.GetRepository(r.Context(), issue.RepositoryID)
		if err != nil {
			respondWithError(w, http.StatusNotFound, "Repository not found")
			return
		}
		mode = repo.SyncMode
	}
	if mode != model.SyncModeLive && mode != model.SyncModeBatch {
		respondWithError(w, http.StatusBadRequest, "mode must be 'live' or 'batch'")
		return
	}

	if err := h.engine.ApplyTriage(r.Context(), userID, issueID, req.Change, mode); err != nil {
		h.logger.Error("Failed to apply triage change", "issue_id", issueID, "error", err)
		respondWithError(w, http.StatusBadGateway, "Triage change failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "applied", "mode": string(mode)})
}

// listIssues handles GET /v1/issues?repo=&state=.
func (h *Handler) listIssues(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}

	arg := store.ListIssuesParams{UserID: userID}
	if raw := r.URL.Query().Get("repo"); raw != "" {
		repoID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid 'repo' parameter")
			return
		}
		arg.RepositoryID = &repoID
	}
	if raw := r.URL.Query().Get("state"); raw != "" {
		state := model.IssueState(raw)
		if state != model.IssueOpen && state != model.IssueClosed {
			respondWithError(w, http.StatusBadRequest, "Invalid 'state' parameter")
			return
		}
		arg.State = &state
	}

	issues, err := h.db.ListIssuesWithTriage(r.Context(), arg)
	if err != nil {
		h.logger.Error("Failed to list issues", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, toIssueResponses(issues))
}

// pendingCount handles GET /v1/pending/count.
func (h *Handler) pendingCount(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	n, err := h.engine.CountBatchPending(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to count pending changes", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int64{"count": n})
}

// repoLabels handles GET /v1/repos/{repoID}/labels.
func (h *Handler) repoLabels(w http.ResponseWriter, r *http.Request) {
	h.repoCapability(w, r, h.engine.RepoLabels)
}

// repoCollaborators handles GET /v1/repos/{repoID}/collaborators.
func (h *Handler) repoCollaborators(w http.ResponseWriter, r *http.Request) {
	h.repoCapability(w, r, h.engine.RepoCollaborators)
}

func (h *Handler) repoCapability(w http.ResponseWriter, r *http.Request, fetch func(context.Context, int64, int64) ([]string, error)) {
	userID, err := callerID(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	repoID, err := strconv.ParseInt(chi.URLParam(r, "repoID"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return
	}
	items, err := fetch(r.Context(), userID, repoID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Repository not found")
			return
		}
		h.logger.Error("Failed to fetch repository capability", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if items == nil {
		items = []string{}
	}
	respondWithJSON(w, http.StatusOK, items)
}
