package syncer

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opencorp/clientsync/internal/auth"
	"github.com/opencorp/clientsync/internal/feed"
	"github.com/opencorp/clientsync/internal/middleware"
	"github.com/opencorp/clientsync/internal/repository"
)

// HandlerConfig carries the surface-level knobs for the HTTP endpoints.
type HandlerConfig struct {
	Secret         string
	Sessions       auth.SessionValidator
	PreviewLimiter middleware.RateLimiter
	TriggerLimiter middleware.RateLimiter
}

// Handler exposes the sync engine over HTTP.
type Handler struct {
	service *Service
	audits  repository.AuditLogRepository
	cfg     HandlerConfig
	logger  zerolog.Logger
}

// NewHTTPHandler wires the sync endpoints onto a mux.
func NewHTTPHandler(service *Service, audits repository.AuditLogRepository, cfg HandlerConfig, logger zerolog.Logger) http.Handler {
	h := &Handler{service: service, audits: audits, cfg: cfg, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sync/{feed}", h.trigger)
	mux.HandleFunc("POST /sync/{feed}/confirm", h.confirm)
	mux.HandleFunc("POST /sync/{feed}/preview", h.preview)
	mux.HandleFunc("GET /sync/{feed}/status", h.status)
	mux.HandleFunc("GET /clients/{id}/audit", h.clientAudit)
	return mux
}

// trigger starts a live run, secret-authenticated. The dry_run query flag
// plans without persisting.
func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	if !auth.CheckSecret(r, h.cfg.Secret) {
		writeError(w, http.StatusUnauthorized, "invalid or missing sync secret")
		return
	}

	caller := callerIdentity(r)
	if h.cfg.TriggerLimiter != nil && !h.cfg.TriggerLimiter.Allow(caller) {
		writeError(w, http.StatusTooManyRequests, "sync trigger rate limit exceeded")
		return
	}

	dryRun := r.URL.Query().Get("dry_run") == "1" || r.URL.Query().Get("dry_run") == "true"
	ctx := auth.ContextWithCaller(r.Context(), caller)

	result, err := h.service.Execute(ctx, r.PathValue("feed"), dryRun)
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// confirm is the UI-triggered live run, session-authenticated. The response
// carries the run id referencing the persisted history entry.
func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Sessions == nil {
		writeError(w, http.StatusUnauthorized, "session authentication not configured")
		return
	}
	user, err := h.cfg.Sessions.Validate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if h.cfg.TriggerLimiter != nil && !h.cfg.TriggerLimiter.Allow(user) {
		writeError(w, http.StatusTooManyRequests, "sync trigger rate limit exceeded")
		return
	}

	ctx := auth.ContextWithCaller(r.Context(), user)
	result, err := h.service.Execute(ctx, r.PathValue("feed"), false)
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	caller := callerIdentity(r)
	if h.cfg.Sessions != nil {
		if user, err := h.cfg.Sessions.Validate(r); err == nil {
			caller = user
		}
	}
	if h.cfg.PreviewLimiter != nil && !h.cfg.PreviewLimiter.Allow(caller) {
		writeError(w, http.StatusTooManyRequests, "preview rate limit exceeded")
		return
	}

	result, err := h.service.Preview(r.Context(), r.PathValue("feed"))
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	feedKey := r.PathValue("feed")
	state, err := h.service.Status(r.Context(), feedKey)
	if err != nil {
		h.writeRunError(w, err)
		return
	}

	runs, err := h.service.RecentRuns(r.Context(), feedKey, 10)
	if err != nil {
		h.logger.Error().Err(err).Str("feed", feedKey).Msg("failed to list recent runs")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"feed":          state.Feed,
		"lastSyncedAt":  state.LastSyncedAt,
		"lastRunStatus": state.LastRunStatus,
		"lastRunError":  state.LastRunError,
		"recentRuns":    runs,
	})
}

func (h *Handler) clientAudit(w http.ResponseWriter, r *http.Request) {
	if !auth.CheckSecret(r, h.cfg.Secret) {
		writeError(w, http.StatusUnauthorized, "invalid or missing sync secret")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	entries, err := h.audits.ListByEntity(r.Context(), "client", id, 100)
	if err != nil {
		h.logger.Error().Err(err).Str("client", id.String()).Msg("failed to list audit entries")
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrFeedUnknown):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrLockHeld):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, feed.ErrSourceFetch):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// callerIdentity keys rate limiting when no session user is known.
func callerIdentity(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
