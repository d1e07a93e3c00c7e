// internal/api/handler.go
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"repo-growth-tracker/internal/growth"
	"repo-growth-tracker/internal/model"
	"repo-growth-tracker/internal/ranking"
	"repo-growth-tracker/internal/store"
)

// Handler is the container for API dependencies.
type Handler struct {
	store          store.Store
	calculator     *growth.Calculator
	excludedOwners []string
	defaultLimit   int
	logger         *slog.Logger
}

type Options struct {
	DailyWindow    model.Window
	WeeklyWindow   model.Window
	ExcludedOwners []string
	DefaultLimit   int
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(s store.Store, opts Options, logger *slog.Logger) http.Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	h := &Handler{
		store:          s,
		calculator:     growth.NewCalculator(s, opts.DailyWindow, opts.WeeklyWindow, logger),
		excludedOwners: opts.ExcludedOwners,
		defaultLimit:   opts.DefaultLimit,
		logger:         logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", h.getStatus)
		r.Get("/repos/{owner}/{name}/snapshots", h.getSnapshots)
		r.Get("/growth/top", h.getTopGrowth)
	})

	return r
}

// healthCheck reports whether the snapshot store is reachable.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Error("Health check failed", "error", err)
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	LastUpdateTime *time.Time `json:"last_update_time"`
	RowCount       int64      `json:"row_count"`
}

// getStatus handles the request for the store's freshness.
// GET /v1/status
func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	last, err := h.store.LastUpdateTime(r.Context())
	if err != nil {
		h.logger.Error("Failed to get last update time", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	count, err := h.store.RowCount(r.Context())
	if err != nil {
		h.logger.Error("Failed to count snapshots", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := statusResponse{RowCount: count}
	if !last.Equal(store.Never) {
		resp.LastUpdateTime = &last
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// getSnapshots handles the request for a repository's snapshot history.
// GET /v1/repos/{owner}/{name}/snapshots?limit=N
func (h *Handler) getSnapshots(w http.ResponseWriter, r *http.Request) {
	repoName := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "name")

	limit, ok := parseLimit(w, r, 30)
	if !ok {
		return
	}

	history, err := h.store.History(r.Context(), repoName, limit)
	if err != nil {
		h.logger.Error("Failed to get snapshot history", "repo", repoName, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if len(history) == 0 {
		respondWithError(w, http.StatusNotFound, "Repository not found")
		return
	}

	respondWithJSON(w, http.StatusOK, history)
}

// getTopGrowth ranks the latest capture by growth.
// GET /v1/growth/top?by=daily|weekly&limit=N
func (h *Handler) getTopGrowth(w http.ResponseWriter, r *http.Request) {
	by := r.URL.Query().Get("by")
	if by == "" {
		by = string(ranking.Daily)
	}
	period, err := ranking.ParsePeriod(by)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid 'by' parameter. Must be 'daily' or 'weekly'.")
		return
	}

	limit, ok := parseLimit(w, r, h.defaultLimit)
	if !ok {
		return
	}

	latest, err := h.store.LatestSnapshots(r.Context())
	if err != nil {
		h.logger.Error("Failed to get latest snapshots", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	records, _ := h.calculator.Calculate(r.Context(), latest)
	top := ranking.Top(records, ranking.Options{
		By:             period,
		N:              limit,
		ExcludedOwners: h.excludedOwners,
	})
	if top == nil {
		top = []model.GrowthRecord{}
	}

	respondWithJSON(w, http.StatusOK, top)
}

func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def, true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 100.")
		return 0, false
	}
	return limit, true
}
