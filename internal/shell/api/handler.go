// Package api provides the HTTP handlers for the Maestro API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/maestro-sh/maestro/internal/core/domain"
	"github.com/maestro-sh/maestro/internal/shell/docker"
	"github.com/maestro-sh/maestro/internal/shell/executor"
	"github.com/maestro-sh/maestro/internal/shell/store"
)

// Deployer is the handler's view of the deployment executor.
type Deployer interface {
	Deploy(ctx context.Context, strategy *domain.Strategy, deploymentName string, envOverrides map[string]map[string]string, networkName string) *executor.Result
	Stop(ctx context.Context, deploymentName string, timeout time.Duration) (*executor.Result, error)
	Remove(ctx context.Context, deploymentName string, force bool) (*executor.Result, error)
	Inspect(ctx context.Context, deploymentName string) (*executor.Result, error)
	List(ctx context.Context) ([]*executor.Result, error)
}

// HealthChecker runs a single on-demand health check.
type HealthChecker interface {
	Check(ctx context.Context, containerID string) domain.HealthRecord
}

// Watcher is the handler's view of the monitor's watch list.
type Watcher interface {
	Add(containerID string)
	RemoveContainer(containerID string)
}

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store    store.Store
	docker   docker.Client
	deployer Deployer
	health   HealthChecker
	watcher  Watcher
	logger   *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, d docker.Client, dep Deployer, health HealthChecker, watcher Watcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    s,
		docker:   d,
		deployer: dep,
		health:   health,
		watcher:  watcher,
		logger:   logger.With("component", "api"),
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)

	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/strategies", func(r chi.Router) {
			r.Post("/", h.handlePutStrategy)
			r.Get("/", h.handleListStrategies)
			r.Get("/{name}", h.handleGetStrategy)
			r.Put("/{name}", h.handlePutStrategy)
			r.Delete("/{name}", h.handleDeleteStrategy)
		})

		r.Route("/deployments", func(r chi.Router) {
			r.Post("/", h.handleDeploy)
			r.Get("/", h.handleListDeployments)
			r.Get("/{name}", h.handleGetDeployment)
			r.Post("/{name}/stop", h.handleStopDeployment)
			r.Delete("/{name}", h.handleRemoveDeployment)
		})

		r.Get("/containers/{id}/health", h.handleContainerHealth)
	})

	return r
}

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}

	if err := h.docker.Ping(r.Context()); err != nil {
		checks["docker"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "not_ready", Checks: checks})
		return
	}
	checks["docker"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready", Checks: checks})
}

// =============================================================================
// Strategy Handlers
// =============================================================================

func (h *Handler) handlePutStrategy(w http.ResponseWriter, r *http.Request) {
	var strategy domain.Strategy
	if err := json.NewDecoder(r.Body).Decode(&strategy); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	if name := chi.URLParam(r, "name"); name != "" {
		strategy.Name = name
	}
	if strategy.Name == "" {
		h.writeError(w, http.StatusBadRequest, "strategy name is required", "validation_error")
		return
	}

	if err := strategy.Validate(); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error(), "invalid_strategy")
		return
	}

	if err := h.store.PutStrategy(r.Context(), &strategy); err != nil {
		h.logger.Error("failed to store strategy", "strategy", strategy.Name, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to store strategy", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, strategy)
}

func (h *Handler) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	strategy, err := h.store.GetStrategy(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "strategy not found", "strategy_not_found")
			return
		}
		h.logger.Error("failed to get strategy", "strategy", name, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get strategy", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, strategy)
}

func (h *Handler) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	opts := store.DefaultListOptions()
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}

	strategies, err := h.store.ListStrategies(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list strategies", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list strategies", "internal_error")
		return
	}

	resp := ListStrategiesResponse{
		Strategies: make([]StrategySummary, 0, len(strategies)),
		Total:      len(strategies),
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	}
	for i := range strategies {
		resp.Strategies = append(resp.Strategies, StrategySummary{
			Name:       strategies[i].Name,
			Containers: strategies[i].ContainerNames(),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteStrategy(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.store.DeleteStrategy(r.Context(), name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "strategy not found", "strategy_not_found")
			return
		}
		h.logger.Error("failed to delete strategy", "strategy", name, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to delete strategy", "internal_error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Deployment Handlers
// =============================================================================

func (h *Handler) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if req.Strategy == "" || req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "strategy and name are required", "validation_error")
		return
	}

	strategy, err := h.store.GetStrategy(r.Context(), req.Strategy)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "strategy not found", "strategy_not_found")
			return
		}
		h.logger.Error("failed to get strategy", "strategy", req.Strategy, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get strategy", "internal_error")
		return
	}

	// The result carries the outcome; runtime failures are still HTTP 200.
	result := h.deployer.Deploy(r.Context(), strategy, req.Name, req.Env, req.Network)

	h.persistResult(r.Context(), result)
	h.watchResult(result)

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	results, err := h.deployer.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list deployments", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list deployments", "internal_error")
		return
	}
	h.writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	result, err := h.deployer.Inspect(r.Context(), name)
	if err != nil {
		if errors.Is(err, executor.ErrDeploymentNotFound) {
			h.writeError(w, http.StatusNotFound, "deployment not found", "deployment_not_found")
			return
		}
		h.logger.Error("failed to inspect deployment", "deployment", name, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to inspect deployment", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleStopDeployment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var timeout time.Duration
	if t := r.URL.Query().Get("timeout"); t != "" {
		if secs, err := strconv.Atoi(t); err == nil {
			timeout = time.Duration(secs) * time.Second
		}
	}

	result, err := h.deployer.Stop(r.Context(), name, timeout)
	if err != nil {
		if errors.Is(err, executor.ErrDeploymentNotFound) {
			h.writeError(w, http.StatusNotFound, "deployment not found", "deployment_not_found")
			return
		}
		h.logger.Error("failed to stop deployment", "deployment", name, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to stop deployment", "internal_error")
		return
	}

	h.persistResult(r.Context(), result)

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRemoveDeployment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	force := r.URL.Query().Get("force") == "true"

	result, err := h.deployer.Remove(r.Context(), name, force)
	if err != nil {
		if errors.Is(err, executor.ErrDeploymentNotFound) {
			h.writeError(w, http.StatusNotFound, "deployment not found", "deployment_not_found")
			return
		}
		h.logger.Error("failed to remove deployment", "deployment", name, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to remove deployment", "internal_error")
		return
	}

	for _, c := range result.Containers {
		if h.watcher != nil && c.ContainerID != "" {
			h.watcher.RemoveContainer(c.ContainerID)
		}
	}
	if err := h.store.DeleteDeployment(r.Context(), name); err != nil && !errors.Is(err, store.ErrNotFound) {
		h.logger.Warn("failed to delete deployment record", "deployment", name, "error", err)
	}

	h.writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// Container Health Handler
// =============================================================================

func (h *Handler) handleContainerHealth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record := h.health.Check(r.Context(), id)
	h.writeJSON(w, http.StatusOK, record)
}

// =============================================================================
// Helpers
// =============================================================================

// persistResult upserts the stored deployment record to mirror the latest
// operation outcome. Persistence failure is logged, never surfaced; the
// runtime is the source of truth.
func (h *Handler) persistResult(ctx context.Context, result *executor.Result) {
	record, err := h.store.GetDeployment(ctx, result.Deployment)
	if err != nil {
		record = domain.NewDeployment(result.Deployment, result.Strategy)
	}
	if result.Network != "" {
		record.NetworkName = result.Network
	}
	record.Status = result.Status
	record.Containers = containerStates(result)
	record.Errors = result.Errors
	record.UpdatedAt = time.Now().UTC()

	if err := h.store.PutDeployment(ctx, record); err != nil {
		h.logger.Warn("failed to persist deployment record", "deployment", result.Deployment, "error", err)
	}
}

// watchResult registers started containers with the health monitor.
func (h *Handler) watchResult(result *executor.Result) {
	if h.watcher == nil {
		return
	}
	for _, c := range result.Containers {
		if c.Status == domain.ContainerReady && c.ContainerID != "" {
			h.watcher.Add(c.ContainerID)
		}
	}
}

func containerStates(result *executor.Result) []domain.ContainerState {
	names := make([]string, 0, len(result.Containers))
	for name := range result.Containers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]domain.ContainerState, 0, len(names))
	for _, name := range names {
		c := result.Containers[name]
		out = append(out, domain.ContainerState{
			Name:        c.Name,
			ContainerID: c.ContainerID,
			Status:      c.Status,
			Error:       c.Error,
		})
	}
	return out
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
