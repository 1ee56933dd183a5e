package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"engined/internal/orchestrator"
	"engined/pkg/types"
)

// Service is the orchestrator surface consumed by the HTTP handlers.
type Service interface {
	Models() []types.Model
	Status() types.StatusResponse
	Load(ctx context.Context, req types.LoadRequest) (types.LoadResponse, error)
	Batch(ctx context.Context, req types.BatchRequest) (types.BatchResponse, error)
	Dispose(ctx context.Context, req types.DisposeRequest) error
	Recreate(ctx context.Context, req types.RecreateRequest) (types.LoadResponse, error)
	Protect(key string)
	Unprotect(key string)
	EngineHealth(tier orchestrator.Tier, domain string) types.EngineHealth
	PerformanceMetrics(tier orchestrator.Tier, domain string) types.PerformanceMetrics
	SystemCapabilities() types.SystemCapabilities
	Ready() bool
}

// NewMux assembles the HTTP API around the given service.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(metricsMiddleware)
	r.Use(cors.Handler(corsOptions))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/models", handleModels(svc))
	r.Get("/status", handleStatus(svc))
	r.Get("/capabilities", handleCapabilities(svc))
	r.Route("/engines", func(r chi.Router) {
		r.Post("/load", handleLoad(svc))
		r.Post("/batch", handleBatch(svc))
		r.Post("/dispose", handleDispose(svc))
		r.Post("/recreate", handleRecreate(svc))
		r.Post("/protect", handleProtect(svc))
		r.Post("/unprotect", handleUnprotect(svc))
		r.Get("/health", handleEngineHealth(svc))
		r.Get("/metrics", handleEngineMetrics(svc))
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !svc.Ready() {
			writeJSONError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	mountSwagger(r)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// handleModels godoc
// @Summary List loadable models
// @Produce json
// @Success 200 {object} types.ModelsResponse
// @Router /models [get]
func handleModels(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.Models()})
	}
}

// handleStatus godoc
// @Summary Orchestrator cache and lease status
// @Produce json
// @Success 200 {object} types.StatusResponse
// @Router /status [get]
func handleStatus(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

// handleCapabilities godoc
// @Summary Host capabilities as seen by the orchestrator
// @Produce json
// @Success 200 {object} types.SystemCapabilities
// @Router /capabilities [get]
func handleCapabilities(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, svc.SystemCapabilities())
	}
}

// handleLoad godoc
// @Summary Load or fetch a cached engine for a tier
// @Accept json
// @Produce json
// @Param request body types.LoadRequest true "load request"
// @Success 200 {object} types.LoadResponse
// @Failure 404 {object} types.ErrorResponse
// @Failure 504 {object} types.ErrorResponse
// @Router /engines/load [post]
func handleLoad(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.LoadRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		ctx, cancel := requestContext(r.Context())
		defer cancel()
		resp, err := svc.Load(ctx, req)
		if err != nil {
			zlog.Warn().Err(err).Str("tier", req.Tier).Str("domain", req.Domain).Msg("load failed")
			writeOrchestratorError(w, err)
			return
		}
		zlog.Info().Str("key", resp.Key).Str("model", resp.Model).
			Bool("cache_hit", resp.CacheHit).Int64("duration_ms", resp.DurationMs).
			Msg("load served")
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleBatch godoc
// @Summary Load a batch of engines with bounded concurrency
// @Accept json
// @Produce json
// @Param request body types.BatchRequest true "batch request"
// @Success 200 {object} types.BatchResponse
// @Router /engines/batch [post]
func handleBatch(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.BatchRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if len(req.Requests) == 0 {
			writeJSONError(w, http.StatusBadRequest, "batch requires at least one request")
			return
		}
		ctx, cancel := requestContext(r.Context())
		defer cancel()
		resp, err := svc.Batch(ctx, req)
		if err != nil {
			writeOrchestratorError(w, err)
			return
		}
		zlog.Info().Str("batch_id", resp.BatchID).
			Int("loaded", len(resp.Loaded)).Int("failed", len(resp.Failed)).
			Msg("batch served")
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleDispose godoc
// @Summary Dispose one engine slot
// @Accept json
// @Param request body types.DisposeRequest true "dispose request"
// @Success 204
// @Router /engines/dispose [post]
func handleDispose(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.DisposeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		ctx, cancel := requestContext(r.Context())
		defer cancel()
		if err := svc.Dispose(ctx, req); err != nil {
			writeOrchestratorError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleRecreate godoc
// @Summary Dispose and rebuild one engine slot
// @Accept json
// @Produce json
// @Param request body types.RecreateRequest true "recreate request"
// @Success 200 {object} types.LoadResponse
// @Failure 409 {object} types.ErrorResponse
// @Router /engines/recreate [post]
func handleRecreate(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.RecreateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		ctx, cancel := requestContext(r.Context())
		defer cancel()
		resp, err := svc.Recreate(ctx, req)
		if err != nil {
			writeOrchestratorError(w, err)
			return
		}
		zlog.Info().Str("key", resp.Key).Str("model", resp.Model).Msg("engine recreated")
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleProtect godoc
// @Summary Grant a protection lease for a cache key
// @Accept json
// @Param request body types.ProtectRequest true "protect request"
// @Success 204
// @Router /engines/protect [post]
func handleProtect(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ProtectRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Key == "" {
			writeJSONError(w, http.StatusBadRequest, "key is required")
			return
		}
		svc.Protect(req.Key)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUnprotect(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ProtectRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Key == "" {
			writeJSONError(w, http.StatusBadRequest, "key is required")
			return
		}
		svc.Unprotect(req.Key)
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleEngineHealth godoc
// @Summary Health view for one tier/domain slot
// @Produce json
// @Param tier query string true "tier (low, mid, high)"
// @Param domain query string false "domain"
// @Success 200 {object} types.EngineHealth
// @Router /engines/health [get]
func handleEngineHealth(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tier := orchestrator.Tier(r.URL.Query().Get("tier"))
		if !tier.Valid() {
			writeJSONError(w, http.StatusBadRequest, "tier must be low, mid or high")
			return
		}
		writeJSON(w, http.StatusOK, svc.EngineHealth(tier, r.URL.Query().Get("domain")))
	}
}

// handleEngineMetrics godoc
// @Summary Performance counters for one tier/domain slot
// @Produce json
// @Param tier query string true "tier (low, mid, high)"
// @Param domain query string false "domain"
// @Success 200 {object} types.PerformanceMetrics
// @Router /engines/metrics [get]
func handleEngineMetrics(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tier := orchestrator.Tier(r.URL.Query().Get("tier"))
		if !tier.Valid() {
			writeJSONError(w, http.StatusBadRequest, "tier must be low, mid or high")
			return
		}
		writeJSON(w, http.StatusOK, svc.PerformanceMetrics(tier, r.URL.Query().Get("domain")))
	}
}
