// Package http exposes the weather service over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dmoreira/weathertool/internal/client"
	"github.com/dmoreira/weathertool/internal/lifecycle"
	"github.com/dmoreira/weathertool/internal/service"
	"github.com/dmoreira/weathertool/internal/validation"
	"github.com/dmoreira/weathertool/internal/weathererr"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService *service.WeatherService
	transport      client.Transport
	logger         *zap.Logger

	locationMinLen int
	locationMaxLen int
	startTime      time.Time

	// CachePing, when set, is called to check cache reachability.
	// Set when the backend is memcached or redis.
	cachePing func() error

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. cachePing may be nil for the in-memory backend.
func NewHandler(weatherService *service.WeatherService, transport client.Transport, logger *zap.Logger, locationMinLen, locationMaxLen int, cachePing func() error) *Handler {
	return &Handler{
		weatherService: weatherService,
		transport:      transport,
		logger:         logger,
		locationMinLen: locationMinLen,
		locationMaxLen: locationMaxLen,
		startTime:      time.Now(),
		cachePing:      cachePing,
	}
}

func (h *Handler) location(w http.ResponseWriter, r *http.Request) (string, bool) {
	loc, err := validation.ValidateLocation(mux.Vars(r)["location"], h.locationMinLen, h.locationMaxLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return "", false
	}
	return loc, true
}

// GetWeather handles GET /weather/{location}. Responds with the flat
// projection kept for older call sites.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	location, ok := h.location(w, r)
	if !ok {
		return
	}
	record, err := h.weatherService.GetWeather(r.Context(), location)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record.LegacyFormat())
}

// GetWeatherForAgent handles GET /weather/{location}/agent. Responds with the
// nested machine-consumable projection.
func (h *Handler) GetWeatherForAgent(w http.ResponseWriter, r *http.Request) {
	location, ok := h.location(w, r)
	if !ok {
		return
	}
	result, err := h.weatherService.GetWeatherForAgent(r.Context(), location)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DisplayWeather handles GET /weather/{location}/display.
func (h *Handler) DisplayWeather(w http.ResponseWriter, r *http.Request) {
	location, ok := h.location(w, r)
	if !ok {
		return
	}
	display, err := h.weatherService.DisplayWeather(r.Context(), location)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"display": display})
}

// GetCacheInfo handles GET /cache.
func (h *Handler) GetCacheInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.weatherService.CacheInfo(r.Context())
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "CACHE_UNAVAILABLE", "cache backend unreachable")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ClearCache handles DELETE /cache.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.weatherService.ClearCache(r.Context()); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "CACHE_UNAVAILABLE", "cache backend unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// ClearCacheEntry handles DELETE /cache/{location}.
func (h *Handler) ClearCacheEntry(w http.ResponseWriter, r *http.Request) {
	location, ok := h.location(w, r)
	if !ok {
		return
	}
	if err := h.weatherService.ClearCity(r.Context(), location); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "CACHE_UNAVAILABLE", "cache backend unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r)

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if result.reason == "api_key_invalid" {
		checks["weatherApi"] = "unhealthy"
	} else {
		checks["weatherApi"] = "healthy"
	}
	if h.cachePing != nil {
		if h.cachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "weathertool",
		"version":   "dev",
		"uptime":    time.Since(h.startTime).Truncate(time.Second).String(),
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus evaluates health conditions in priority order:
// shutting-down > API key invalid > cache unreachable > healthy.
func (h *Handler) computeHealthStatus(r *http.Request) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if err := h.transport.ValidateAPIKey(r.Context()); err != nil {
		return healthResult{"degraded", http.StatusServiceUnavailable, "api_key_invalid"}
	}
	if h.cachePing != nil {
		if err := h.cachePing(); err != nil {
			return healthResult{"degraded", http.StatusServiceUnavailable, "cache_unreachable"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError maps a service-layer error to an HTTP response by kind.
// Not-found gets 404, a broken upstream contract gets 502, transient upstream
// failures get 502/504, bad input gets 400.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("weather request failed", zap.Error(err))
	}

	var notFound *weathererr.CityNotFoundError
	if errors.As(err, &notFound) {
		writeError(w, r, http.StatusNotFound, "CITY_NOT_FOUND", notFound.Error())
		return
	}
	if weathererr.IsValidation(err) {
		writeError(w, r, http.StatusBadGateway, "UPSTREAM_CONTRACT", "upstream payload failed validation")
		return
	}
	var apiErr *weathererr.APIError
	if errors.As(err, &apiErr) {
		if errors.Is(apiErr.Err, context.DeadlineExceeded) {
			writeError(w, r, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "weather provider timed out")
			return
		}
		writeError(w, r, http.StatusBadGateway, "UPSTREAM_ERROR", "unable to fetch weather data")
		return
	}
	if errors.Is(err, validation.ErrLocationEmpty) {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}
	writeError(w, r, http.StatusInternalServerError, "INTERNAL", "unexpected error")
}
