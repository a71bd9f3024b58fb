package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dmoreira/weathertool/internal/cache"
	"github.com/dmoreira/weathertool/internal/models"
	"github.com/dmoreira/weathertool/internal/service"
	"github.com/dmoreira/weathertool/internal/weathererr"
)

type stubTransport struct {
	obs         models.Observation
	err         error
	validateErr error
}

func (s *stubTransport) FetchCurrent(ctx context.Context, location string) (models.Observation, error) {
	if s.err != nil {
		return models.Observation{}, s.err
	}
	return s.obs, nil
}

func (s *stubTransport) ValidateAPIKey(ctx context.Context) error { return s.validateErr }

func fl(v float64) *float64 { return &v }
func in(v int) *int         { return &v }

func testObservation() models.Observation {
	return models.Observation{
		City:        "Rio de Janeiro",
		Country:     "BR",
		Description: "clear sky",
		Conditions:  "Clear",
		Temp:        fl(28.5),
		Humidity:    in(65),
		WindSpeed:   fl(3.6),
	}
}

func newTestRouter(t *testing.T, transport *stubTransport, cachePing func() error) (*mux.Router, *service.WeatherService) {
	t.Helper()
	svc := service.NewWeatherService(transport, cache.NewMemoryStore(), 10*time.Minute, "in_memory")
	h := NewHandler(svc, transport, zap.NewNop(), 2, 100, cachePing)

	r := mux.NewRouter()
	r.HandleFunc("/health", h.GetHealth).Methods("GET")
	r.HandleFunc("/cache", h.GetCacheInfo).Methods("GET")
	r.HandleFunc("/cache", h.ClearCache).Methods("DELETE")
	r.HandleFunc("/cache/{location}", h.ClearCacheEntry).Methods("DELETE")
	r.HandleFunc("/weather/{location}", h.GetWeather).Methods("GET")
	r.HandleFunc("/weather/{location}/agent", h.GetWeatherForAgent).Methods("GET")
	r.HandleFunc("/weather/{location}/display", h.DisplayWeather).Methods("GET")
	return r, svc
}

func doRequest(t *testing.T, router *mux.Router, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

// TestGetWeather_OK verifies the flat projection and content type on success.
func TestGetWeather_OK(t *testing.T) {
	router, _ := newTestRouter(t, &stubTransport{obs: testObservation()}, nil)

	rec := doRequest(t, router, "GET", "/weather/Rio%20de%20Janeiro")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	body := decodeBody(t, rec)
	if body["city"] != "Rio de Janeiro" {
		t.Errorf("city = %v, want Rio de Janeiro", body["city"])
	}
	if body["temperature"] != 28.5 {
		t.Errorf("temperature = %v, want 28.5", body["temperature"])
	}
	if body["description"] != "clear sky" {
		t.Errorf("description = %v, want clear sky", body["description"])
	}
}

// TestGetWeather_CityNotFound verifies the 404 error envelope.
func TestGetWeather_CityNotFound(t *testing.T) {
	router, _ := newTestRouter(t, &stubTransport{err: &weathererr.CityNotFoundError{City: "Atlantis"}}, nil)

	rec := doRequest(t, router, "GET", "/weather/Atlantis")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := decodeBody(t, rec)
	errObj := body["error"].(map[string]any)
	if errObj["code"] != "CITY_NOT_FOUND" {
		t.Errorf("error.code = %v, want CITY_NOT_FOUND", errObj["code"])
	}
}

// TestGetWeather_InvalidLocation verifies input validation rejects bad
// locations before the service runs.
func TestGetWeather_InvalidLocation(t *testing.T) {
	router, _ := newTestRouter(t, &stubTransport{obs: testObservation()}, nil)

	tests := []struct {
		name   string
		target string
	}{
		{"too short", "/weather/A"},
		{"invalid characters", "/weather/Seattle%3BDROP"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, router, "GET", tc.target)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			body := decodeBody(t, rec)
			errObj := body["error"].(map[string]any)
			if errObj["code"] != "INVALID_LOCATION" {
				t.Errorf("error.code = %v, want INVALID_LOCATION", errObj["code"])
			}
		})
	}
}

// TestGetWeather_UpstreamErrors verifies APIError and ValidationError map to
// 502 and timeouts map to 504.
func TestGetWeather_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{
			"upstream failure",
			&weathererr.APIError{Msg: "unexpected response", StatusCode: 503},
			http.StatusBadGateway, "UPSTREAM_ERROR",
		},
		{
			"upstream timeout",
			&weathererr.APIError{Msg: "request timeout", Err: context.DeadlineExceeded},
			http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT",
		},
		{
			"broken contract",
			&weathererr.ValidationError{Field: "main.temp", Msg: "missing temperature"},
			http.StatusBadGateway, "UPSTREAM_CONTRACT",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router, _ := newTestRouter(t, &stubTransport{err: tc.err}, nil)
			rec := doRequest(t, router, "GET", "/weather/London")
			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			body := decodeBody(t, rec)
			errObj := body["error"].(map[string]any)
			if errObj["code"] != tc.wantErr {
				t.Errorf("error.code = %v, want %s", errObj["code"], tc.wantErr)
			}
		})
	}
}

// TestGetWeatherForAgent_OK verifies the nested projection route.
func TestGetWeatherForAgent_OK(t *testing.T) {
	router, _ := newTestRouter(t, &stubTransport{obs: testObservation()}, nil)

	rec := doRequest(t, router, "GET", "/weather/Rio%20de%20Janeiro/agent")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	location := body["location"].(map[string]any)
	if location["city"] != "Rio de Janeiro" {
		t.Errorf("location.city = %v, want Rio de Janeiro", location["city"])
	}
	current := body["current_weather"].(map[string]any)
	temperature := current["temperature"].(map[string]any)
	if temperature["current"] != 28.5 {
		t.Errorf("current_weather.temperature.current = %v, want 28.5", temperature["current"])
	}
}

// TestDisplayWeather_OK verifies the display route wraps the one-line summary.
func TestDisplayWeather_OK(t *testing.T) {
	router, _ := newTestRouter(t, &stubTransport{obs: testObservation()}, nil)

	rec := doRequest(t, router, "GET", "/weather/Rio%20de%20Janeiro/display")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	want := "Rio de Janeiro: 28.5°C, clear sky"
	if body["display"] != want {
		t.Errorf("display = %v, want %q", body["display"], want)
	}
}

// TestCacheEndpoints verifies the info, clear-all and clear-entry routes.
func TestCacheEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, &stubTransport{obs: testObservation()}, nil)

	if rec := doRequest(t, router, "GET", "/weather/Rio%20de%20Janeiro"); rec.Code != http.StatusOK {
		t.Fatalf("warmup request status = %d, want 200", rec.Code)
	}

	rec := doRequest(t, router, "GET", "/cache")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /cache status = %d, want 200", rec.Code)
	}
	info := decodeBody(t, rec)
	if info["total_entries"] != float64(1) {
		t.Errorf("total_entries = %v, want 1", info["total_entries"])
	}
	cities := info["cached_cities"].([]any)
	if len(cities) != 1 || cities[0] != "rio de janeiro" {
		t.Errorf("cached_cities = %v, want [rio de janeiro]", cities)
	}

	rec = doRequest(t, router, "DELETE", "/cache/Rio%20de%20Janeiro")
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE /cache/{location} status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, router, "GET", "/cache")
	info = decodeBody(t, rec)
	if info["total_entries"] != float64(0) {
		t.Errorf("total_entries after entry clear = %v, want 0", info["total_entries"])
	}

	if rec := doRequest(t, router, "GET", "/weather/Rio%20de%20Janeiro"); rec.Code != http.StatusOK {
		t.Fatalf("refill request status = %d, want 200", rec.Code)
	}
	rec = doRequest(t, router, "DELETE", "/cache")
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE /cache status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["cleared"] != true {
		t.Errorf("cleared = %v, want true", body["cleared"])
	}
}

// TestGetHealth verifies the healthy path and the degraded api-key and cache
// paths, in priority order.
func TestGetHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		router, _ := newTestRouter(t, &stubTransport{obs: testObservation()}, nil)
		rec := doRequest(t, router, "GET", "/health")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", body["status"])
		}
	})

	t.Run("api key invalid", func(t *testing.T) {
		transport := &stubTransport{validateErr: &weathererr.APIError{Msg: "invalid key", StatusCode: 401}}
		router, _ := newTestRouter(t, transport, nil)
		rec := doRequest(t, router, "GET", "/health")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["status"] != "degraded" {
			t.Errorf("status = %v, want degraded", body["status"])
		}
		checks := body["checks"].(map[string]any)
		if checks["weatherApi"] != "unhealthy" {
			t.Errorf("checks.weatherApi = %v, want unhealthy", checks["weatherApi"])
		}
	})

	t.Run("cache unreachable", func(t *testing.T) {
		ping := func() error { return context.DeadlineExceeded }
		router, _ := newTestRouter(t, &stubTransport{obs: testObservation()}, ping)
		rec := doRequest(t, router, "GET", "/health")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["status"] != "degraded" {
			t.Errorf("status = %v, want degraded", body["status"])
		}
		checks := body["checks"].(map[string]any)
		if checks["cache"] != "unhealthy" {
			t.Errorf("checks.cache = %v, want unhealthy", checks["cache"])
		}
	})
}
