// Package client implements the HTTP transport against OpenWeatherMap.
// Retry policy lives here, not in the service layer: callers see a single
// success or a single typed failure per fetch.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/dmoreira/weathertool/internal/models"
	"github.com/dmoreira/weathertool/internal/observability"
	"github.com/dmoreira/weathertool/internal/weathererr"
)

// Transport is the upstream collaborator the service layer fetches through.
// FetchCurrent must surface the not-found case distinctly from other failures.
type Transport interface {
	FetchCurrent(ctx context.Context, location string) (models.Observation, error)
	ValidateAPIKey(ctx context.Context) error
}

// OpenWeatherClient fetches current weather from the OpenWeatherMap API.
type OpenWeatherClient struct {
	apiKey         string
	apiURL         string
	lang           string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
}

// NewOpenWeatherClient creates a client with default retry settings.
func NewOpenWeatherClient(apiKey, apiURL, lang string, timeout time.Duration) (*OpenWeatherClient, error) {
	return NewOpenWeatherClientWithRetry(apiKey, apiURL, lang, timeout, 3, 100*time.Millisecond, 2*time.Second)
}

// NewOpenWeatherClientWithRetry creates a client with explicit retry settings.
// Credential checks happen here, before any network attempt.
func NewOpenWeatherClientWithRetry(apiKey, apiURL, lang string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, &weathererr.ConfigError{Msg: "API key is required"}
	}
	if len(apiKey) < 10 {
		return nil, &weathererr.ConfigError{Msg: "API key appears invalid (too short)"}
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, &weathererr.ConfigError{Msg: "invalid API URL", Err: err}
	}
	if lang == "" {
		lang = "en"
	}
	if retryAttempts <= 0 {
		retryAttempts = 1
	}

	return &OpenWeatherClient{
		apiKey:         apiKey,
		apiURL:         apiURL,
		lang:           lang,
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type openWeatherResponse struct {
	Main struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		TempMin   *float64 `json:"temp_min"`
		TempMax   *float64 `json:"temp_max"`
		Humidity  *int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
	Name string `json:"name"`
}

// FetchCurrent fetches the current weather for location, retrying transient
// failures with exponential backoff. Not-found and other non-retryable errors
// return immediately.
func (c *OpenWeatherClient) FetchCurrent(ctx context.Context, location string) (models.Observation, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.WeatherAPIRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return models.Observation{}, &weathererr.APIError{Msg: "request cancelled", Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		obs, err := c.callAPI(ctx, location)
		if err == nil {
			return obs, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return models.Observation{}, err
		}
	}

	return models.Observation{}, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, location string) (models.Observation, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, location)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.Observation{}, &weathererr.APIError{Msg: "build request", Err: err}
	}

	corrID := extractCorrelationID(ctx)
	if corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.Observation{}, &weathererr.APIError{Msg: "request timeout", Err: err}
		}
		return models.Observation{}, &weathererr.APIError{Msg: "http request failed", Err: err}
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(duration)

	if err := c.checkStatus(resp.StatusCode, location); err != nil {
		return models.Observation{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Observation{}, &weathererr.APIError{Msg: "read response body", Err: err}
	}

	var apiResp openWeatherResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		// Not JSON at all: the call failed, not the contract.
		return models.Observation{}, &weathererr.APIError{Msg: "parse response", StatusCode: resp.StatusCode, Err: err}
	}

	return mapResponse(apiResp, location), nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *weathererr.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if apiErr.StatusCode >= 500 {
		return true
	}
	if apiErr.StatusCode == 0 {
		// No response: network failure or timeout.
		return true
	}
	return false
}

func (c *OpenWeatherClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, location string) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("q", location)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	params.Set("lang", c.lang)
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *OpenWeatherClient) checkStatus(statusCode int, location string) error {
	switch {
	case statusCode == http.StatusNotFound:
		return &weathererr.CityNotFoundError{City: location}
	case statusCode == http.StatusUnauthorized:
		return &weathererr.APIError{Msg: "invalid or inactive API key", StatusCode: statusCode}
	case statusCode == http.StatusTooManyRequests:
		return &weathererr.APIError{Msg: "rate limited by upstream", StatusCode: statusCode}
	case statusCode < 200 || statusCode >= 300:
		return &weathererr.APIError{Msg: "unexpected response", StatusCode: statusCode}
	}
	return nil
}

// mapResponse converts the decoded upstream response to an Observation.
// Validation is not performed here; the record constructor owns it.
func mapResponse(apiResp openWeatherResponse, location string) models.Observation {
	obs := models.Observation{
		City:      apiResp.Name,
		Country:   apiResp.Sys.Country,
		Temp:      apiResp.Main.Temp,
		FeelsLike: apiResp.Main.FeelsLike,
		TempMin:   apiResp.Main.TempMin,
		TempMax:   apiResp.Main.TempMax,
		Humidity:  apiResp.Main.Humidity,
		WindSpeed: apiResp.Wind.Speed,
	}
	if obs.City == "" {
		obs.City = location
	}
	if len(apiResp.Weather) > 0 {
		obs.Conditions = apiResp.Weather[0].Main
		obs.Description = apiResp.Weather[0].Description
		if obs.Description == "" {
			obs.Description = apiResp.Weather[0].Main
		}
	}
	return obs
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// ValidateAPIKey issues a probe request to verify the key is accepted.
// Used by the health endpoint.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := c.buildRequest(ctx, "London")
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return &weathererr.APIError{Msg: "API key is invalid or not activated", StatusCode: resp.StatusCode}
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}

	return nil
}
