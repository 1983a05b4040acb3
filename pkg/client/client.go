// Package client provides the HTTP client for the incidents REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/tripwire-client/pkg/cache"
	"github.com/Sternrassler/tripwire-client/pkg/incident"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for API client operations.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripwire_api_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tripwire_api_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripwire_api_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// HeaderRequestID carries a per-request correlation id.
const HeaderRequestID = "X-Request-ID"

// Endpoint paths relative to the base URL.
const (
	endpointMetrics    = "/metrics"
	endpointIncidents  = "/incidents"
	endpointIncident   = "/incident/"
	endpointTimeSeries = "/incidents/timeseries"
)

// Client talks to the incidents API.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "http://127.0.0.1:8000/api".
	BaseURL string

	// Timeout bounds every request.
	Timeout time.Duration

	// Transport performs the requests. Set it to a cache.Controller for
	// offline fallback. Defaults to http.DefaultTransport.
	Transport http.RoundTripper

	// RequestHook runs on every outgoing request before it is sent,
	// e.g. to attach an Authorization header. Optional.
	RequestHook func(*http.Request)

	// Logger defaults to the global logger with component "api-client".
	Logger *zerolog.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8000/api",
		Timeout: 10 * time.Second,
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	logger := log.With().Str("component", "api-client").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL: base,
		config:  cfg,
		logger:  logger,
	}, nil
}

// IncidentQuery filters GET /incidents. Zero values are omitted.
type IncidentQuery struct {
	Limit  int
	Status incident.Status
	Cloud  incident.Cloud
}

// Values encodes the query parameters.
func (q IncidentQuery) Values() url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	if q.Cloud != "" {
		v.Set("cloud", string(q.Cloud))
	}
	return v
}

// Metrics fetches the dashboard counters.
func (c *Client) Metrics(ctx context.Context) (incident.Metrics, error) {
	var m incident.Metrics
	if err := c.getJSON(ctx, endpointMetrics, endpointMetrics, nil, &m); err != nil {
		return incident.Metrics{}, fmt.Errorf("fetch metrics: %w", err)
	}
	return m, nil
}

// Incidents fetches incident summaries, newest first.
func (c *Client) Incidents(ctx context.Context, q IncidentQuery) ([]incident.Incident, error) {
	var list []incident.Incident
	if err := c.getJSON(ctx, endpointIncidents, endpointIncidents, q.Values(), &list); err != nil {
		return nil, fmt.Errorf("fetch incidents: %w", err)
	}
	if list == nil {
		list = []incident.Incident{}
	}
	return list, nil
}

// Incident fetches the full detail of one incident.
func (c *Client) Incident(ctx context.Context, id string) (incident.Detail, error) {
	var d incident.Detail
	if err := c.getJSON(ctx, endpointIncident+url.PathEscape(id), endpointIncident+"{id}", nil, &d); err != nil {
		return incident.Detail{}, fmt.Errorf("fetch incident %s: %w", id, err)
	}
	return d, nil
}

// MarkResolved sets the incident status to Resolved and returns the
// updated incident.
func (c *Client) MarkResolved(ctx context.Context, id string) (incident.Detail, error) {
	body := map[string]incident.Status{"status": incident.StatusResolved}

	var d incident.Detail
	if err := c.sendJSON(ctx, http.MethodPatch, endpointIncident+url.PathEscape(id), endpointIncident+"{id}", body, &d); err != nil {
		return incident.Detail{}, fmt.Errorf("update incident %s: %w", id, err)
	}
	return d, nil
}

// TimeSeries fetches daily incident counts for the last days days.
// days <= 0 selects the API default of 7.
func (c *Client) TimeSeries(ctx context.Context, days int) ([]incident.TimeSeriesPoint, error) {
	if days <= 0 {
		days = 7
	}
	params := url.Values{"days": []string{strconv.Itoa(days)}}

	var points []incident.TimeSeriesPoint
	if err := c.getJSON(ctx, endpointTimeSeries, endpointTimeSeries, params, &points); err != nil {
		return nil, fmt.Errorf("fetch time-series data: %w", err)
	}
	if points == nil {
		points = []incident.TimeSeriesPoint{}
	}
	return points, nil
}

func (c *Client) getJSON(ctx context.Context, path, label string, params url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	return c.do(req, label, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path, label string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req, err := c.newRequest(ctx, method, path, nil, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	return c.do(req, label, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body io.Reader) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, uuid.NewString())

	if c.config.RequestHook != nil {
		c.config.RequestHook(req)
	}
	return req, nil
}

// do executes req and decodes a JSON body into out. Failures are returned
// as *APIError.
func (c *Client) do(req *http.Request, endpoint string, out any) error {
	startTime := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	logger := c.logger.With().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Str("request_id", req.Header.Get(HeaderRequestID)).
		Logger()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		logger.Error().Err(err).Msg("API request failed")
		return &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    req.Method + " " + endpoint,
			Err:        err,
		}
	}
	defer resp.Body.Close()

	apiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		errClass := classifyStatus(resp.StatusCode)
		apiErrorsTotal.WithLabelValues(string(errClass)).Inc()

		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
		if detail := readErrorDetail(resp.Body); detail != "" {
			apiErr.Message = resp.Status + ": " + detail
		}
		if resp.StatusCode == http.StatusNotFound {
			apiErr.Err = ErrNotFound
		}

		logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("API request error")
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// A body cut off mid-stream is a network failure, not bad JSON.
		if req.Context().Err() != nil {
			apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &APIError{ErrorClass: ErrorClassNetwork, Message: req.Method + " " + endpoint, Err: err}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Bool("from_cache", resp.Header.Get(cache.HeaderCacheGeneration) != "").
		Msg("API request complete")
	return nil
}

// classifyStatus categorizes an HTTP error status for observability.
func classifyStatus(status int) ErrorClass {
	if status >= 500 {
		return ErrorClassServer
	}
	return ErrorClassClient
}

// readErrorDetail extracts the "detail" or "error" field of an error body.
func readErrorDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(data, &body) != nil {
		return ""
	}
	if body.Detail != "" {
		return body.Detail
	}
	return body.Error
}
