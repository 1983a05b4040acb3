// Package testutil provides testing utilities for the tripwire client.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/tripwire-client/pkg/incident"
)

// APIPrefix is the path prefix the mock serves the API under.
const APIPrefix = "/api"

// MockResponse defines a canned response for a mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable fake of the incidents API.
type MockAPI struct {
	server *httptest.Server

	mu         sync.RWMutex
	metrics    incident.Metrics
	incidents  []incident.Incident
	details    map[string]incident.Detail
	timeseries []incident.TimeSeriesPoint
	overrides  map[string]func(w http.ResponseWriter, r *http.Request)
	requests   map[string]int
	lastQuery  map[string]string
}

// NewMockAPI starts a mock API seeded with a dataset that is distinct
// from the built-in fallback data.
func NewMockAPI() *MockAPI {
	m := &MockAPI{
		metrics:    LiveMetrics(),
		incidents:  LiveIncidents(),
		details:    map[string]incident.Detail{},
		timeseries: LiveTimeSeries(),
		overrides:  map[string]func(w http.ResponseWriter, r *http.Request){},
		requests:   map[string]int{},
		lastQuery:  map[string]string{},
	}
	for _, inc := range m.incidents {
		m.details[inc.ID] = incident.Detail{Incident: inc, UserAgent: "curl/8.4.0"}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+APIPrefix+"/metrics", m.handleMetrics)
	mux.HandleFunc("GET "+APIPrefix+"/incidents", m.handleIncidents)
	mux.HandleFunc("GET "+APIPrefix+"/incidents/timeseries", m.handleTimeSeries)
	mux.HandleFunc("GET "+APIPrefix+"/incident/{id}", m.handleIncident)
	mux.HandleFunc("PATCH "+APIPrefix+"/incident/{id}", m.handlePatchIncident)

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests[r.Method+" "+r.URL.Path]++
		m.lastQuery[r.URL.Path] = r.URL.RawQuery
		handler, exists := m.overrides[r.URL.Path]
		m.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	}))

	return m
}

// URL returns the API base URL (including the /api prefix).
func (m *MockAPI) URL() string {
	return m.server.URL + APIPrefix
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetHandler overrides the handler for an API path such as "/metrics".
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[APIPrefix+path] = handler
}

// ClearHandler removes an override set with SetHandler or SetResponse.
func (m *MockAPI) ClearHandler(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overrides, APIPrefix+path)
}

// SetResponse configures a canned response for an API path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetMetrics replaces the metrics served by GET /metrics.
func (m *MockAPI) SetMetrics(metrics incident.Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = metrics
}

// SetIncidents replaces the incident list and the matching details.
func (m *MockAPI) SetIncidents(list []incident.Incident) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents = append([]incident.Incident(nil), list...)
	m.details = map[string]incident.Detail{}
	for _, inc := range list {
		m.details[inc.ID] = incident.Detail{Incident: inc}
	}
}

// SetTimeSeries replaces the series served by GET /incidents/timeseries.
func (m *MockAPI) SetTimeSeries(points []incident.TimeSeriesPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeseries = append([]incident.TimeSeriesPoint(nil), points...)
}

// RequestCount returns how many requests hit method + API path,
// e.g. RequestCount("PATCH", "/incident/inc-001").
func (m *MockAPI) RequestCount(method, path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[method+" "+APIPrefix+path]
}

// TotalRequests returns the number of requests of any kind.
func (m *MockAPI) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.requests {
		total += n
	}
	return total
}

// LastQuery returns the raw query string of the last request to path.
func (m *MockAPI) LastQuery(path string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery[APIPrefix+path]
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = map[string]int{}
	m.lastQuery = map[string]string{}
}

// Status returns the current status of an incident in the mock's store.
func (m *MockAPI) Status(id string) incident.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.details[id].Status
}

func (m *MockAPI) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	writeJSON(w, http.StatusOK, m.metrics)
}

func (m *MockAPI) handleIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	m.mu.RLock()
	out := make([]incident.Incident, 0, len(m.incidents))
	for _, inc := range m.incidents {
		if s := q.Get("status"); s != "" && string(inc.Status) != s {
			continue
		}
		if c := q.Get("cloud"); c != "" && string(inc.Cloud) != c {
			continue
		}
		out = append(out, inc)
	}
	m.mu.RUnlock()

	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit >= 0 && limit < len(out) {
		out = out[:limit]
	}
	writeJSON(w, http.StatusOK, out)
}

func (m *MockAPI) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	days := 7
	if d, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && d > 0 {
		days = d
	}

	m.mu.RLock()
	series := m.timeseries
	if days < len(series) {
		series = series[len(series)-days:]
	}
	m.mu.RUnlock()
	writeJSON(w, http.StatusOK, series)
}

func (m *MockAPI) handleIncident(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	d, ok := m.details[r.PathValue("id")]
	m.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Incident not found"})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (m *MockAPI) handlePatchIncident(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status incident.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "status required"})
		return
	}

	id := r.PathValue("id")
	m.mu.Lock()
	d, ok := m.details[id]
	if ok {
		d.Status = body.Status
		m.details[id] = d
		for i := range m.incidents {
			if m.incidents[i].ID == id {
				m.incidents[i].Status = body.Status
			}
		}
	}
	m.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Incident not found"})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"detail": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewSlowResponse creates a response that only arrives after delay, to
// trip client timeouts.
func NewSlowResponse(delay time.Duration) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `[]`,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Delay:      delay,
	}
}

// LiveMetrics returns the metrics the mock serves by default.
func LiveMetrics() incident.Metrics {
	return incident.Metrics{
		TotalIncidents:    6,
		ActiveIncidents:   4,
		AWSIncidents:      3,
		AzureIncidents:    2,
		ResolvedIncidents: 2,
		AvgResponseTime:   87.5,
	}
}

// LiveIncidents returns the incidents the mock serves by default.
func LiveIncidents() []incident.Incident {
	return []incident.Incident{
		{ID: "live-101", Cloud: incident.CloudAWS, Principal: "arn:aws:iam::111122223333:user/canary", TriggerType: "S3 Access", Timestamp: "2026-10-19T09:10:00Z", Status: incident.StatusActive, Severity: incident.SeverityCritical, IPAddress: "198.51.100.7", Region: "us-west-2"},
		{ID: "live-102", Cloud: incident.CloudAzure, Principal: "canary-sp@contoso.com", TriggerType: "Key Vault Access", Timestamp: "2026-10-19T08:55:00Z", Status: incident.StatusActive, Severity: incident.SeverityHigh, IPAddress: "198.51.100.8", Region: "westeurope"},
		{ID: "live-103", Cloud: incident.CloudGCP, Principal: "canary@project.iam.gserviceaccount.com", TriggerType: "Secret Manager Read", Timestamp: "2026-10-19T07:30:00Z", Status: incident.StatusActive, Severity: incident.SeverityMedium, IPAddress: "198.51.100.9", Region: "europe-west1"},
		{ID: "live-104", Cloud: incident.CloudAWS, Principal: "arn:aws:iam::111122223333:role/canary-role", TriggerType: "STS AssumeRole", Timestamp: "2026-10-18T22:00:00Z", Status: incident.StatusResolved, Severity: incident.SeverityLow, IPAddress: "198.51.100.10", Region: "eu-central-1"},
		{ID: "live-105", Cloud: incident.CloudAWS, Principal: "arn:aws:iam::111122223333:user/canary-2", TriggerType: "Lambda Invocation", Timestamp: "2026-10-18T20:00:00Z", Status: incident.StatusActive, Severity: incident.SeverityHigh, IPAddress: "198.51.100.11", Region: "us-east-2"},
		{ID: "live-106", Cloud: incident.CloudAzure, Principal: "canary-app@tenant.onmicrosoft.com", TriggerType: "Storage Blob Read", Timestamp: "2026-10-18T18:00:00Z", Status: incident.StatusResolved, Severity: incident.SeverityMedium, IPAddress: "198.51.100.12", Region: "northeurope"},
	}
}

// LiveTimeSeries returns the series the mock serves by default.
func LiveTimeSeries() []incident.TimeSeriesPoint {
	return []incident.TimeSeriesPoint{
		{Date: "2026-10-13", Count: 1},
		{Date: "2026-10-14", Count: 0},
		{Date: "2026-10-15", Count: 2},
		{Date: "2026-10-16", Count: 0},
		{Date: "2026-10-17", Count: 1},
		{Date: "2026-10-18", Count: 2},
		{Date: "2026-10-19", Count: 3},
	}
}
