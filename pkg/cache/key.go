package cache

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// CacheKey identifies a cached response inside a generation.
type CacheKey struct {
	// Method is the HTTP method (upper case).
	Method string

	// URL is the absolute request URL without query string or fragment.
	URL string

	// QueryParams are the query parameters of the request.
	QueryParams url.Values
}

// KeyFromRequest builds the cache key for an outgoing request.
func KeyFromRequest(req *http.Request) CacheKey {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u := *req.URL
	query := u.Query()
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	return CacheKey{
		Method:      strings.ToUpper(method),
		URL:         u.String(),
		QueryParams: query,
	}
}

// String generates a deterministic cache key string.
// Format: METHOD:url:query1=val1:query2=val2
//
// Example:
//
//	GET:http://127.0.0.1:8000/api/incidents:limit=10
func (k CacheKey) String() string {
	method := strings.ToUpper(k.Method)
	if method == "" {
		method = http.MethodGet
	}
	parts := []string{method, k.URL}

	// Query params sorted for determinism
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			values := append([]string(nil), k.QueryParams[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}
