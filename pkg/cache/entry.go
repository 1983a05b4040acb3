package cache

import (
	"net/http"
	"time"
)

// CacheEntry is a captured network response.
type CacheEntry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// Generation is the cache version the entry was written under
	Generation string `json:"generation"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`
}

// Age returns how long ago the response was captured.
func (e *CacheEntry) Age() time.Duration {
	if e.CachedAt.IsZero() {
		return 0
	}
	age := time.Since(e.CachedAt)
	if age < 0 {
		return 0
	}
	return age
}

// Clone returns a deep copy of the entry.
func (e *CacheEntry) Clone() *CacheEntry {
	if e == nil {
		return nil
	}
	out := *e
	out.Data = append([]byte(nil), e.Data...)
	out.Headers = e.Headers.Clone()
	return &out
}
