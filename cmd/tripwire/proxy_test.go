package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/tripwire-client/pkg/cache"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testManifest = []string{"/", "/app.js"}

// newOrigin serves the manifest resources. failFirst makes that many
// requests fail with 503 first.
func newOrigin(t *testing.T, failFirst int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			io.WriteString(w, "<html>tripwire</html>")
		case "/app.js":
			w.Header().Set("Content-Type", "text/javascript")
			io.WriteString(w, "console.log('tripwire')")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint(t *testing.T) {
	origin, _ := newOrigin(t, 0)

	server, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	defer server.Close()
	rc := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer rc.Close()

	srv, err := newProxyServer(cache.NewRedisStore(rc), "v1", testManifest, origin.URL, zerolog.Nop())
	require.NoError(t, err)
	h := srv.handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "not ready before install")

	srv.installLoop(context.Background(), 10*time.Millisecond)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	server.Close()
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "not ready without the store")
}

func TestMetricsEndpoint(t *testing.T) {
	origin, _ := newOrigin(t, 0)
	srv, err := newProxyServer(cache.NewMemoryStore(), "v1", testManifest, origin.URL, zerolog.Nop())
	require.NoError(t, err)
	srv.installLoop(context.Background(), 10*time.Millisecond)

	w := httptest.NewRecorder()
	srv.handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "tripwire_cache_writes_total") {
		t.Errorf("metrics output missing tripwire_cache_writes_total")
	}
}

func TestProxy_ServesCachedCopyWhenUpstreamIsDown(t *testing.T) {
	origin, _ := newOrigin(t, 0)
	srv, err := newProxyServer(cache.NewMemoryStore(), "v1", testManifest, origin.URL, zerolog.Nop())
	require.NoError(t, err)
	srv.installLoop(context.Background(), 10*time.Millisecond)

	front := httptest.NewServer(srv.handler())
	defer front.Close()

	status, body := get(t, front.URL+"/app.js")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "console.log('tripwire')", body)

	origin.Close()

	status, body = get(t, front.URL+"/app.js")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "console.log('tripwire')", body)

	status, body = get(t, front.URL+"/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "<html>tripwire</html>", body)

	status, _ = get(t, front.URL+"/never-seen.css")
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestProxy_CachesResponsesSeenAtRuntime(t *testing.T) {
	origin, _ := newOrigin(t, 0)
	srv, err := newProxyServer(cache.NewMemoryStore(), "v1", testManifest, origin.URL, zerolog.Nop())
	require.NoError(t, err)
	srv.installLoop(context.Background(), 10*time.Millisecond)

	front := httptest.NewServer(srv.handler())
	defer front.Close()

	status, _ := get(t, front.URL+"/missing")
	assert.Equal(t, http.StatusNotFound, status)

	origin.Close()

	status, _ = get(t, front.URL+"/missing")
	assert.Equal(t, http.StatusNotFound, status, "cached 404 is replayed")
}

func TestInstallLoop_RetriesUntilUpstreamIsUp(t *testing.T) {
	origin, calls := newOrigin(t, 3)
	srv, err := newProxyServer(cache.NewMemoryStore(), "v1", testManifest, origin.URL, zerolog.Nop())
	require.NoError(t, err)

	srv.installLoop(context.Background(), 5*time.Millisecond)

	assert.Equal(t, cache.StateActivated, srv.cache.State())
	assert.GreaterOrEqual(t, calls.Load(), int32(5))
}

func TestInstallLoop_StopsOnCancel(t *testing.T) {
	origin, _ := newOrigin(t, 1<<30)
	srv, err := newProxyServer(cache.NewMemoryStore(), "v1", testManifest, origin.URL, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.installLoop(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("install loop did not stop")
	}
	assert.NotEqual(t, cache.StateActivated, srv.cache.State())
}

func TestProxy_UpstreamWithBasePath(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/site/app.js" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "site bundle")
	}))
	defer origin.Close()

	srv, err := newProxyServer(cache.NewMemoryStore(), "v1", []string{"/app.js"}, origin.URL+"/site", zerolog.Nop())
	require.NoError(t, err)
	srv.installLoop(context.Background(), 10*time.Millisecond)
	require.Equal(t, cache.StateActivated, srv.cache.State())

	front := httptest.NewServer(srv.handler())
	defer front.Close()

	// Only the installed copy can answer once the upstream is gone.
	origin.Close()

	status, body := get(t, front.URL+"/app.js")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "site bundle", body)
}
