package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrInstallFailed is returned when a manifest resource could not be
	// fetched during Install.
	ErrInstallFailed = errors.New("cache install failed")

	// ErrNotInstalled is returned by Activate before a successful Install.
	ErrNotInstalled = errors.New("cache generation not installed")
)

// State is the lifecycle position of a Controller.
type State int

const (
	StateNew State = iota
	StateInstalling
	StateInstalled
	StateActivated
	StateInstallFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivated:
		return "activated"
	case StateInstallFailed:
		return "install_failed"
	default:
		return "unknown"
	}
}

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	// Version names the current generation. Every other generation is
	// stale and is deleted on Activate.
	Version string

	// Manifest lists the resource paths fetched by Install.
	Manifest []string

	// BaseURL prefixes manifest paths (e.g. "http://127.0.0.1:5173"). A path
	// on BaseURL is kept: "/index.html" under "http://h/app" is
	// "http://h/app/index.html".
	BaseURL string

	// Transport performs the actual network requests.
	// Defaults to http.DefaultTransport.
	Transport http.RoundTripper

	// Logger defaults to the global logger with component "cache".
	Logger *zerolog.Logger
}

// Controller is a network-first, cache-fallback http.RoundTripper with a
// versioned cache generation lifecycle (install, activate).
type Controller struct {
	store     Store
	version   string
	manifest  []string
	baseURL   *url.URL
	transport http.RoundTripper
	logger    zerolog.Logger

	mu    sync.Mutex
	state State
}

// NewController creates a cache controller on top of store.
func NewController(store Store, cfg ControllerConfig) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("cache version is required")
	}

	var base *url.URL
	if len(cfg.Manifest) > 0 {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("base url is required when a manifest is configured")
		}
		var err error
		base, err = url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	logger := log.With().Str("component", "cache").Str("version", cfg.Version).Logger()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("version", cfg.Version).Logger()
	}

	return &Controller{
		store:     store,
		version:   cfg.Version,
		manifest:  append([]string(nil), cfg.Manifest...),
		baseURL:   base,
		transport: transport,
		logger:    logger,
	}, nil
}

// Version returns the current generation name.
func (c *Controller) Version() string {
	return c.version
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Install pre-populates the current generation with the manifest. Every
// manifest resource must be fetched with a 2xx status before anything is
// written; a single failure fails the whole install and leaves the store
// untouched. There is no retry here: callers retry by calling Install again.
func (c *Controller) Install(ctx context.Context) error {
	c.setState(StateInstalling)

	type fetched struct {
		key   CacheKey
		entry *CacheEntry
	}
	results := make([]fetched, 0, len(c.manifest))

	for _, path := range c.manifest {
		key, entry, err := c.fetchManifestEntry(ctx, path)
		if err != nil {
			c.setState(StateInstallFailed)
			c.logger.Error().Err(err).Str("path", path).Msg("Cache install failed")
			return fmt.Errorf("%w: %s: %v", ErrInstallFailed, path, err)
		}
		results = append(results, fetched{key: key, entry: entry})
	}

	for _, r := range results {
		if err := c.store.Put(ctx, c.version, r.key, r.entry); err != nil {
			c.setState(StateInstallFailed)
			c.logger.Error().Err(err).Str("key", r.key.String()).Msg("Cache install write failed")
			return fmt.Errorf("%w: %v", ErrInstallFailed, err)
		}
		CacheWrites.WithLabelValues("install").Inc()
	}

	c.setState(StateInstalled)
	c.logger.Info().Int("resources", len(results)).Msg("Cache generation installed")
	return nil
}

func (c *Controller) fetchManifestEntry(ctx context.Context, path string) (CacheKey, *CacheEntry, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return CacheKey{}, nil, fmt.Errorf("parse manifest path: %w", err)
	}
	target := joinBase(c.baseURL, ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return CacheKey{}, nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.transport.RoundTrip(req)
	if err != nil {
		return CacheKey{}, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return CacheKey{}, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	entry, err := ResponseToEntry(resp)
	if err != nil {
		return CacheKey{}, nil, err
	}
	return KeyFromRequest(req), entry, nil
}

// Activate deletes every generation other than the current version. It
// fails with ErrNotInstalled unless Install has succeeded. The names of
// the deleted generations are returned.
func (c *Controller) Activate(ctx context.Context) ([]string, error) {
	switch c.State() {
	case StateInstalled, StateActivated:
	default:
		return nil, ErrNotInstalled
	}

	generations, err := c.store.Generations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}

	var evicted []string
	for _, generation := range generations {
		if generation == c.version {
			continue
		}
		ok, err := c.store.DeleteGeneration(ctx, generation)
		if err != nil {
			return evicted, fmt.Errorf("delete generation %s: %w", generation, err)
		}
		if ok {
			evicted = append(evicted, generation)
			GenerationsEvicted.Inc()
		}
	}

	c.setState(StateActivated)
	c.logger.Info().Strs("evicted", evicted).Msg("Cache generation activated")
	return evicted, nil
}

// RoundTrip implements http.RoundTripper.
//
// Requests whose scheme is not http or https go straight to the transport.
// Otherwise the network is tried first; every response it returns for a GET
// is written to the current generation. When the network fails, a GET is
// answered from whichever generation holds a copy, and a miss returns the
// original network error.
func (c *Controller) RoundTrip(req *http.Request) (*http.Response, error) {
	if !isNetworkScheme(req.URL.Scheme) {
		return c.transport.RoundTrip(req)
	}

	ctx := req.Context()
	key := KeyFromRequest(req)
	cacheable := key.Method == http.MethodGet

	resp, netErr := c.transport.RoundTrip(req)
	if netErr == nil {
		if !cacheable {
			return resp, nil
		}
		entry, err := ResponseToEntry(resp)
		if err == nil {
			if err := c.store.Put(ctx, c.version, key, entry); err != nil {
				c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache write failed")
			} else {
				CacheWrites.WithLabelValues("fetch").Inc()
				c.logger.Debug().Str("key", key.String()).Int("status", entry.StatusCode).Msg("Cached response")
			}
			return resp, nil
		}
		// The body broke off mid-read: treat it like any other network failure.
		netErr = err
	}

	if !cacheable || ctx.Err() != nil {
		return nil, netErr
	}

	entry, err := c.store.Match(ctx, key)
	if err != nil {
		CacheMisses.Inc()
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache lookup failed")
		}
		c.logger.Debug().Err(netErr).Str("key", key.String()).Msg("Network failed, no cached copy")
		return nil, netErr
	}

	CacheHits.Inc()
	c.logger.Warn().
		Err(netErr).
		Str("key", key.String()).
		Str("generation", entry.Generation).
		Msg("Network failed, serving cached response")
	return EntryToResponse(entry, req), nil
}

// joinBase appends ref to base the way httputil.ProxyRequest.SetURL
// rewrites an inbound request, so manifest entries land under the same keys
// a reverse proxy in front of base looks up. Absolute refs are used as is.
func joinBase(base, ref *url.URL) *url.URL {
	if ref.IsAbs() {
		return ref
	}
	target := *base
	target.Path = singleJoiningSlash(base.Path, ref.Path)
	target.RawPath = ""
	switch {
	case base.RawQuery == "" || ref.RawQuery == "":
		target.RawQuery = base.RawQuery + ref.RawQuery
	default:
		target.RawQuery = base.RawQuery + "&" + ref.RawQuery
	}
	target.Fragment = ""
	return &target
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}

func isNetworkScheme(scheme string) bool {
	switch strings.ToLower(scheme) {
	case "http", "https":
		return true
	default:
		return false
	}
}
