package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/tripwire-client/pkg/cache"
	"github.com/Sternrassler/tripwire-client/pkg/logging"
	"github.com/Sternrassler/tripwire-client/pkg/metrics"
	"github.com/rs/zerolog"
)

// ProxyCmd serves an upstream origin through the offline cache.
type ProxyCmd struct {
	Listen       string        `help:"Listen address (overrides proxy.listen)."`
	Upstream     string        `help:"Upstream origin (overrides proxy.upstream)."`
	InstallRetry time.Duration `help:"Delay between install attempts." default:"30s"`
}

// Run starts the proxy and blocks until interrupted.
func (p *ProxyCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := g.load(ctx, false)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	defer a.close()

	if p.Listen != "" {
		a.cfg.Proxy.Listen = p.Listen
	}
	if p.Upstream != "" {
		a.cfg.Proxy.Upstream = p.Upstream
	}

	store, err := a.newStore(ctx)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	logger := logging.NewLogger("proxy")
	srv, err := newProxyServer(store, a.cfg.Cache.Version, a.cfg.Cache.Manifest, a.cfg.Proxy.Upstream, logger)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}

	go srv.installLoop(ctx, p.InstallRetry)

	httpSrv := &http.Server{
		Addr:              a.cfg.Proxy.Listen,
		Handler:           srv.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("listen", a.cfg.Proxy.Listen).
			Str("upstream", a.cfg.Proxy.Upstream).
			Str("version", a.cfg.Cache.Version).
			Msg("Starting offline proxy")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("proxy: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info().Msg("Shutting down offline proxy")
	return httpSrv.Shutdown(shutdownCtx)
}

// proxyServer puts a cache controller in front of a reverse proxy.
type proxyServer struct {
	store  cache.Store
	cache  *cache.Controller
	proxy  *httputil.ReverseProxy
	logger zerolog.Logger
}

func newProxyServer(store cache.Store, version string, manifest []string, upstream string, logger zerolog.Logger) (*proxyServer, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream: %w", err)
	}

	cacheLogger := logger.With().Str("component", "cache").Logger()
	cc, err := cache.NewController(store, cache.ControllerConfig{
		Version:  version,
		Manifest: manifest,
		BaseURL:  upstream,
		Logger:   &cacheLogger,
	})
	if err != nil {
		return nil, err
	}

	s := &proxyServer{store: store, cache: cc, logger: logger}
	s.proxy = &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.SetXForwarded()
		},
		Transport: cc,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Upstream unavailable and nothing cached")
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	}
	return s, nil
}

// installLoop installs the generation, retrying every interval until it
// succeeds or ctx is done, and then activates it.
func (s *proxyServer) installLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	for {
		err := s.cache.Install(ctx)
		if err == nil {
			break
		}
		s.logger.Warn().Err(err).Dur("retry_in", interval).Msg("Cache install failed, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
	if _, err := s.cache.Activate(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Cache activation failed")
	}
}

func (s *proxyServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("/", s.proxy)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// readyHandler reports ready once the generation is active and the store
// answers.
func (s *proxyServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if st := s.cache.State(); st != cache.StateActivated {
		http.Error(w, "cache "+st.String(), http.StatusServiceUnavailable)
		return
	}
	if _, err := s.store.Generations(r.Context()); err != nil {
		http.Error(w, "cache store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
