// Command tripwire is the terminal client for the CloudTripwire incidents
// API: a live dashboard, a plain-text watcher, single-incident inspection,
// and an offline-capable caching proxy.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/Sternrassler/tripwire-client/internal/config"
	"github.com/Sternrassler/tripwire-client/pkg/cache"
	"github.com/Sternrassler/tripwire-client/pkg/client"
	"github.com/Sternrassler/tripwire-client/pkg/dashboard"
	"github.com/Sternrassler/tripwire-client/pkg/incident"
	"github.com/Sternrassler/tripwire-client/pkg/logging"
	"github.com/alecthomas/kong"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// CLI is the top-level command structure for tripwire.
type CLI struct {
	Globals

	Version   kong.VersionFlag `help:"Show version." short:"V"`
	Dashboard DashboardCmd     `cmd:"" default:"1" help:"Open the interactive dashboard (falls back to watch without a TTY)."`
	Watch     WatchCmd         `cmd:"" help:"Print the dashboard as plain text on every refresh."`
	Incident  IncidentCmd      `cmd:"" help:"Show one incident and optionally mark it resolved."`
	Proxy     ProxyCmd         `cmd:"" help:"Serve an upstream through the offline cache."`
}

// Globals are flags shared by every command.
type Globals struct {
	Config  string `help:"YAML configuration file." short:"c" type:"path" env:"TRIPWIRE_CONFIG"`
	Mode    string `help:"Data source: live or snapshot (overrides dashboard.mode)." short:"m"`
	Debug   bool   `help:"Enable debug logging."`
	LogFile string `help:"Write logs to this file instead of stderr." type:"path"`
}

// app holds what every command builds from the configuration.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	fallback incident.Dataset
	closers  []func()
}

// load reads the configuration, applies flag overrides and sets up logging.
// quiet discards logs unless a log file is given, so they do not tear
// through a full-screen view.
func (g *Globals) load(ctx context.Context, quiet bool) (*app, error) {
	cfg, err := config.NewLoader(config.EnvPrefix, g.Config).Load(ctx)
	if err != nil {
		return nil, err
	}
	if g.Mode != "" {
		cfg.Dashboard.Mode = g.Mode
	}
	if g.Debug {
		cfg.Logging.Level = string(logging.LevelDebug)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	a := &app{cfg: cfg}

	var out io.Writer = os.Stderr
	switch {
	case g.LogFile != "":
		f, err := os.OpenFile(g.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		a.closers = append(a.closers, func() { f.Close() })
		out = f
	case quiet:
		out = io.Discard
	}
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logging.Setup(logging.Config{Level: level, Pretty: cfg.Logging.Pretty && g.LogFile == "", Output: out})
	a.logger = logging.NewLogger("tripwire")

	a.fallback = incident.Builtin()
	if cfg.Dashboard.FallbackFile != "" {
		ds, err := incident.LoadFallback(cfg.Dashboard.FallbackFile)
		if err != nil {
			a.close()
			return nil, err
		}
		a.fallback = ds
	}
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newStore opens the configured cache backend.
func (a *app) newStore(ctx context.Context) (cache.Store, error) {
	if !strings.EqualFold(a.cfg.Cache.Backend, config.BackendRedis) {
		return cache.NewMemoryStore(), nil
	}

	rc := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Cache.Redis.Address,
		Password: a.cfg.Cache.Redis.Password,
		DB:       a.cfg.Cache.Redis.DB,
	})
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", a.cfg.Cache.Redis.Address, err)
	}
	a.closers = append(a.closers, func() { rc.Close() })
	a.logger.Info().Str("address", a.cfg.Cache.Redis.Address).Msg("Connected to Redis")
	return cache.NewRedisStore(rc), nil
}

// newCacheTransport returns a cache controller for API responses. It has no
// manifest: installing it only marks the generation ready, and activating
// it drops generations left by other versions.
func (a *app) newCacheTransport(ctx context.Context) (*cache.Controller, error) {
	store, err := a.newStore(ctx)
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger("cache")
	cc, err := cache.NewController(store, cache.ControllerConfig{
		Version: a.cfg.Cache.Version,
		Logger:  &logger,
	})
	if err != nil {
		return nil, err
	}
	if err := cc.Install(ctx); err != nil {
		return nil, err
	}
	if _, err := cc.Activate(ctx); err != nil {
		return nil, err
	}
	return cc, nil
}

// newClient builds the API client on top of transport.
func (a *app) newClient(transport http.RoundTripper) (*client.Client, error) {
	logger := logging.NewLogger("api-client")
	return client.New(client.Config{
		BaseURL:   a.cfg.API.BaseURL,
		Timeout:   a.cfg.API.Timeout,
		Transport: transport,
		Logger:    &logger,
	})
}

// newController builds a refresh controller reading from src.
func (a *app) newController(src dashboard.Source) (*dashboard.Controller, error) {
	logger := logging.NewLogger("dashboard")
	return dashboard.NewController(dashboard.Config{
		Source:   src,
		Mode:     a.cfg.DashboardMode(),
		Interval: a.cfg.Dashboard.Interval,
		Options: &dashboard.Options{
			IncidentLimit: a.cfg.Dashboard.IncidentLimit,
			Days:          a.cfg.Dashboard.Days,
			Fallback:      a.fallback,
		},
		Logger: &logger,
	})
}

// newLiveStack wires cache transport, client and controller.
func (a *app) newLiveStack(ctx context.Context) (*client.Client, *dashboard.Controller, error) {
	transport, err := a.newCacheTransport(ctx)
	if err != nil {
		return nil, nil, err
	}
	c, err := a.newClient(transport)
	if err != nil {
		return nil, nil, err
	}
	ctrl, err := a.newController(c)
	if err != nil {
		return nil, nil, err
	}
	return c, ctrl, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("tripwire"),
		kong.Description("CloudTripwire incident dashboard client."),
		kong.UsageOnError(),
		kong.Vars{"version": version + " " + commit + " " + date},
	)
	err := ctx.Run(&cli.Globals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
