package dashboard

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is the period of the recurring refresh.
const DefaultInterval = 15 * time.Second

// State is what a view renders. It is a copy; mutating it does not affect
// the controller.
type State struct {
	Snapshot Snapshot

	// Mode is the current data-source mode.
	Mode Mode

	// Err is the error of the last applied cycle. When set, Snapshot holds
	// the fallback dataset.
	Err error

	// LastRefresh is when the last applied cycle completed. Zero until the
	// first cycle lands.
	LastRefresh time.Time

	// Loading is true while at least one cycle is in flight.
	Loading bool

	// Version increases with every state change, so observers receiving
	// notifications from several goroutines can drop older ones.
	Version uint64
}

// Config configures a Controller.
type Config struct {
	// Source serves live mode.
	Source Source

	// Mode is the initial mode. Defaults to ModeSnapshot.
	Mode Mode

	// Interval between recurring refreshes. Defaults to DefaultInterval.
	Interval time.Duration

	// Options for each cycle. Nil uses DefaultOptions.
	Options *Options

	// Logger defaults to the global logger with component "dashboard".
	Logger *zerolog.Logger
}

// Controller keeps a dashboard State current.
type Controller struct {
	src      Source
	opts     Options
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	state    State
	issued   uint64
	applied  uint64
	inflight int
	runCtx   context.Context
	closed   bool
	watchers []func(State)
	cycles   sync.WaitGroup
}

// NewController creates a controller. The initial state holds the fallback
// snapshot and is marked loading until the first cycle is applied.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("data source is required")
	}

	mode := cfg.Mode
	if mode == "" {
		mode = ModeSnapshot
	}
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < 0 {
		return nil, fmt.Errorf("interval must be positive (got %s)", interval)
	}

	opts := DefaultOptions()
	if cfg.Options != nil {
		opts = *cfg.Options
	}

	logger := log.With().Str("component", "dashboard").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Controller{
		src:      cfg.Source,
		opts:     opts,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		state: State{
			Snapshot: SnapshotFromDataset(opts.Fallback),
			Mode:     mode,
			Loading:  true,
		},
	}, nil
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyState()
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Mode
}

// Watch registers fn to be called with a copy of the state after every
// change. fn runs on the goroutine that changed the state and must not
// block.
func (c *Controller) Watch(fn func(State)) {
	c.mu.Lock()
	c.watchers = append(c.watchers, fn)
	c.mu.Unlock()
}

// Run starts a cycle immediately and then one every interval, until ctx is
// done. The ticker uses whatever mode is current when it fires. After ctx
// is done no further result is applied; Run waits for in-flight cycles to
// return before it does.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.runCtx != nil {
		c.mu.Unlock()
		return fmt.Errorf("controller is already running")
	}
	c.runCtx = ctx
	c.mu.Unlock()

	c.logger.Info().
		Str("mode", c.Mode().String()).
		Dur("interval", c.interval).
		Msg("Dashboard refresh started")

	c.Trigger()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Trigger()
		case <-ctx.Done():
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			c.cycles.Wait()
			c.logger.Info().Msg("Dashboard refresh stopped")
			return nil
		}
	}
}

// Trigger starts a cycle in the current mode without waiting for it.
// In-flight cycles are not cancelled. It reports false when the controller
// is not running.
func (c *Controller) Trigger() bool {
	c.mu.Lock()
	if c.runCtx == nil || c.closed {
		c.mu.Unlock()
		return false
	}
	ctx := c.runCtx
	seq, mode := c.beginLocked()
	c.cycles.Add(1)
	st := c.copyState()
	c.mu.Unlock()

	c.notify(st)
	go func() {
		defer c.cycles.Done()
		c.cycle(ctx, seq, mode)
	}()
	return true
}

// RefreshNow runs one cycle in the current mode on the calling goroutine
// and returns the state afterwards.
func (c *Controller) RefreshNow(ctx context.Context) State {
	c.mu.Lock()
	seq, mode := c.beginLocked()
	st := c.copyState()
	c.mu.Unlock()

	c.notify(st)
	c.cycle(ctx, seq, mode)
	return c.State()
}

// SetMode switches the data source and immediately starts a cycle in the
// new mode. Before Run it only records the mode.
func (c *Controller) SetMode(mode Mode) error {
	parsed, err := ParseMode(string(mode))
	if err != nil {
		return err
	}
	c.switchMode(func(Mode) Mode { return parsed })
	return nil
}

// ToggleMode switches between live and snapshot mode and returns the new
// mode.
func (c *Controller) ToggleMode() Mode {
	return c.switchMode(Mode.Toggle)
}

// switchMode replaces the mode with next(current) under one lock, then
// starts a cycle.
func (c *Controller) switchMode(next func(Mode) Mode) Mode {
	c.mu.Lock()
	mode := next(c.state.Mode)
	changed := c.state.Mode != mode
	c.state.Mode = mode
	c.state.Version++
	st := c.copyState()
	c.mu.Unlock()

	if changed {
		c.logger.Info().Str("mode", mode.String()).Msg("Dashboard mode changed")
	}
	c.notify(st)
	c.Trigger()
	return mode
}

// beginLocked numbers a new cycle. c.mu must be held.
func (c *Controller) beginLocked() (uint64, Mode) {
	c.issued++
	c.inflight++
	c.state.Loading = true
	c.state.Version++
	return c.issued, c.state.Mode
}

func (c *Controller) cycle(ctx context.Context, seq uint64, mode Mode) {
	start := c.now()
	snap, err := Refresh(ctx, c.src, mode, c.opts)

	result := resultOK
	if err != nil {
		result = resultFallback
	}
	refreshCyclesTotal.WithLabelValues(mode.String(), result).Inc()

	logger := c.logger.With().
		Uint64("seq", seq).
		Str("mode", mode.String()).
		Dur("duration", c.now().Sub(start)).
		Logger()

	applied, st := c.apply(ctx, seq, snap, err)
	switch {
	case !applied:
		logger.Debug().Msg("Refresh result discarded")
	case err != nil:
		logger.Warn().Err(err).Msg("Refresh failed, showing fallback data")
	default:
		logger.Info().Int("incidents", len(snap.Incidents)).Msg("Refresh complete")
	}
	c.notify(st)
}

// apply installs a cycle's result if it is the newest one so far and the
// controller has not been torn down.
func (c *Controller) apply(ctx context.Context, seq uint64, snap Snapshot, err error) (bool, State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inflight--
	c.state.Loading = c.inflight > 0
	c.state.Version++

	switch {
	case c.closed || ctx.Err() != nil:
		return false, c.copyState()
	case seq <= c.applied:
		refreshStaleResultsTotal.Inc()
		return false, c.copyState()
	}

	c.applied = seq
	c.state.Snapshot = snap
	c.state.Err = err
	c.state.LastRefresh = c.now()
	return true, c.copyState()
}

func (c *Controller) copyState() State {
	st := c.state
	st.Snapshot = c.state.Snapshot.Clone()
	return st
}

func (c *Controller) notify(st State) {
	c.mu.Lock()
	watchers := slices.Clone(c.watchers)
	c.mu.Unlock()

	for _, fn := range watchers {
		fn(st)
	}
}
