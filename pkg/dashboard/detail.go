package dashboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sternrassler/tripwire-client/pkg/incident"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DetailSource is the subset of the incidents API the detail view uses.
// *client.Client implements it.
type DetailSource interface {
	Incident(ctx context.Context, id string) (incident.Detail, error)
	MarkResolved(ctx context.Context, id string) (incident.Detail, error)
}

// FetchOne loads incident id. In snapshot mode, and when the live request
// fails, it returns a copy of fallback with its ID replaced by id; a live
// failure also returns the error.
func FetchOne(ctx context.Context, src DetailSource, mode Mode, id string, fallback incident.Detail) (incident.Detail, error) {
	substitute := fallback.Clone()
	substitute.ID = id

	if mode != ModeLive {
		return substitute, nil
	}
	if src == nil {
		return substitute, fmt.Errorf("live mode requires a data source")
	}

	d, err := src.Incident(ctx, id)
	if err != nil {
		return substitute, err
	}
	return d, nil
}

// DetailView holds the incident shown on the detail page.
type DetailView struct {
	src      DetailSource
	fallback incident.Detail
	logger   zerolog.Logger

	mu      sync.Mutex
	current incident.Detail
	loaded  bool
	err     error
}

// NewDetailView creates a detail view. logger may be nil.
func NewDetailView(src DetailSource, fallback incident.Detail, logger *zerolog.Logger) *DetailView {
	l := log.With().Str("component", "incident-detail").Logger()
	if logger != nil {
		l = *logger
	}
	return &DetailView{
		src:      src,
		fallback: fallback.Clone(),
		logger:   l,
	}
}

// Load fetches incident id with FetchOne and keeps the result as the
// current incident, fallback included.
func (v *DetailView) Load(ctx context.Context, mode Mode, id string) (incident.Detail, error) {
	d, err := FetchOne(ctx, v.src, mode, id, v.fallback)
	if err != nil {
		v.logger.Warn().Err(err).Str("incident_id", id).Msg("Incident fetch failed, showing fallback data")
	}

	v.mu.Lock()
	v.current = d
	v.loaded = true
	v.err = err
	v.mu.Unlock()

	return d.Clone(), err
}

// Current returns the loaded incident and whether anything has been loaded.
func (v *DetailView) Current() (incident.Detail, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current.Clone(), v.loaded
}

// Err returns the error of the last Load, if it fell back.
func (v *DetailView) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// MarkResolved resolves the current incident. In live mode it sends one
// update request first and leaves the local copy untouched if that fails.
// In snapshot mode nothing is sent. Either way, on success only the local
// status changes.
func (v *DetailView) MarkResolved(ctx context.Context, mode Mode) (incident.Detail, error) {
	v.mu.Lock()
	if !v.loaded {
		v.mu.Unlock()
		return incident.Detail{}, fmt.Errorf("no incident loaded")
	}
	id := v.current.ID
	v.mu.Unlock()

	if mode == ModeLive {
		if v.src == nil {
			return incident.Detail{}, fmt.Errorf("live mode requires a data source")
		}
		if _, err := v.src.MarkResolved(ctx, id); err != nil {
			v.logger.Error().Err(err).Str("incident_id", id).Msg("Failed to resolve incident")
			return incident.Detail{}, err
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current.ID == id {
		v.current.Status = incident.StatusResolved
	}
	v.logger.Info().Str("incident_id", id).Str("mode", mode.String()).Msg("Incident marked resolved")
	return v.current.Clone(), nil
}
