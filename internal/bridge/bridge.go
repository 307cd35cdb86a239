// Package bridge connects a control surface to the long-lived equalizer
// service. The service outlives any control surface, so the bridge binds
// lazily, waits a bounded grace period for the connection, and never unbinds.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/eqd/internal/effect"
	"github.com/satindergrewal/eqd/internal/eqerr"
)

// DefaultGrace is how long a call waits for the service to bind.
const DefaultGrace = time.Second

// State is the binding state between this control surface and the service.
type State int

const (
	Unbound State = iota
	Binding
	Bound
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Binding:
		return "binding"
	case Bound:
		return "bound"
	}
	return "unknown"
}

// Options configures a Bridge.
type Options struct {
	Grace  time.Duration // zero means DefaultGrace
	Logger zerolog.Logger
}

// Bridge forwards control calls to the bound service.
type Bridge struct {
	binder Binder
	grace  time.Duration
	log    zerolog.Logger

	mu      sync.Mutex
	state   State
	conn    Conn
	changed chan struct{} // closed and replaced on every state change
}

// New creates a bridge and immediately starts binding in the background.
func New(binder Binder, opts Options) *Bridge {
	grace := opts.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	b := &Bridge{
		binder:  binder,
		grace:   grace,
		log:     opts.Logger.With().Str("component", "bridge").Logger(),
		changed: make(chan struct{}),
	}
	b.mu.Lock()
	b.setStateLocked(Binding, nil)
	b.mu.Unlock()
	b.binder.Bind(b.handle)
	return b
}

// State returns the current binding state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bridge) handle(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Kind {
	case Connected:
		if ev.Conn == nil {
			return
		}
		b.setStateLocked(Bound, ev.Conn)
	case Disconnected:
		// a late disconnect from a connection we already dropped
		if ev.Conn != nil && ev.Conn != b.conn {
			return
		}
		if b.state == Unbound {
			return
		}
		b.setStateLocked(Unbound, nil)
	}
}

func (b *Bridge) setStateLocked(s State, conn Conn) {
	if b.state != s {
		b.log.Debug().Stringer("from", b.state).Stringer("to", s).Msg("binding state changed")
	}
	b.state = s
	b.conn = conn
	close(b.changed)
	b.changed = make(chan struct{})
}

// service returns the bound connection, binding once and waiting at most
// the grace period when needed.
func (b *Bridge) service(ctx context.Context) (Conn, error) {
	deadline := time.NewTimer(b.grace)
	defer deadline.Stop()

	triggered := false
	for {
		b.mu.Lock()
		switch b.state {
		case Bound:
			conn := b.conn
			b.mu.Unlock()
			return conn, nil
		case Unbound:
			if triggered {
				b.mu.Unlock()
				return nil, errors.Wrap(eqerr.ErrServiceUnavailable, "bind failed")
			}
			triggered = true
			b.setStateLocked(Binding, nil)
			b.mu.Unlock()
			b.log.Debug().Msg("service unbound, binding")
			b.binder.Bind(b.handle)
			continue
		}
		changed := b.changed
		b.mu.Unlock()

		select {
		case <-changed:
		case <-deadline.C:
			b.log.Warn().Dur("grace", b.grace).Msg("service did not bind in time")
			return nil, errors.Wrapf(eqerr.ErrServiceUnavailable, "not bound after %s", b.grace)
		case <-ctx.Done():
			return nil, errors.Mark(ctx.Err(), eqerr.ErrServiceUnavailable)
		}
	}
}

func (b *Bridge) Initialize(ctx context.Context, sessionID int) (bool, error) {
	c, err := b.service(ctx)
	if err != nil {
		return false, err
	}
	return c.Initialize(ctx, sessionID)
}

func (b *Bridge) SetEnabled(ctx context.Context, enabled bool) (bool, error) {
	c, err := b.service(ctx)
	if err != nil {
		return false, err
	}
	return c.SetEnabled(ctx, enabled)
}

func (b *Bridge) IsEnabled(ctx context.Context) (bool, error) {
	c, err := b.service(ctx)
	if err != nil {
		return false, err
	}
	return c.IsEnabled(ctx)
}

func (b *Bridge) BandCount(ctx context.Context) (int, error) {
	c, err := b.service(ctx)
	if err != nil {
		return 0, err
	}
	return c.BandCount(ctx)
}

func (b *Bridge) BandFreqRange(ctx context.Context, band int) (effect.FreqRange, error) {
	c, err := b.service(ctx)
	if err != nil {
		return effect.FreqRange{}, err
	}
	return c.BandFreqRange(ctx, band)
}

func (b *Bridge) CenterFreq(ctx context.Context, band int) (int, error) {
	c, err := b.service(ctx)
	if err != nil {
		return 0, err
	}
	return c.CenterFreq(ctx, band)
}

func (b *Bridge) BandLevel(ctx context.Context, band int) (int, error) {
	c, err := b.service(ctx)
	if err != nil {
		return 0, err
	}
	return c.BandLevel(ctx, band)
}

func (b *Bridge) SetBandLevel(ctx context.Context, band, level int) (bool, error) {
	c, err := b.service(ctx)
	if err != nil {
		return false, err
	}
	return c.SetBandLevel(ctx, band, level)
}

func (b *Bridge) BandLevelRange(ctx context.Context) (effect.LevelRange, error) {
	c, err := b.service(ctx)
	if err != nil {
		return effect.LevelRange{}, err
	}
	return c.BandLevelRange(ctx)
}

func (b *Bridge) PresetCount(ctx context.Context) (int, error) {
	c, err := b.service(ctx)
	if err != nil {
		return 0, err
	}
	return c.PresetCount(ctx)
}

func (b *Bridge) PresetName(ctx context.Context, preset int) (string, error) {
	c, err := b.service(ctx)
	if err != nil {
		return "", err
	}
	return c.PresetName(ctx, preset)
}

func (b *Bridge) UsePreset(ctx context.Context, preset int) (bool, error) {
	c, err := b.service(ctx)
	if err != nil {
		return false, err
	}
	return c.UsePreset(ctx, preset)
}

func (b *Bridge) CurrentPreset(ctx context.Context) (int, error) {
	c, err := b.service(ctx)
	if err != nil {
		return effect.NoPreset, err
	}
	return c.CurrentPreset(ctx)
}

func (b *Bridge) Release(ctx context.Context) (bool, error) {
	c, err := b.service(ctx)
	if err != nil {
		return false, err
	}
	return c.Release(ctx)
}

// AllPresets lists every preset in id order. It returns an empty list on
// any failure rather than a partial one.
func (b *Bridge) AllPresets(ctx context.Context) ([]effect.Preset, error) {
	c, err := b.service(ctx)
	if err != nil {
		return []effect.Preset{}, err
	}
	n, err := c.PresetCount(ctx)
	if err != nil {
		return []effect.Preset{}, err
	}
	presets := make([]effect.Preset, 0, n)
	for id := 0; id < n; id++ {
		name, err := c.PresetName(ctx, id)
		if err != nil {
			return []effect.Preset{}, err
		}
		presets = append(presets, effect.Preset{ID: id, Name: name})
	}
	return presets, nil
}

// AllBandLevels lists every band with its live level and center frequency
// in id order. Like AllPresets it never returns a partial list.
func (b *Bridge) AllBandLevels(ctx context.Context) ([]effect.BandLevel, error) {
	c, err := b.service(ctx)
	if err != nil {
		return []effect.BandLevel{}, err
	}
	n, err := c.BandCount(ctx)
	if err != nil {
		return []effect.BandLevel{}, err
	}
	bands := make([]effect.BandLevel, 0, n)
	for id := 0; id < n; id++ {
		level, err := c.BandLevel(ctx, id)
		if err != nil {
			return []effect.BandLevel{}, err
		}
		center, err := c.CenterFreq(ctx, id)
		if err != nil {
			return []effect.BandLevel{}, err
		}
		bands = append(bands, effect.BandLevel{ID: id, Level: level, CenterFreq: center})
	}
	return bands, nil
}
