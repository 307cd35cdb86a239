// Package eqservice is the long-lived background service that owns the one
// equalizer binding of the process. Control calls are messages handled one at
// a time by the service loop, so overlapping callers are serialized.
package eqservice

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/eqd/internal/bridge"
	"github.com/satindergrewal/eqd/internal/effect"
	"github.com/satindergrewal/eqd/internal/eqerr"
)

// State is the service lifecycle state.
type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	}
	return "unknown"
}

var ErrAlreadyStarted = errors.New("service already started")

// Config holds service parameters.
type Config struct {
	DefaultSession int // audio session used at start and as the fallback
}

type request struct {
	ctx   context.Context
	op    string
	fn    func(b *effect.Binding) error
	reply chan error
}

// Service owns the equalizer binding.
type Service struct {
	cfg     Config
	binding *effect.Binding
	log     zerolog.Logger

	reqs  chan request
	ready chan struct{}
	done  chan struct{}

	mu      sync.RWMutex
	state   State
	started bool
}

var _ bridge.Conn = (*Service)(nil)

// New creates a stopped service on host.
func New(host effect.Host, cfg Config, log zerolog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		binding: effect.NewBinding(host),
		log:     log.With().Str("component", "eqservice").Logger(),
		reqs:    make(chan request),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// State returns the lifecycle state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Running reports whether the service is accepting control calls.
func (s *Service) Running() bool {
	return s.State() == Running
}

// Status is the lifecycle state name.
func (s *Service) Status() string {
	return s.State().String()
}

// Ready is closed once the service is Running.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed once the service has stopped after running.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

func (s *Service) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.log.Debug().Stringer("state", st).Msg("service state")
}

// Run starts the service and serves control calls until ctx is cancelled,
// which stands for the hosting process being torn down. The equalizer is
// released only then. A service runs once.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	s.setState(Starting)
	if err := s.create(s.cfg.DefaultSession); err != nil {
		// stay up: a later Initialize may still succeed
		s.log.Error().Err(err).Msg("equalizer unavailable at start")
	}
	s.setState(Running)
	close(s.ready)
	s.log.Info().Int("session", s.binding.SessionID()).Bool("created", s.binding.Created()).Msg("equalizer service running")

	for {
		select {
		case <-ctx.Done():
			s.setState(Stopping)
			s.binding.Release()
			s.setState(Stopped)
			close(s.done)
			s.log.Info().Msg("equalizer service stopped")
			return nil
		case req := <-s.reqs:
			s.serve(req)
		}
	}
}

func (s *Service) serve(req request) {
	if req.ctx.Err() != nil {
		req.reply <- errors.Mark(req.ctx.Err(), eqerr.ErrServiceUnavailable)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("op", req.op).Interface("panic", r).Msg("equalizer call panicked")
			req.reply <- errors.Mark(errors.Newf("%s: %v", req.op, r), eqerr.ErrOperationFailed)
		}
	}()
	err := eqerr.Normalize(req.fn(s.binding))
	if err != nil {
		s.log.Debug().Err(err).Str("op", req.op).Msg("equalizer call failed")
	}
	req.reply <- err
}

// do runs fn on the service loop and waits for its result. Only a request
// the loop never accepted reports ErrServiceUnavailable.
func (s *Service) do(ctx context.Context, op string, fn func(b *effect.Binding) error) error {
	req := request{ctx: ctx, op: op, fn: fn, reply: make(chan error, 1)}
	select {
	case s.reqs <- req:
	case <-s.done:
		return errors.Wrap(eqerr.ErrServiceUnavailable, "service stopped")
	case <-ctx.Done():
		return errors.Mark(ctx.Err(), eqerr.ErrServiceUnavailable)
	}
	// Accepted requests always run to completion, so the caller must see
	// the real outcome rather than a timeout.
	return <-req.reply
}

// create attaches a new equalizer, retrying once on the default session.
// Every new handle is enabled.
func (s *Service) create(sessionID int) error {
	err := s.binding.Create(sessionID)
	if err != nil && sessionID != s.cfg.DefaultSession {
		s.log.Warn().Err(err).Int("session", sessionID).Int("fallback", s.cfg.DefaultSession).
			Msg("audio session not available, falling back to default session")
		err = s.binding.Create(s.cfg.DefaultSession)
	}
	if err != nil {
		return errors.Mark(err, eqerr.ErrEffectCreationFailed)
	}

	if err := s.binding.SetEnabled(true); err != nil {
		s.log.Warn().Err(err).Msg("could not enable equalizer")
	}
	s.log.Info().Int("session", s.binding.SessionID()).Msg("equalizer attached")
	return nil
}

func (s *Service) Initialize(ctx context.Context, sessionID int) (bool, error) {
	err := s.do(ctx, "initialize", func(*effect.Binding) error {
		return s.create(sessionID)
	})
	return err == nil, err
}

func (s *Service) SetEnabled(ctx context.Context, enabled bool) (bool, error) {
	err := s.do(ctx, "set_enabled", func(b *effect.Binding) error {
		return b.SetEnabled(enabled)
	})
	return err == nil, err
}

func (s *Service) IsEnabled(ctx context.Context) (bool, error) {
	var on bool
	err := s.do(ctx, "is_enabled", func(b *effect.Binding) error {
		on = b.IsEnabled()
		return nil
	})
	if err != nil {
		return false, err
	}
	return on, nil
}

func (s *Service) BandCount(ctx context.Context) (int, error) {
	var n int
	err := s.do(ctx, "band_count", func(b *effect.Binding) (err error) {
		n, err = b.BandCount()
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Service) BandFreqRange(ctx context.Context, band int) (effect.FreqRange, error) {
	var rng effect.FreqRange
	err := s.do(ctx, "band_freq_range", func(b *effect.Binding) (err error) {
		rng, err = b.BandFreqRange(band)
		return err
	})
	if err != nil {
		return effect.FreqRange{}, err
	}
	return rng, nil
}

func (s *Service) CenterFreq(ctx context.Context, band int) (int, error) {
	var freq int
	err := s.do(ctx, "center_freq", func(b *effect.Binding) (err error) {
		freq, err = b.CenterFreq(band)
		return err
	})
	if err != nil {
		return 0, err
	}
	return freq, nil
}

func (s *Service) BandLevel(ctx context.Context, band int) (int, error) {
	var level int
	err := s.do(ctx, "band_level", func(b *effect.Binding) (err error) {
		level, err = b.BandLevel(band)
		return err
	})
	if err != nil {
		return 0, err
	}
	return level, nil
}

func (s *Service) SetBandLevel(ctx context.Context, band, level int) (bool, error) {
	err := s.do(ctx, "set_band_level", func(b *effect.Binding) error {
		return b.SetBandLevel(band, level)
	})
	return err == nil, err
}

func (s *Service) BandLevelRange(ctx context.Context) (effect.LevelRange, error) {
	var rng effect.LevelRange
	err := s.do(ctx, "band_level_range", func(b *effect.Binding) (err error) {
		rng, err = b.BandLevelRange()
		return err
	})
	if err != nil {
		return effect.LevelRange{}, err
	}
	return rng, nil
}

func (s *Service) PresetCount(ctx context.Context) (int, error) {
	var n int
	err := s.do(ctx, "preset_count", func(b *effect.Binding) (err error) {
		n, err = b.PresetCount()
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Service) PresetName(ctx context.Context, preset int) (string, error) {
	var name string
	err := s.do(ctx, "preset_name", func(b *effect.Binding) (err error) {
		name, err = b.PresetName(preset)
		return err
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

func (s *Service) UsePreset(ctx context.Context, preset int) (bool, error) {
	err := s.do(ctx, "use_preset", func(b *effect.Binding) error {
		return b.UsePreset(preset)
	})
	return err == nil, err
}

func (s *Service) CurrentPreset(ctx context.Context) (int, error) {
	preset := effect.NoPreset
	err := s.do(ctx, "current_preset", func(b *effect.Binding) error {
		preset = b.CurrentPreset()
		return nil
	})
	if err != nil {
		return effect.NoPreset, err
	}
	return preset, nil
}

// Release reports success without releasing anything. Releasing on a
// caller's request would silence equalization for every other stream in the
// session; the equalizer is released only when the service stops.
func (s *Service) Release(ctx context.Context) (bool, error) {
	s.log.Info().Msg("release requested, keeping equalizer attached")
	return true, nil
}
