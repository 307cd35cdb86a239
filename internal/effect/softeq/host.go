// Package softeq is a software rendition of the platform audio effect
// framework. It keeps the set of active audio sessions, hands out equalizer
// instances with a fixed factory configuration, and applies them to session
// audio through beep's parametric equalizer.
package softeq

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/eqd/internal/effect"
)

var (
	ErrSessionInactive = errors.New("audio session is not active")
	ErrReleased        = errors.New("equalizer released")
	ErrBadBand         = errors.New("band out of range")
	ErrBadPreset       = errors.New("preset out of range")
)

// Host tracks active audio sessions and the equalizers attached to them.
// Session 0, the global output mix, is always active.
type Host struct {
	log zerolog.Logger

	mu       sync.Mutex
	sessions map[int]map[*Equalizer]struct{}
}

// NewHost creates a host with only the global mix active.
func NewHost(log zerolog.Logger) *Host {
	return &Host{
		log: log.With().Str("component", "softeq").Logger(),
		sessions: map[int]map[*Equalizer]struct{}{
			effect.DefaultSession: {},
		},
	}
}

// OpenSession marks an audio session as playing.
func (h *Host) OpenSession(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[id]; !ok {
		h.sessions[id] = make(map[*Equalizer]struct{})
		h.log.Debug().Int("session", id).Msg("audio session opened")
	}
}

// CloseSession ends an audio session. Equalizers attached to it stop
// affecting audio but remain valid handles until released.
func (h *Host) CloseSession(id int) {
	if id == effect.DefaultSession {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[id]; ok {
		delete(h.sessions, id)
		h.log.Debug().Int("session", id).Msg("audio session closed")
	}
}

// Active reports whether the audio session is playing.
func (h *Host) Active(id int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.sessions[id]
	return ok
}

// NewEqualizer attaches a flat, disabled equalizer to an active session.
func (h *Host) NewEqualizer(sessionID int) (effect.Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	attached, ok := h.sessions[sessionID]
	if !ok {
		return nil, errors.Wrapf(ErrSessionInactive, "session %d", sessionID)
	}
	eq := &Equalizer{host: h, sessionID: sessionID}
	attached[eq] = struct{}{}
	h.log.Info().Int("session", sessionID).Msg("equalizer attached")
	return eq, nil
}

func (h *Host) detach(eq *Equalizer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if attached, ok := h.sessions[eq.sessionID]; ok {
		delete(attached, eq)
	}
	h.log.Info().Int("session", eq.sessionID).Msg("equalizer released")
}

// activeLevels collects the band levels of every enabled equalizer that
// applies to audio of sessionID: its own equalizers first, then the global mix.
func (h *Host) activeLevels(sessionID int) [][numBands]int {
	h.mu.Lock()
	ids := []int{sessionID}
	if sessionID != effect.DefaultSession {
		ids = append(ids, effect.DefaultSession)
	}
	var eqs []*Equalizer
	for _, id := range ids {
		for eq := range h.sessions[id] {
			eqs = append(eqs, eq)
		}
	}
	h.mu.Unlock()

	var out [][numBands]int
	for _, eq := range eqs {
		if levels, ok := eq.snapshot(); ok {
			out = append(out, levels)
		}
	}
	return out
}
