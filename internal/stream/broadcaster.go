// Package stream serves a live preview of the sample player output, so the
// effect of equalizer changes can be heard from a browser.
package stream

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Broadcaster fans out PCM frames from one source to N listeners.
type Broadcaster struct {
	log zerolog.Logger

	mu        sync.RWMutex
	listeners map[string]*Listener
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	ID    string
	Kind  string // "http" or "webrtc"
	Since time.Time
	C     chan []int16 // buffered channel of 20ms PCM frames

	dropped atomic.Int64
	done    chan struct{}
	once    sync.Once
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Dropped is the number of frames skipped because the listener fell behind.
func (l *Listener) Dropped() int64 {
	return l.dropped.Load()
}

// ListenerInfo describes a connected listener.
type ListenerInfo struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Since   time.Time `json:"since"`
	Dropped int64     `json:"dropped"`
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		log:       log.With().Str("component", "preview").Logger(),
		listeners: make(map[string]*Listener),
	}
}

// Subscribe registers a new listener of the given kind.
func (b *Broadcaster) Subscribe(kind string) *Listener {
	l := &Listener{
		ID:    uuid.NewString(),
		Kind:  kind,
		Since: time.Now(),
		C:     make(chan []int16, 150), // ~3 seconds of buffer at 20ms/frame
		done:  make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l.ID] = l
	n := len(b.listeners)
	b.mu.Unlock()
	b.log.Info().Str("listener", l.ID).Str("kind", kind).Int("total", n).Msg("preview listener connected")
	return l
}

// Unsubscribe removes a listener and signals it to stop. Safe to call twice.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	delete(b.listeners, l.ID)
	n := len(b.listeners)
	b.mu.Unlock()
	l.once.Do(func() {
		close(l.done)
		b.log.Info().Str("listener", l.ID).Int64("dropped", l.Dropped()).Int("total", n).Msg("preview listener disconnected")
	})
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Listeners lists the active listeners, oldest first.
func (b *Broadcaster) Listeners() []ListenerInfo {
	b.mu.RLock()
	infos := make([]ListenerInfo, 0, len(b.listeners))
	for _, l := range b.listeners {
		infos = append(infos, ListenerInfo{ID: l.ID, Kind: l.Kind, Since: l.Since, Dropped: l.Dropped()})
	}
	b.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Since.Before(infos[j].Since) })
	return infos
}

// Run reads frames from source and fans out to all listeners.
// Slow listeners get frames dropped rather than blocking the broadcast.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.mu.RLock()
			for _, l := range b.listeners {
				select {
				case l.C <- frame:
				default:
					l.dropped.Add(1)
				}
			}
			b.mu.RUnlock()
		}
	}
}
