// Package nowplaying tracks "now playing" metadata. It is read-only context
// for control surfaces and never touches equalizer state.
package nowplaying

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Info describes the media currently playing.
type Info struct {
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Album     string    `json:"album"`
	Artwork   string    `json:"artwork"` // uri
	IsPlaying bool      `json:"isPlaying"`
	Source    string    `json:"source"` // app or component that reported it
	Updated   time.Time `json:"updated"`
}

// Store holds the latest Info and notifies subscribers on change.
type Store struct {
	mu      sync.RWMutex
	current Info
	subs    map[chan Info]struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{subs: make(map[chan Info]struct{})}
}

// Current returns the latest metadata.
func (s *Store) Current() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Publish replaces the current metadata. Subscribers that are not keeping
// up miss intermediate updates.
func (s *Store) Publish(info Info) {
	if info.Updated.IsZero() {
		info.Updated = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = info
	for ch := range s.subs {
		select {
		case ch <- info:
		default:
		}
	}
}

// Subscribe returns a channel of updates and a function that ends the
// subscription.
func (s *Store) Subscribe() (<-chan Info, func()) {
	ch := make(chan Info, 4)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
		})
	}
}

// ServeHTTP serves the current metadata as JSON.
func (s *Store) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(s.Current())
}

// Events streams the current metadata and every later update as server-sent
// events until the client goes away.
func (s *Store) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	updates, cancel := s.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	send := func(info Info) error {
		b, err := json.Marshal(info)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: nowplaying\ndata: %s\n\n", b); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := send(s.Current()); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case info := <-updates:
			if err := send(info); err != nil {
				return
			}
		}
	}
}
