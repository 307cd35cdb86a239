package nowplaying

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher publishes the contents of a JSON file written by an external
// media-session observer every time the file changes.
type Watcher struct {
	path  string
	store *Store
	log   zerolog.Logger
	fsw   *fsnotify.Watcher
}

// NewWatcher watches path. The directory must exist; the file need not.
func NewWatcher(path string, store *Store, log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}
	// watch the directory so atomic renames over the file are seen
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "watch %s", filepath.Dir(path))
	}
	return &Watcher{
		path:  path,
		store: store,
		log:   log.With().Str("component", "nowplaying").Str("file", path).Logger(),
		fsw:   fsw,
	}, nil
}

// Run loads the file once, then reloads it on every change until ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	if _, err := os.Stat(w.path); err == nil {
		w.reload()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				// let the writer finish
				time.Sleep(10 * time.Millisecond)
				w.reload()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) reload() {
	info, err := ReadFile(w.path)
	if err != nil {
		w.log.Warn().Err(err).Msg("could not read now playing file")
		return
	}
	if info.Source == "" {
		info.Source = "media-session"
	}
	w.store.Publish(info)
	w.log.Debug().Str("title", info.Title).Bool("playing", info.IsPlaying).Msg("now playing updated")
}

// ReadFile parses one now playing JSON document.
func ReadFile(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, errors.Wrap(err, "read")
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, errors.Wrapf(err, "parse %s", path)
	}
	return info, nil
}
