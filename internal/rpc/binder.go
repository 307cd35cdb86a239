package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/eqd/internal/bridge"
)

const (
	DefaultBindTimeout  = 5 * time.Second
	defaultPollInterval = 100 * time.Millisecond
)

// BinderOptions configures a Binder.
type BinderOptions struct {
	// Start launches the service when it is not answering. Optional.
	Start   func(ctx context.Context) error
	Timeout time.Duration // zero means DefaultBindTimeout
	Poll    time.Duration // zero means 100ms
	Logger  zerolog.Logger
}

// Binder binds a bridge to the service behind baseURL, starting it through
// the start hook if needed.
type Binder struct {
	baseURL string
	surface string
	opts    BinderOptions
	http    *http.Client
	log     zerolog.Logger
}

var _ bridge.Binder = (*Binder)(nil)

// NewBinder creates a binder with a fresh control-surface id.
func NewBinder(baseURL string, opts BinderOptions) *Binder {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBindTimeout
	}
	if opts.Poll <= 0 {
		opts.Poll = defaultPollInterval
	}
	surface := uuid.NewString()
	return &Binder{
		baseURL: strings.TrimRight(baseURL, "/"),
		surface: surface,
		opts:    opts,
		http:    &http.Client{Timeout: 2 * time.Second},
		log:     opts.Logger.With().Str("component", "binder").Str("surface", surface).Logger(),
	}
}

// Surface is the control-surface id sent with every call.
func (b *Binder) Surface() string {
	return b.surface
}

func (b *Binder) Bind(notify func(bridge.Event)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), b.opts.Timeout)
		defer cancel()

		if err := b.connect(ctx); err != nil {
			b.log.Warn().Err(err).Str("url", b.baseURL).Msg("bind failed")
			notify(bridge.Event{Kind: bridge.Disconnected})
			return
		}

		var conn *Client
		conn = NewClient(b.baseURL, b.surface, func() {
			b.log.Info().Msg("service connection lost")
			notify(bridge.Event{Kind: bridge.Disconnected, Conn: conn})
		})
		b.log.Debug().Str("url", b.baseURL).Msg("bound")
		notify(bridge.Event{Kind: bridge.Connected, Conn: conn})
	}()
}

// connect returns once the service reports running, starting it first when
// it is unreachable and a start hook is set.
func (b *Binder) connect(ctx context.Context) error {
	running, err := b.healthy(ctx)
	if running {
		return nil
	}
	if err != nil && b.opts.Start != nil {
		b.log.Info().Msg("service not reachable, starting it")
		if err := b.opts.Start(ctx); err != nil {
			return errors.Wrap(err, "start service")
		}
	}

	ticker := time.NewTicker(b.opts.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "service not running after %s", b.opts.Timeout)
		case <-ticker.C:
		}
		if running, _ := b.healthy(ctx); running {
			return nil
		}
	}
}

// healthy reports whether the service is running. err is set only when the
// service could not be reached at all.
func (b *Binder) healthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/healthz", nil)
	if err != nil {
		return false, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var h health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		b.log.Debug().Str("state", h.State).Msg("service not running yet")
		return false, nil
	}
	return true, nil
}
