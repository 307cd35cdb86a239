package rpc

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/eqd/internal/bridge"
	"github.com/satindergrewal/eqd/internal/eqerr"
)

// Backend is the service the server exposes.
type Backend interface {
	bridge.Conn
	Running() bool
	Status() string
}

type handlerFunc func(ctx context.Context, a args) (any, error)

// Server exposes a Backend on /rpc/{method} and /healthz.
type Server struct {
	backend Backend
	log     zerolog.Logger
	methods map[string]handlerFunc
}

// NewServer creates a server for backend.
func NewServer(backend Backend, log zerolog.Logger) *Server {
	s := &Server{
		backend: backend,
		log:     log.With().Str("component", "rpc").Logger(),
	}
	s.methods = map[string]handlerFunc{
		MethodInitialize: func(ctx context.Context, a args) (any, error) {
			return backend.Initialize(ctx, a.SessionID)
		},
		MethodSetEnabled: func(ctx context.Context, a args) (any, error) {
			return backend.SetEnabled(ctx, a.Enabled)
		},
		MethodIsEnabled: func(ctx context.Context, _ args) (any, error) {
			return backend.IsEnabled(ctx)
		},
		MethodBandCount: func(ctx context.Context, _ args) (any, error) {
			return backend.BandCount(ctx)
		},
		MethodBandFreqRange: func(ctx context.Context, a args) (any, error) {
			return backend.BandFreqRange(ctx, a.Band)
		},
		MethodCenterFreq: func(ctx context.Context, a args) (any, error) {
			return backend.CenterFreq(ctx, a.Band)
		},
		MethodBandLevel: func(ctx context.Context, a args) (any, error) {
			return backend.BandLevel(ctx, a.Band)
		},
		MethodSetBandLevel: func(ctx context.Context, a args) (any, error) {
			return backend.SetBandLevel(ctx, a.Band, a.Level)
		},
		MethodBandLevelRange: func(ctx context.Context, _ args) (any, error) {
			return backend.BandLevelRange(ctx)
		},
		MethodPresetCount: func(ctx context.Context, _ args) (any, error) {
			return backend.PresetCount(ctx)
		},
		MethodPresetName: func(ctx context.Context, a args) (any, error) {
			return backend.PresetName(ctx, a.Preset)
		},
		MethodUsePreset: func(ctx context.Context, a args) (any, error) {
			return backend.UsePreset(ctx, a.Preset)
		},
		MethodCurrentPreset: func(ctx context.Context, _ args) (any, error) {
			return backend.CurrentPreset(ctx)
		},
		MethodRelease: func(ctx context.Context, _ args) (any, error) {
			return backend.Release(ctx)
		},
	}
	return s
}

// Register installs the RPC routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /rpc/{method}", s.handleCall)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.backend.Running() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health{State: s.backend.Status()})
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	method := r.PathValue("method")
	fn, ok := s.methods[method]
	if !ok {
		http.Error(w, "unknown method", http.StatusNotFound)
		return
	}

	var a args
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			http.Error(w, "invalid arguments", http.StatusBadRequest)
			return
		}
	}

	s.log.Debug().Str("method", method).Str("surface", r.Header.Get(HeaderSurface)).Msg("control call")

	value, err := fn(r.Context(), a)
	var rep reply
	if err != nil {
		err = eqerr.Normalize(err)
		rep.Error = &wireError{Kind: eqerr.Kind(err), Message: err.Error()}
	} else {
		raw, merr := json.Marshal(value)
		if merr != nil {
			merr = errors.Mark(errors.Wrap(merr, "encode reply"), eqerr.ErrOperationFailed)
			rep.Error = &wireError{Kind: eqerr.KindOperationFailed, Message: merr.Error()}
		} else {
			rep.Value = raw
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		s.log.Warn().Err(err).Str("method", method).Msg("write reply")
	}
}
