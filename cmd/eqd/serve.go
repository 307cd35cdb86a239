package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/eqd/internal/audio"
	"github.com/satindergrewal/eqd/internal/config"
	"github.com/satindergrewal/eqd/internal/effect/softeq"
	"github.com/satindergrewal/eqd/internal/eqservice"
	"github.com/satindergrewal/eqd/internal/logging"
	"github.com/satindergrewal/eqd/internal/nowplaying"
	"github.com/satindergrewal/eqd/internal/rpc"
	"github.com/satindergrewal/eqd/internal/stream"
)

func ServeCmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:   "serve",
		Short: "Run the background equalizer service",
		Long: `Runs the long-lived equalizer service. It owns the one equalizer of the
process, serves control calls on /rpc, plays the configured sample tracks
through the equalizer and streams them on /preview.
Configuration comes from EQ_* environment variables.`,
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(_ *boa.NoParams, cmd *cobra.Command, args []string) {
			cfg := config.Load()
			log := logging.New(os.Stderr, cfg.LogLevel)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := serve(ctx, cfg, log); err != nil {
				log.Fatal().Err(err).Msg("service failed")
			}
		},
	}.ToCobra()
}

func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	host := softeq.NewHost(log)
	svc := eqservice.New(host, eqservice.Config{DefaultSession: cfg.DefaultSession}, log)
	go svc.Run(ctx)

	store := nowplaying.NewStore()
	if cfg.NowPlayingFile != "" {
		w, err := nowplaying.NewWatcher(cfg.NowPlayingFile, store, log)
		if err != nil {
			log.Warn().Err(err).Msg("now playing file not watched")
		} else {
			go w.Run(ctx)
		}
	}

	fade, curve := crossfadeCurve(cfg.CrossfadeCurve, log)
	player := audio.NewPlayer(audio.PlayerConfig{
		Paths:     cfg.SamplePaths,
		Session:   cfg.SampleSession,
		Crossfade: cfg.CrossfadeDuration,
		Fade:      fade,
		Processor: host.NewProcessor(cfg.SampleSession, audio.SampleRate),
		Sessions:  host,
		OnTrack: func(t audio.Track) {
			store.Publish(nowplaying.Info{Title: t.Title, Album: "samples", IsPlaying: true, Source: "eqd-player"})
		},
		Logger: log,
	})
	go player.Run(ctx)

	broadcaster := stream.NewBroadcaster(log)
	go broadcaster.Run(ctx, player.Frames())
	webrtcHandler := stream.NewWebRTCHandler(broadcaster, log)

	mux := http.NewServeMux()
	rpc.NewServer(svc, log).Register(mux)
	mux.Handle("GET /preview", stream.NewHTTPHandler(broadcaster, log))
	mux.Handle("/preview/offer", webrtcHandler)
	mux.Handle("GET /api/nowplaying", store)
	mux.HandleFunc("GET /api/nowplaying/events", store.Events)
	mux.HandleFunc("/api/skip", skipHandler(player.Skip))
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		track, pos, dur := player.Status()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		json.NewEncoder(w).Encode(map[string]any{
			"service":         svc.Status(),
			"sample_session":  player.Session(),
			"sample_active":   host.Active(player.Session()),
			"track":           track.Title,
			"position":        pos.Seconds(),
			"duration":        dur.Seconds(),
			"crossfade":       player.CrossfadeDuration().Seconds(),
			"crossfade_curve": curve,
			"listeners":       broadcaster.Listeners(),
			"webrtc_peers":    webrtcHandler.PeerCount(),
		})
	})

	server := &http.Server{Addr: cfg.Addr(), Handler: mux}
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		server.Close()
	}()

	log.Info().Str("addr", cfg.Addr()).Int("samples", len(cfg.SamplePaths)).Msg("eqd live")
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server")
	}
	webrtcHandler.Close()
	<-svc.Done()
	return nil
}

// crossfadeCurve resolves the configured curve and its canonical name,
// falling back to smoothstep.
func crossfadeCurve(name string, log zerolog.Logger) (audio.Fade, string) {
	fade, ok := audio.FadeNamed(name)
	if !ok {
		log.Warn().Str("curve", name).Strs("known", audio.FadeNames()).Msg("unknown crossfade curve, using smoothstep")
		return audio.Smoothstep, "smoothstep"
	}
	return fade, strings.ToLower(strings.TrimSpace(name))
}

func skipHandler(skip func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		skip()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}
