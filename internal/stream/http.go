package stream

import (
	"context"
	"io"
	"net/http"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/eqd/internal/audio"
)

// HTTPHandler serves the preview as chunked MP3. Each connection spawns an
// FFmpeg process to encode PCM to MP3 in real time.
type HTTPHandler struct {
	broadcaster *Broadcaster
	log         zerolog.Logger
	encoder     func(ctx context.Context) *exec.Cmd
}

// NewHTTPHandler creates an HTTP preview handler.
func NewHTTPHandler(b *Broadcaster, log zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		broadcaster: b,
		log:         log.With().Str("component", "preview_http").Logger(),
		encoder:     mp3Encoder,
	}
}

// mp3Encoder reads s16le PCM on stdin and writes MP3 on stdout.
func mp3Encoder(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, "ffmpeg",
		"-f", "s16le",
		"-ar", "48000",
		"-ac", "2",
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", "192k",
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	)
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := h.encoder(ctx)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		h.log.Error().Err(err).Msg("stdin pipe")
		http.Error(w, "encoder unavailable", http.StatusInternalServerError)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.log.Error().Err(err).Msg("stdout pipe")
		http.Error(w, "encoder unavailable", http.StatusInternalServerError)
		return
	}
	if err := cmd.Start(); err != nil {
		h.log.Error().Err(err).Msg("encoder start")
		http.Error(w, "encoder unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "eqd preview")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	listener := h.broadcaster.Subscribe("http")
	defer h.broadcaster.Unsubscribe(listener)

	go func() {
		defer stdin.Close()
		pcm := make([]byte, 0, audio.FrameBytes)
		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.Done():
				return
			case frame, ok := <-listener.C:
				if !ok {
					return
				}
				pcm = audio.AppendPCM(pcm[:0], frame)
				if _, err := stdin.Write(pcm); err != nil {
					return
				}
			}
		}
	}()

	n, err := io.Copy(flushWriter{w: w, f: flusher}, stdout)
	if err != nil && ctx.Err() == nil {
		h.log.Debug().Err(err).Msg("preview copy ended")
	}
	h.log.Debug().Int64("bytes", n).Str("listener", listener.ID).Msg("preview stream closed")

	cancel()
	cmd.Wait()
}

// flushWriter pushes every encoder chunk to the client immediately.
type flushWriter struct {
	w io.Writer
	f http.Flusher
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	fw.f.Flush()
	return n, err
}
