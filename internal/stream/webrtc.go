package stream

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"
	"gopkg.in/hraban/opus.v2"

	"github.com/satindergrewal/eqd/internal/audio"
)

// DefaultOpusBitrate is the preview bitrate in bits per second.
const DefaultOpusBitrate = 128000

var errBadOffer = errors.New("bad SDP offer")

// WebRTCHandler answers SDP offers and streams the preview as Opus.
type WebRTCHandler struct {
	broadcaster *Broadcaster
	log         zerolog.Logger
	bitrate     int

	mu    sync.Mutex
	peers map[string]*peer // by listener id
}

type peer struct {
	pc       *webrtc.PeerConnection
	track    *webrtc.TrackLocalStaticSample
	listener *Listener
}

// NewWebRTCHandler creates a WebRTC preview handler.
func NewWebRTCHandler(b *Broadcaster, log zerolog.Logger) *WebRTCHandler {
	return &WebRTCHandler{
		broadcaster: b,
		log:         log.With().Str("component", "preview_webrtc").Logger(),
		bitrate:     DefaultOpusBitrate,
		peers:       make(map[string]*peer),
	}
}

// PeerCount returns the number of active WebRTC peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Close hangs up every peer.
func (h *WebRTCHandler) Close() {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		h.drop(p)
	}
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	p, err := h.answer(offer)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errBadOffer) {
			status = http.StatusBadRequest
		}
		h.log.Warn().Err(err).Int("status", status).Msg("webrtc negotiation failed")
		http.Error(w, err.Error(), status)
		return
	}

	h.mu.Lock()
	h.peers[p.listener.ID] = p
	h.mu.Unlock()

	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		h.log.Debug().Str("listener", p.listener.ID).Stringer("state", s).Msg("peer state")
		switch s {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			h.drop(p)
		}
	})
	go h.stream(p)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(p.pc.LocalDescription())
}

// answer builds a peer with one Opus track for the offer and waits for ICE
// gathering, so the returned local description is complete.
func (h *WebRTCHandler) answer(offer webrtc.SessionDescription) (*peer, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, errors.Wrap(err, "create peer connection")
	}
	fail := func(err error, msg string) (*peer, error) {
		pc.Close()
		return nil, errors.Wrap(err, msg)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: audio.SampleRate, Channels: audio.Channels},
		"audio",
		"eqd-preview",
	)
	if err != nil {
		return fail(err, "create audio track")
	}
	if _, err := pc.AddTrack(track); err != nil {
		return fail(err, "add track")
	}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return fail(errors.Mark(err, errBadOffer), "set remote description")
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fail(err, "create answer")
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return fail(err, "set local description")
	}
	<-webrtc.GatheringCompletePromise(pc)

	return &peer{pc: pc, track: track, listener: h.broadcaster.Subscribe("webrtc")}, nil
}

func (h *WebRTCHandler) drop(p *peer) {
	h.mu.Lock()
	_, ok := h.peers[p.listener.ID]
	delete(h.peers, p.listener.ID)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.broadcaster.Unsubscribe(p.listener)
	p.pc.Close()
}

func (h *WebRTCHandler) stream(p *peer) {
	defer h.drop(p)

	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		h.log.Error().Err(err).Msg("opus encoder")
		return
	}
	if err := enc.SetBitrate(h.bitrate); err != nil {
		h.log.Warn().Err(err).Int("bitrate", h.bitrate).Msg("opus bitrate")
	}

	packet := make([]byte, 4000)
	for {
		select {
		case <-p.listener.Done():
			return
		case frame, ok := <-p.listener.C:
			if !ok {
				return
			}
			n, err := enc.Encode(frame, packet)
			if err != nil {
				h.log.Warn().Err(err).Msg("opus encode")
				continue
			}
			if err := p.track.WriteSample(media.Sample{Data: packet[:n], Duration: audio.FrameDuration}); err != nil {
				return
			}
		}
	}
}
