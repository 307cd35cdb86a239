package audio

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Processor transforms one PCM frame, e.g. by equalizing it.
type Processor interface {
	Process(frame []int16) []int16
}

// Sessions is the registry the player announces its audio session to.
type Sessions interface {
	OpenSession(id int)
	CloseSession(id int)
}

// PlayerConfig configures a Player.
type PlayerConfig struct {
	Paths     []string
	Session   int
	Crossfade time.Duration
	Fade      Fade // defaults to Smoothstep

	Processor Processor // optional
	Sessions  Sessions  // optional

	// Decode defaults to DecodeFile.
	Decode func(ctx context.Context, path string) ([]int16, error)
	// OnTrack is called when a track starts.
	OnTrack func(Track)

	Logger zerolog.Logger
}

type decodedTrack struct {
	info    Track
	samples []int16
}

// Player loops over the sample tracks with crossfades and outputs processed
// PCM frames at real-time rate.
type Player struct {
	cfg     PlayerConfig
	log     zerolog.Logger
	frameCh chan []int16
	skipCh  chan struct{}

	mu            sync.RWMutex
	currentTrack  Track
	trackPosition time.Duration
	trackDuration time.Duration
}

// NewPlayer creates a player. Nothing plays until Run.
func NewPlayer(cfg PlayerConfig) *Player {
	if cfg.Decode == nil {
		cfg.Decode = DecodeFile
	}
	if cfg.Fade == nil {
		cfg.Fade = Smoothstep
	}
	return &Player{
		cfg:     cfg,
		log:     cfg.Logger.With().Str("component", "player").Int("session", cfg.Session).Logger(),
		frameCh: make(chan []int16, 100),
		skipCh:  make(chan struct{}, 1),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Player) Frames() <-chan []int16 {
	return p.frameCh
}

// Session is the audio session id the player renders into.
func (p *Player) Session() int {
	return p.cfg.Session
}

// CrossfadeDuration returns the configured crossfade length.
func (p *Player) CrossfadeDuration() time.Duration {
	return p.cfg.Crossfade
}

// Skip interrupts the current track.
func (p *Player) Skip() {
	select {
	case p.skipCh <- struct{}{}:
	default:
	}
}

// Status returns current playback info.
func (p *Player) Status() (track Track, position, duration time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentTrack, p.trackPosition, p.trackDuration
}

// TrackTitle derives a display title from a file path.
func TrackTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Run plays until ctx is cancelled. The player's audio session is open for
// exactly as long as Run is.
func (p *Player) Run(ctx context.Context) {
	defer close(p.frameCh)

	if len(p.cfg.Paths) == 0 {
		p.log.Info().Msg("no sample tracks configured")
		return
	}
	if p.cfg.Sessions != nil {
		p.cfg.Sessions.OpenSession(p.cfg.Session)
		defer p.cfg.Sessions.CloseSession(p.cfg.Session)
	}

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	decodedCh := make(chan *decodedTrack, 2)
	go p.decodeLoop(ctx, decodedCh)

	var pending *decodedTrack
	var startFrame int

	for {
		var dt *decodedTrack

		if pending != nil {
			dt = pending
			pending = nil
		} else {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-decodedCh:
				if !ok {
					return
				}
				dt = d
				startFrame = 0
			}
		}

		next, nextStart := p.playTrack(ctx, ticker, decodedCh, dt, startFrame)
		if next != nil {
			pending = next
			startFrame = nextStart
		} else {
			startFrame = 0
		}
	}
}

// decodeLoop cycles through the playlist forever. It gives up when no
// track in a full pass could be decoded.
func (p *Player) decodeLoop(ctx context.Context, out chan<- *decodedTrack) {
	defer close(out)
	for {
		decoded := 0
		for i, path := range p.cfg.Paths {
			samples, err := p.cfg.Decode(ctx, path)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.log.Warn().Err(err).Str("path", path).Msg("decode failed")
				continue
			}
			if len(samples) < FrameSamples {
				p.log.Warn().Str("path", path).Msg("track shorter than one frame")
				continue
			}
			decoded++
			t := &decodedTrack{info: Track{Index: i, Path: path, Title: TrackTitle(path)}, samples: samples}
			select {
			case out <- t:
			case <-ctx.Done():
				return
			}
		}
		if decoded == 0 {
			p.log.Error().Msg("no playable sample tracks")
			return
		}
	}
}

// playTrack plays a decoded track with crossfade into the next one if available.
// Returns the next decoded track and starting frame if a crossfade occurred.
func (p *Player) playTrack(ctx context.Context, ticker *time.Ticker, decodedCh <-chan *decodedTrack, dt *decodedTrack, startFrame int) (*decodedTrack, int) {
	samples := dt.samples
	totalFrames := len(samples) / FrameSamples
	cfFrames := int(p.cfg.Crossfade / FrameDuration)
	if cfFrames > totalFrames/2 {
		cfFrames = totalFrames / 2
	}
	cfStart := totalFrames - cfFrames

	p.setTrack(dt.info, totalFrames)
	p.log.Info().Str("title", dt.info.Title).Int("frames", totalFrames).Msg("now playing")
	if p.cfg.OnTrack != nil {
		p.cfg.OnTrack(dt.info)
	}

	for i := startFrame; i < cfStart; i++ {
		if !p.sendFrame(ctx, ticker, samples[i*FrameSamples:(i+1)*FrameSamples]) {
			return nil, 0
		}
		p.updatePosition(i)
	}

	var next *decodedTrack
	select {
	case d, ok := <-decodedCh:
		if ok {
			next = d
		}
	default:
	}

	if next != nil && cfFrames > 0 {
		for i := 0; i < cfFrames; i++ {
			outPos := (cfStart + i) * FrameSamples
			inPos := i * FrameSamples

			if outPos+FrameSamples > len(samples) || inPos+FrameSamples > len(next.samples) {
				break
			}

			progress := float64(i) / float64(cfFrames)
			frame := Mix(
				samples[outPos:outPos+FrameSamples],
				next.samples[inPos:inPos+FrameSamples],
				progress,
				p.cfg.Fade,
			)

			if !p.sendFrame(ctx, ticker, frame) {
				return nil, 0
			}
			p.updatePosition(cfStart + i)
		}

		p.log.Debug().Str("title", next.info.Title).Msg("crossfaded")
		return next, cfFrames
	}

	for i := cfStart; i < totalFrames; i++ {
		if !p.sendFrame(ctx, ticker, samples[i*FrameSamples:(i+1)*FrameSamples]) {
			return next, 0
		}
		p.updatePosition(i)
	}

	return next, 0
}

// sendFrame waits for the ticker, runs the frame through the processor and
// sends it. Returns false on skip or cancel.
func (p *Player) sendFrame(ctx context.Context, ticker *time.Ticker, frame []int16) bool {
	select {
	case <-ctx.Done():
		return false
	case <-p.skipCh:
		p.log.Info().Msg("track skipped")
		return false
	case <-ticker.C:
	}

	if p.cfg.Processor != nil {
		frame = p.cfg.Processor.Process(frame)
	}

	select {
	case p.frameCh <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Player) setTrack(info Track, totalFrames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentTrack = info
	p.trackPosition = 0
	p.trackDuration = time.Duration(totalFrames) * FrameDuration
}

func (p *Player) updatePosition(frameIdx int) {
	p.mu.Lock()
	p.trackPosition = time.Duration(frameIdx) * FrameDuration
	p.mu.Unlock()
}
