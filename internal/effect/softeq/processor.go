package softeq

import (
	"slices"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
)

// Processor applies the equalizers of one audio session to interleaved
// stereo int16 frames. It is used by a single playback goroutine.
type Processor struct {
	host       *Host
	sessionID  int
	sampleRate beep.SampleRate

	src   *frameSource
	chain beep.Streamer
	key   []int
	buf   [][2]float64
}

// NewProcessor returns a processor for audio played on sessionID.
func (h *Host) NewProcessor(sessionID, sampleRate int) *Processor {
	src := &frameSource{}
	return &Processor{
		host:       h,
		sessionID:  sessionID,
		sampleRate: beep.SampleRate(sampleRate),
		src:        src,
		chain:      src,
	}
}

// Process returns the equalized frame. The input is left untouched.
func (p *Processor) Process(frame []int16) []int16 {
	p.rebuild()

	n := len(frame) / 2
	if cap(p.buf) < n {
		p.buf = make([][2]float64, n)
	}
	p.buf = p.buf[:n]
	for i := range p.buf {
		p.buf[i] = [2]float64{
			float64(frame[2*i]) / 32768,
			float64(frame[2*i+1]) / 32768,
		}
	}

	p.src.load(p.buf)
	out := make([][2]float64, n)
	got, _ := p.chain.Stream(out)

	result := make([]int16, len(frame))
	for i := 0; i < got; i++ {
		result[2*i] = toInt16(out[i][0])
		result[2*i+1] = toInt16(out[i][1])
	}
	return result
}

// rebuild swaps the filter chain when the effective band levels changed.
func (p *Processor) rebuild() {
	active := p.host.activeLevels(p.sessionID)

	var key []int
	for _, levels := range active {
		key = append(key, levels[:]...)
		key = append(key, 0)
	}
	if p.key != nil && slices.Equal(key, p.key) {
		return
	}
	p.key = key

	var chain beep.Streamer = p.src
	for _, levels := range active {
		if sections := sectionsFor(levels); len(sections) > 0 {
			chain = effects.NewEqualizer(chain, p.sampleRate, sections)
		}
	}
	p.chain = chain
}

// sectionsFor maps band levels onto peaking sections. Flat bands are
// skipped: a zero gain section is a pass-through and its coefficients
// are undefined.
func sectionsFor(levels [numBands]int) effects.MonoEqualizerSections {
	var sections effects.MonoEqualizerSections
	for band, level := range levels {
		if level == 0 {
			continue
		}
		gain := float64(level) / 100 // dB
		sections = append(sections, effects.MonoEqualizerSection{
			F0: float64(centerFreqs[band]) / 1000,
			Bf: float64(bandRanges[band][1]-bandRanges[band][0]) / 1000,
			GB: gain / 2,
			G0: 0,
			G:  gain,
		})
	}
	return sections
}

// frameSource streams one loaded frame and then silence.
type frameSource struct {
	pending [][2]float64
}

func (s *frameSource) load(samples [][2]float64) {
	s.pending = samples
}

func (s *frameSource) Stream(samples [][2]float64) (int, bool) {
	n := copy(samples, s.pending)
	s.pending = s.pending[n:]
	for i := n; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

func (s *frameSource) Err() error {
	return nil
}

func toInt16(v float64) int16 {
	v *= 32768
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
