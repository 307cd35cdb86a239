// Package audio plays the sample tracks that make equalizer changes audible.
// Frames are 20ms of interleaved 48kHz stereo int16 PCM.
package audio

import (
	"encoding/binary"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	SampleRate    = 48000
	Channels      = 2
	FrameDuration = 20 * time.Millisecond

	// FrameSize is samples per channel in one frame.
	FrameSize = SampleRate / 50
	// FrameSamples is interleaved samples in one frame.
	FrameSamples = FrameSize * Channels
	FrameBytes   = FrameSamples * bytesPerSample
)

const bytesPerSample = 2

// Track identifies one sample file in the playlist.
type Track struct {
	Index int
	Path  string
	Title string // file name without extension
}

// Fade maps crossfade progress in [0,1] to the gain of the incoming frame.
type Fade func(progress float64) float64

// Linear is a straight gain ramp.
func Linear(t float64) float64 {
	return lo.Clamp(t, 0, 1)
}

// Smoothstep eases in and out: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	t = lo.Clamp(t, 0, 1)
	return t * t * (3 - 2*t)
}

var fades = map[string]Fade{
	"linear":     Linear,
	"smoothstep": Smoothstep,
}

// FadeNamed looks up a crossfade curve by name, ignoring case.
func FadeNamed(name string) (Fade, bool) {
	f, ok := fades[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// FadeNames lists the known crossfade curves.
func FadeNames() []string {
	names := lo.Keys(fades)
	slices.Sort(names)
	return names
}

// Mix blends incoming over outgoing at progress, saturating at the int16
// limits. A nil fade means Smoothstep. The frames must be the same length.
func Mix(outgoing, incoming []int16, progress float64, fade Fade) []int16 {
	if fade == nil {
		fade = Smoothstep
	}
	gain := fade(progress)
	mixed := make([]int16, len(outgoing))
	for i := range outgoing {
		v := float64(outgoing[i])*(1-gain) + float64(incoming[i])*gain
		mixed[i] = int16(lo.Clamp(v, -32768, 32767))
	}
	return mixed
}

// AppendPCM appends samples to dst as s16le bytes.
func AppendPCM(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// ParsePCM reads s16le bytes. A trailing odd byte is ignored.
func ParsePCM(b []byte) []int16 {
	samples := make([]int16, len(b)/bytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*bytesPerSample:]))
	}
	return samples
}
