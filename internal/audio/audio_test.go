package audio

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

func TestFrameFormat(t *testing.T) {
	if got := time.Duration(FrameSize) * time.Second / SampleRate; got != FrameDuration {
		t.Errorf("FrameSize covers %v, want %v", got, FrameDuration)
	}
	if FrameBytes != FrameSize*Channels*2 {
		t.Errorf("FrameBytes = %d, want %d", FrameBytes, FrameSize*Channels*2)
	}
}

func TestSmoothstep(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{1.5, 1},
	}
	for _, tt := range tests {
		if got := Smoothstep(tt.input); got != tt.want {
			t.Errorf("Smoothstep(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}

	prev := 0.0
	for i := 1; i <= 100; i++ {
		x := float64(i) / 100
		if v := Smoothstep(x); v < prev {
			t.Errorf("Smoothstep not monotonic at %v", x)
		} else {
			prev = v
		}
	}

	// f(0.5+d) + f(0.5-d) = 1
	for _, d := range []float64{0.1, 0.25, 0.4} {
		sum := Smoothstep(0.5+d) + Smoothstep(0.5-d)
		if diff := sum - 1; diff > 1e-10 || diff < -1e-10 {
			t.Errorf("Smoothstep symmetry broken at d=%v: sum=%v", d, sum)
		}
	}
}

func TestMixEndpoints(t *testing.T) {
	out := []int16{1000, -1000, 500, -500}
	in := []int16{2000, -2000, 1500, -1500}

	for i, v := range Mix(out, in, 0, nil) {
		if v != out[i] {
			t.Errorf("progress 0: sample[%d] = %d, want %d", i, v, out[i])
		}
	}
	for i, v := range Mix(out, in, 1, nil) {
		if v != in[i] {
			t.Errorf("progress 1: sample[%d] = %d, want %d", i, v, in[i])
		}
	}
}

func TestMixFadeCurves(t *testing.T) {
	out := []int16{0}
	in := []int16{10000}

	if got := Mix(out, in, 0.5, Smoothstep)[0]; got != 5000 {
		t.Errorf("smoothstep midpoint = %d, want 5000", got)
	}
	// smoothstep(0.25) = 0.15625
	if got := Mix(out, in, 0.25, Smoothstep)[0]; got != 1562 {
		t.Errorf("smoothstep quarter = %d, want 1562", got)
	}
	if got := Mix(out, in, 0.25, Linear)[0]; got != 2500 {
		t.Errorf("linear quarter = %d, want 2500", got)
	}
}

func TestMixSaturates(t *testing.T) {
	mixed := Mix([]int16{32767, -32768}, []int16{32767, -32768}, 0.5, nil)
	if mixed[0] != 32767 || mixed[1] != -32768 {
		t.Errorf("full scale mix = %v, want [32767 -32768]", mixed)
	}
	boosted := Mix([]int16{0, 0}, []int16{30000, -30000}, 0.5, func(float64) float64 { return 1.5 })
	if boosted[0] != 32767 || boosted[1] != -32768 {
		t.Errorf("over-unity gain = %v, want [32767 -32768]", boosted)
	}
}

func TestPCMEncoding(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256}
	buf := AppendPCM(nil, samples)
	if len(buf) != len(samples)*2 {
		t.Fatalf("AppendPCM length = %d, want %d", len(buf), len(samples)*2)
	}
	// 256 = 0x0100, little endian
	if buf[10] != 0x00 || buf[11] != 0x01 {
		t.Errorf("256 encoded as [%02x %02x], want [00 01]", buf[10], buf[11])
	}

	back := ParsePCM(append(buf, 0x7f))
	if len(back) != len(samples) {
		t.Fatalf("ParsePCM kept %d samples, want %d", len(back), len(samples))
	}
	for i, v := range samples {
		if back[i] != v {
			t.Errorf("sample[%d] = %d, want %d", i, back[i], v)
		}
	}

	prefix := []byte{0xaa}
	if got := AppendPCM(prefix, []int16{-2}); len(got) != 3 || got[0] != 0xaa || got[1] != 0xfe || got[2] != 0xff {
		t.Errorf("AppendPCM onto prefix = %x", got)
	}
}

func TestDecodeFileMissingInput(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	_, err := DecodeFile(context.Background(), "/nonexistent/track.flac")
	if err == nil {
		t.Fatal("expected decode error")
	}
	if errors.Is(err, ErrNoDecoder) {
		t.Errorf("err = %v, should not be ErrNoDecoder", err)
	}
}

// --- Player ---

// constTrack decodes every path to frames of one repeated sample value.
func constTrack(frames int, values map[string]int16) func(context.Context, string) ([]int16, error) {
	return func(_ context.Context, path string) ([]int16, error) {
		v, ok := values[path]
		if !ok {
			return nil, errors.Newf("no such file %s", path)
		}
		samples := make([]int16, frames*FrameSamples)
		for i := range samples {
			samples[i] = v
		}
		return samples, nil
	}
}

type negate struct {
	mu    sync.Mutex
	calls int
}

func (n *negate) Process(frame []int16) []int16 {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
	out := make([]int16, len(frame))
	for i, s := range frame {
		out[i] = -s
	}
	return out
}

type sessionLog struct {
	mu     sync.Mutex
	opened []int
	closed []int
}

func (s *sessionLog) OpenSession(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = append(s.opened, id)
}

func (s *sessionLog) CloseSession(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, id)
}

func readFrames(t *testing.T, ch <-chan []int16, n int) [][]int16 {
	t.Helper()
	var frames [][]int16
	for len(frames) < n {
		select {
		case f, ok := <-ch:
			if !ok {
				t.Fatalf("frames closed after %d, want %d", len(frames), n)
			}
			frames = append(frames, f)
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout after %d frames", len(frames))
		}
	}
	return frames
}

func waitClosed(t *testing.T, ch <-chan []int16) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("frames channel not closed")
		}
	}
}

func TestPlayerLoopsAndProcesses(t *testing.T) {
	proc := &negate{}
	sessions := &sessionLog{}
	var mu sync.Mutex
	var titles []string

	p := NewPlayer(PlayerConfig{
		Paths:     []string{"/music/a.flac", "/music/b.mp3"},
		Session:   7,
		Processor: proc,
		Sessions:  sessions,
		Decode:    constTrack(3, map[string]int16{"/music/a.flac": 1000, "/music/b.mp3": 2000}),
		OnTrack: func(tr Track) {
			mu.Lock()
			titles = append(titles, tr.Title)
			mu.Unlock()
		},
		Logger: zerolog.Nop(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	frames := readFrames(t, p.Frames(), 9)
	for i, f := range frames {
		if len(f) != FrameSamples {
			t.Fatalf("frame %d has %d samples", i, len(f))
		}
	}
	// a, b, a again: every frame went through the processor
	want := []int16{-1000, -1000, -1000, -2000, -2000, -2000, -1000, -1000, -1000}
	for i, f := range frames {
		if f[0] != want[i] {
			t.Errorf("frame %d sample = %d, want %d", i, f[0], want[i])
		}
	}

	cancel()
	waitClosed(t, p.Frames())

	mu.Lock()
	if len(titles) < 3 || titles[0] != "a" || titles[1] != "b" || titles[2] != "a" {
		t.Errorf("track titles = %v, want a, b, a", titles)
	}
	mu.Unlock()

	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	if len(sessions.opened) != 1 || sessions.opened[0] != 7 {
		t.Errorf("opened sessions = %v, want [7]", sessions.opened)
	}
	if len(sessions.closed) != 1 || sessions.closed[0] != 7 {
		t.Errorf("closed sessions = %v, want [7]", sessions.closed)
	}
}

func TestPlayerCrossfades(t *testing.T) {
	p := NewPlayer(PlayerConfig{
		Paths:     []string{"a", "b"},
		Crossfade: 2 * FrameDuration,
		Decode:    constTrack(6, map[string]int16{"a": 1000, "b": 2000}),
		Logger:    zerolog.Nop(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	frames := readFrames(t, p.Frames(), 6)
	// frames 4 and 5 blend a into b at progress 0 and 0.5
	if frames[4][0] != 1000 {
		t.Errorf("crossfade start = %d, want 1000", frames[4][0])
	}
	if frames[5][0] != 1500 {
		t.Errorf("crossfade midpoint = %d, want 1500", frames[5][0])
	}
}

func TestPlayerSkipsUndecodableTracks(t *testing.T) {
	p := NewPlayer(PlayerConfig{
		Paths:  []string{"missing", "b"},
		Decode: constTrack(2, map[string]int16{"b": 42}),
		Logger: zerolog.Nop(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	for i, f := range readFrames(t, p.Frames(), 4) {
		if f[0] != 42 {
			t.Errorf("frame %d sample = %d, want 42", i, f[0])
		}
	}
}

func TestPlayerStopsWithoutPlayableTracks(t *testing.T) {
	p := NewPlayer(PlayerConfig{
		Paths:  []string{"x", "y"},
		Decode: constTrack(2, nil),
		Logger: zerolog.Nop(),
	})
	go p.Run(context.Background())
	waitClosed(t, p.Frames())
}

func TestPlayerNoPaths(t *testing.T) {
	sessions := &sessionLog{}
	p := NewPlayer(PlayerConfig{Sessions: sessions, Logger: zerolog.Nop()})
	go p.Run(context.Background())
	waitClosed(t, p.Frames())
	if len(sessions.opened) != 0 {
		t.Errorf("session opened without tracks: %v", sessions.opened)
	}
}

func TestTrackTitle(t *testing.T) {
	tests := map[string]string{
		"/music/Blue in Green.flac": "Blue in Green",
		"song.mp3":                  "song",
		"/tmp/noext":                "noext",
	}
	for path, want := range tests {
		if got := TrackTitle(path); got != want {
			t.Errorf("TrackTitle(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestPlayerStatusAndSkip(t *testing.T) {
	p := NewPlayer(PlayerConfig{Crossfade: 3 * time.Second})
	track, pos, dur := p.Status()
	if track.Path != "" || pos != 0 || dur != 0 {
		t.Errorf("Initial status should be zero-valued, got track=%v pos=%v dur=%v", track, pos, dur)
	}
	if p.CrossfadeDuration() != 3*time.Second {
		t.Errorf("CrossfadeDuration = %v, want 3s", p.CrossfadeDuration())
	}
	// Skip on empty channel should not block
	p.Skip()
	p.Skip()
}

func TestFadeNamed(t *testing.T) {
	for _, name := range []string{"linear", " Linear ", "SMOOTHSTEP"} {
		if _, ok := FadeNamed(name); !ok {
			t.Errorf("FadeNamed(%q) not found", name)
		}
	}
	if _, ok := FadeNamed("cosine"); ok {
		t.Error("FadeNamed(cosine) found")
	}
	f, _ := FadeNamed("linear")
	if got := f(0.25); got != 0.25 {
		t.Errorf("linear(0.25) = %v", got)
	}
	if got := FadeNames(); len(got) != 2 || got[0] != "linear" || got[1] != "smoothstep" {
		t.Errorf("FadeNames() = %v", got)
	}
}
