package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/eqd/internal/effect"
	"github.com/satindergrewal/eqd/internal/eqerr"
)

// manualBinder records bind requests and lets the test deliver events.
type manualBinder struct {
	mu     sync.Mutex
	binds  int
	notify func(Event)
	auto   Conn // when set, every Bind connects immediately
}

func (m *manualBinder) Bind(notify func(Event)) {
	m.mu.Lock()
	m.binds++
	m.notify = notify
	auto := m.auto
	m.mu.Unlock()
	if auto != nil {
		go notify(Event{Kind: Connected, Conn: auto})
	}
}

func (m *manualBinder) send(ev Event) {
	m.mu.Lock()
	notify := m.notify
	m.mu.Unlock()
	notify(ev)
}

func (m *manualBinder) bindCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.binds
}

// fakeConn is a five band equalizer with three presets.
type fakeConn struct {
	mu      sync.Mutex
	enabled bool
	levels  []int
	failAt  int // PresetName fails for this id when >= 0
}

func newFakeConn() *fakeConn {
	return &fakeConn{enabled: true, levels: []int{100, 200, 300, 400, 500}, failAt: -1}
}

func (f *fakeConn) Initialize(context.Context, int) (bool, error) { return true, nil }
func (f *fakeConn) SetEnabled(_ context.Context, on bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = on
	return true, nil
}
func (f *fakeConn) IsEnabled(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled, nil
}
func (f *fakeConn) BandCount(context.Context) (int, error) { return len(f.levels), nil }
func (f *fakeConn) BandFreqRange(_ context.Context, band int) (effect.FreqRange, error) {
	return effect.FreqRange{Low: band * 100, High: band*100 + 99}, nil
}
func (f *fakeConn) CenterFreq(_ context.Context, band int) (int, error) { return (band + 1) * 1000, nil }
func (f *fakeConn) BandLevel(_ context.Context, band int) (int, error) {
	if band < 0 || band >= len(f.levels) {
		return 0, eqerr.ErrOperationFailed
	}
	return f.levels[band], nil
}
func (f *fakeConn) SetBandLevel(_ context.Context, band, level int) (bool, error) {
	f.levels[band] = level
	return true, nil
}
func (f *fakeConn) BandLevelRange(context.Context) (effect.LevelRange, error) {
	return effect.LevelRange{Min: -1500, Max: 1500}, nil
}
func (f *fakeConn) PresetCount(context.Context) (int, error) { return 3, nil }
func (f *fakeConn) PresetName(_ context.Context, preset int) (string, error) {
	if preset == f.failAt {
		return "", eqerr.ErrOperationFailed
	}
	return []string{"Normal", "Jazz", "Rock"}[preset], nil
}
func (f *fakeConn) UsePreset(context.Context, int) (bool, error) { return true, nil }
func (f *fakeConn) CurrentPreset(context.Context) (int, error)   { return 1, nil }
func (f *fakeConn) Release(context.Context) (bool, error)        { return true, nil }

func testOptions(grace time.Duration) Options {
	return Options{Grace: grace, Logger: zerolog.Nop()}
}

func TestNewBindsImmediately(t *testing.T) {
	binder := &manualBinder{}
	b := New(binder, testOptions(50*time.Millisecond))

	if binder.bindCount() != 1 {
		t.Errorf("binds after New = %d, want 1", binder.bindCount())
	}
	if b.State() != Binding {
		t.Errorf("State = %v, want binding", b.State())
	}
}

func TestNeverBindsIsServiceUnavailable(t *testing.T) {
	b := New(&manualBinder{}, testOptions(50*time.Millisecond))

	start := time.Now()
	on, err := b.IsEnabled(context.Background())
	if !errors.Is(err, eqerr.ErrServiceUnavailable) {
		t.Fatalf("IsEnabled error = %v, want ErrServiceUnavailable", err)
	}
	if on {
		t.Error("IsEnabled = true while unavailable")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("wait took %v, grace is 50ms", elapsed)
	}

	presets, err := b.AllPresets(context.Background())
	if !errors.Is(err, eqerr.ErrServiceUnavailable) {
		t.Errorf("AllPresets error = %v, want ErrServiceUnavailable", err)
	}
	if presets == nil || len(presets) != 0 {
		t.Errorf("AllPresets = %v, want empty list", presets)
	}
	bands, _ := b.AllBandLevels(context.Background())
	if bands == nil || len(bands) != 0 {
		t.Errorf("AllBandLevels = %v, want empty list", bands)
	}
}

func TestLateBindThenSucceeds(t *testing.T) {
	binder := &manualBinder{}
	b := New(binder, testOptions(30*time.Millisecond))

	if _, err := b.BandLevel(context.Background(), 2); !errors.Is(err, eqerr.ErrServiceUnavailable) {
		t.Fatalf("BandLevel before bind = %v, want ErrServiceUnavailable", err)
	}

	conn := newFakeConn()
	binder.send(Event{Kind: Connected, Conn: conn})

	level, err := b.BandLevel(context.Background(), 2)
	if err != nil {
		t.Fatalf("BandLevel after bind: %v", err)
	}
	if level != 300 {
		t.Errorf("BandLevel(2) = %d, want live value 300", level)
	}
	if b.State() != Bound {
		t.Errorf("State = %v, want bound", b.State())
	}
}

func TestBindDuringGracePeriod(t *testing.T) {
	binder := &manualBinder{}
	b := New(binder, testOptions(2*time.Second))

	go func() {
		time.Sleep(20 * time.Millisecond)
		binder.send(Event{Kind: Connected, Conn: newFakeConn()})
	}()

	on, err := b.IsEnabled(context.Background())
	if err != nil || !on {
		t.Errorf("IsEnabled = %v, %v; want true, nil", on, err)
	}
}

func TestDisconnectRebindsOnNextCall(t *testing.T) {
	conn := newFakeConn()
	binder := &manualBinder{auto: conn}
	b := New(binder, testOptions(time.Second))

	if _, err := b.IsEnabled(context.Background()); err != nil {
		t.Fatal(err)
	}
	binder.send(Event{Kind: Disconnected, Conn: conn})
	if b.State() != Unbound {
		t.Fatalf("State after disconnect = %v, want unbound", b.State())
	}

	if _, err := b.IsEnabled(context.Background()); err != nil {
		t.Fatalf("IsEnabled after rebind: %v", err)
	}
	if binder.bindCount() != 2 {
		t.Errorf("binds = %d, want 2", binder.bindCount())
	}
}

func TestStaleDisconnectIgnored(t *testing.T) {
	binder := &manualBinder{}
	b := New(binder, testOptions(time.Second))

	old, current := newFakeConn(), newFakeConn()
	binder.send(Event{Kind: Connected, Conn: old})
	binder.send(Event{Kind: Connected, Conn: current})
	binder.send(Event{Kind: Disconnected, Conn: old})

	if b.State() != Bound {
		t.Errorf("State = %v, want bound", b.State())
	}
}

func TestFailedBindReportsUnavailableEarly(t *testing.T) {
	binder := &manualBinder{}
	b := New(binder, testOptions(5*time.Second))
	binder.send(Event{Kind: Disconnected})

	go func() {
		for binder.bindCount() < 2 {
			time.Sleep(5 * time.Millisecond)
		}
		binder.send(Event{Kind: Disconnected})
	}()

	start := time.Now()
	_, err := b.PresetCount(context.Background())
	if !errors.Is(err, eqerr.ErrServiceUnavailable) {
		t.Fatalf("PresetCount = %v, want ErrServiceUnavailable", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("failed bind waited for the whole grace period")
	}
	if binder.bindCount() != 2 {
		t.Errorf("binds = %d, want exactly one retry", binder.bindCount())
	}
}

func TestContextCancelStopsWait(t *testing.T) {
	b := New(&manualBinder{}, testOptions(5*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := b.CurrentPreset(ctx); !errors.Is(err, eqerr.ErrServiceUnavailable) {
		t.Errorf("CurrentPreset = %v, want ErrServiceUnavailable", err)
	}
}

func TestAllBandLevelsOrdered(t *testing.T) {
	conn := newFakeConn()
	b := New(&manualBinder{auto: conn}, testOptions(time.Second))

	bands, err := b.AllBandLevels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(bands) != 5 {
		t.Fatalf("got %d bands, want 5", len(bands))
	}
	for i, band := range bands {
		want := effect.BandLevel{ID: i, Level: (i + 1) * 100, CenterFreq: (i + 1) * 1000}
		if band != want {
			t.Errorf("bands[%d] = %+v, want %+v", i, band, want)
		}
	}
}

func TestAllPresets(t *testing.T) {
	conn := newFakeConn()
	b := New(&manualBinder{auto: conn}, testOptions(time.Second))

	presets, err := b.AllPresets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []effect.Preset{{ID: 0, Name: "Normal"}, {ID: 1, Name: "Jazz"}, {ID: 2, Name: "Rock"}}
	if len(presets) != len(want) {
		t.Fatalf("got %d presets, want %d", len(presets), len(want))
	}
	for i := range want {
		if presets[i] != want[i] {
			t.Errorf("presets[%d] = %+v, want %+v", i, presets[i], want[i])
		}
	}

	conn.failAt = 2
	presets, err = b.AllPresets(context.Background())
	if !errors.Is(err, eqerr.ErrOperationFailed) {
		t.Errorf("AllPresets with failing name = %v, want ErrOperationFailed", err)
	}
	if len(presets) != 0 {
		t.Errorf("partial preset list returned: %v", presets)
	}
}

func TestForwardsVerbatim(t *testing.T) {
	conn := newFakeConn()
	b := New(&manualBinder{auto: conn}, testOptions(time.Second))
	ctx := context.Background()

	if ok, err := b.SetEnabled(ctx, false); !ok || err != nil {
		t.Fatalf("SetEnabled = %v, %v", ok, err)
	}
	if on, _ := b.IsEnabled(ctx); on {
		t.Error("IsEnabled = true after SetEnabled(false)")
	}
	if _, err := b.BandLevel(ctx, 9); !errors.Is(err, eqerr.ErrOperationFailed) {
		t.Errorf("BandLevel(9) = %v, want ErrOperationFailed passed through", err)
	}
	if p, _ := b.CurrentPreset(ctx); p != 1 {
		t.Errorf("CurrentPreset = %d, want 1", p)
	}
	if rng, _ := b.BandLevelRange(ctx); rng != (effect.LevelRange{Min: -1500, Max: 1500}) {
		t.Errorf("BandLevelRange = %+v", rng)
	}
}
