package facade

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/eqd/internal/bridge"
	"github.com/satindergrewal/eqd/internal/effect"
	"github.com/satindergrewal/eqd/internal/effect/softeq"
	"github.com/satindergrewal/eqd/internal/eqservice"
)

func TestSupported(t *testing.T) {
	tests := []struct {
		platform string
		want     bool
	}{
		{"software", true},
		{" Software ", true},
		{"", false},
		{"android", false},
		{"web", false},
	}
	for _, tt := range tests {
		if got := Supported(tt.platform); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.platform, got, tt.want)
		}
	}
}

func TestUnsupportedDefaults(t *testing.T) {
	var buf bytes.Buffer
	called := false
	eq := New(false, func() Equalizer { called = true; return nil }, zerolog.New(&buf))
	ctx := context.Background()

	if called {
		t.Error("connect called on unsupported platform")
	}

	if ok, err := eq.Initialize(ctx, 0); ok || err != nil {
		t.Errorf("Initialize = %v, %v; want false, nil", ok, err)
	}
	if on, err := eq.IsEnabled(ctx); on || err != nil {
		t.Errorf("IsEnabled = %v, %v; want false, nil", on, err)
	}
	if n, err := eq.BandCount(ctx); n != 0 || err != nil {
		t.Errorf("BandCount = %d, %v; want 0, nil", n, err)
	}
	if rng, err := eq.BandFreqRange(ctx, 0); rng != (effect.FreqRange{}) || err != nil {
		t.Errorf("BandFreqRange = %+v, %v; want [0,0], nil", rng, err)
	}
	if name, err := eq.PresetName(ctx, 0); name != "" || err != nil {
		t.Errorf("PresetName = %q, %v; want empty, nil", name, err)
	}
	if p, err := eq.CurrentPreset(ctx); p != -1 || err != nil {
		t.Errorf("CurrentPreset = %d, %v; want -1, nil", p, err)
	}
	if presets, err := eq.AllPresets(ctx); presets == nil || len(presets) != 0 || err != nil {
		t.Errorf("AllPresets = %v, %v; want [], nil", presets, err)
	}
	if bands, err := eq.AllBandLevels(ctx); bands == nil || len(bands) != 0 || err != nil {
		t.Errorf("AllBandLevels = %v, %v; want [], nil", bands, err)
	}
	if ok, err := eq.SetBandLevel(ctx, 0, 100); ok || err != nil {
		t.Errorf("SetBandLevel = %v, %v; want false, nil", ok, err)
	}

	if !strings.Contains(buf.String(), `"op":"current_preset"`) {
		t.Errorf("no diagnostic notice logged for current_preset: %s", buf.String())
	}
}

func TestSupportedForwardsToBridge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := eqservice.New(softeq.NewHost(zerolog.Nop()), eqservice.Config{}, zerolog.Nop())
	eq := New(true, func() Equalizer {
		return bridge.New(eqservice.NewLocalBinder(ctx, svc), bridge.Options{Grace: 2 * time.Second, Logger: zerolog.Nop()})
	}, zerolog.Nop())

	presets, err := eq.AllPresets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(presets) != 10 {
		t.Errorf("got %d presets, want 10", len(presets))
	}
	if ok, err := eq.UsePreset(ctx, 3); !ok || err != nil {
		t.Fatalf("UsePreset(3) = %v, %v", ok, err)
	}
	if p, _ := eq.CurrentPreset(ctx); p != 3 {
		t.Errorf("CurrentPreset = %d, want 3", p)
	}
	if IsUnsupported(eq) {
		t.Error("bridge-backed equalizer reported as unsupported")
	}
}

func TestIsUnsupported(t *testing.T) {
	if !IsUnsupported(New(false, nil, zerolog.Nop())) {
		t.Error("stand-in not reported as unsupported")
	}
}
