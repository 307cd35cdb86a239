// Package facade is the single entry point for control surfaces. It is
// resolved once at startup to either the bridge-backed equalizer or a stand-in
// for platforms without equalizer support.
package facade

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/eqd/internal/bridge"
	"github.com/satindergrewal/eqd/internal/effect"
)

// PlatformSoftware is the only platform with an effect framework.
const PlatformSoftware = "software"

// Equalizer is the full control surface API.
type Equalizer interface {
	bridge.Conn
	AllPresets(ctx context.Context) ([]effect.Preset, error)
	AllBandLevels(ctx context.Context) ([]effect.BandLevel, error)
}

var _ Equalizer = (*bridge.Bridge)(nil)

// Supported reports whether platform provides a native equalizer.
func Supported(platform string) bool {
	return strings.EqualFold(strings.TrimSpace(platform), PlatformSoftware)
}

// New returns connect() when supported, otherwise an Equalizer whose every
// call succeeds with a neutral default. connect is not called on unsupported
// platforms.
func New(supported bool, connect func() Equalizer, log zerolog.Logger) Equalizer {
	if supported {
		return connect()
	}
	log = log.With().Str("component", "facade").Logger()
	log.Warn().Msg("equalizer not supported on this platform")
	return unsupported{log: log}
}

// IsUnsupported reports whether eq is the stand-in for platforms without an
// equalizer.
func IsUnsupported(eq Equalizer) bool {
	_, ok := eq.(unsupported)
	return ok
}

type unsupported struct {
	log zerolog.Logger
}

var _ Equalizer = unsupported{}

func (u unsupported) notice(op string) {
	u.log.Warn().Str("op", op).Msg("equalizer not supported, returning default")
}

func (u unsupported) Initialize(context.Context, int) (bool, error) {
	u.notice("initialize")
	return false, nil
}

func (u unsupported) SetEnabled(context.Context, bool) (bool, error) {
	u.notice("set_enabled")
	return false, nil
}

func (u unsupported) IsEnabled(context.Context) (bool, error) {
	u.notice("is_enabled")
	return false, nil
}

func (u unsupported) BandCount(context.Context) (int, error) {
	u.notice("band_count")
	return 0, nil
}

func (u unsupported) BandFreqRange(context.Context, int) (effect.FreqRange, error) {
	u.notice("band_freq_range")
	return effect.FreqRange{}, nil
}

func (u unsupported) CenterFreq(context.Context, int) (int, error) {
	u.notice("center_freq")
	return 0, nil
}

func (u unsupported) BandLevel(context.Context, int) (int, error) {
	u.notice("band_level")
	return 0, nil
}

func (u unsupported) SetBandLevel(context.Context, int, int) (bool, error) {
	u.notice("set_band_level")
	return false, nil
}

func (u unsupported) BandLevelRange(context.Context) (effect.LevelRange, error) {
	u.notice("band_level_range")
	return effect.LevelRange{}, nil
}

func (u unsupported) PresetCount(context.Context) (int, error) {
	u.notice("preset_count")
	return 0, nil
}

func (u unsupported) PresetName(context.Context, int) (string, error) {
	u.notice("preset_name")
	return "", nil
}

func (u unsupported) UsePreset(context.Context, int) (bool, error) {
	u.notice("use_preset")
	return false, nil
}

func (u unsupported) CurrentPreset(context.Context) (int, error) {
	u.notice("current_preset")
	return effect.NoPreset, nil
}

func (u unsupported) Release(context.Context) (bool, error) {
	u.notice("release")
	return false, nil
}

func (u unsupported) AllPresets(context.Context) ([]effect.Preset, error) {
	u.notice("all_presets")
	return []effect.Preset{}, nil
}

func (u unsupported) AllBandLevels(context.Context) ([]effect.BandLevel, error) {
	u.notice("all_band_levels")
	return []effect.BandLevel{}, nil
}
