package effect

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/satindergrewal/eqd/internal/eqerr"
)

var (
	ErrNoHandle      = errors.Mark(errors.New("equalizer not created"), eqerr.ErrOperationFailed)
	ErrInvalidBand   = errors.Mark(errors.New("invalid band id"), eqerr.ErrOperationFailed)
	ErrInvalidPreset = errors.Mark(errors.New("invalid preset id"), eqerr.ErrOperationFailed)
)

// Binding wraps at most one Handle. It is not safe for concurrent use; the
// owner serializes access.
type Binding struct {
	host      Host
	handle    Handle
	sessionID int
	preset    int
}

// NewBinding returns an empty binding on host.
func NewBinding(host Host) *Binding {
	return &Binding{host: host, preset: NoPreset}
}

// Create releases the current handle and attaches a new equalizer to
// sessionID. It is the only operation whose failure the caller must act on.
func (b *Binding) Create(sessionID int) error {
	b.Release()
	h, err := b.host.NewEqualizer(sessionID)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "create equalizer on session %d", sessionID), eqerr.ErrEffectCreationFailed)
	}
	if h == nil {
		return errors.Mark(errors.Newf("host returned no equalizer for session %d", sessionID), eqerr.ErrEffectCreationFailed)
	}
	b.handle = h
	b.sessionID = sessionID
	return nil
}

// Release drops the handle. Safe to call repeatedly.
func (b *Binding) Release() {
	if b.handle == nil {
		return
	}
	b.handle.Release()
	b.handle = nil
	b.preset = NoPreset
}

// Created reports whether a handle is bound.
func (b *Binding) Created() bool {
	return b.handle != nil
}

// SessionID returns the audio session of the bound handle.
func (b *Binding) SessionID() int {
	return b.sessionID
}

func (b *Binding) SetEnabled(enabled bool) error {
	if b.handle == nil {
		return ErrNoHandle
	}
	return opErr(b.handle.SetEnabled(enabled), "set enabled")
}

// IsEnabled is false when nothing is bound or the host fails.
func (b *Binding) IsEnabled() bool {
	if b.handle == nil {
		return false
	}
	on, err := b.handle.Enabled()
	return err == nil && on
}

// BandCount is 0 when nothing is bound.
func (b *Binding) BandCount() (int, error) {
	if b.handle == nil {
		return 0, nil
	}
	n, err := b.handle.NumberOfBands()
	if err != nil {
		return 0, opErr(err, "number of bands")
	}
	return n, nil
}

// BandFreqRange returns the band span in Hz.
func (b *Binding) BandFreqRange(band int) (FreqRange, error) {
	if err := b.checkBand(band); err != nil {
		return FreqRange{}, err
	}
	low, high, err := b.handle.BandFreqRange(band)
	if err != nil {
		return FreqRange{}, opErr(err, "band frequency range")
	}
	return FreqRange{Low: milliHzToHz(low), High: milliHzToHz(high)}, nil
}

// CenterFreq returns the band center in Hz.
func (b *Binding) CenterFreq(band int) (int, error) {
	if err := b.checkBand(band); err != nil {
		return 0, err
	}
	f, err := b.handle.CenterFreq(band)
	if err != nil {
		return 0, opErr(err, "center frequency")
	}
	return milliHzToHz(f), nil
}

func (b *Binding) BandLevel(band int) (int, error) {
	if err := b.checkBand(band); err != nil {
		return 0, err
	}
	level, err := b.handle.BandLevel(band)
	if err != nil {
		return 0, opErr(err, "band level")
	}
	return level, nil
}

// SetBandLevel clamps level into the level range before applying it. Any
// manual edit deactivates the current preset.
func (b *Binding) SetBandLevel(band, level int) error {
	if err := b.checkBand(band); err != nil {
		return err
	}
	rng, err := b.BandLevelRange()
	if err != nil {
		return err
	}
	b.preset = NoPreset
	return opErr(b.handle.SetBandLevel(band, lo.Clamp(level, rng.Min, rng.Max)), "set band level")
}

func (b *Binding) BandLevelRange() (LevelRange, error) {
	if b.handle == nil {
		return LevelRange{}, ErrNoHandle
	}
	minLevel, maxLevel, err := b.handle.BandLevelRange()
	if err != nil {
		return LevelRange{}, opErr(err, "band level range")
	}
	return LevelRange{Min: minLevel, Max: maxLevel}, nil
}

// PresetCount is 0 when nothing is bound.
func (b *Binding) PresetCount() (int, error) {
	if b.handle == nil {
		return 0, nil
	}
	n, err := b.handle.NumberOfPresets()
	if err != nil {
		return 0, opErr(err, "number of presets")
	}
	return n, nil
}

func (b *Binding) PresetName(preset int) (string, error) {
	if err := b.checkPreset(preset); err != nil {
		return "", err
	}
	name, err := b.handle.PresetName(preset)
	if err != nil {
		return "", opErr(err, "preset name")
	}
	return name, nil
}

// UsePreset overwrites every band level with the preset's levels.
func (b *Binding) UsePreset(preset int) error {
	if err := b.checkPreset(preset); err != nil {
		return err
	}
	if err := b.handle.UsePreset(preset); err != nil {
		b.preset = NoPreset
		return opErr(err, "use preset")
	}
	b.preset = preset
	return nil
}

// CurrentPreset returns NoPreset when nothing is bound, no preset was
// selected, or a band was edited after the last selection.
func (b *Binding) CurrentPreset() int {
	if b.handle == nil {
		return NoPreset
	}
	return b.preset
}

func (b *Binding) checkBand(band int) error {
	if b.handle == nil {
		return ErrNoHandle
	}
	n, err := b.BandCount()
	if err != nil {
		return err
	}
	if band < 0 || band >= n {
		return errors.Wrapf(ErrInvalidBand, "band %d of %d", band, n)
	}
	return nil
}

func (b *Binding) checkPreset(preset int) error {
	if b.handle == nil {
		return ErrNoHandle
	}
	n, err := b.PresetCount()
	if err != nil {
		return err
	}
	if preset < 0 || preset >= n {
		return errors.Wrapf(ErrInvalidPreset, "preset %d of %d", preset, n)
	}
	return nil
}

func opErr(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, op), eqerr.ErrOperationFailed)
}
