package softeq

import (
	"sync"

	"github.com/cockroachdb/errors"
)

const numBands = 5

const (
	minLevel = -1500 // millibel
	maxLevel = 1500
)

// Band centers and edges in milliHertz.
var (
	centerFreqs = [numBands]int{60000, 230000, 910000, 3600000, 14000000}
	bandRanges  = [numBands][2]int{
		{30000, 120000},
		{120001, 460000},
		{460001, 1800000},
		{1800001, 7000000},
		{7000001, 20000000},
	}
)

type factoryPreset struct {
	name   string
	levels [numBands]int
}

var presets = []factoryPreset{
	{"Normal", [numBands]int{300, 0, 0, 0, 300}},
	{"Classical", [numBands]int{500, 300, -200, 400, 400}},
	{"Dance", [numBands]int{600, 0, 200, 400, 100}},
	{"Flat", [numBands]int{0, 0, 0, 0, 0}},
	{"Folk", [numBands]int{300, 0, 0, 200, -100}},
	{"Heavy Metal", [numBands]int{400, 100, 900, 300, 0}},
	{"Hip Hop", [numBands]int{500, 300, 0, 100, 300}},
	{"Jazz", [numBands]int{400, 200, -200, 200, 500}},
	{"Pop", [numBands]int{-100, 200, 500, 100, -200}},
	{"Rock", [numBands]int{500, 300, -100, 300, 500}},
}

// Equalizer is one equalizer instance attached to an audio session.
// It implements effect.Handle.
type Equalizer struct {
	host      *Host
	sessionID int

	mu       sync.Mutex
	enabled  bool
	released bool
	levels   [numBands]int
}

func (e *Equalizer) SetEnabled(enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return ErrReleased
	}
	e.enabled = enabled
	return nil
}

func (e *Equalizer) Enabled() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return false, ErrReleased
	}
	return e.enabled, nil
}

func (e *Equalizer) NumberOfBands() (int, error) {
	if e.isReleased() {
		return 0, ErrReleased
	}
	return numBands, nil
}

func (e *Equalizer) BandFreqRange(band int) (low, high int, err error) {
	if err := e.checkBand(band); err != nil {
		return 0, 0, err
	}
	return bandRanges[band][0], bandRanges[band][1], nil
}

func (e *Equalizer) CenterFreq(band int) (int, error) {
	if err := e.checkBand(band); err != nil {
		return 0, err
	}
	return centerFreqs[band], nil
}

func (e *Equalizer) BandLevel(band int) (int, error) {
	if err := e.checkBand(band); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.levels[band], nil
}

func (e *Equalizer) SetBandLevel(band, level int) error {
	if err := e.checkBand(band); err != nil {
		return err
	}
	if level < minLevel || level > maxLevel {
		return errors.Newf("level %d outside [%d, %d]", level, minLevel, maxLevel)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.levels[band] = level
	return nil
}

func (e *Equalizer) BandLevelRange() (min, max int, err error) {
	if e.isReleased() {
		return 0, 0, ErrReleased
	}
	return minLevel, maxLevel, nil
}

func (e *Equalizer) NumberOfPresets() (int, error) {
	if e.isReleased() {
		return 0, ErrReleased
	}
	return len(presets), nil
}

func (e *Equalizer) PresetName(preset int) (string, error) {
	if err := e.checkPreset(preset); err != nil {
		return "", err
	}
	return presets[preset].name, nil
}

func (e *Equalizer) UsePreset(preset int) error {
	if err := e.checkPreset(preset); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.levels = presets[preset].levels
	return nil
}

// Release detaches the equalizer from its session. Further calls fail.
func (e *Equalizer) Release() {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return
	}
	e.released = true
	e.mu.Unlock()
	e.host.detach(e)
}

// snapshot returns the levels when the equalizer is live and enabled.
func (e *Equalizer) snapshot() ([numBands]int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.levels, e.enabled && !e.released
}

func (e *Equalizer) isReleased() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.released
}

func (e *Equalizer) checkBand(band int) error {
	if e.isReleased() {
		return ErrReleased
	}
	if band < 0 || band >= numBands {
		return errors.Wrapf(ErrBadBand, "band %d", band)
	}
	return nil
}

func (e *Equalizer) checkPreset(preset int) error {
	if e.isReleased() {
		return ErrReleased
	}
	if preset < 0 || preset >= len(presets) {
		return errors.Wrapf(ErrBadPreset, "preset %d", preset)
	}
	return nil
}
