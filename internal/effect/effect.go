// Package effect binds exactly one host equalizer instance and exposes its
// band and preset parameters.
//
// Host implementations report frequencies in milliHertz, the unit used by the
// platform effect frameworks. Binding converts them to Hz once; everything
// above this package works in Hz. Levels are millibel everywhere.
package effect

// DefaultSession is the audio session id of the global output mix.
const DefaultSession = 0

// NoPreset is reported by CurrentPreset when no preset is active.
const NoPreset = -1

// Host is the platform audio effect framework.
type Host interface {
	// NewEqualizer attaches a new equalizer to the audio session.
	NewEqualizer(sessionID int) (Handle, error)
}

// Handle is one live equalizer instance created by a Host.
// Frequencies are milliHertz, levels millibel.
type Handle interface {
	SetEnabled(enabled bool) error
	Enabled() (bool, error)

	NumberOfBands() (int, error)
	BandFreqRange(band int) (low, high int, err error)
	CenterFreq(band int) (int, error)
	BandLevel(band int) (int, error)
	SetBandLevel(band, level int) error
	BandLevelRange() (min, max int, err error)

	NumberOfPresets() (int, error)
	PresetName(preset int) (string, error)
	UsePreset(preset int) error

	Release()
}

// FreqRange is the frequency span of one band in Hz.
type FreqRange struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// LevelRange is the allowed band level span in millibel.
type LevelRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Preset is a factory band configuration.
type Preset struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// BandLevel is the live state of one band.
type BandLevel struct {
	ID         int `json:"id"`
	Level      int `json:"level"`       // millibel
	CenterFreq int `json:"center_freq"` // Hz
}

func milliHzToHz(v int) int {
	return v / 1000
}
