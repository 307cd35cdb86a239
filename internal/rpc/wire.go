// Package rpc carries equalizer control calls between control surfaces and
// the background service over local HTTP. Only primitives and plain records
// cross the wire.
package rpc

import (
	"encoding/json"
)

// HeaderSurface identifies the calling control surface.
const HeaderSurface = "X-Control-Surface"

// Method names, as used in POST /rpc/{method}.
const (
	MethodInitialize     = "initialize"
	MethodSetEnabled     = "set_enabled"
	MethodIsEnabled      = "is_enabled"
	MethodBandCount      = "band_count"
	MethodBandFreqRange  = "band_freq_range"
	MethodCenterFreq     = "center_freq"
	MethodBandLevel      = "band_level"
	MethodSetBandLevel   = "set_band_level"
	MethodBandLevelRange = "band_level_range"
	MethodPresetCount    = "preset_count"
	MethodPresetName     = "preset_name"
	MethodUsePreset      = "use_preset"
	MethodCurrentPreset  = "current_preset"
	MethodRelease        = "release"
)

// args is the request body. Each method reads only the fields it needs.
type args struct {
	SessionID int  `json:"session_id,omitempty"`
	Enabled   bool `json:"enabled,omitempty"`
	Band      int  `json:"band,omitempty"`
	Level     int  `json:"level,omitempty"`
	Preset    int  `json:"preset,omitempty"`
}

type wireError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type reply struct {
	Value json.RawMessage `json:"value,omitempty"`
	Error *wireError      `json:"error,omitempty"`
}

// health is the body of GET /healthz.
type health struct {
	State string `json:"state"`
}
