package bridge

import (
	"context"

	"github.com/satindergrewal/eqd/internal/effect"
)

// Conn is the call surface of a bound equalizer service. Values crossing it
// are primitives and plain records only.
type Conn interface {
	Initialize(ctx context.Context, sessionID int) (bool, error)
	SetEnabled(ctx context.Context, enabled bool) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)

	BandCount(ctx context.Context) (int, error)
	BandFreqRange(ctx context.Context, band int) (effect.FreqRange, error)
	CenterFreq(ctx context.Context, band int) (int, error)
	BandLevel(ctx context.Context, band int) (int, error)
	SetBandLevel(ctx context.Context, band, level int) (bool, error)
	BandLevelRange(ctx context.Context) (effect.LevelRange, error)

	PresetCount(ctx context.Context) (int, error)
	PresetName(ctx context.Context, preset int) (string, error)
	UsePreset(ctx context.Context, preset int) (bool, error)
	CurrentPreset(ctx context.Context) (int, error)

	Release(ctx context.Context) (bool, error)
}

// EventKind is the type of a binder notification.
type EventKind int

const (
	Connected EventKind = iota
	Disconnected
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	}
	return "unknown"
}

// Event is delivered by a Binder. For Connected, Conn is the new connection.
// For Disconnected, Conn is the connection that was lost, or nil when a bind
// attempt failed.
type Event struct {
	Kind EventKind
	Conn Conn
}

// Binder starts the service if needed and binds to it.
type Binder interface {
	// Bind must return immediately. The outcome, and any later loss of the
	// connection, is reported through notify, possibly from another goroutine.
	Bind(notify func(Event))
}
