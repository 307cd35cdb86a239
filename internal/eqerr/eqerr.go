// Package eqerr holds the error kinds shared by the equalizer service, its
// RPC transport and the control bridge.
package eqerr

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrServiceUnavailable means the bridge could not reach the background
	// service within its grace period. The operation was not performed.
	ErrServiceUnavailable = errors.New("equalizer service unavailable")

	// ErrEffectCreationFailed means the host refused to create an equalizer,
	// including the retry on the default audio session.
	ErrEffectCreationFailed = errors.New("equalizer effect creation failed")

	// ErrOperationFailed means a created equalizer rejected one call
	// (bad band id, preset out of range, no handle). The handle stays usable.
	ErrOperationFailed = errors.New("equalizer operation failed")
)

// Wire names of the error kinds.
const (
	KindServiceUnavailable   = "service_unavailable"
	KindEffectCreationFailed = "effect_creation_failed"
	KindOperationFailed      = "operation_failed"
)

// Kind maps err onto its wire name. Errors outside the taxonomy are reported
// as operation failures so nothing unclassified crosses the service boundary.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrServiceUnavailable):
		return KindServiceUnavailable
	case errors.Is(err, ErrEffectCreationFailed):
		return KindEffectCreationFailed
	default:
		return KindOperationFailed
	}
}

// FromKind rebuilds an error received over the wire, keeping the remote
// message and marking it with the matching sentinel.
func FromKind(kind, msg string) error {
	var base error
	switch kind {
	case "":
		return nil
	case KindServiceUnavailable:
		base = ErrServiceUnavailable
	case KindEffectCreationFailed:
		base = ErrEffectCreationFailed
	default:
		base = ErrOperationFailed
	}
	if msg == "" || msg == base.Error() {
		return base
	}
	return errors.Mark(errors.New(msg), base)
}

// Normalize guarantees err carries one of the taxonomy kinds.
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrEffectCreationFailed) ||
		errors.Is(err, ErrOperationFailed) {
		return err
	}
	return errors.Mark(err, ErrOperationFailed)
}
