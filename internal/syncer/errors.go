package syncer

import (
	"errors"
)

var (
	// ErrLockHeld is returned when another run is already active for the feed.
	ErrLockHeld = errors.New("sync already running for feed")

	// ErrFeedUnknown is returned for feed keys with no configuration.
	ErrFeedUnknown = errors.New("unknown feed")
)

// maxStoredErrorLen bounds the message persisted into sync_state.
const maxStoredErrorLen = 200

// storedError prepares a run-level error for persistence: truncated, and
// outside development replaced by a generic message so internals do not leak.
func storedError(err error, env string) string {
	if err == nil {
		return ""
	}
	if env != "development" {
		return "sync failed: internal error"
	}
	msg := err.Error()
	if len(msg) > maxStoredErrorLen {
		msg = msg[:maxStoredErrorLen]
	}
	return msg
}
