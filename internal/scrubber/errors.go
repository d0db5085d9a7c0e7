package scrubber

import (
	"errors"
	"fmt"

	"github.com/kbuilds/scrobble-scrubber/internal/lastfm"
	"github.com/kbuilds/scrobble-scrubber/internal/state"
)

// ErrAuthExpired wraps a fatal session expiry; the process should exit and
// ask the operator to re-authenticate.
var ErrAuthExpired = errors.New("scrubber: authentication expired, re-login required")

// ErrStateCorruption wraps a fatal, unreadable state file.
var ErrStateCorruption = errors.New("scrubber: state file is corrupt")

// ErrNotFound surfaces state.ErrNotFound to callers outside the state
// package without requiring them to import it directly.
var ErrNotFound = state.ErrNotFound

// isFatal reports whether err should terminate the scheduler rather than be
// logged and absorbed into the current cycle. Only AuthExpired and
// StateCorruption are fatal; everything else is a per-chunk or per-track
// skip.
func isFatal(err error) bool {
	var authErr *lastfm.AuthExpiredError
	var corrupt *state.ErrCorrupt
	return errors.As(err, &authErr) || errors.As(err, &corrupt)
}

// classify maps a lower-layer error onto the abstract kinds documented for
// the scheduler, so a fatal caller (cmd/scrobble-scrubber) can match on a
// package-level sentinel instead of reaching into internal/lastfm or
// internal/state.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var authErr *lastfm.AuthExpiredError
	if errors.As(err, &authErr) {
		return fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}
	var corrupt *state.ErrCorrupt
	if errors.As(err, &corrupt) {
		return fmt.Errorf("%w: %v", ErrStateCorruption, err)
	}
	return err
}
