package parser

import "errors"

// Sentinel errors for the fatal parse outcomes. Everything below this level
// (a malformed line, an unmatched tool result, a bad part file) is skipped
// silently so one corrupt record never loses a whole session.
var (
	// ErrUnknownFormat means no parser recognizes the path.
	ErrUnknownFormat = errors.New("unknown session format")
	// ErrEmptySession means a stream held no usable session records.
	ErrEmptySession = errors.New("no session records found")
	// ErrNoSessionData means a fragmented storage layout held no session.
	ErrNoSessionData = errors.New("no session data found")
)
