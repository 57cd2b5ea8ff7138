package domain

import "errors"

// ErrSessionNotFound is returned when a session id cannot be found in the
// store or registry.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionClosed is returned when an operation targets a session whose
// record has been invalidated by its owner.
var ErrSessionClosed = errors.New("session closed")

// ErrStaleApply is returned when results computed outside a transaction are
// applied against a record whose position has since changed. The mutation is
// rejected; the caller must recompute.
var ErrStaleApply = errors.New("stale apply: record advanced since results were computed")

// ErrLevelNotFound is returned when a session names a level the registry
// does not carry.
var ErrLevelNotFound = errors.New("level not found")

// ErrNoPendingOptions is returned when an option is selected but the record
// holds no pending option set.
var ErrNoPendingOptions = errors.New("no pending options")

// ErrOptionOutOfRange is returned when a selected option index does not
// resolve against the pending option set.
var ErrOptionOutOfRange = errors.New("option index out of range")
