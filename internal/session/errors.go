package session

import (
	"github.com/rotisserie/eris"
)

var (
	// ErrNotReady is returned by queries issued before the collection loaded.
	ErrNotReady = eris.New("session: collection not loaded")
	// ErrAlreadyLoaded is returned when Load is called more than once.
	ErrAlreadyLoaded = eris.New("session: load already started")
	// ErrLoadFailure marks a terminal load failure. Match with errors.Is.
	ErrLoadFailure = eris.New("session: load failed")
	// ErrUnknownPlace is returned for place ids not in the collection.
	ErrUnknownPlace = eris.New("session: unknown place")
	// ErrNoSelection is returned by Demographics when no place is selected.
	ErrNoSelection = eris.New("session: no place selected")
	// ErrNotFound is returned by the registry for unknown session ids.
	ErrNotFound = eris.New("session: not found")
)

// LoadError wraps the cause of a failed load. It matches ErrLoadFailure.
type LoadError struct {
	Cause error
}

func (e *LoadError) Error() string {
	return "session: load failed: " + e.Cause.Error()
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrLoadFailure.
func (e *LoadError) Is(target error) bool { return target == ErrLoadFailure }
