package domain

import "errors"

var (
	// ErrQuizNotFound indicates no quiz matches the given code or id.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrNotAuthenticated is returned when completing a session without an identified user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoActiveSession is returned when an operation needs a session in progress.
	ErrNoActiveSession = errors.New("no active quiz session")
	// ErrAttemptStoreUnavailable indicates an attempt could not be read or written.
	ErrAttemptStoreUnavailable = errors.New("attempt store unavailable")
	// ErrCodeSpaceExhausted is returned when no unique join code could be generated.
	ErrCodeSpaceExhausted = errors.New("quiz code space exhausted")
)
