package errors

import "fmt"

var (
	// Integrity and boundary errors: local to one chunk, the session is untouched.
	ErrMalformedHeader  = fmt.Errorf("malformed chunk header")
	ErrChecksumMismatch = fmt.Errorf("chunk checksum mismatch")
	ErrOutOfBounds      = fmt.Errorf("chunk range out of bounds")

	// Consistency errors: surfaced as-is, never silently resolved.
	ErrSizeConflict      = fmt.Errorf("session total size conflict")
	ErrInvalidTransition = fmt.Errorf("invalid session state transition")
	ErrSessionTerminal   = fmt.Errorf("session is in a terminal state")
	ErrSessionNotFound   = fmt.Errorf("session not found")

	// Read-side errors: recoverable by retrying later or asking for a valid range.
	ErrRangeUnavailable    = fmt.Errorf("requested range is not fully stored")
	ErrRangeNotSatisfiable = fmt.Errorf("requested range is not satisfiable")
	ErrFileNotReady        = fmt.Errorf("file is not assembled yet")

	// Terminal for the session, isolated from all others.
	ErrAssemblyFailure = fmt.Errorf("file assembly failed")

	ErrInvalidFilename     = fmt.Errorf("invalid filename")
	ErrDeviceAlreadyExists = fmt.Errorf("device already exists")
	ErrInvalidCredentials  = fmt.Errorf("invalid credentials")
	ErrInvalidPassword     = fmt.Errorf("password does not meet requirements")
	ErrTokenGeneration     = fmt.Errorf("token generation failed")
)
