package supervisor

import "errors"

// ErrCoordination marks a session-level coordination failure. Supervisor
// treats every error wrapping this as grounds for a full restart (new
// sessions, new registration), per spec.md §4.7.
var ErrCoordination = errors.New("supervisor: coordination error")
