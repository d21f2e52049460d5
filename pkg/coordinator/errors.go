package coordinator

import "errors"

// ErrNodeExists is returned by CreateDurable when the target path is
// already present - the original's kazoo NodeExistsError.
var ErrNodeExists = errors.New("node already exists")

// ErrNoNode is returned by Get/Set/Children when the target path is
// absent - the original's kazoo NoNodeError.
var ErrNoNode = errors.New("no such node")

// ErrSessionLost is a CoordinationError: the session to the ensemble was
// lost and every in-flight watch/operation on it is cancelled. The
// Supervisor treats this as grounds for a full restart.
var ErrSessionLost = errors.New("coordination session lost")
