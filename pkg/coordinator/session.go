// Package coordinator wraps the two coordination-store ensembles neti
// joins (§4.2), behind a small interface so unit tests can substitute an
// in-memory fake instead of a real ZooKeeper ensemble - the same design
// note the teacher applies to its Kubernetes clientset and WireGuard
// driver (a generated fake clientset, pkg/interfaces/*_fake.go).
package coordinator

import "context"

// Session is the minimal set of coordination-store operations neti needs:
// durable create, get, set, ensure-path, children listing and watch, and
// an ephemeral group join. It is intentionally narrower than a full
// ZooKeeper client.
type Session interface {
	// CreateDurable creates a persistent node at path with data. It
	// returns ErrNodeExists if the node is already present, and
	// ErrNoNode if its parent is absent.
	CreateDurable(ctx context.Context, path string, data []byte) error

	// Get returns the data stored at path, or ErrNoNode if absent.
	Get(ctx context.Context, path string) ([]byte, error)

	// Set overwrites the data stored at path, or returns ErrNoNode if
	// the node does not exist.
	Set(ctx context.Context, path string, data []byte) error

	// EnsurePath creates every missing node along path, leaving any
	// already-present nodes untouched.
	EnsurePath(ctx context.Context, path string) error

	// Children returns the names of path's children, or ErrNoNode if
	// path itself does not exist.
	Children(ctx context.Context, path string) ([]string, error)

	// ChildrenWatch returns a channel that receives a fresh snapshot of
	// path's children on every change, starting with the current
	// snapshot. The channel is closed when ctx is done or the session
	// is lost.
	ChildrenWatch(ctx context.Context, path string) (<-chan []string, error)

	// Join creates an ephemeral child of groupPath whose name is a
	// store-assigned unique token followed by a dash and data, i.e. the
	// MemberIdentifier wire format described in spec.md §3. The node
	// (and therefore this host's membership) disappears automatically
	// if the session is lost.
	Join(ctx context.Context, groupPath string, data string) (string, error)

	// Close releases the session. Any outstanding watches are
	// cancelled and ephemeral nodes created by this session vanish.
	Close() error
}
