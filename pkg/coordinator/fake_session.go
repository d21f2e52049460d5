package coordinator

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// fakeEnsemble is shared backing storage for one or more fakeSessions,
// simulating concurrent clients against a single ZooKeeper ensemble -
// exactly what's needed to test Allocator's concurrent-registration
// invariants (spec.md §8 "Uniqueness").
type fakeEnsemble struct {
	mu    sync.Mutex
	nodes map[string][]byte
	// ephemeralOwner maps an ephemeral node's path to the session that
	// created it, so that session's Close removes exactly its own nodes.
	ephemeralOwner map[string]*fakeSession

	watchersMu sync.Mutex
	watchers   map[string][]chan []string
}

func newFakeEnsemble() *fakeEnsemble {
	return &fakeEnsemble{
		nodes:          map[string][]byte{"/": nil},
		ephemeralOwner: map[string]*fakeSession{},
		watchers:       map[string][]chan []string{},
	}
}

// fakeSession is an in-memory Session used by every test in
// pkg/allocator, pkg/membership, and pkg/coordinator itself. It honors
// create/get/set/ensure-path/children ordering and drops ephemeral nodes
// on Close, in the same spirit as the teacher's generated fake clientset
// and pkg/interfaces/*_fake.go test doubles.
type fakeSession struct {
	ensemble *fakeEnsemble
	closed   bool
}

// NewFakeSession returns a Session backed by its own private in-memory
// ensemble.
func NewFakeSession() Session {
	return newFakeEnsemble().newSession()
}

// NewFakeEnsemble returns a factory minting sessions that all share one
// backing store - used to simulate the local/remote pair of ensembles,
// or concurrent registrants racing against a single ensemble.
func NewFakeEnsemble() func() Session {
	e := newFakeEnsemble()
	return func() Session { return e.newSession() }
}

func (e *fakeEnsemble) newSession() Session {
	return &fakeSession{ensemble: e}
}

func (s *fakeSession) CreateDurable(_ context.Context, p string, data []byte) error {
	return s.create(p, data, false)
}

func (s *fakeSession) create(p string, data []byte, ephemeral bool) error {
	e := s.ensemble
	e.mu.Lock()
	if _, ok := e.nodes[p]; ok {
		e.mu.Unlock()
		return ErrNodeExists
	}
	parent := path.Dir(p)
	if _, ok := e.nodes[parent]; !ok {
		e.mu.Unlock()
		return ErrNoNode
	}
	e.nodes[p] = data
	if ephemeral {
		e.ephemeralOwner[p] = s
	}
	e.mu.Unlock()
	e.notify(parent)
	return nil
}

func (s *fakeSession) Get(_ context.Context, p string) ([]byte, error) {
	e := s.ensemble
	e.mu.Lock()
	defer e.mu.Unlock()
	data, ok := e.nodes[p]
	if !ok {
		return nil, ErrNoNode
	}
	return data, nil
}

func (s *fakeSession) Set(_ context.Context, p string, data []byte) error {
	e := s.ensemble
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.nodes[p]; !ok {
		return ErrNoNode
	}
	e.nodes[p] = data
	return nil
}

func (s *fakeSession) EnsurePath(ctx context.Context, p string) error {
	clean := strings.Trim(path.Clean(p), "/")
	if clean == "" {
		return nil
	}
	segments := strings.Split(clean, "/")
	cur := ""
	for _, seg := range segments {
		cur += "/" + seg
		err := s.CreateDurable(ctx, cur, nil)
		if err != nil && err != ErrNodeExists {
			return err
		}
	}
	return nil
}

func (s *fakeSession) Children(_ context.Context, p string) ([]string, error) {
	e := s.ensemble
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.nodes[p]; !ok {
		return nil, ErrNoNode
	}
	return e.childrenLocked(p), nil
}

// childrenLocked requires e.mu to be held.
func (e *fakeEnsemble) childrenLocked(p string) []string {
	prefix := strings.TrimRight(p, "/") + "/"
	var children []string
	for candidate := range e.nodes {
		if !strings.HasPrefix(candidate, prefix) {
			continue
		}
		rest := strings.TrimPrefix(candidate, prefix)
		if rest == "" || strings.Contains(rest, "/") {
			continue
		}
		children = append(children, rest)
	}
	sort.Strings(children)
	return children
}

func (s *fakeSession) ChildrenWatch(ctx context.Context, p string) (<-chan []string, error) {
	e := s.ensemble
	e.mu.Lock()
	if _, ok := e.nodes[p]; !ok {
		e.mu.Unlock()
		return nil, ErrNoNode
	}
	initial := e.childrenLocked(p)
	e.mu.Unlock()

	ch := make(chan []string, 4)
	e.watchersMu.Lock()
	e.watchers[p] = append(e.watchers[p], ch)
	e.watchersMu.Unlock()
	ch <- initial

	go func() {
		<-ctx.Done()
		e.watchersMu.Lock()
		defer e.watchersMu.Unlock()
		watchers := e.watchers[p]
		for i, c := range watchers {
			if c == ch {
				e.watchers[p] = append(watchers[:i], watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// notify delivers a fresh snapshot to every watcher registered on path.
func (e *fakeEnsemble) notify(p string) {
	e.watchersMu.Lock()
	watchers := append([]chan []string{}, e.watchers[p]...)
	e.watchersMu.Unlock()
	if len(watchers) == 0 {
		return
	}
	e.mu.Lock()
	snapshot := e.childrenLocked(p)
	e.mu.Unlock()
	for _, ch := range watchers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (s *fakeSession) Join(ctx context.Context, groupPath string, data string) (string, error) {
	if err := s.EnsurePath(ctx, groupPath); err != nil {
		return "", err
	}
	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	name := token + "-" + data
	if err := s.create(groupPath+"/"+name, nil, true); err != nil {
		return "", err
	}
	return name, nil
}

func (s *fakeSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	e := s.ensemble
	e.mu.Lock()
	var removedParents []string
	for p, owner := range e.ephemeralOwner {
		if owner == s {
			delete(e.nodes, p)
			delete(e.ephemeralOwner, p)
			removedParents = append(removedParents, path.Dir(p))
		}
	}
	e.mu.Unlock()
	for _, parent := range removedParents {
		e.notify(parent)
	}
	return nil
}
