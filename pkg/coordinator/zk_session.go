package coordinator

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/google/uuid"
)

// sessionTimeout mirrors kazoo's default client timeout.
const sessionTimeout = 10 * time.Second

// zkSession is the production Session, backed by
// github.com/go-zookeeper/zk - the direct Go analogue of the original's
// kazoo.client.KazooClient.
type zkSession struct {
	conn   *zk.Conn
	events <-chan zk.Event
}

// Dial connects to a ZooKeeper ensemble. hosts are host:port strings,
// matching the comma-separated ec2.zk_hosts/vpc.zk_hosts config values
// once split.
func Dial(hosts []string) (Session, error) {
	conn, events, err := zk.Connect(hosts, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to zookeeper %v: %w", hosts, err)
	}
	return &zkSession{conn: conn, events: events}, nil
}

func (s *zkSession) CreateDurable(_ context.Context, p string, data []byte) error {
	_, err := s.conn.Create(p, data, 0, zk.WorldACL(zk.PermAll))
	if err == zk.ErrNodeExists {
		return ErrNodeExists
	}
	if err == zk.ErrNoNode {
		return ErrNoNode
	}
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

func (s *zkSession) Get(_ context.Context, p string) ([]byte, error) {
	data, _, err := s.conn.Get(p)
	if err == zk.ErrNoNode {
		return nil, ErrNoNode
	}
	if err != nil {
		return nil, wrapErr(err)
	}
	return data, nil
}

func (s *zkSession) Set(_ context.Context, p string, data []byte) error {
	_, err := s.conn.Set(p, data, -1)
	if err == zk.ErrNoNode {
		return ErrNoNode
	}
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

func (s *zkSession) EnsurePath(ctx context.Context, p string) error {
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
			return fmt.Errorf("ensuring path %q: %w", cur, err)
		}
	}
	return nil
}

func (s *zkSession) Children(_ context.Context, p string) ([]string, error) {
	children, _, err := s.conn.Children(p)
	if err == zk.ErrNoNode {
		return nil, ErrNoNode
	}
	if err != nil {
		return nil, wrapErr(err)
	}
	return children, nil
}

// ChildrenWatch re-arms the ZooKeeper watch after every fire, since a zk
// watch is one-shot, and forwards a fresh snapshot each time - the
// replace-semantic delivery contract of spec.md §4.4.
func (s *zkSession) ChildrenWatch(ctx context.Context, p string) (<-chan []string, error) {
	out := make(chan []string, 1)

	children, _, eventCh, err := s.conn.ChildrenW(p)
	if err != nil {
		return nil, fmt.Errorf("watching children of %q: %w", p, wrapErr(err))
	}
	out <- children

	go func() {
		defer close(out)
		curChildren := children
		curEventCh := eventCh
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-curEventCh:
				if !ok {
					return
				}
				if ev.Err != nil {
					return
				}
				next, _, nextEventCh, err := s.conn.ChildrenW(p)
				if err != nil {
					return
				}
				curChildren = next
				curEventCh = nextEventCh
				select {
				case out <- curChildren:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Join mints our own store-assigned unique token rather than relying on
// zk's native CreateSequential counter: zk appends that counter *after*
// whatever base name we supply, which would put the tuple before the
// counter. spec.md's MemberIdentifier grammar needs the unique token
// first, so we generate a dash-free token (mirroring the original's
// uuid.uuid4().hex) and create a plain ephemeral node named
// "<token>-<data>".
func (s *zkSession) Join(ctx context.Context, groupPath string, data string) (string, error) {
	if err := s.EnsurePath(ctx, groupPath); err != nil {
		return "", err
	}
	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	name := token + "-" + data
	p := groupPath + "/" + name
	if _, err := s.conn.Create(p, nil, zk.FlagEphemeral, zk.WorldACL(zk.PermAll)); err != nil {
		return "", fmt.Errorf("joining group %q: %w", groupPath, wrapErr(err))
	}
	return name, nil
}

func (s *zkSession) Close() error {
	s.conn.Close()
	return nil
}

func wrapErr(err error) error {
	if err == zk.ErrConnectionClosed || err == zk.ErrSessionExpired {
		return fmt.Errorf("%w: %v", ErrSessionLost, err)
	}
	return err
}
