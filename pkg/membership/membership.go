// Package membership joins the ip_map group in both coordination
// ensembles and turns its watch into a stream of resynthesis-ready peer
// snapshots (spec.md §4.4).
package membership

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Instagram/neti/pkg/coordinator"
	"github.com/Instagram/neti/pkg/peer"
)

// Membership holds the local and remote ip_map group memberships for
// this host and the watch loop over the local ensemble's view.
type Membership struct {
	local  coordinator.Session
	remote coordinator.Session
	path   string
	log    logrus.FieldLogger
}

// New builds a Membership. path is the ip_map group's coordination-store
// path, shared by both ensembles' schemas.
func New(local, remote coordinator.Session, path string, log logrus.FieldLogger) *Membership {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Membership{local: local, remote: remote, path: path, log: log}
}

// Join publishes this host's AddressTuple as an ephemeral member of both
// ensembles' ip_map groups, concurrently. Both joins must succeed.
func (m *Membership) Join(ctx context.Context, self peer.AddressTuple) error {
	if self.Public == nil || self.Private == nil || self.Overlay == nil {
		return ErrSelfAddressMissing
	}
	payload := self.Encode()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := m.local.Join(gctx, m.path, payload)
		if err != nil {
			return fmt.Errorf("joining local ip_map: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		_, err := m.remote.Join(gctx, m.path, payload)
		if err != nil {
			return fmt.Errorf("joining remote ip_map: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Watch installs a children-watch on the local ensemble's ip_map and
// returns a channel of parsed peer snapshots - one per raw snapshot
// delivered by the store, fully re-synthesized (not delta) each time.
// Entries that fail peer.Parse are logged and dropped; one malformed
// peer must never block or corrupt the rest of the snapshot.
//
// Delivery runs on a single consumer goroutine reading the underlying
// coordinator.Session's channel, so overlapping snapshots are always
// processed in arrival order - mirroring the teacher's single informer
// consumer goroutine in pkg/agent/agent.go.
func (m *Membership) Watch(ctx context.Context) (<-chan []peer.AddressTuple, error) {
	raw, err := m.local.ChildrenWatch(ctx, m.path)
	if err != nil {
		return nil, fmt.Errorf("watching local ip_map: %w", err)
	}

	out := make(chan []peer.AddressTuple, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case children, ok := <-raw:
				if !ok {
					return
				}
				snapshot := make([]peer.AddressTuple, 0, len(children))
				for _, entry := range children {
					at, err := peer.Parse(entry)
					if err != nil {
						m.log.WithError(err).WithField("entry", entry).Warn("dropping malformed ip_map entry")
						continue
					}
					snapshot = append(snapshot, at)
				}
				select {
				case out <- snapshot:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
