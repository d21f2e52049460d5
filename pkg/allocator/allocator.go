// Package allocator implements neti's address-leasing protocol
// (spec.md §4.3): leasing a unique overlay address for this instance
// against the local coordination ensemble, tolerant of concurrent
// claimants and idempotent on retry.
package allocator

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/Instagram/neti/pkg/cloudtag"
	"github.com/Instagram/neti/pkg/coordinator"
)

// maxIPTries bounds the number of candidate-claim attempts within a
// single Register call (spec.md §4.3 step 4).
const maxIPTries = 5

// Allocator leases overlay addresses against one coordination session.
type Allocator struct {
	session    coordinator.Session
	idToIPPath string
	ipToIDPath string
	subnet     *net.IPNet
	instanceID string
	tagger     cloudtag.Tagger
	log        logrus.FieldLogger
}

// New builds an Allocator. subnet is this realm's overlay CIDR; tagger
// may be cloudtag.NoOp{} when cloud tagging is disabled.
func New(session coordinator.Session, idToIPPath, ipToIDPath string, subnet *net.IPNet, instanceID string, tagger cloudtag.Tagger, log logrus.FieldLogger) *Allocator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Allocator{
		session:    session,
		idToIPPath: idToIPPath,
		ipToIDPath: ipToIDPath,
		subnet:     subnet,
		instanceID: instanceID,
		tagger:     tagger,
		log:        log,
	}
}

// Register runs the six-step leasing algorithm and returns this host's
// overlay address.
func (a *Allocator) Register(ctx context.Context) (net.IP, error) {
	overlay, err := a.lease(ctx)
	if err != nil {
		return nil, err
	}

	// Step 5: reverse-map reconciliation is unconditional - refresh it
	// on every registration, even when step 1 short-circuited with an
	// already-held lease.
	if err := a.reconcileReverseMap(ctx, overlay); err != nil {
		return nil, err
	}

	// Step 6: best-effort cloud tagging. Never fatal.
	if err := a.tagger.Tag(ctx, a.instanceID, overlay.String()); err != nil {
		a.log.WithError(err).WithField("instance_id", a.instanceID).Warn("cloud tagging failed")
	}

	return overlay, nil
}

// selfPath returns this instance's forward-lease node path.
func (a *Allocator) selfPath() string {
	return a.idToIPPath + "/" + a.instanceID
}

// lease runs steps 1-4: re-read an existing lease, or claim a fresh
// candidate address.
func (a *Allocator) lease(ctx context.Context) (net.IP, error) {
	// Step 1: re-read own lease.
	if data, err := a.session.Get(ctx, a.selfPath()); err == nil {
		ip := net.ParseIP(string(data))
		if ip == nil {
			return nil, fmt.Errorf("existing lease %q for %s is not a valid IP", data, a.instanceID)
		}
		return ip, nil
	} else if err != coordinator.ErrNoNode {
		return nil, fmt.Errorf("reading existing lease: %w", err)
	}

	for attempt := 0; attempt < maxIPTries; attempt++ {
		ip, err := a.claimOnce(ctx)
		if err != nil {
			if err == errRetryClaim {
				continue
			}
			return nil, err
		}
		return ip, nil
	}
	return nil, ErrNoAvailableAddresses
}

// errRetryClaim signals claimOnce wants another candidate attempt
// within the same Register call, without consuming the caller's whole
// budget on a hard failure.
var errRetryClaim = fmt.Errorf("retry claim")

// claimOnce performs steps 2-4 once: enumerate taken addresses, pick a
// candidate, and attempt to claim it.
func (a *Allocator) claimOnce(ctx context.Context) (net.IP, error) {
	// Step 2: enumerate taken addresses.
	taken, err := a.session.Children(ctx, a.ipToIDPath)
	if err != nil && err != coordinator.ErrNoNode {
		return nil, fmt.Errorf("enumerating taken addresses: %w", err)
	}
	takenSet := make(map[string]struct{}, len(taken))
	for _, t := range taken {
		takenSet[t] = struct{}{}
	}

	// Step 3: choose a candidate uniformly at random from the free set.
	candidate, err := a.pickCandidate(takenSet)
	if err != nil {
		return nil, err
	}

	// Step 4: claim attempt.
	createErr := a.session.CreateDurable(ctx, a.selfPath(), []byte(candidate.String()))
	switch createErr {
	case nil:
		// Confirm the stored value, guarding against a lost
		// acknowledgment of our own create.
		data, err := a.session.Get(ctx, a.selfPath())
		if err != nil {
			return nil, fmt.Errorf("confirming claimed lease: %w", err)
		}
		if string(data) != candidate.String() {
			return nil, errRetryClaim
		}
		return candidate, nil
	case coordinator.ErrNodeExists:
		// Another agent (or an earlier boot of this same instance-id)
		// already holds a lease; adopt whatever it holds.
		data, err := a.session.Get(ctx, a.selfPath())
		if err != nil {
			return nil, fmt.Errorf("reading existing lease after race: %w", err)
		}
		ip := net.ParseIP(string(data))
		if ip == nil {
			return nil, fmt.Errorf("existing lease %q for %s is not a valid IP", data, a.instanceID)
		}
		return ip, nil
	case coordinator.ErrNoNode:
		// Parent missing; ensure it and retry this step.
		if err := a.session.EnsurePath(ctx, a.idToIPPath); err != nil {
			return nil, fmt.Errorf("ensuring %s: %w", a.idToIPPath, err)
		}
		return nil, errRetryClaim
	default:
		return nil, fmt.Errorf("claiming %s: %w", candidate, createErr)
	}
}

// pickCandidate computes this realm's host-address set minus taken and
// returns one address chosen uniformly at random.
func (a *Allocator) pickCandidate(taken map[string]struct{}) (net.IP, error) {
	hosts, err := hostAddresses(a.subnet)
	if err != nil {
		return nil, err
	}
	var free []net.IP
	for _, h := range hosts {
		if _, ok := taken[h.String()]; !ok {
			free = append(free, h)
		}
	}
	if len(free) == 0 {
		return nil, ErrNoAvailableAddresses
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(free))))
	if err != nil {
		return nil, fmt.Errorf("choosing random candidate: %w", err)
	}
	return free[n.Int64()], nil
}

// reconcileReverseMap unconditionally (re)writes ip_to_id/<overlay> =
// <self>, creating the parent path if necessary (step 5).
func (a *Allocator) reconcileReverseMap(ctx context.Context, overlay net.IP) error {
	reversePath := a.ipToIDPath + "/" + overlay.String()
	err := a.session.CreateDurable(ctx, reversePath, []byte(a.instanceID))
	switch err {
	case nil:
		return nil
	case coordinator.ErrNodeExists:
		return a.session.Set(ctx, reversePath, []byte(a.instanceID))
	case coordinator.ErrNoNode:
		if ensureErr := a.session.EnsurePath(ctx, a.ipToIDPath); ensureErr != nil {
			return fmt.Errorf("ensuring %s: %w", a.ipToIDPath, ensureErr)
		}
		if createErr := a.session.CreateDurable(ctx, reversePath, []byte(a.instanceID)); createErr != nil && createErr != coordinator.ErrNodeExists {
			return fmt.Errorf("creating reverse map entry: %w", createErr)
		}
		return a.session.Set(ctx, reversePath, []byte(a.instanceID))
	default:
		return fmt.Errorf("writing reverse map entry: %w", err)
	}
}
