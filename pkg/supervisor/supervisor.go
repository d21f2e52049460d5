// Package supervisor wires HostIdentity, CoordinatorPair, Allocator,
// Membership, and RuleSynthesizer together and restarts the whole
// pipeline on coordination failure (spec.md §4.7).
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/Instagram/neti/pkg/allocator"
	"github.com/Instagram/neti/pkg/cloudtag"
	"github.com/Instagram/neti/pkg/config"
	"github.com/Instagram/neti/pkg/coordinator"
	"github.com/Instagram/neti/pkg/identity"
	"github.com/Instagram/neti/pkg/membership"
	"github.com/Instagram/neti/pkg/peer"
	"github.com/Instagram/neti/pkg/rules"
)

// Dialer opens a Session against one ensemble's list of hosts. The
// production dialer is coordinator.Dial; tests supply a fake factory.
type Dialer func(hosts []string) (coordinator.Session, error)

// Supervisor owns the full registration-and-rule-synthesis pipeline for
// one host.
type Supervisor struct {
	cfg    *config.Config
	mc     identity.MetadataClient
	dial   Dialer
	tagger cloudtag.Tagger
	dryRun bool
	log    logrus.FieldLogger

	// newSynth builds the rule synthesizer; overridden by tests to
	// avoid depending on a real iptables binary.
	newSynth func(rules.Config) (*rules.RuleSynthesizer, error)
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithTagger overrides the default no-op cloudtag.Tagger.
func WithTagger(t cloudtag.Tagger) Option {
	return func(s *Supervisor) { s.tagger = t }
}

// WithDryRun sets whether rule programs are printed and the process
// exited instead of applied.
func WithDryRun(dryRun bool) Option {
	return func(s *Supervisor) { s.dryRun = dryRun }
}

// WithLogger overrides the default standard logrus logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Supervisor) { s.log = log }
}

// New builds a Supervisor. mc is the cloud metadata client used for
// HostIdentity discovery; dial opens coordination sessions.
func New(cfg *config.Config, mc identity.MetadataClient, dial Dialer, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:      cfg,
		mc:       mc,
		dial:     dial,
		tagger:   cloudtag.NoOp{},
		log:      logrus.StandardLogger(),
		newSynth: rules.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes the register-then-watch pipeline, restarting it from
// scratch whenever a coordination-level failure occurs. Retry is
// immediate and unbounded - callers wanting backoff wrap Run
// themselves. Run returns only on a non-coordination (fatal) error or
// when ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		err := s.runOnce(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrCoordination) {
			s.log.WithError(err).Warn("coordination failure, restarting registration")
			continue
		}
		return err
	}
}

func (s *Supervisor) runOnce(ctx context.Context) error {
	id, err := identity.Discover(ctx, s.mc)
	if err != nil {
		return fmt.Errorf("discovering host identity: %w", err)
	}

	localCfg, remoteCfg := s.cfg.RealmConfigFor(id.IsVPC())

	localSession, err := s.dial(localCfg.ZKHosts)
	if err != nil {
		return fmt.Errorf("%w: dialing local ensemble: %s", ErrCoordination, err)
	}
	defer localSession.Close()

	remoteSession, err := s.dial(remoteCfg.ZKHosts)
	if err != nil {
		return fmt.Errorf("%w: dialing remote ensemble: %s", ErrCoordination, err)
	}
	defer remoteSession.Close()

	_, subnet, err := net.ParseCIDR(localCfg.OverlaySubnet)
	if err != nil {
		return fmt.Errorf("parsing overlay subnet %q: %w", localCfg.OverlaySubnet, err)
	}

	alloc := allocator.New(localSession, s.cfg.IDToIPPath(), s.cfg.IPToIDPath(), subnet, id.InstanceID(), s.tagger, s.log)
	overlay, err := alloc.Register(ctx)
	if err != nil {
		if errors.Is(err, coordinator.ErrSessionLost) {
			return fmt.Errorf("%w: %s", ErrCoordination, err)
		}
		return fmt.Errorf("registering overlay address: %w", err)
	}

	self := peer.AddressTuple{
		Public:  net.ParseIP(id.PublicAddress()),
		Private: net.ParseIP(id.PrivateAddress()),
		Overlay: overlay,
		Realm:   id.Realm(),
	}
	if self.Public == nil || self.Private == nil {
		return fmt.Errorf("host identity reported a non-IPv4 address")
	}

	mem := membership.New(localSession, remoteSession, s.cfg.IPMapPath(), s.log)
	if err := mem.Join(ctx, self); err != nil {
		return fmt.Errorf("%w: %s", ErrCoordination, err)
	}

	watch, err := mem.Watch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrCoordination, err)
	}

	synth, err := s.newSynth(rules.Config{
		Open80:           s.cfg.Open80,
		RejectAll:        s.cfg.RejectAll,
		SSHWhitelist:     s.cfg.SSHWhitelist,
		PrimaryInterface: id.PrimaryInterface(),
	})
	if err != nil {
		return fmt.Errorf("constructing rule synthesizer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case snapshot, ok := <-watch:
			if !ok {
				return fmt.Errorf("%w: membership watch closed", ErrCoordination)
			}
			program, err := synth.Synthesize(snapshot, id.Realm())
			if err != nil {
				s.log.WithError(err).Error("rule synthesis failed, skipping this snapshot")
				continue
			}
			if err := synth.Install(ctx, program, s.dryRun, s.log); err != nil {
				s.log.WithError(err).Error("rule installation failed")
			}
		}
	}
}
