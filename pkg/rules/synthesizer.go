// Package rules synthesizes neti's iptables-restore rule program from a
// peer snapshot and atomically installs it (spec.md §4.6).
package rules

import (
	"fmt"
	"net"
	"os/exec"
	"strings"

	"github.com/coreos/go-iptables/iptables"

	"github.com/Instagram/neti/pkg/peer"
	"github.com/Instagram/neti/pkg/realm"
)

// Config is the subset of neti.conf that shapes rule synthesis.
type Config struct {
	Open80           bool
	RejectAll        bool
	SSHWhitelist     []string
	PrimaryInterface string
}

// RuleSynthesizer builds the rule program and installs it via the
// host's iptables-restore loader.
type RuleSynthesizer struct {
	cfg         Config
	restorePath string
}

// New locates the iptables loader and checks its version precondition.
// Presence is confirmed the same way the teacher confirms its WireGuard
// driver binaries exist: iptables.New() exercises go-iptables's own
// exec.LookPath-based discovery, failing if the binary is absent. The
// restore binary's path is resolved separately since go-iptables itself
// is line-oriented (Append/Insert/Delete), not restore-file oriented.
// Fails with ErrMissingPacketFilter if no binary is found and
// ErrInvalidPacketFilterVersion if it is older than the minimum.
func New(cfg Config) (*RuleSynthesizer, error) {
	if _, err := iptables.New(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingPacketFilter, err)
	}
	binaryPath, err := exec.LookPath("iptables")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingPacketFilter, err)
	}
	if err := checkMinVersion(binaryPath); err != nil {
		return nil, err
	}
	restorePath, err := exec.LookPath("iptables-restore")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingPacketFilter, err)
	}
	return &RuleSynthesizer{cfg: cfg, restorePath: restorePath}, nil
}

// Synthesize renders the complete filter+NAT rule program for the given
// peer snapshot and this host's realm. Peer ordering in the output
// matches the order peers was given in - callers must not depend on
// address-sorted output.
func (s *RuleSynthesizer) Synthesize(peers []peer.AddressTuple, selfRealm realm.Realm) (string, error) {
	var filter, nat strings.Builder

	filter.WriteString("*filter\n")
	filter.WriteString(":INPUT ACCEPT [0:0]\n")
	filter.WriteString(":FORWARD ACCEPT [0:0]\n")
	filter.WriteString(":OUTPUT ACCEPT [0:0]\n")
	filter.WriteString(":ec2_whitelist - [0:0]\n")
	filter.WriteString(":ssh_whitelist - [0:0]\n")

	filter.WriteString("-A INPUT -i lo -j ACCEPT\n")
	filter.WriteString("-A INPUT -m state --state ESTABLISHED,RELATED -j ACCEPT\n")
	filter.WriteString("-A INPUT -j ec2_whitelist\n")
	filter.WriteString("-A INPUT -j ssh_whitelist\n")

	if s.cfg.Open80 {
		filter.WriteString("-A INPUT -p tcp --dport 80 -m state --state NEW,ESTABLISHED -j ACCEPT\n")
		if s.cfg.PrimaryInterface == "" {
			return "", fmt.Errorf("%w: open_80 requires a primary interface", ErrInvalidChain)
		}
		fmt.Fprintf(&filter, "-A OUTPUT -o %s -p tcp --sport 80 -m state --state ESTABLISHED -j ACCEPT\n", s.cfg.PrimaryInterface)
	}

	if s.cfg.RejectAll {
		filter.WriteString("-A INPUT -p tcp -j DROP\n")
	}

	for _, p := range peers {
		addr := p.FilterAddress(selfRealm)
		if addr == nil {
			return "", fmt.Errorf("%w: peer has no usable filter address", ErrInvalidAddress)
		}
		fmt.Fprintf(&filter, "-A ec2_whitelist -s %s -j ACCEPT\n", addr)
	}

	for _, entry := range s.cfg.SSHWhitelist {
		if net.ParseIP(entry) == nil {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return "", fmt.Errorf("%w: ssh_whitelist entry %q", ErrInvalidAddress, entry)
			}
		}
		fmt.Fprintf(&filter, "-A ssh_whitelist -s %s -p tcp --dport 22 -j ACCEPT\n", entry)
	}

	if selfRealm == realm.VPC {
		filter.WriteString("-A ssh_whitelist -s 10.0.0.0/8 -j ACCEPT\n")
	}

	filter.WriteString("COMMIT\n")

	nat.WriteString("*nat\n")
	nat.WriteString(":PREROUTING ACCEPT [0:0]\n")
	nat.WriteString(":INPUT ACCEPT [0:0]\n")
	nat.WriteString(":OUTPUT ACCEPT [0:0]\n")
	nat.WriteString(":POSTROUTING ACCEPT [0:0]\n")

	for _, p := range peers {
		nt := p.NATTargets(selfRealm)
		if nt.Overlay == nil || nt.Dest == nil {
			return "", fmt.Errorf("%w: peer has no usable NAT target", ErrInvalidAddress)
		}
		fmt.Fprintf(&nat, "-A OUTPUT -d %s -j DNAT --to-destination %s\n", nt.Overlay, nt.Dest)
	}

	nat.WriteString("COMMIT\n")

	return filter.String() + nat.String(), nil
}
