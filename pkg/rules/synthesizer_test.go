package rules

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Instagram/neti/pkg/peer"
	"github.com/Instagram/neti/pkg/realm"
)

func vpcPeer() peer.AddressTuple {
	return peer.AddressTuple{
		Public:  net.IPv4(1, 2, 3, 4),
		Private: net.IPv4(10, 0, 0, 5),
		Overlay: net.IPv4(10, 99, 0, 1),
		Realm:   realm.VPC,
	}
}

func legacyPeer() peer.AddressTuple {
	return peer.AddressTuple{
		Public:  net.IPv4(5, 6, 7, 8),
		Private: net.IPv4(192, 168, 1, 9),
		Overlay: net.IPv4(10, 99, 0, 2),
		Realm:   realm.Legacy,
	}
}

func TestSynthesizeProducesNormativeSectionOrder(t *testing.T) {
	s := &RuleSynthesizer{cfg: Config{}}
	program, err := s.Synthesize(nil, realm.VPC)
	require.NoError(t, err)

	filterIdx := strings.Index(program, "*filter")
	natIdx := strings.Index(program, "*nat")
	require.True(t, filterIdx >= 0 && natIdx > filterIdx)

	loIdx := strings.Index(program, "-i lo -j ACCEPT")
	establishedIdx := strings.Index(program, "ESTABLISHED,RELATED")
	ec2DispatchIdx := strings.Index(program, "-A INPUT -j ec2_whitelist")
	sshDispatchIdx := strings.Index(program, "-A INPUT -j ssh_whitelist")
	require.True(t, loIdx < establishedIdx)
	require.True(t, establishedIdx < ec2DispatchIdx)
	require.True(t, ec2DispatchIdx < sshDispatchIdx)
}

func TestSynthesizeCrossRealmUsesPublicAddress(t *testing.T) {
	s := &RuleSynthesizer{cfg: Config{}}
	program, err := s.Synthesize([]peer.AddressTuple{legacyPeer()}, realm.VPC)
	require.NoError(t, err)
	require.Contains(t, program, "-A ec2_whitelist -s 5.6.7.8 -j ACCEPT")
	require.Contains(t, program, "-A OUTPUT -d 10.99.0.2 -j DNAT --to-destination 5.6.7.8")
}

func TestSynthesizeSameRealmUsesPrivateAddress(t *testing.T) {
	s := &RuleSynthesizer{cfg: Config{}}
	program, err := s.Synthesize([]peer.AddressTuple{vpcPeer()}, realm.VPC)
	require.NoError(t, err)
	require.Contains(t, program, "-A ec2_whitelist -s 10.0.0.5 -j ACCEPT")
	require.Contains(t, program, "-A OUTPUT -d 10.99.0.1 -j DNAT --to-destination 10.0.0.5")
}

func TestSynthesizeOpen80AddsIngressAndEgressRules(t *testing.T) {
	s := &RuleSynthesizer{cfg: Config{Open80: true, PrimaryInterface: "eth0"}}
	program, err := s.Synthesize(nil, realm.Legacy)
	require.NoError(t, err)
	require.Contains(t, program, "-A INPUT -p tcp --dport 80 -m state --state NEW,ESTABLISHED -j ACCEPT")
	require.Contains(t, program, "-A OUTPUT -o eth0 -p tcp --sport 80 -m state --state ESTABLISHED -j ACCEPT")
}

func TestSynthesizeRejectAllAppendsAfterWhitelistDispatch(t *testing.T) {
	s := &RuleSynthesizer{cfg: Config{RejectAll: true}}
	program, err := s.Synthesize(nil, realm.Legacy)
	require.NoError(t, err)
	dispatchIdx := strings.Index(program, "-A INPUT -j ssh_whitelist")
	dropIdx := strings.Index(program, "-A INPUT -p tcp -j DROP")
	require.True(t, dispatchIdx >= 0 && dropIdx > dispatchIdx)
}

func TestSynthesizeSSHWhitelistEntries(t *testing.T) {
	s := &RuleSynthesizer{cfg: Config{SSHWhitelist: []string{"203.0.113.1", "198.51.100.0/24"}}}
	program, err := s.Synthesize(nil, realm.Legacy)
	require.NoError(t, err)
	require.Contains(t, program, "-A ssh_whitelist -s 203.0.113.1 -p tcp --dport 22 -j ACCEPT")
	require.Contains(t, program, "-A ssh_whitelist -s 198.51.100.0/24 -p tcp --dport 22 -j ACCEPT")
}

func TestSynthesizeVPCRealmAppendsBroadSSHAccept(t *testing.T) {
	s := &RuleSynthesizer{cfg: Config{}}
	program, err := s.Synthesize(nil, realm.VPC)
	require.NoError(t, err)
	require.Contains(t, program, "-A ssh_whitelist -s 10.0.0.0/8 -j ACCEPT")
}

func TestSynthesizeLegacyRealmOmitsBroadSSHAccept(t *testing.T) {
	s := &RuleSynthesizer{cfg: Config{}}
	program, err := s.Synthesize(nil, realm.Legacy)
	require.NoError(t, err)
	require.NotContains(t, program, "10.0.0.0/8")
}

func TestSynthesizeRejectsMalformedSSHWhitelistEntry(t *testing.T) {
	s := &RuleSynthesizer{cfg: Config{SSHWhitelist: []string{"not-an-address"}}}
	_, err := s.Synthesize(nil, realm.Legacy)
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestSynthesizeOpen80WithoutPrimaryInterfaceFails(t *testing.T) {
	s := &RuleSynthesizer{cfg: Config{Open80: true}}
	_, err := s.Synthesize(nil, realm.Legacy)
	require.ErrorIs(t, err, ErrInvalidChain)
}

func TestSynthesizePreservesPeerOrderNotAddressSort(t *testing.T) {
	s := &RuleSynthesizer{cfg: Config{}}
	peers := []peer.AddressTuple{legacyPeer(), vpcPeer()}
	program, err := s.Synthesize(peers, realm.VPC)
	require.NoError(t, err)

	firstIdx := strings.Index(program, "-s 5.6.7.8")
	secondIdx := strings.Index(program, "-s 10.0.0.5")
	require.True(t, firstIdx >= 0 && secondIdx > firstIdx)
}
