package peer

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Instagram/neti/pkg/realm"
)

func TestParseWellFormedVPC(t *testing.T) {
	entry := "ab12cd34ef-1.2.3.4|10.0.0.5|10.99.0.1|1"
	at, err := Parse(entry)
	require.NoError(t, err)
	require.True(t, net.IP{1, 2, 3, 4}.Equal(at.Public))
	require.True(t, net.IP{10, 0, 0, 5}.Equal(at.Private))
	require.True(t, net.IP{10, 99, 0, 1}.Equal(at.Overlay))
	require.Equal(t, realm.VPC, at.Realm)
}

func TestParseWellFormedLegacy(t *testing.T) {
	entry := "deadbeef-9.9.9.9|192.168.1.1|10.99.0.2|0"
	at, err := Parse(entry)
	require.NoError(t, err)
	require.Equal(t, realm.Legacy, at.Realm)
}

func TestParseRejectsMissingDash(t *testing.T) {
	_, err := Parse("1.2.3.4|10.0.0.5|10.99.0.1|1")
	require.ErrorIs(t, err, ErrPatternMismatch)
}

func TestParseRejectsWrongFieldCount(t *testing.T) {
	_, err := Parse("uuid-1.2.3.4|10.0.0.5|1")
	require.ErrorIs(t, err, ErrPatternMismatch)
}

func TestParseRejectsBadRealmDigit(t *testing.T) {
	_, err := Parse("uuid-1.2.3.4|10.0.0.5|10.99.0.1|2")
	require.ErrorIs(t, err, ErrPatternMismatch)
}

func TestParseRejectsMalformedAddress(t *testing.T) {
	_, err := Parse("uuid-not-an-ip|10.0.0.5|10.99.0.1|1")
	require.ErrorIs(t, err, ErrPatternMismatch)
}

func TestParseDiscardsEverythingLeftOfFirstDash(t *testing.T) {
	// A uuid containing no dashes still works; only the first '-' of the
	// whole entry separates it from the payload.
	at, err := Parse("abcdef0123456789-1.2.3.4|10.0.0.5|10.99.0.1|1")
	require.NoError(t, err)
	require.True(t, net.IP{1, 2, 3, 4}.Equal(at.Public))
}

func TestEncodeRoundTrips(t *testing.T) {
	at := AddressTuple{
		Public:  net.IPv4(1, 2, 3, 4),
		Private: net.IPv4(10, 0, 0, 5),
		Overlay: net.IPv4(10, 99, 0, 1),
		Realm:   realm.VPC,
	}
	encoded := at.Encode()
	parsed, err := Parse("uuid-" + encoded)
	require.NoError(t, err)
	require.True(t, at.Public.Equal(parsed.Public))
	require.True(t, at.Private.Equal(parsed.Private))
	require.True(t, at.Overlay.Equal(parsed.Overlay))
	require.Equal(t, at.Realm, parsed.Realm)
}

// TestFilterAddressSameRealmUsesPrivate and the cross-realm case below
// cover spec.md §8 scenarios 4-6: a VPC host reaches a VPC peer over
// its private address but a LEGACY peer only over its public address.
func TestFilterAddressSameRealmUsesPrivate(t *testing.T) {
	at := AddressTuple{
		Public:  net.IPv4(1, 2, 3, 4),
		Private: net.IPv4(10, 0, 0, 5),
		Overlay: net.IPv4(10, 99, 0, 1),
		Realm:   realm.VPC,
	}
	require.True(t, at.Private.Equal(at.FilterAddress(realm.VPC)))
}

func TestFilterAddressCrossRealmUsesPublic(t *testing.T) {
	at := AddressTuple{
		Public:  net.IPv4(1, 2, 3, 4),
		Private: net.IPv4(10, 0, 0, 5),
		Overlay: net.IPv4(10, 99, 0, 1),
		Realm:   realm.Legacy,
	}
	require.True(t, at.Public.Equal(at.FilterAddress(realm.VPC)))
}

func TestNATTargetsSameRealmRewritesToPrivate(t *testing.T) {
	at := AddressTuple{
		Public:  net.IPv4(1, 2, 3, 4),
		Private: net.IPv4(10, 0, 0, 5),
		Overlay: net.IPv4(10, 99, 0, 1),
		Realm:   realm.Legacy,
	}
	nt := at.NATTargets(realm.Legacy)
	require.True(t, at.Overlay.Equal(nt.Overlay))
	require.True(t, at.Private.Equal(nt.Dest))
}

func TestNATTargetsCrossRealmRewritesToPublic(t *testing.T) {
	at := AddressTuple{
		Public:  net.IPv4(1, 2, 3, 4),
		Private: net.IPv4(10, 0, 0, 5),
		Overlay: net.IPv4(10, 99, 0, 1),
		Realm:   realm.Legacy,
	}
	nt := at.NATTargets(realm.VPC)
	require.True(t, at.Public.Equal(nt.Dest))
}
