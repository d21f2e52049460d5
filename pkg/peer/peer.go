// Package peer parses a group member's MemberIdentifier into a
// validated AddressTuple, per spec.md §4.5.
package peer

import (
	"fmt"
	"net"
	"strings"

	"github.com/Instagram/neti/pkg/realm"
)

// AddressTuple is the (public, private, overlay, realm) bundle a peer
// publishes into the ip_map group, grounded on the original's
// InstanceIPBundle.
type AddressTuple struct {
	Public  net.IP
	Private net.IP
	Overlay net.IP
	Realm   realm.Realm
}

// Parse validates one MemberIdentifier string and extracts its
// AddressTuple, following spec.md §4.5 steps 1-4 exactly:
//  1. split on the first '-'; the uuid prefix is discarded.
//  2. the last '|'-separated field must be exactly "0" or "1".
//  3. the remaining payload must split into exactly 4 '|'-separated
//     fields: public, private, overlay, realm.
//  4. the three address fields must be well-formed IPv4 addresses.
func Parse(entry string) (AddressTuple, error) {
	dash := strings.Index(entry, "-")
	if dash < 0 {
		return AddressTuple{}, fmt.Errorf("%w: %q: missing '-'", ErrPatternMismatch, entry)
	}
	payload := entry[dash+1:]

	fields := strings.Split(payload, "|")
	if len(fields) != 4 {
		return AddressTuple{}, fmt.Errorf("%w: %q: expected 4 fields, got %d", ErrPatternMismatch, entry, len(fields))
	}

	realmDigit := fields[3]
	if realmDigit != "0" && realmDigit != "1" {
		return AddressTuple{}, fmt.Errorf("%w: %q: invalid realm digit %q", ErrPatternMismatch, entry, realmDigit)
	}

	public := net.ParseIP(fields[0]).To4()
	private := net.ParseIP(fields[1]).To4()
	overlay := net.ParseIP(fields[2]).To4()
	if public == nil || private == nil || overlay == nil {
		return AddressTuple{}, fmt.Errorf("%w: %q: malformed IPv4 address", ErrPatternMismatch, entry)
	}

	r := realm.Legacy
	if realmDigit == "1" {
		r = realm.VPC
	}

	return AddressTuple{
		Public:  public,
		Private: private,
		Overlay: overlay,
		Realm:   r,
	}, nil
}

// Encode renders the tuple as the `public|private|overlay|realm` payload
// described in spec.md §3, without the uuid prefix - this is what
// Membership joins into ip_map with.
func (t AddressTuple) Encode() string {
	return fmt.Sprintf("%s|%s|%s|%c", t.Public, t.Private, t.Overlay, t.Realm.Digit())
}

// FilterAddress returns the address a host on selfRealm should use as
// the source match in an ingress accept rule for this peer: same-realm
// peers are reached over their private address, cross-realm peers only
// over their public address (spec.md §4.5).
func (t AddressTuple) FilterAddress(selfRealm realm.Realm) net.IP {
	if t.Realm == selfRealm {
		return t.Private
	}
	return t.Public
}

// NATTarget is the DNAT destination computed for one peer: overlay is
// matched as the destination, dest is rewritten in as the real address.
type NATTarget struct {
	Overlay net.IP
	Dest    net.IP
}

// NATTargets returns the DNAT rewrite for this peer as seen from a host
// on selfRealm (spec.md §4.5).
func (t AddressTuple) NATTargets(selfRealm realm.Realm) NATTarget {
	dest := t.Public
	if t.Realm == selfRealm {
		dest = t.Private
	}
	return NATTarget{Overlay: t.Overlay, Dest: dest}
}
