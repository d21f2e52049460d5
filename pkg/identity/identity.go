// Package identity discovers this host's instance-id, public/private
// addresses, and realm from cloud metadata, per spec.md §4.1.
package identity

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/vishvananda/netlink"

	"github.com/Instagram/neti/pkg/realm"
)

const (
	instanceIDPath = "instance-id"
	publicIPPath   = "public-ipv4"
	privateIPPath  = "local-ipv4"
	macPath        = "mac"
	vpcIDPathFmt   = "network/interfaces/macs/%s/vpc-id"

	fallbackPrimaryInterface = "eth0"
)

// MetadataClient is the narrow surface HostIdentity needs from the cloud
// metadata service. The production implementation wraps
// aws-sdk-go-v2/feature/ec2/imds; tests supply a fake.
type MetadataClient interface {
	GetMetadata(ctx context.Context, path string) (string, error)
}

// HostIdentity exposes this host's stable identity fields.
type HostIdentity struct {
	instanceID  string
	publicAddr  string
	privateAddr string
	isVPC       bool
	primaryIf   string
}

// Discover performs every metadata fetch and the realm probe described in
// spec.md §4.1. All fetch failures other than the VPC-id probe are fatal
// (wrapped in ErrMetadataUnavailable).
func Discover(ctx context.Context, mc MetadataClient) (*HostIdentity, error) {
	instanceID, err := mc.GetMetadata(ctx, instanceIDPath)
	if err != nil {
		return nil, fmt.Errorf("%w: instance-id: %v", ErrMetadataUnavailable, err)
	}
	publicAddr, err := mc.GetMetadata(ctx, publicIPPath)
	if err != nil {
		return nil, fmt.Errorf("%w: public-ipv4: %v", ErrMetadataUnavailable, err)
	}
	privateAddr, err := mc.GetMetadata(ctx, privateIPPath)
	if err != nil {
		return nil, fmt.Errorf("%w: local-ipv4: %v", ErrMetadataUnavailable, err)
	}
	mac, err := mc.GetMetadata(ctx, macPath)
	if err != nil {
		return nil, fmt.Errorf("%w: mac: %v", ErrMetadataUnavailable, err)
	}

	// A successful response means VPC; any error (typically a 404) means
	// LEGACY - this probe is the one metadata read whose failure is not
	// fatal, per spec.md §4.1.
	_, vpcErr := mc.GetMetadata(ctx, fmt.Sprintf(vpcIDPathFmt, mac))
	isVPC := vpcErr == nil

	return &HostIdentity{
		instanceID:  instanceID,
		publicAddr:  publicAddr,
		privateAddr: privateAddr,
		isVPC:       isVPC,
		primaryIf:   primaryInterfaceName(),
	}, nil
}

// InstanceID returns this host's cloud instance identifier.
func (h *HostIdentity) InstanceID() string { return h.instanceID }

// PublicAddress returns this host's public IPv4 address.
func (h *HostIdentity) PublicAddress() string { return h.publicAddr }

// PrivateAddress returns this host's private IPv4 address.
func (h *HostIdentity) PrivateAddress() string { return h.privateAddr }

// IsVPC reports whether this host is on the virtual-private-cloud realm.
func (h *HostIdentity) IsVPC() bool { return h.isVPC }

// Realm returns this host's network realm.
func (h *HostIdentity) Realm() realm.Realm { return realm.FromBool(h.isVPC) }

// PrimaryInterface returns the name of the interface carrying the
// default route, used by RuleSynthesizer's open_80 egress rule. It
// falls back to "eth0" - the original's hardcoded value - if no default
// route can be resolved.
func (h *HostIdentity) PrimaryInterface() string { return h.primaryIf }

// primaryInterfaceName resolves the interface carrying the default IPv4
// route via netlink. Any failure (no netlink support, no default route)
// falls back to the original implementation's hardcoded "eth0".
func primaryInterfaceName() string {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return fallbackPrimaryInterface
	}
	for _, r := range routes {
		if r.Dst != nil {
			continue // not a default route
		}
		link, err := netlink.LinkByIndex(r.LinkIndex)
		if err != nil {
			continue
		}
		return link.Attrs().Name
	}
	return fallbackPrimaryInterface
}

// drain fully reads and closes an io.ReadCloser into a string, trimming
// nothing - cloud metadata fields come back exactly as bytes on the wire.
func drain(rc io.ReadCloser) (string, error) {
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
