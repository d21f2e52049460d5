package allocator

import (
	"fmt"
	"net"
)

// canonicalIPInCIDR returns cidr with its IP normalized to the minimal
// byte length implied by the mask (4 bytes for an IPv4 /0-/32), adapted
// from the teacher's pkg/agent/ipam.go range-walking IPAM. neti only
// ever deals in IPv4 overlay subnets, so the IPv6 branch is dropped.
func canonicalIPInCIDR(in *net.IPNet) (*net.IPNet, error) {
	_, size := in.Mask.Size()
	if size != net.IPv4len*8 {
		return nil, fmt.Errorf("overlay subnet %q is not an IPv4 CIDR", in.String())
	}
	out := net.IPNet{Mask: in.Mask}
	out.IP = in.IP.To4()
	if out.IP == nil {
		return nil, fmt.Errorf("overlay subnet %q has a non-IPv4 network address", in.String())
	}
	return &out, nil
}

func byteSliceAnd(a, b []byte) ([]byte, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("bitwise AND called with different lengths: len(a)=%d len(b)=%d", len(a), len(b))
	}
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] & b[i]
	}
	return out, nil
}

func byteSliceOr(a, b []byte) ([]byte, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("bitwise OR called with different lengths: len(a)=%d len(b)=%d", len(a), len(b))
	}
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] | b[i]
	}
	return out, nil
}

func byteSliceNot(a []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = ^a[i]
	}
	return out
}

// defaultRangeStart returns the subnet's first usable host address: the
// network address plus one, for any mask shorter than /31.
func defaultRangeStart(cidr *net.IPNet) (net.IP, error) {
	cidr, err := canonicalIPInCIDR(cidr)
	if err != nil {
		return nil, err
	}
	ones, bits := cidr.Mask.Size()
	start := make(net.IP, len(cidr.IP))
	copy(start, cidr.IP)
	if bits == net.IPv4len*8 && ones < 31 {
		start[len(start)-1]++
	}
	return start, nil
}

// defaultRangeEnd returns the subnet's last usable host address: the
// broadcast address minus one, for any mask shorter than /31.
func defaultRangeEnd(cidr *net.IPNet) (net.IP, error) {
	cidr, err := canonicalIPInCIDR(cidr)
	if err != nil {
		return nil, err
	}
	ones, bits := cidr.Mask.Size()
	notMask := byteSliceNot(cidr.Mask)
	out, err := byteSliceOr(notMask, cidr.IP)
	if err != nil {
		return nil, err
	}
	if bits == net.IPv4len*8 && ones < 31 {
		out[len(out)-1]--
	}
	return out, nil
}

// incrementIP returns a+1, wrapping within the byte slice as a big-endian
// counter, grounded on the teacher's byteSliceIncrement.
func incrementIP(ip net.IP) net.IP {
	out := make(net.IP, len(ip))
	copy(out, ip)
	for i := len(out) - 1; i >= 0; i-- {
		out[i]++
		if out[i] != 0 {
			break
		}
	}
	return out
}

// hostAddresses enumerates every usable host address of cidr, in
// ascending order, for /30 and larger subnets; for /31 and /32 it
// returns every address in the block (no network/broadcast reservation
// applies at that size).
func hostAddresses(cidr *net.IPNet) ([]net.IP, error) {
	start, err := defaultRangeStart(cidr)
	if err != nil {
		return nil, err
	}
	end, err := defaultRangeEnd(cidr)
	if err != nil {
		return nil, err
	}
	var out []net.IP
	for cur := start; ; cur = incrementIP(cur) {
		out = append(out, cur)
		if cur.Equal(end) {
			break
		}
		if len(out) > 1<<20 {
			return nil, fmt.Errorf("overlay subnet %q is too large to enumerate", cidr.String())
		}
	}
	return out, nil
}
