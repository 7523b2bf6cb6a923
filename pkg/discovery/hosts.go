package discovery

import (
	"encoding/binary"
	"net/netip"

	"github.com/pkg/errors"
)

// Prefix lengths a sweep accepts. /16 is 65534 hosts, far more than a
// sweep reaches before its deadline.
const (
	MinSubnetBits = 16
	MaxSubnetBits = 30
)

var ErrUnsupportedSubnet = errors.New("subnet must be IPv4 with a prefix length between 16 and 30")

// Hosts lists every usable host address of subnet in ascending order. The
// network and broadcast addresses are excluded.
func Hosts(subnet netip.Prefix) ([]netip.Addr, error) {
	if err := checkSubnet(subnet); err != nil {
		return nil, err
	}

	subnet = subnet.Masked()
	network := uint64(toUint32(subnet.Addr()))
	size := uint64(1) << (32 - subnet.Bits())

	hosts := make([]netip.Addr, 0, size-2)
	for i := uint64(1); i < size-1; i++ {
		hosts = append(hosts, fromUint32(uint32(network+i)))
	}
	return hosts, nil
}

// ParseSubnet accepts CIDR notation; a host address inside the subnet is allowed.
func ParseSubnet(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, errors.Wrap(err, "parsing subnet")
	}
	if err := checkSubnet(p); err != nil {
		return netip.Prefix{}, err
	}
	return p.Masked(), nil
}

func checkSubnet(p netip.Prefix) error {
	if !p.IsValid() || !p.Addr().Is4() || p.Bits() < MinSubnetBits || p.Bits() > MaxSubnetBits {
		return errors.Wrapf(ErrUnsupportedSubnet, "subnet %s", p)
	}
	return nil
}

func toUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func fromUint32(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}
