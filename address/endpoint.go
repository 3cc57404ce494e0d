package address

import (
	"fmt"
	"net/netip"

	"gvisor.dev/gvisor/pkg/tcpip"
)

// Interface is an address plus a prefix length counted in IPv6 bit-space.
// An IPv4 /24 therefore arrives as Prefix 120.
type Interface struct {
	Prefix uint8
	Addr   Address
}

// Native builds the native CIDR. For IPv4-mapped addresses the prefix is
// reduced by IPv4MappedPrefixBits first.
func (i Interface) Native() (tcpip.AddressWithPrefix, error) {
	prefix := int(i.Prefix)
	if prefix > 128 {
		return tcpip.AddressWithPrefix{}, fmt.Errorf("%w: %d exceeds 128", ErrInvalidPrefix, prefix)
	}
	if i.Addr.IsIPv4() {
		if prefix < IPv4MappedPrefixBits {
			return tcpip.AddressWithPrefix{}, fmt.Errorf("%w: IPv4 prefix %d is below %d", ErrInvalidPrefix, prefix, IPv4MappedPrefixBits)
		}
		prefix -= IPv4MappedPrefixBits
	}
	return tcpip.AddressWithPrefix{Address: i.Addr.Native(), PrefixLen: prefix}, nil
}

// InterfaceFromNative is the inverse of Interface.Native.
func InterfaceFromNative(a tcpip.AddressWithPrefix) Interface {
	prefix := a.PrefixLen
	if a.Address.Len() == 4 {
		prefix += IPv4MappedPrefixBits
	}
	return Interface{Prefix: uint8(prefix), Addr: FromNative(a.Address)}
}

// InterfaceFromPrefix converts a netip.Prefix, promoting IPv4 prefix lengths
// into IPv6 bit-space.
func InterfaceFromPrefix(p netip.Prefix) Interface {
	bits := p.Bits()
	if p.Addr().Is4() {
		bits += IPv4MappedPrefixBits
	}
	return Interface{Prefix: uint8(bits), Addr: FromNetIP(p.Addr())}
}

func (i Interface) String() string {
	bits := int(i.Prefix)
	if i.Addr.IsIPv4() {
		bits -= IPv4MappedPrefixBits
	}
	return fmt.Sprintf("%s/%d", i.Addr, bits)
}

// Endpoint is a port plus an address.
type Endpoint struct {
	Port uint16
	Addr Address
}

// Native returns the full native address of the endpoint.
func (e Endpoint) Native() tcpip.FullAddress {
	return tcpip.FullAddress{Addr: e.Addr.Native(), Port: e.Port}
}

// EndpointFromNative converts a native full address.
func EndpointFromNative(fa tcpip.FullAddress) Endpoint {
	return Endpoint{Port: fa.Port, Addr: FromNative(fa.Addr)}
}

// Listen converts e to a listen endpoint. The all-zero address, and any
// address the native type considers unspecified, mean "no address filter".
func (e Endpoint) Listen() ListenEndpoint {
	if e.Addr.IsZero() || e.Addr.IsUnspecified() {
		return ListenEndpoint{Port: e.Port}
	}
	addr := e.Addr
	return ListenEndpoint{Port: e.Port, Addr: &addr}
}

func (e Endpoint) String() string {
	return netip.AddrPortFrom(e.Addr.NetIP(), e.Port).String()
}

// ListenEndpoint is an endpoint whose address may be absent, meaning every
// local address is accepted.
type ListenEndpoint struct {
	Port uint16
	Addr *Address
}

// Specified reports whether the endpoint filters on an address.
func (l ListenEndpoint) Specified() bool {
	return l.Addr != nil
}

// Endpoint materializes "no filter" back into the all-zero address.
func (l ListenEndpoint) Endpoint() Endpoint {
	if l.Addr == nil {
		return Endpoint{Port: l.Port}
	}
	return Endpoint{Port: l.Port, Addr: *l.Addr}
}

// Native returns the bind address for the embedded stack. An absent address
// leaves the native address empty so the stack binds to every address.
func (l ListenEndpoint) Native() tcpip.FullAddress {
	if l.Addr == nil {
		return tcpip.FullAddress{Port: l.Port}
	}
	return tcpip.FullAddress{Addr: l.Addr.Native(), Port: l.Port}
}
