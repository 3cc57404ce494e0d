// Package address converts between the fixed-width address structures used on
// the C boundary and the embedded stack's native address types.
//
// Every IP address crosses the boundary as 16 bytes. IPv4 addresses travel in
// IPv4-mapped form (::ffff:a.b.c.d) and are collapsed back to 4 bytes on the
// way in, so a 16-byte value carrying the mapped prefix is always IPv4.
package address

import (
	"fmt"
	"net"
	"net/netip"

	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv6"

	"github.com/opd-ai/sionet/result"
)

const (
	// Size is the wire size of an Address.
	Size = 16
	// MacSize is the wire size of a MacAddress.
	MacSize = 6
	// IPv4MappedPrefixBits is the length of the ::ffff:0:0/96 prefix. Host
	// supplied prefix lengths for IPv4 interfaces are counted on top of it.
	IPv4MappedPrefixBits = 96
)

var ipv4MappedPrefix = [12]byte{10: 0xff, 11: 0xff}

var (
	// ErrInvalidPrefix indicates a prefix length that does not fit the address family.
	ErrInvalidPrefix = result.New(result.Illegal, "invalid prefix length")

	// ErrInvalidLength indicates a native address of unexpected size.
	ErrInvalidLength = result.New(result.Illegal, "invalid address length")
)

// Address stores any IP address in 16-byte IPv6 form.
type Address [Size]byte

// Unspecified is the all-zero address, the "any address" sentinel.
var Unspecified Address

// FromSlice copies a 4- or 16-byte slice into an Address.
func FromSlice(b []byte) (Address, error) {
	var a Address
	switch len(b) {
	case 4:
		copy(a[:12], ipv4MappedPrefix[:])
		copy(a[12:], b)
	case Size:
		copy(a[:], b)
	default:
		return a, fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(b))
	}
	return a, nil
}

// FromNative promotes a native address to its 16-byte form. IPv4 addresses
// become IPv4-mapped; an empty native address becomes Unspecified.
func FromNative(addr tcpip.Address) Address {
	a, err := FromSlice(addr.AsSlice())
	if err != nil {
		return Unspecified
	}
	return a
}

// FromNetIP converts a netip.Addr.
func FromNetIP(ip netip.Addr) Address {
	return Address(ip.As16())
}

// MustParse parses a textual IPv4 or IPv6 address and panics on error. It is
// meant for constants and tests.
func MustParse(s string) Address {
	return FromNetIP(netip.MustParseAddr(s))
}

// IsIPv4 reports whether a carries the IPv4-mapped prefix.
func (a Address) IsIPv4() bool {
	return [12]byte(a[:12]) == ipv4MappedPrefix
}

// IsZero reports whether a is the all-zero sentinel.
func (a Address) IsZero() bool {
	return a == Unspecified
}

// IsUnspecified reports whether a is unspecified under the native definition,
// which covers both :: and the mapped form of 0.0.0.0.
func (a Address) IsUnspecified() bool {
	return a.Native().Unspecified()
}

// Native collapses a to the native representation: 4 bytes when the value is
// IPv4-mapped, 16 bytes otherwise.
func (a Address) Native() tcpip.Address {
	if a.IsIPv4() {
		return tcpip.AddrFrom4([4]byte(a[12:]))
	}
	return tcpip.AddrFrom16(a)
}

// NetIP returns the unmapped netip form.
func (a Address) NetIP() netip.Addr {
	return netip.AddrFrom16(a).Unmap()
}

// IP returns a net.IP view for APIs that still use it.
func (a Address) IP() net.IP {
	return net.IP(a.NetIP().AsSlice())
}

// NetworkProtocol returns the network protocol that carries a.
func (a Address) NetworkProtocol() tcpip.NetworkProtocolNumber {
	if a.IsIPv4() {
		return ipv4.ProtocolNumber
	}
	return ipv6.ProtocolNumber
}

// String returns the unmapped textual form.
func (a Address) String() string {
	return a.NetIP().String()
}

// MacAddress is a raw 6-byte hardware address.
type MacAddress [MacSize]byte

// MacFromNative converts a native link address; other lengths yield the zero MAC.
func MacFromNative(l tcpip.LinkAddress) MacAddress {
	var m MacAddress
	if len(l) == MacSize {
		copy(m[:], l)
	}
	return m
}

// Native returns the link address form used by the embedded stack.
func (m MacAddress) Native() tcpip.LinkAddress {
	return tcpip.LinkAddress(m[:])
}

// IsZero reports whether m is all zeros.
func (m MacAddress) IsZero() bool {
	return m == MacAddress{}
}

func (m MacAddress) String() string {
	return net.HardwareAddr(m[:]).String()
}
