package sionet

import (
	"fmt"

	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/header"
	"gvisor.dev/gvisor/pkg/tcpip/network/arp"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv6"

	"github.com/opd-ai/sionet/device"
	"github.com/opd-ai/sionet/result"
)

var (
	// ErrFragmentDropped is reported for an IPv4 fragment received while
	// reassembly is disabled.
	ErrFragmentDropped = result.New(result.Fragmented, "ipv4 fragment dropped")

	// ErrUnrecognizedFrame is reported for frames of an unknown protocol.
	ErrUnrecognizedFrame = result.New(result.Unrecognized, "unrecognized frame")

	// ErrTruncatedFrame is reported for frames shorter than their link header.
	ErrTruncatedFrame = result.New(result.Truncated, "truncated frame")
)

// classify returns the network protocol of frame and its network-layer
// bytes.
func (i *Interface) classify(frame []byte) (tcpip.NetworkProtocolNumber, []byte, error) {
	if i.medium == device.MediumEthernet {
		if len(frame) < header.EthernetMinimumSize {
			return 0, nil, fmt.Errorf("%w: %d bytes", ErrTruncatedFrame, len(frame))
		}
		proto := header.Ethernet(frame).Type()
		switch proto {
		case ipv4.ProtocolNumber, ipv6.ProtocolNumber, arp.ProtocolNumber:
			return proto, frame[header.EthernetMinimumSize:], nil
		default:
			return 0, nil, fmt.Errorf("%w: ethertype %#04x", ErrUnrecognizedFrame, uint16(proto))
		}
	}

	if len(frame) == 0 {
		return 0, nil, ErrTruncatedFrame
	}
	switch v := header.IPVersion(frame); v {
	case header.IPv4Version:
		return ipv4.ProtocolNumber, frame, nil
	case header.IPv6Version:
		return ipv6.ProtocolNumber, frame, nil
	default:
		return 0, nil, fmt.Errorf("%w: ip version %d", ErrUnrecognizedFrame, v)
	}
}

// isIPv4Fragment reports whether ip is a fragment of a larger datagram.
func isIPv4Fragment(proto tcpip.NetworkProtocolNumber, ip []byte) bool {
	if proto != ipv4.ProtocolNumber || len(ip) < header.IPv4MinimumSize {
		return false
	}
	h := header.IPv4(ip)
	return h.More() || h.FragmentOffset() != 0
}
