package main

import "C"

import (
	"math"

	"github.com/opd-ai/sionet"
	"github.com/opd-ai/sionet/address"
	"github.com/opd-ai/sionet/limits"
	"github.com/opd-ai/sionet/socket"
)

// invalidPacketSize is returned by the packet builders when the message
// cannot be built at all, so no buffer size would satisfy the call.
const invalidPacketSize = math.MaxUint32

//export newIcmpSocket
func newIcmpSocket(iface uint64) uint64 {
	return registerSocket("newIcmpSocket", iface, socket.KindICMP, (*sionet.Interface).NewICMPSocket)
}

//export deleteIcmpSocket
func deleteIcmpSocket(sock uint64) {
	deleteSocket("deleteIcmpSocket", sock, socket.KindICMP)
}

func icmpBind(function string, iface, sock uint64, target socket.ICMPEndpoint) uint8 {
	ctx, h, err := lookupSocket(iface, sock, socket.KindICMP)
	if err != nil {
		return code(function, err)
	}
	return code(function, socket.ICMPBind(ctx, h, target))
}

//export icmpBindAny
func icmpBindAny(iface, sock uint64) uint8 {
	return icmpBind("icmpBindAny", iface, sock, socket.ICMPEndpoint{Binding: socket.ICMPBindUnspecified})
}

//export icmpBindIdent
func icmpBindIdent(iface, sock uint64, ident uint16) uint8 {
	return icmpBind("icmpBindIdent", iface, sock, socket.ICMPEndpoint{Binding: socket.ICMPBindIdent, Ident: ident})
}

// icmpBindUDP is kept for API compatibility; the embedded stack reports it
// as NotSupported.
//
//export icmpBindUDP
func icmpBindUDP(iface, sock uint64, port uint16, ip *byte) uint8 {
	target := socket.ICMPEndpoint{Binding: socket.ICMPBindUDP, UDP: address.ListenEndpoint{Port: port}}
	if a, ok := addressAt(ip); ok && !a.IsUnspecified() {
		target.UDP.Addr = &a
	}
	return icmpBind("icmpBindUDP", iface, sock, target)
}

//export icmpSend
func icmpSend(iface, sock uint64, ip *byte, data *byte, size uint32) uint8 {
	ctx, h, err := lookupSocket(iface, sock, socket.KindICMP)
	if err != nil {
		return code("icmpSend", err)
	}
	dst, _ := addressAt(ip)
	return code("icmpSend", socket.ICMPSend(ctx, h, bytesAt(data, size), dst))
}

// icmpReceive dequeues one ICMP message into dst. The source is written
// through ip and the message size through received; both may be nil.
//
//export icmpReceive
func icmpReceive(iface, sock uint64, ip *byte, dst *byte, size uint32, received *uint32) uint8 {
	ctx, h, err := lookupSocket(iface, sock, socket.KindICMP)
	if err != nil {
		return code("icmpReceive", err)
	}
	n, from, err := socket.ICMPRecv(ctx, h, bytesAt(dst, size))
	if err != nil {
		return code("icmpReceive", err)
	}
	writeAddress(ip, from)
	if received != nil {
		*received = uint32(n)
	}
	return 0
}

// buildIcmpV4EchoPacket writes an echo message into dst. It returns 0 on
// success, the required size when dst is too small and invalidPacketSize
// for an unknown message kind.
//
//export buildIcmpV4EchoPacket
func buildIcmpV4EchoPacket(kind uint8, ident, seq uint16, payload *byte, payloadSize uint32, dst *byte, dstSize uint32) uint32 {
	need, err := socket.WriteICMPv4Echo(bytesAt(dst, dstSize), socket.EchoKind(kind), ident, seq, bytesAt(payload, payloadSize))
	if err != nil {
		code("buildIcmpV4EchoPacket", err)
		return invalidPacketSize
	}
	return uint32(need)
}

// buildIcmpV4ErrorPacket writes an error message about the IPv4 datagram in
// original into dst, with the same return convention as
// buildIcmpV4EchoPacket.
//
//export buildIcmpV4ErrorPacket
func buildIcmpV4ErrorPacket(kind, icmpCode uint8, original *byte, originalSize uint32, dst *byte, dstSize uint32) uint32 {
	pkt, err := socket.BuildICMPv4Error(socket.ErrorKind(kind), icmpCode, bytesAt(original, originalSize))
	if err != nil {
		code("buildIcmpV4ErrorPacket", err)
		return invalidPacketSize
	}
	out := bytesAt(dst, dstSize)
	if limits.ValidateDestination(len(out), len(pkt)) != nil {
		return uint32(len(pkt))
	}
	copy(out, pkt)
	return 0
}
