package main

import "C"

import (
	"github.com/opd-ai/sionet"
	"github.com/opd-ai/sionet/address"
	"github.com/opd-ai/sionet/socket"
)

//export newUdpSocket
func newUdpSocket(iface uint64) uint64 {
	return registerSocket("newUdpSocket", iface, socket.KindUDP, (*sionet.Interface).NewUDPSocket)
}

//export deleteUdpSocket
func deleteUdpSocket(sock uint64) {
	deleteSocket("deleteUdpSocket", sock, socket.KindUDP)
}

//export udpBind
func udpBind(iface, sock uint64, port uint16) uint8 {
	ctx, h, err := lookupSocket(iface, sock, socket.KindUDP)
	if err != nil {
		return code("udpBind", err)
	}
	return code("udpBind", socket.UDPBind(ctx, h, port))
}

// udpGetLastReceivedPacketSize returns the payload size of the next queued
// datagram, or 0 when none is queued.
//
//export udpGetLastReceivedPacketSize
func udpGetLastReceivedPacketSize(iface, sock uint64) uint32 {
	ctx, h, err := lookupSocket(iface, sock, socket.KindUDP)
	if err != nil {
		code("udpGetLastReceivedPacketSize", err)
		return 0
	}
	n, err := socket.UDPPeekSize(ctx, h)
	if err != nil {
		code("udpGetLastReceivedPacketSize", err)
		return 0
	}
	return uint32(n)
}

// udpReceive dequeues one datagram into dst. The sender is written through
// port and ip, the payload size through received. Any of the three may be
// nil.
//
//export udpReceive
func udpReceive(iface, sock uint64, port *uint16, ip *byte, dst *byte, size uint32, received *uint32) uint8 {
	ctx, h, err := lookupSocket(iface, sock, socket.KindUDP)
	if err != nil {
		return code("udpReceive", err)
	}
	n, from, err := socket.UDPRecv(ctx, h, bytesAt(dst, size))
	if err != nil {
		return code("udpReceive", err)
	}
	if port != nil {
		*port = from.Port
	}
	writeAddress(ip, from.Addr)
	if received != nil {
		*received = uint32(n)
	}
	return 0
}

//export udpSend
func udpSend(iface, sock uint64, port uint16, ip *byte, data *byte, size uint32) uint8 {
	ctx, h, err := lookupSocket(iface, sock, socket.KindUDP)
	if err != nil {
		return code("udpSend", err)
	}
	remote, _ := addressAt(ip)
	return code("udpSend", socket.UDPSend(ctx, h, bytesAt(data, size), address.Endpoint{Port: port, Addr: remote}))
}
