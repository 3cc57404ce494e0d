package main

import "C"

import (
	"github.com/opd-ai/sionet"
	"github.com/opd-ai/sionet/address"
	"github.com/opd-ai/sionet/socket"
)

//export newTcpSocket
func newTcpSocket(iface uint64) uint64 {
	return registerSocket("newTcpSocket", iface, socket.KindTCP, (*sionet.Interface).NewTCPSocket)
}

//export deleteTcpSocket
func deleteTcpSocket(sock uint64) {
	deleteSocket("deleteTcpSocket", sock, socket.KindTCP)
}

//export tcpConnect
func tcpConnect(iface, sock uint64, port uint16, ip *byte, localPort uint16) uint8 {
	ctx, h, err := lookupSocket(iface, sock, socket.KindTCP)
	if err != nil {
		return code("tcpConnect", err)
	}
	remote, _ := addressAt(ip)
	return code("tcpConnect", socket.TCPConnect(ctx, h, address.Endpoint{Port: port, Addr: remote}, localPort))
}

//export tcpListen
func tcpListen(iface, sock uint64, port uint16) uint8 {
	ctx, h, err := lookupSocket(iface, sock, socket.KindTCP)
	if err != nil {
		return code("tcpListen", err)
	}
	return code("tcpListen", socket.TCPListen(ctx, h, port))
}

// tcpSend queues data and stores the accepted byte count in sent, which may
// be nil.
//
//export tcpSend
func tcpSend(iface, sock uint64, data *byte, size uint32, sent *uint32) uint8 {
	ctx, h, err := lookupSocket(iface, sock, socket.KindTCP)
	if err != nil {
		return code("tcpSend", err)
	}
	n, err := socket.TCPSend(ctx, h, bytesAt(data, size))
	if sent != nil {
		*sent = uint32(n)
	}
	return code("tcpSend", err)
}

// tcpReceive copies buffered stream data into dst and stores the byte count
// in received, which may be nil.
//
//export tcpReceive
func tcpReceive(iface, sock uint64, dst *byte, size uint32, received *uint32) uint8 {
	ctx, h, err := lookupSocket(iface, sock, socket.KindTCP)
	if err != nil {
		return code("tcpReceive", err)
	}
	n, err := socket.TCPRecv(ctx, h, bytesAt(dst, size))
	if received != nil {
		*received = uint32(n)
	}
	return code("tcpReceive", err)
}

//export tcpIsActive
func tcpIsActive(iface, sock uint64) bool {
	ctx, h, err := lookupSocket(iface, sock, socket.KindTCP)
	if err != nil {
		code("tcpIsActive", err)
		return false
	}
	active, err := socket.TCPIsActive(ctx, h)
	if err != nil {
		code("tcpIsActive", err)
	}
	return active
}

//export tcpClose
func tcpClose(iface, sock uint64) uint8 {
	ctx, h, err := lookupSocket(iface, sock, socket.KindTCP)
	if err != nil {
		return code("tcpClose", err)
	}
	return code("tcpClose", socket.TCPClose(ctx, h))
}
