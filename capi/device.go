package main

import "C"

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/sionet/handle"
)

// freeDevice closes an interface and invalidates every socket and query
// handle that belonged to it.
//
//export freeDevice
func freeDevice(h uint64) {
	iface, err := interfaces.Take(handle.Handle(h))
	if err != nil {
		code("freeDevice", err)
		return
	}
	iface.Close()

	owned := make(map[handle.Handle]bool)
	sockets.Range(func(sh handle.Handle, ref socketRef) bool {
		if ref.owner == handle.Handle(h) {
			owned[sh] = true
		}
		return true
	})
	for sh := range owned {
		_ = sockets.Remove(sh)
	}
	forgetQueries(func(q queryRef) bool { return owned[q.sock] })

	logger().WithFields(logrus.Fields{
		"function":  "freeDevice",
		"package":   "capi",
		"interface": iface.ID().String(),
		"sockets":   len(owned),
	}).Debug("Interface freed")
}

//export getCountOfPacketsInTxQueue
func getCountOfPacketsInTxQueue(h uint64) uintptr {
	iface, err := lookupInterface(h)
	if err != nil {
		code("getCountOfPacketsInTxQueue", err)
		return 0
	}
	return uintptr(iface.TxQueueLen())
}

// getLastTxPacketSize returns the size of the frame getLastTxPacket would
// return next, or 0 when nothing is queued.
//
//export getLastTxPacketSize
func getLastTxPacketSize(h uint64) uintptr {
	iface, err := lookupInterface(h)
	if err != nil {
		code("getLastTxPacketSize", err)
		return 0
	}
	return uintptr(iface.NextTxPacketSize())
}

// getLastTxPacket moves the next outgoing frame into dst and returns its
// size. It returns 0 when the queue is empty or dst is too small, in which
// case the frame stays queued.
//
//export getLastTxPacket
func getLastTxPacket(h uint64, dst *byte, size uint32) uintptr {
	iface, err := lookupInterface(h)
	if err != nil {
		code("getLastTxPacket", err)
		return 0
	}
	if iface.TxQueueLen() == 0 {
		return 0
	}
	n, err := iface.PopTxPacket(bytesAt(dst, size))
	if err != nil {
		code("getLastTxPacket", err)
		return 0
	}
	return uintptr(n)
}

//export putRxPacket
func putRxPacket(h uint64, src *byte, size uint32) uint8 {
	iface, err := lookupInterface(h)
	if err != nil {
		return code("putRxPacket", err)
	}
	return code("putRxPacket", iface.PutRxPacket(bytesAt(src, size)))
}

//export ifacePoll
func ifacePoll(h uint64) uint8 {
	iface, err := lookupInterface(h)
	if err != nil {
		return code("ifacePoll", err)
	}
	_, err = iface.Poll()
	return code("ifacePoll", err)
}
