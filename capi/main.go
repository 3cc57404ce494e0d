package main

/*
#include <stdint.h>
#include <stdbool.h>
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/sionet"
	"github.com/opd-ai/sionet/address"
	"github.com/opd-ai/sionet/handle"
	"github.com/opd-ai/sionet/result"
	"github.com/opd-ai/sionet/socket"
)

// This is the main package required for building as c-shared.
func main() {}

// socketRef ties a C socket handle to the interface that owns the socket.
// Socket handles issued by two interfaces may collide, so the C side never
// sees the per-interface handle directly.
type socketRef struct {
	owner handle.Handle
	inner socket.Handle
	kind  socket.Kind
}

// queryRef ties a C query handle to its DNS socket.
type queryRef struct {
	sock  handle.Handle
	inner socket.QueryHandle
}

var (
	builders   = handle.NewTable[*sionet.Builder](handle.KindBuilder)
	interfaces = handle.NewTable[*sionet.Interface](handle.KindInterface)
	sockets    = handle.NewTable[socketRef](handle.KindSocket)
	queries    = handle.NewTable[queryRef](handle.KindDNSQuery)

	processLogger *logrus.Logger
	loggerMutex   sync.RWMutex
)

// logger returns the process logger set up by initLogging, or a default
// logger at warning level when initLogging was never called.
func logger() *logrus.Logger {
	loggerMutex.RLock()
	l := processLogger
	loggerMutex.RUnlock()
	if l != nil {
		return l
	}

	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if processLogger == nil {
		processLogger = logrus.New()
		processLogger.SetLevel(logrus.WarnLevel)
	}
	return processLogger
}

// code converts err to the C result code and logs failures.
func code(function string, err error) uint8 {
	c := result.Of(err)
	if err != nil {
		logger().WithFields(logrus.Fields{
			"function": function,
			"package":  "capi",
			"code":     c.String(),
			"error":    err.Error(),
		}).Debug("Call failed")
	}
	return uint8(c)
}

// setCode stores c through an optional error pointer.
func setCode(errPtr *uint8, c uint8) {
	if errPtr != nil {
		*errPtr = c
	}
}

func bytesAt(p *byte, n uint32) []byte {
	if p == nil || n == 0 {
		return nil
	}
	return unsafe.Slice(p, n)
}

func addressAt(p *byte) (address.Address, bool) {
	var a address.Address
	if p == nil {
		return a, false
	}
	copy(a[:], unsafe.Slice(p, address.Size))
	return a, true
}

func writeAddress(p *byte, a address.Address) {
	if p != nil {
		copy(unsafe.Slice(p, address.Size), a[:])
	}
}

func macAt(p *byte) (address.MacAddress, bool) {
	var m address.MacAddress
	if p == nil {
		return m, false
	}
	copy(m[:], unsafe.Slice(p, address.MacSize))
	return m, true
}

func lookupInterface(h uint64) (*sionet.Interface, error) {
	return interfaces.Get(handle.Handle(h))
}

// lookupSocket resolves a C socket handle and checks that it belongs to the
// interface behind ifaceH and has the expected protocol.
func lookupSocket(ifaceH, sockH uint64, kind socket.Kind) (*sionet.Interface, socket.Handle, error) {
	iface, err := lookupInterface(ifaceH)
	if err != nil {
		return nil, 0, err
	}
	ref, err := sockets.Get(handle.Handle(sockH))
	if err != nil {
		return nil, 0, err
	}
	if ref.owner != handle.Handle(ifaceH) || ref.kind != kind {
		return nil, 0, handle.ErrWrongKind
	}
	return iface, ref.inner, nil
}

// registerSocket wraps a freshly created socket in a C handle.
func registerSocket(function string, ifaceH uint64, kind socket.Kind, create func(*sionet.Interface) (socket.Handle, error)) uint64 {
	iface, err := lookupInterface(ifaceH)
	if err != nil {
		code(function, err)
		return 0
	}
	inner, err := create(iface)
	if err != nil {
		code(function, err)
		return 0
	}
	return uint64(sockets.Insert(socketRef{owner: handle.Handle(ifaceH), inner: inner, kind: kind}))
}

// deleteSocket closes the socket behind sockH and forgets its handle.
func deleteSocket(function string, sockH uint64, kind socket.Kind) {
	ref, err := sockets.Get(handle.Handle(sockH))
	if err == nil && ref.kind != kind {
		err = handle.ErrWrongKind
	}
	if err != nil {
		code(function, err)
		return
	}
	if err := sockets.Remove(handle.Handle(sockH)); err != nil {
		code(function, err)
		return
	}
	if kind == socket.KindDNS {
		forgetQueries(func(q queryRef) bool { return q.sock == handle.Handle(sockH) })
	}
	if iface, err := lookupInterface(uint64(ref.owner)); err == nil {
		code(function, iface.DeleteSocket(ref.inner))
	}
}

// forgetQueries drops every query handle matching pred.
func forgetQueries(pred func(queryRef) bool) {
	var stale []handle.Handle
	queries.Range(func(h handle.Handle, q queryRef) bool {
		if pred(q) {
			stale = append(stale, h)
		}
		return true
	})
	for _, h := range stale {
		_ = queries.Remove(h)
	}
}
