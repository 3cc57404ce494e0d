package main

import "C"

import (
	"errors"
	"unsafe"

	"golang.org/x/net/dns/dnsmessage"

	"github.com/opd-ai/sionet"
	"github.com/opd-ai/sionet/address"
	"github.com/opd-ai/sionet/handle"
	"github.com/opd-ai/sionet/result"
	"github.com/opd-ai/sionet/socket"
)

// newDnsSocket creates a DNS socket querying count servers, stored back to
// back as 16-byte addresses at servers.
//
//export newDnsSocket
func newDnsSocket(iface uint64, servers *byte, count uint32) uint64 {
	raw := bytesAt(servers, count*address.Size)
	list := make([]address.Address, 0, count)
	for off := 0; off+address.Size <= len(raw); off += address.Size {
		a, _ := addressAt(&raw[off])
		list = append(list, a)
	}
	return registerSocket("newDnsSocket", iface, socket.KindDNS, func(i *sionet.Interface) (socket.Handle, error) {
		return i.NewDNSSocket(list)
	})
}

//export deleteDnsSocket
func deleteDnsSocket(sock uint64) {
	deleteSocket("deleteDnsSocket", sock, socket.KindDNS)
}

// newDnsQuery starts resolving name. qtype is the DNS record type, 1 for A
// or 28 for AAAA. It returns 0 on failure with the reason in errPtr, which
// may be nil.
//
//export newDnsQuery
func newDnsQuery(iface, sock uint64, name *byte, nameSize uint32, qtype uint16, errPtr *uint8) uint64 {
	ctx, h, err := lookupSocket(iface, sock, socket.KindDNS)
	if err != nil {
		setCode(errPtr, code("newDnsQuery", err))
		return 0
	}
	qh, err := socket.DNSStartQuery(ctx, h, string(bytesAt(name, nameSize)), dnsmessage.Type(qtype))
	if err != nil {
		setCode(errPtr, code("newDnsQuery", err))
		return 0
	}
	setCode(errPtr, 0)
	return uint64(queries.Insert(queryRef{sock: handle.Handle(sock), inner: qh}))
}

func lookupQuery(iface, sock, query uint64) (*sionet.Interface, socket.Handle, socket.QueryHandle, error) {
	ctx, h, err := lookupSocket(iface, sock, socket.KindDNS)
	if err != nil {
		return nil, 0, 0, err
	}
	ref, err := queries.Get(handle.Handle(query))
	if err != nil {
		return nil, 0, 0, err
	}
	if ref.sock != handle.Handle(sock) {
		return nil, 0, 0, handle.ErrWrongKind
	}
	return ctx, h, ref.inner, nil
}

// getDnsQueryResult reports the state of a query. Once it returns anything
// but Pending the query handle is released. Resolved addresses are written
// back to back as 16-byte values, at most maxAddrs of them; count receives
// the number of addresses the answer carried.
//
//export getDnsQueryResult
func getDnsQueryResult(iface, sock, query uint64, addrs *byte, maxAddrs uint32, count *uint32) uint8 {
	ctx, h, qh, err := lookupQuery(iface, sock, query)
	if err != nil {
		return code("getDnsQueryResult", err)
	}
	resolved, err := socket.DNSGetQueryResult(ctx, h, qh)
	if result.Of(err) == result.Pending {
		return uint8(result.Pending)
	}
	_ = queries.Remove(handle.Handle(query))
	if err != nil {
		return code("getDnsQueryResult", err)
	}

	if count != nil {
		*count = uint32(len(resolved))
	}
	if addrs != nil {
		out := unsafe.Slice(addrs, int(maxAddrs)*address.Size)
		for i, a := range resolved {
			if uint32(i) >= maxAddrs {
				break
			}
			copy(out[i*address.Size:], a[:])
		}
	}
	return 0
}

//export deleteDnsQuery
func deleteDnsQuery(iface, sock, query uint64) uint8 {
	ctx, h, qh, err := lookupQuery(iface, sock, query)
	if err != nil {
		return code("deleteDnsQuery", err)
	}
	_ = queries.Remove(handle.Handle(query))
	err = socket.DNSCancelQuery(ctx, h, qh)
	if errors.Is(err, handle.ErrStaleHandle) {
		// The socket already dropped it, for instance after a final result.
		return 0
	}
	return code("deleteDnsQuery", err)
}
