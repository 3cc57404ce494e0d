package main

import "C"

import (
	"github.com/opd-ai/sionet"
	"github.com/opd-ai/sionet/address"
	"github.com/opd-ai/sionet/device"
	"github.com/opd-ai/sionet/handle"
)

//export newBuilder
func newBuilder() uint64 {
	return uint64(builders.Insert(sionet.NewBuilder()))
}

//export deleteBuilder
func deleteBuilder(h uint64) {
	if err := builders.Remove(handle.Handle(h)); err != nil {
		code("deleteBuilder", err)
	}
}

// step applies one configuration call. On success the old handle is
// released and the new builder gets a fresh handle. A call rejected before
// the builder was consumed leaves the old handle usable.
func step(function string, h uint64, apply func(*sionet.Builder) (*sionet.Builder, error)) uint64 {
	b, err := builders.Get(handle.Handle(h))
	if err != nil {
		code(function, err)
		return 0
	}
	next, err := apply(b)
	if b.Consumed() {
		_ = builders.Remove(handle.Handle(h))
	}
	if err != nil {
		code(function, err)
		return 0
	}
	return uint64(builders.Insert(next))
}

//export builderSetHardwareAddr
func builderSetHardwareAddr(h uint64, mac *byte) uint64 {
	return step("builderSetHardwareAddr", h, func(b *sionet.Builder) (*sionet.Builder, error) {
		m, ok := macAt(mac)
		if !ok {
			return nil, sionet.ErrNoHardwareAddr
		}
		return b.HardwareAddr(m)
	})
}

//export builderInitNeighbourCache
func builderInitNeighbourCache(h uint64) uint64 {
	return step("builderInitNeighbourCache", h, (*sionet.Builder).InitNeighbourCache)
}

//export builderAddNeighbour
func builderAddNeighbour(h uint64, ip, mac *byte) uint64 {
	return step("builderAddNeighbour", h, func(b *sionet.Builder) (*sionet.Builder, error) {
		a, okIP := addressAt(ip)
		m, okMAC := macAt(mac)
		if !okIP || !okMAC {
			return nil, address.ErrInvalidLength
		}
		return b.AddNeighbour(a, m)
	})
}

//export builderInitIPv4ReassemblyBuffer
func builderInitIPv4ReassemblyBuffer(h uint64) uint64 {
	return step("builderInitIPv4ReassemblyBuffer", h, (*sionet.Builder).InitIPv4Reassembly)
}

//export builderSetIPAddr
func builderSetIPAddr(h uint64, ip *byte, prefix uint8) uint64 {
	return step("builderSetIPAddr", h, func(b *sionet.Builder) (*sionet.Builder, error) {
		a, ok := addressAt(ip)
		if !ok {
			return nil, address.ErrInvalidLength
		}
		return b.IPAddr(address.Interface{Prefix: prefix, Addr: a})
	})
}

//export builderSetRoutes
func builderSetRoutes(h uint64, gateway *byte) uint64 {
	return step("builderSetRoutes", h, func(b *sionet.Builder) (*sionet.Builder, error) {
		a, ok := addressAt(gateway)
		if !ok {
			return nil, sionet.ErrInvalidGateway
		}
		return b.Routes(a)
	})
}

// builderFinalize turns the builder into an interface. The builder handle is
// released whether or not finalization succeeds. errPtr may be nil.
//
//export builderFinalize
func builderFinalize(h uint64, medium uint8, mtu uint32, errPtr *uint8) uint64 {
	b, err := builders.Take(handle.Handle(h))
	if err != nil {
		setCode(errPtr, code("builderFinalize", err))
		return 0
	}
	iface, err := b.Finalize(device.Medium(medium), int(mtu), newOptions())
	if err != nil {
		setCode(errPtr, code("builderFinalize", err))
		return 0
	}
	setCode(errPtr, 0)
	return uint64(interfaces.Insert(iface))
}
