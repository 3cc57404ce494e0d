package main

import "C"

import (
	"unsafe"

	"github.com/opd-ai/sionet/fragment"
	"github.com/opd-ai/sionet/limits"
	"github.com/opd-ai/sionet/result"
)

// fragmentIPv4Packet splits the IPv4 datagram at src into fragments of at
// most mtu bytes. Fragments are written back to back into dst and their
// sizes into sizes, which holds maxFragments entries. count receives the
// number of fragments. When dst or sizes is too small nothing is written,
// count still receives the fragment count and the result is
// BufferInsufficient.
//
//export fragmentIPv4Packet
func fragmentIPv4Packet(src *byte, size, mtu uint32, dst *byte, dstSize uint32, sizes *uint32, maxFragments uint32, count *uint32) uint8 {
	packet := bytesAt(src, size)
	n, err := fragment.Count(packet, int(mtu))
	if err != nil {
		return code("fragmentIPv4Packet", err)
	}
	if count != nil {
		*count = uint32(n)
	}
	if dst == nil || sizes == nil || uint32(n) > maxFragments {
		return uint8(result.BufferInsufficient)
	}

	frags, err := fragment.IPv4(packet, int(mtu))
	if err != nil {
		return code("fragmentIPv4Packet", err)
	}
	total := 0
	for _, f := range frags {
		total += len(f)
	}
	if err := limits.ValidateDestination(int(dstSize), total); err != nil {
		return code("fragmentIPv4Packet", err)
	}

	out := bytesAt(dst, dstSize)
	lens := unsafe.Slice(sizes, maxFragments)
	off := 0
	for i, f := range frags {
		off += copy(out[off:], f)
		lens[i] = uint32(len(f))
	}
	return 0
}
