package main

import (
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/sionet/fragment"
	"github.com/opd-ai/sionet/result"
)

func datagram(t *testing.T, payloadLen int) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts,
		&layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: hostA.IP(), DstIP: hostB.IP()},
		gopacket.Payload(make([]byte, payloadLen)),
	))
	return buf.Bytes()
}

func TestFragmentIPv4Packet(t *testing.T) {
	src := datagram(t, 2980)

	dst := make([]byte, 4096)
	sizes := make([]uint32, 4)
	var count uint32
	rc := fragmentIPv4Packet(ptr(src), uint32(len(src)), 1500, ptr(dst), uint32(len(dst)), &sizes[0], uint32(len(sizes)), &count)
	require.Equal(t, uint8(result.OK), rc)
	require.Equal(t, uint32(3), count)
	assert.Equal(t, []uint32{1500, 1500, 40, 0}, sizes)

	off := uint32(0)
	for _, n := range sizes[:count] {
		assert.NoError(t, fragment.Validate(dst[off:off+n]))
		off += n
	}
}

func TestFragmentIPv4PacketShortBuffers(t *testing.T) {
	src := datagram(t, 2980)
	sizes := make([]uint32, 1)
	var count uint32

	dst := make([]byte, 100)
	rc := fragmentIPv4Packet(ptr(src), uint32(len(src)), 1500, ptr(dst), uint32(len(dst)), &sizes[0], 1, &count)
	assert.Equal(t, uint8(result.BufferInsufficient), rc)
	assert.Equal(t, uint32(3), count, "the count is reported so the caller can retry")

	big := make([]byte, 4096)
	rc = fragmentIPv4Packet(ptr(src), uint32(len(src)), 1500, ptr(big), uint32(len(big)), &sizes[0], 1, &count)
	assert.Equal(t, uint8(result.BufferInsufficient), rc)
	assert.Zero(t, sizes[0])
}

func TestFragmentIPv4PacketErrors(t *testing.T) {
	src := datagram(t, 2980)
	dst := make([]byte, 4096)
	sizes := make([]uint32, 8)

	assert.Equal(t, uint8(result.Illegal), fragmentIPv4Packet(ptr(src), uint32(len(src)), 20, ptr(dst), 4096, &sizes[0], 8, nil))
	assert.Equal(t, uint8(result.Malformed), fragmentIPv4Packet(ptr([]byte{0x45, 0}), 2, 1500, ptr(dst), 4096, &sizes[0], 8, nil))
}

func TestFragmentIPv4PacketCountOnly(t *testing.T) {
	src := datagram(t, 2980)
	var count uint32

	rc := fragmentIPv4Packet(ptr(src), uint32(len(src)), 1500, nil, 0, nil, 0, &count)
	assert.Equal(t, uint8(result.BufferInsufficient), rc)
	assert.Equal(t, uint32(3), count)

	small := datagram(t, 100)
	rc = fragmentIPv4Packet(ptr(small), uint32(len(small)), 1500, nil, 0, nil, 0, &count)
	assert.Equal(t, uint8(result.BufferInsufficient), rc)
	assert.Equal(t, uint32(1), count, "a datagram within the mtu is one fragment")
}
