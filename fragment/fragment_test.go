package fragment

import (
	"bytes"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/sionet/result"
)

func buildDatagram(t *testing.T, payloadLen int, mod func(*layers.IPv4)) ([]byte, []byte) {
	t.Helper()
	payload := make([]byte, payloadLen)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Id:       0x1234,
		Flags:    layers.IPv4DontFragment,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(192, 168, 1, 1).To4(),
		DstIP:    net.IPv4(192, 168, 1, 2).To4(),
	}
	if mod != nil {
		mod(ip)
	}
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
		ip, gopacket.Payload(payload))
	require.NoError(t, err)
	return buf.Bytes(), payload
}

func decode(t *testing.T, frag []byte) *layers.IPv4 {
	t.Helper()
	var ip layers.IPv4
	require.NoError(t, ip.DecodeFromBytes(frag, gopacket.NilDecodeFeedback))
	return &ip
}

func TestFragmentPayloadChunks(t *testing.T) {
	tests := []struct {
		name       string
		payloadLen int
		mtu        int
		wantSizes  []int
	}{
		{"3000-byte datagram at 1500", 2980, 1500, []int{1480, 1480, 20}},
		{"exactly two fragments", 2960, 1500, []int{1480, 1480}},
		{"chunk rounded to 8 bytes", 100, 60, []int{40, 40, 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packet, payload := buildDatagram(t, tt.payloadLen, nil)
			frags, err := IPv4(packet, tt.mtu)
			require.NoError(t, err)
			require.Len(t, frags, len(tt.wantSizes))

			n, err := Count(packet, tt.mtu)
			require.NoError(t, err)
			assert.Equal(t, len(frags), n)

			var joined []byte
			offset := 0
			for i, frag := range frags {
				assert.LessOrEqual(t, len(frag), tt.mtu)
				require.NoError(t, Validate(frag), "fragment %d checksum", i)

				ip := decode(t, frag)
				assert.Equal(t, tt.wantSizes[i], len(ip.Payload))
				assert.Equal(t, uint16(len(frag)), ip.Length)
				assert.Equal(t, uint16(offset/8), ip.FragOffset)
				assert.Zero(t, ip.Flags&layers.IPv4DontFragment, "DF cleared")
				assert.Equal(t, uint16(0x1234), ip.Id)

				more := ip.Flags&layers.IPv4MoreFragments != 0
				assert.Equal(t, i != len(frags)-1, more)

				joined = append(joined, ip.Payload...)
				offset += len(ip.Payload)
			}
			assert.True(t, bytes.Equal(payload, joined), "payload concatenation reproduces the original")
		})
	}
}

func TestFragmentTwoFragmentFlags(t *testing.T) {
	// 2960 bytes is the largest payload that splits into two 1480-byte
	// fragments behind a 20-byte header.
	packet, _ := buildDatagram(t, 2960, nil)
	frags, err := IPv4(packet, 1500)
	require.NoError(t, err)
	require.Len(t, frags, 2)

	first := decode(t, frags[0])
	second := decode(t, frags[1])
	assert.NotZero(t, first.Flags&layers.IPv4MoreFragments)
	assert.Zero(t, second.Flags&layers.IPv4MoreFragments)
}

func TestFragmentFitsMTU(t *testing.T) {
	packet, _ := buildDatagram(t, 100, nil)
	frags, err := IPv4(packet, 1500)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, packet, frags[0])

	frags[0][0] = 0
	assert.NotEqual(t, packet[0], frags[0][0], "result is a copy")
}

func TestFragmentReplicatesOptions(t *testing.T) {
	packet, payload := buildDatagram(t, 200, func(ip *layers.IPv4) {
		ip.Options = []layers.IPv4Option{{OptionType: 0x94, OptionLength: 4, OptionData: []byte{0, 0}}}
	})
	require.Equal(t, 24, int(packet[0]&0x0f)*4)

	frags, err := IPv4(packet, 100)
	require.NoError(t, err)
	require.Len(t, frags, 3)

	var joined []byte
	for _, frag := range frags {
		require.NoError(t, Validate(frag))
		assert.Equal(t, packet[20:24], frag[20:24], "options copied")
		ip := decode(t, frag)
		assert.Len(t, ip.Options, 1)
		joined = append(joined, ip.Payload...)
	}
	assert.Equal(t, payload, joined)
}

func TestFragmentOfFragment(t *testing.T) {
	// A non-final fragment at offset 800 split again keeps MF on every piece.
	packet, _ := buildDatagram(t, 1000, func(ip *layers.IPv4) {
		ip.Flags = layers.IPv4MoreFragments
		ip.FragOffset = 100
	})

	frags, err := IPv4(packet, 524)
	require.NoError(t, err)
	require.Len(t, frags, 2)

	first := decode(t, frags[0])
	last := decode(t, frags[1])
	assert.Equal(t, uint16(100), first.FragOffset)
	assert.Equal(t, uint16(100+504/8), last.FragOffset)
	assert.NotZero(t, last.Flags&layers.IPv4MoreFragments)
}

func TestFragmentErrors(t *testing.T) {
	packet, _ := buildDatagram(t, 3000, nil)

	_, err := IPv4(packet, 20)
	assert.ErrorIs(t, err, ErrMTUTooSmall)
	assert.Equal(t, result.Illegal, result.Of(err))

	_, err = IPv4(packet, 27)
	assert.ErrorIs(t, err, ErrMTUTooSmall)

	_, err = IPv4([]byte{0x45, 0, 0}, 1500)
	assert.ErrorIs(t, err, ErrMalformed)

	truncated := append([]byte(nil), packet[:100]...)
	_, err = IPv4(truncated, 60)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, result.Malformed, result.Of(err))

	v6 := append([]byte(nil), packet...)
	v6[0] = 0x65
	_, err = IPv4(v6, 1500)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestValidateChecksum(t *testing.T) {
	packet, _ := buildDatagram(t, 10, nil)
	require.NoError(t, Validate(packet))

	packet[8]++ // TTL
	err := Validate(packet)
	assert.ErrorIs(t, err, ErrChecksum)
	assert.Equal(t, result.Checksum, result.Of(err))
}

func TestChunkSize(t *testing.T) {
	c, err := ChunkSize(1500, 20)
	require.NoError(t, err)
	assert.Equal(t, 1480, c)

	c, err = ChunkSize(1501, 24)
	require.NoError(t, err)
	assert.Equal(t, 1472, c)
}
