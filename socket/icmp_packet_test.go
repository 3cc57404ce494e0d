package socket

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gvisor.dev/gvisor/pkg/tcpip/checksum"

	"github.com/opd-ai/sionet/result"
)

func decodeICMP(t *testing.T, pkt []byte) *layers.ICMPv4 {
	t.Helper()
	var msg layers.ICMPv4
	require.NoError(t, msg.DecodeFromBytes(pkt, gopacket.NilDecodeFeedback))
	// A correct ICMP checksum makes the one's complement sum 0xffff.
	assert.Equal(t, uint16(0xffff), checksum.Checksum(pkt, 0))
	return &msg
}

func TestBuildICMPv4Echo(t *testing.T) {
	tests := []struct {
		kind EchoKind
		want layers.ICMPv4TypeCode
	}{
		{EchoRequest, layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)},
		{EchoReply, layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoReply, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			pkt, err := BuildICMPv4Echo(tt.kind, 0xbeef, 3, []byte("payload"))
			require.NoError(t, err)
			assert.Len(t, pkt, EchoSize([]byte("payload")))

			msg := decodeICMP(t, pkt)
			assert.Equal(t, tt.want, msg.TypeCode)
			assert.Equal(t, uint16(0xbeef), msg.Id)
			assert.Equal(t, uint16(3), msg.Seq)
			assert.Equal(t, []byte("payload"), msg.Payload)
		})
	}

	_, err := BuildICMPv4Echo(EchoKind(9), 0, 0, nil)
	assert.ErrorIs(t, err, ErrICMPKind)
	assert.Equal(t, result.Illegal, result.Of(err))
}

func TestWriteICMPv4EchoReportsNeededSize(t *testing.T) {
	payload := []byte("0123")
	need := EchoSize(payload)

	small := make([]byte, need-1)
	n, err := WriteICMPv4Echo(small, EchoRequest, 1, 1, payload)
	require.NoError(t, err)
	assert.Equal(t, need, n)
	assert.Equal(t, make([]byte, need-1), small, "short buffer must stay untouched")

	dst := make([]byte, need+4)
	n, err = WriteICMPv4Echo(dst, EchoRequest, 1, 1, payload)
	require.NoError(t, err)
	assert.Zero(t, n)
	decodeICMP(t, dst[:need])
}

func TestBuildICMPv4Error(t *testing.T) {
	ip := &layers.IPv4{
		Version:  4,
		TTL:      1,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 0, 2),
		DstIP:    net.IPv4(10, 0, 0, 1),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ip, gopacket.Payload(make([]byte, 32))))
	original := buf.Bytes()

	pkt, err := BuildICMPv4Error(TimeExceeded, 0, original)
	require.NoError(t, err)
	msg := decodeICMP(t, pkt)
	assert.Equal(t, layers.CreateICMPv4TypeCode(layers.ICMPv4TypeTimeExceeded, 0), msg.TypeCode)
	// Quoted header plus the first eight payload bytes.
	assert.Equal(t, original[:28], msg.Payload)

	pkt, err = BuildICMPv4Error(DstUnreachable, 3, original)
	require.NoError(t, err)
	msg = decodeICMP(t, pkt)
	assert.Equal(t, layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, 3), msg.TypeCode)

	_, err = BuildICMPv4Error(DstUnreachable, 0, []byte{0x45, 0})
	assert.Equal(t, result.Malformed, result.Of(err))

	_, err = BuildICMPv4Error(ErrorKind(0), 0, original)
	assert.ErrorIs(t, err, ErrICMPKind)
}
