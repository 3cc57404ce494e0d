package socket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/sionet/address"
	"github.com/opd-ai/sionet/handle"
	"github.com/opd-ai/sionet/result"
)

func newBoundUDP(t *testing.T, ctx *loopContext, port uint16) Handle {
	t.Helper()
	h, err := NewUDP(ctx, 65535, 65535)
	require.NoError(t, err)
	require.NoError(t, UDPBind(ctx, h, port))
	return h
}

func TestUDPRoundTrip(t *testing.T) {
	ctx := newLoopContext(t)
	server := newBoundUDP(t, ctx, 5000)
	client := newBoundUDP(t, ctx, 5001)

	require.NoError(t, UDPSend(ctx, client, []byte("hello"), address.Endpoint{Port: 5000, Addr: testAddr}))

	buf := make([]byte, 64)
	var (
		n    int
		from address.Endpoint
	)
	ctx.eventually(t, func() bool {
		var err error
		n, from, err = UDPRecv(ctx, server, buf)
		return err == nil
	}, "datagram never arrived")

	assert.Equal(t, "hello", string(buf[:n]))
	assert.Equal(t, uint16(5001), from.Port)
	assert.Equal(t, testAddr, from.Addr)
}

func TestUDPRecvShortBufferKeepsDatagram(t *testing.T) {
	ctx := newLoopContext(t)
	server := newBoundUDP(t, ctx, 5000)
	client := newBoundUDP(t, ctx, 5001)

	payload := []byte("0123456789")
	require.NoError(t, UDPSend(ctx, client, payload, address.Endpoint{Port: 5000, Addr: testAddr}))
	ctx.eventually(t, func() bool {
		size, err := UDPPeekSize(ctx, server)
		return err == nil && size == len(payload)
	}, "datagram never queued")

	_, _, err := UDPRecv(ctx, server, make([]byte, 4))
	assert.Equal(t, result.BufferInsufficient, result.Of(err))

	buf := make([]byte, len(payload))
	n, _, err := UDPRecv(ctx, server, buf)
	require.NoError(t, err)
	assert.Equal(t, payload, buf[:n])

	size, err := UDPPeekSize(ctx, server)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestUDPErrors(t *testing.T) {
	ctx := newLoopContext(t)
	remote := address.Endpoint{Port: 9, Addr: testAddr}

	unbound, err := NewUDP(ctx, 1024, 16)
	require.NoError(t, err)

	tests := []struct {
		name string
		run  func() error
		want result.Code
	}{
		{"bind port zero", func() error { return UDPBind(ctx, unbound, 0) }, result.Unaddressable},
		{"send unbound", func() error { return UDPSend(ctx, unbound, []byte("x"), remote) }, result.Unaddressable},
		{"recv empty", func() error {
			_, _, err := UDPRecv(ctx, unbound, make([]byte, 8))
			return err
		}, result.Exhausted},
		{"null handle", func() error { return UDPBind(ctx, handle.Null, 1) }, result.InvalidHandle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, result.Of(tt.run()))
		})
	}

	require.NoError(t, UDPBind(ctx, unbound, 6000))
	// A second bind is a no-op.
	assert.NoError(t, UDPBind(ctx, unbound, 6001))

	err = UDPSend(ctx, unbound, []byte("x"), address.Endpoint{Port: 0, Addr: testAddr})
	assert.Equal(t, result.Unaddressable, result.Of(err))
	err = UDPSend(ctx, unbound, []byte("x"), address.Endpoint{Port: 9})
	assert.Equal(t, result.Unaddressable, result.Of(err))
	err = UDPSend(ctx, unbound, make([]byte, 17), remote)
	assert.Equal(t, result.BufferFull, result.Of(err))
}

func TestUDPHandleOfOtherSocket(t *testing.T) {
	ctx := newLoopContext(t)
	h, err := NewTCP(ctx, 1024, 1024)
	require.NoError(t, err)

	err = UDPBind(ctx, h, 5000)
	assert.ErrorIs(t, err, handle.ErrWrongKind)
}

func TestUDPHandleStaleAfterRemove(t *testing.T) {
	ctx := newLoopContext(t)
	h := newBoundUDP(t, ctx, 5000)
	require.NoError(t, ctx.Sockets().Remove(h))

	_, err := UDPPeekSize(ctx, h)
	assert.ErrorIs(t, err, handle.ErrStaleHandle)
}
