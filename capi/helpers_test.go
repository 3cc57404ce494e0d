package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opd-ai/sionet"
	"github.com/opd-ai/sionet/address"
	"github.com/opd-ai/sionet/device"
	"github.com/opd-ai/sionet/handle"
	"github.com/opd-ai/sionet/result"
	"github.com/opd-ai/sionet/socket"
)

var (
	hostA = address.MustParse("10.0.0.1")
	hostB = address.MustParse("10.0.0.2")
)

// newDevice builds an IP-medium interface at ip/24 and frees it when the
// test ends.
func newDevice(t *testing.T, ip address.Address) uint64 {
	t.Helper()
	b := newBuilder()
	require.NotZero(t, b)
	b = builderSetIPAddr(b, &ip[0], 120)
	require.NotZero(t, b)

	var errCode uint8
	dev := builderFinalize(b, uint8(device.MediumIP), 1500, &errCode)
	require.Equal(t, uint8(result.OK), errCode)
	require.NotZero(t, dev)
	t.Cleanup(func() { freeDevice(dev) })
	return dev
}

// shuttle polls both devices and moves every queued frame across.
func shuttle(t *testing.T, a, b uint64) {
	t.Helper()
	for _, pair := range [][2]uint64{{a, b}, {b, a}} {
		from, to := pair[0], pair[1]
		require.Equal(t, uint8(result.OK), ifacePoll(from))
		for getCountOfPacketsInTxQueue(from) > 0 {
			buf := make([]byte, getLastTxPacketSize(from))
			n := getLastTxPacket(from, &buf[0], uint32(len(buf)))
			require.Equal(t, uintptr(len(buf)), n)
			require.Equal(t, uint8(result.OK), putRxPacket(to, &buf[0], uint32(n)))
		}
	}
}

// exchangeUntil shuttles frames between a and b until cond holds.
func exchangeUntil(t *testing.T, a, b uint64, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			require.FailNow(t, msg)
		}
		shuttle(t, a, b)
		time.Sleep(2 * time.Millisecond)
	}
}

func ptr(b []byte) *byte {
	if len(b) == 0 {
		return nil
	}
	return &b[0]
}

func mustInterface(t *testing.T, h uint64) *sionet.Interface {
	t.Helper()
	iface, err := lookupInterface(h)
	require.NoError(t, err)
	return iface
}

// mustSocket returns the per-interface handle behind a C socket handle.
func mustSocket(t *testing.T, h uint64) socket.Handle {
	t.Helper()
	ref, err := sockets.Get(handle.Handle(h))
	require.NoError(t, err)
	return ref.inner
}
