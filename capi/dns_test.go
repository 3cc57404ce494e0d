package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/dns/dnsmessage"

	"github.com/opd-ai/sionet/address"
	"github.com/opd-ai/sionet/handle"
	"github.com/opd-ai/sionet/result"
)

// answerOne reads one query from the UDP socket sock on dev and answers it
// with a single A record.
func answerOne(t *testing.T, dev, sock uint64, answer address.Address) bool {
	var (
		port uint16
		from address.Address
		n    uint32
	)
	buf := make([]byte, 512)
	if udpReceive(dev, sock, &port, &from[0], ptr(buf), uint32(len(buf)), &n) != uint8(result.OK) {
		return false
	}

	var p dnsmessage.Parser
	hdr, err := p.Start(buf[:n])
	require.NoError(t, err)
	q, err := p.Question()
	require.NoError(t, err)

	b := dnsmessage.NewBuilder(nil, dnsmessage.Header{ID: hdr.ID, Response: true})
	require.NoError(t, b.StartQuestions())
	require.NoError(t, b.Question(q))
	require.NoError(t, b.StartAnswers())
	var a4 [4]byte
	copy(a4[:], answer.IP().To4())
	require.NoError(t, b.AResource(
		dnsmessage.ResourceHeader{Name: q.Name, Type: dnsmessage.TypeA, Class: dnsmessage.ClassINET, TTL: 60},
		dnsmessage.AResource{A: a4},
	))
	msg, err := b.Finish()
	require.NoError(t, err)

	require.Equal(t, uint8(result.OK), udpSend(dev, sock, port, &from[0], ptr(msg), uint32(len(msg))))
	return true
}

func TestDNSQueryResolves(t *testing.T) {
	client := newDevice(t, hostA)
	server := newDevice(t, hostB)

	srv := newUdpSocket(server)
	require.Equal(t, uint8(result.OK), udpBind(server, srv, 53))

	servers := hostB
	dns := newDnsSocket(client, &servers[0], 1)
	require.NotZero(t, dns)

	name := []byte("example.com")
	var errCode uint8
	q := newDnsQuery(client, dns, ptr(name), uint32(len(name)), uint16(dnsmessage.TypeA), &errCode)
	require.Equal(t, uint8(result.OK), errCode)
	require.NotZero(t, q)

	var count uint32
	addrs := make([]byte, 2*address.Size)
	assert.Equal(t, uint8(result.Pending), getDnsQueryResult(client, dns, q, ptr(addrs), 2, &count))

	want := address.MustParse("93.184.216.34")
	answered := false
	var rc uint8
	exchangeUntil(t, client, server, func() bool {
		if !answered {
			answered = answerOne(t, server, srv, want)
			return false
		}
		rc = getDnsQueryResult(client, dns, q, ptr(addrs), 2, &count)
		return rc != uint8(result.Pending)
	}, "query never completed")

	require.Equal(t, uint8(result.OK), rc)
	require.Equal(t, uint32(1), count)
	assert.Equal(t, want[:], addrs[:address.Size])

	assert.Equal(t, uint8(result.InvalidHandle), getDnsQueryResult(client, dns, q, nil, 0, nil), "the query was released")
}

func TestDNSQueryErrors(t *testing.T) {
	dev := newDevice(t, hostA)

	assert.Zero(t, newDnsSocket(dev, nil, 0), "no servers")

	servers := hostB
	dns := newDnsSocket(dev, &servers[0], 1)
	require.NotZero(t, dns)

	var errCode uint8
	bad := []byte("a..b")
	assert.Zero(t, newDnsQuery(dev, dns, ptr(bad), uint32(len(bad)), uint16(dnsmessage.TypeA), &errCode))
	assert.Equal(t, uint8(result.InvalidName), errCode)

	name := []byte("example.com")
	var handles []uint64
	for i := 0; i < 4; i++ {
		q := newDnsQuery(dev, dns, ptr(name), uint32(len(name)), uint16(dnsmessage.TypeA), nil)
		require.NotZero(t, q)
		handles = append(handles, q)
	}
	assert.Zero(t, newDnsQuery(dev, dns, ptr(name), uint32(len(name)), uint16(dnsmessage.TypeA), &errCode))
	assert.Equal(t, uint8(result.NoFreeSlot), errCode)

	require.Equal(t, uint8(result.OK), deleteDnsQuery(dev, dns, handles[0]))
	assert.Equal(t, uint8(result.InvalidHandle), deleteDnsQuery(dev, dns, handles[0]))
	assert.NotZero(t, newDnsQuery(dev, dns, ptr(name), uint32(len(name)), uint16(dnsmessage.TypeA), nil), "a slot was freed")

	deleteDnsSocket(dns)
	assert.Equal(t, uint8(result.InvalidHandle), getDnsQueryResult(dev, dns, handles[1], nil, 0, nil))
	_, err := queries.Get(handle.Handle(handles[1]))
	assert.Error(t, err, "query handles die with their socket")
}
