package socket

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/header"
	"gvisor.dev/gvisor/pkg/tcpip/link/loopback"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip/stack"
	"gvisor.dev/gvisor/pkg/tcpip/transport/icmp"
	"gvisor.dev/gvisor/pkg/tcpip/transport/tcp"
	"gvisor.dev/gvisor/pkg/tcpip/transport/udp"

	"github.com/opd-ai/sionet/address"
	"github.com/opd-ai/sionet/logging"
)

const testNIC tcpip.NICID = 1

var testAddr = address.MustParse("10.0.0.1")

// loopContext is a Context backed by a stack whose only NIC loops every
// packet back to itself.
type loopContext struct {
	stack *stack.Stack
	set   *Set
	log   *logrus.Logger
	now   func() time.Time
}

func (c *loopContext) Stack() *stack.Stack                          { return c.stack }
func (c *loopContext) NICID() tcpip.NICID                           { return testNIC }
func (c *loopContext) NetworkProtocol() tcpip.NetworkProtocolNumber { return ipv4.ProtocolNumber }
func (c *loopContext) Sockets() *Set                                { return c.set }
func (c *loopContext) Logger() *logrus.Logger                       { return c.log }

func (c *loopContext) Now() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func newLoopContext(t *testing.T) *loopContext {
	t.Helper()

	s := stack.New(stack.Options{
		NetworkProtocols:   []stack.NetworkProtocolFactory{ipv4.NewProtocol},
		TransportProtocols: []stack.TransportProtocolFactory{tcp.NewProtocol, udp.NewProtocol, icmp.NewProtocol4},
	})
	if err := s.CreateNIC(testNIC, loopback.New()); err != nil {
		t.Fatalf("create nic: %v", err)
	}
	iface, err := address.Interface{Prefix: 96 + 8, Addr: testAddr}.Native()
	require.NoError(t, err)
	if err := s.AddProtocolAddress(testNIC, tcpip.ProtocolAddress{
		Protocol:          ipv4.ProtocolNumber,
		AddressWithPrefix: iface,
	}, stack.AddressProperties{}); err != nil {
		t.Fatalf("add address: %v", err)
	}
	s.SetRouteTable([]tcpip.Route{{Destination: header.IPv4EmptySubnet, NIC: testNIC}})

	c := &loopContext{stack: s, set: NewSet(), log: logging.Discard()}
	t.Cleanup(func() {
		c.set.Close()
		s.Close()
		s.Wait()
	})
	return c
}

// eventually polls the set until cond holds.
func (c *loopContext) eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, func() bool {
		c.set.Poll(c.Now())
		return cond()
	}, 2*time.Second, 5*time.Millisecond, msg)
}
