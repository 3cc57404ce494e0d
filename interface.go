package sionet

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gvisor.dev/gvisor/pkg/buffer"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/header"
	"gvisor.dev/gvisor/pkg/tcpip/link/channel"
	"gvisor.dev/gvisor/pkg/tcpip/link/ethernet"
	"gvisor.dev/gvisor/pkg/tcpip/network/arp"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv6"
	"gvisor.dev/gvisor/pkg/tcpip/stack"
	"gvisor.dev/gvisor/pkg/tcpip/transport/icmp"
	"gvisor.dev/gvisor/pkg/tcpip/transport/tcp"
	"gvisor.dev/gvisor/pkg/tcpip/transport/udp"

	"github.com/opd-ai/sionet/address"
	"github.com/opd-ai/sionet/device"
	"github.com/opd-ai/sionet/logging"
	"github.com/opd-ai/sionet/result"
	"github.com/opd-ai/sionet/socket"
)

const nicID tcpip.NICID = 1

var (
	// ErrInterfaceClosed is returned by operations on a closed interface.
	ErrInterfaceClosed = result.New(result.InvalidState, "interface closed")

	// ErrStack is returned when the embedded stack rejects the configuration.
	ErrStack = result.New(result.Failed, "stack configuration failed")
)

// PollStats counts the frames one Poll moved.
type PollStats struct {
	Received    int // frames injected into the stack
	Transmitted int // frames moved to the tx queue
	Dropped     int // rx frames discarded before the stack saw them
}

// Interface is a sans-I/O network interface: a device, the embedded stack
// attached to it and the sockets bound to that stack. It implements
// socket.Context.
//
// An Interface is not safe for concurrent use.
type Interface struct {
	id         uuid.UUID
	dev        *device.SansIO
	stack      *stack.Stack
	link       *channel.Endpoint
	medium     device.Medium
	netProto   tcpip.NetworkProtocolNumber
	reassembly bool
	sockets    *socket.Set
	opts       *Options
	log        *logrus.Logger
	lastPoll   time.Time
	closed     bool
}

func stackError(op string, err tcpip.Error) error {
	return fmt.Errorf("%w: %s: %s", ErrStack, op, err)
}

func newInterface(b *Builder, medium device.Medium, mtu int, opts *Options) (*Interface, error) {
	logger := opts.logger()
	dev, err := device.New(mtu, medium,
		device.WithPolicy(opts.QueuePolicy),
		device.WithRxLimit(opts.RxQueueLimit),
		device.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	iface := &Interface{
		id:         uuid.New(),
		dev:        dev,
		medium:     medium,
		netProto:   ipv4.ProtocolNumber,
		reassembly: b.reassembly,
		sockets:    socket.NewSet(),
		opts:       opts,
		log:        logger,
	}

	var linkAddr tcpip.LinkAddress
	if b.hwAddr != nil {
		linkAddr = b.hwAddr.Native()
	}
	iface.link = channel.New(opts.OutboundQueueSize, uint32(dev.Capabilities().MTU), linkAddr)

	var linkEP stack.LinkEndpoint = iface.link
	netProtos := []stack.NetworkProtocolFactory{ipv4.NewProtocol, ipv6.NewProtocol}
	if medium == device.MediumEthernet {
		linkEP = ethernet.New(iface.link)
		netProtos = append(netProtos, arp.NewProtocol)
	}

	iface.stack = stack.New(stack.Options{
		NetworkProtocols:   netProtos,
		TransportProtocols: []stack.TransportProtocolFactory{tcp.NewProtocol, udp.NewProtocol, icmp.NewProtocol4, icmp.NewProtocol6},
	})
	if err := iface.configure(b, linkEP); err != nil {
		iface.stack.Close()
		return nil, err
	}

	logging.New(logger, "sionet", "Finalize").
		WithFields(iface.fields()).
		WithField("mtu", mtu).
		WithField("reassembly", b.reassembly).
		Info("Interface created")
	return iface, nil
}

func (i *Interface) configure(b *Builder, linkEP stack.LinkEndpoint) error {
	s := i.stack
	if err := s.CreateNICWithOptions(nicID, linkEP, stack.NICOptions{Name: "sionet-" + i.id.String()[:8]}); err != nil {
		return stackError("create nic", err)
	}

	var routes []tcpip.Route
	if b.ipAddr != nil {
		native, err := b.ipAddr.Native()
		if err != nil {
			return err
		}
		i.netProto = b.ipAddr.Addr.NetworkProtocol()
		if err := s.AddProtocolAddress(nicID, tcpip.ProtocolAddress{
			Protocol:          i.netProto,
			AddressWithPrefix: native,
		}, stack.AddressProperties{}); err != nil {
			return stackError("add address", err)
		}
		routes = append(routes, tcpip.Route{Destination: native.Subnet(), NIC: nicID})
	}

	if b.gateway != nil {
		dst := header.IPv4EmptySubnet
		if !b.gateway.IsIPv4() {
			dst = header.IPv6EmptySubnet
		}
		routes = append(routes, tcpip.Route{Destination: dst, Gateway: b.gateway.Native(), NIC: nicID})
	}
	s.SetRouteTable(routes)

	for ip, mac := range b.neighbours {
		if err := s.AddStaticNeighbor(nicID, ip.NetworkProtocol(), ip.Native(), mac.Native()); err != nil {
			return stackError("add neighbour "+ip.String(), err)
		}
	}
	return nil
}

func (i *Interface) fields() logrus.Fields {
	return logrus.Fields{
		"interface": i.id.String(),
		"medium":    i.medium.String(),
	}
}

// ID returns the instance id of the interface.
func (i *Interface) ID() uuid.UUID { return i.id }

// Capabilities returns the device capabilities.
func (i *Interface) Capabilities() device.Capabilities { return i.dev.Capabilities() }

// Options returns the options the interface was built with.
func (i *Interface) Options() *Options { return i.opts }

// LastPoll returns the timestamp of the latest Poll.
func (i *Interface) LastPoll() time.Time { return i.lastPoll }

// Stack implements socket.Context.
func (i *Interface) Stack() *stack.Stack { return i.stack }

// NICID implements socket.Context.
func (i *Interface) NICID() tcpip.NICID { return nicID }

// NetworkProtocol implements socket.Context. It is the protocol of the
// interface address, IPv4 when none is set.
func (i *Interface) NetworkProtocol() tcpip.NetworkProtocolNumber { return i.netProto }

// Sockets implements socket.Context.
func (i *Interface) Sockets() *socket.Set { return i.sockets }

// Logger implements socket.Context.
func (i *Interface) Logger() *logrus.Logger { return i.log }

// Now implements socket.Context with the configured TimeProvider.
func (i *Interface) Now() time.Time { return i.opts.clock().Now() }

// PutRxPacket queues a received frame for the next Poll.
func (i *Interface) PutRxPacket(frame []byte) error {
	if i.closed {
		return ErrInterfaceClosed
	}
	return i.dev.PutRx(frame)
}

// TxQueueLen returns the number of frames waiting to be drained.
func (i *Interface) TxQueueLen() int { return i.dev.TxLen() }

// NextTxPacketSize returns the size of the next frame to drain, or 0.
func (i *Interface) NextTxPacketSize() int { return i.dev.PeekTxSize() }

// PopTxPacket moves the next outgoing frame into dst.
func (i *Interface) PopTxPacket(dst []byte) (int, error) {
	return i.dev.PopTx(dst)
}

// Poll injects every queued rx frame into the stack, lets the sockets
// process what arrived and moves every frame the stack produced to the tx
// queue.
func (i *Interface) Poll() (PollStats, error) {
	var stats PollStats
	if i.closed {
		return stats, ErrInterfaceClosed
	}
	now := i.Now()
	i.lastPoll = now

	for {
		rx, _, ok := i.dev.Receive()
		if !ok {
			break
		}
		_ = rx.Consume(func(frame []byte) error {
			if err := i.inject(frame); err != nil {
				stats.Dropped++
				logging.New(i.log, "sionet", "Poll").
					WithFields(i.fields()).
					WithFields(logging.FrameFields(frame, "frame")).
					WithError(err, result.Of(err), "inject").
					Debug("Dropped inbound frame")
				return err
			}
			stats.Received++
			return nil
		})
	}

	i.sockets.Poll(now)
	stats.Transmitted = i.drain()

	if stats.Received+stats.Transmitted+stats.Dropped > 0 {
		logging.New(i.log, "sionet", "Poll").
			WithFields(i.fields()).
			WithFields(logrus.Fields{
				"received":    stats.Received,
				"transmitted": stats.Transmitted,
				"dropped":     stats.Dropped,
			}).
			Trace("Poll moved frames")
	}
	return stats, nil
}

// drain moves every outbound packet of the link endpoint to the tx queue.
func (i *Interface) drain() int {
	n := 0
	for {
		pkt := i.link.Read()
		if pkt == nil {
			return n
		}
		view := pkt.ToView()
		frame := view.AsSlice()
		_ = i.dev.Transmit().Consume(len(frame), func(buf []byte) (int, error) {
			return copy(buf, frame), nil
		})
		view.Release()
		pkt.DecRef()
		n++
	}
}

// Close destroys the stack and every socket. Socket handles issued by the
// interface become stale.
func (i *Interface) Close() {
	if i.closed {
		return
	}
	i.closed = true
	i.sockets.Close()
	i.stack.Close()
	i.link.Close()
	i.stack.Wait()

	logging.New(i.log, "sionet", "Close").
		WithFields(i.fields()).
		Info("Interface closed")
}

// NewTCPSocket creates a TCP socket with the configured buffer sizes.
func (i *Interface) NewTCPSocket() (socket.Handle, error) {
	if i.closed {
		return 0, ErrInterfaceClosed
	}
	return socket.NewTCP(i, i.opts.TCPRxBuffer, i.opts.TCPTxBuffer)
}

// NewUDPSocket creates a UDP socket with the configured buffer sizes.
func (i *Interface) NewUDPSocket() (socket.Handle, error) {
	if i.closed {
		return 0, ErrInterfaceClosed
	}
	return socket.NewUDP(i, i.opts.UDPRxBuffer, i.opts.UDPTxBuffer)
}

// NewICMPSocket creates an ICMP socket with the configured buffer sizes.
func (i *Interface) NewICMPSocket() (socket.Handle, error) {
	if i.closed {
		return 0, ErrInterfaceClosed
	}
	return socket.NewICMP(i, i.opts.ICMPRxBuffer, i.opts.ICMPTxBuffer)
}

// NewDNSSocket creates a DNS socket querying servers.
func (i *Interface) NewDNSSocket(servers []address.Address) (socket.Handle, error) {
	if i.closed {
		return 0, ErrInterfaceClosed
	}
	return socket.NewDNS(i, servers, i.opts.DNSMaxQueries)
}

// DeleteSocket closes the socket behind h and invalidates h.
func (i *Interface) DeleteSocket(h socket.Handle) error {
	return i.sockets.Remove(h)
}

// inject hands one rx frame to the link endpoint.
func (i *Interface) inject(frame []byte) error {
	proto, ip, err := i.classify(frame)
	if err != nil {
		return err
	}
	if !i.reassembly && isIPv4Fragment(proto, ip) {
		return ErrFragmentDropped
	}
	pkt := stack.NewPacketBuffer(stack.PacketBufferOptions{
		Payload: buffer.MakeWithData(frame),
	})
	i.link.InjectInbound(proto, pkt)
	pkt.DecRef()
	return nil
}
