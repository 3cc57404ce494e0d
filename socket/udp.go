package socket

import (
	"bytes"
	"io"

	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/transport/udp"
	"gvisor.dev/gvisor/pkg/waiter"

	"github.com/opd-ai/sionet/address"
	"github.com/opd-ai/sionet/limits"
	"github.com/opd-ai/sionet/logging"
)

// datagramEndpoint is shared by the datagram sockets. It holds one native
// endpoint and remembers whether it was bound.
type datagramEndpoint struct {
	wq     waiter.Queue
	ep     tcpip.Endpoint
	txSize int
	bound  bool
	closed bool
}

func (d *datagramEndpoint) close() {
	if d.closed {
		return
	}
	d.closed = true
	d.ep.Close()
}

// peek returns the size of the next queued datagram without consuming it.
func (d *datagramEndpoint) peek() (int, bool) {
	res, err := d.ep.Read(io.Discard, tcpip.ReadOptions{Peek: true})
	if err != nil {
		return 0, false
	}
	return res.Total, true
}

// recv copies the next datagram into dst after checking it fits. ok is
// false when nothing is queued.
func (d *datagramEndpoint) recv(dst []byte) (n int, from tcpip.FullAddress, ok bool, err error) {
	size, ok := d.peek()
	if !ok {
		return 0, tcpip.FullAddress{}, false, nil
	}
	if err := limits.ValidateDestination(len(dst), size); err != nil {
		return 0, tcpip.FullAddress{}, true, err
	}
	w := tcpip.SliceWriter(dst)
	res, nerr := d.ep.Read(&w, tcpip.ReadOptions{NeedRemoteAddr: true})
	if nerr != nil {
		return 0, tcpip.FullAddress{}, false, nil
	}
	return res.Count, res.RemoteAddr, true, nil
}

func (d *datagramEndpoint) send(data []byte, to tcpip.FullAddress) (int64, tcpip.Error) {
	var r bytes.Reader
	r.Reset(data)
	return d.ep.Write(&r, tcpip.WriteOptions{To: &to})
}

// UDPSocket is a UDP socket.
type UDPSocket struct {
	datagramEndpoint
	netProto tcpip.NetworkProtocolNumber
}

// Kind implements Socket.
func (s *UDPSocket) Kind() Kind { return KindUDP }

// Close implements Socket.
func (s *UDPSocket) Close() { s.close() }

// NewUDP creates a UDP socket with the given buffer sizes.
func NewUDP(ctx Context, rxSize, txSize int) (Handle, error) {
	s := &UDPSocket{netProto: ctx.NetworkProtocol()}
	ep, err := ctx.Stack().NewEndpoint(udp.ProtocolNumber, s.netProto, &s.wq)
	if err != nil {
		return 0, newOpError("udp new", 0, ErrCreate, err)
	}
	s.ep = ep
	s.txSize = txSize
	ep.SocketOptions().SetReceiveBufferSize(int64(rxSize), true)
	ep.SocketOptions().SetSendBufferSize(int64(txSize), true)
	return ctx.Sockets().Add(s)
}

// UDPBind binds the socket to port on every local address. It succeeds
// without effect when the socket is already bound.
func UDPBind(ctx Context, h Handle, port uint16) error {
	s, err := lookup[*UDPSocket](ctx.Sockets(), h)
	if err != nil {
		return err
	}
	if s.bound {
		return nil
	}
	if s.closed {
		return newOpError("udp bind", h, UDPBindInvalidState, nil)
	}
	if port == 0 {
		return newOpError("udp bind", h, UDPBindUnaddressable, nil)
	}
	if nerr := s.ep.Bind(tcpip.FullAddress{Port: port}); nerr != nil {
		return newOpError("udp bind", h, narrow(UDPBindErrors, nerr, UDPBindUnaddressable), nerr)
	}
	s.bound = true

	logging.New(ctx.Logger(), "socket", "UDPBind").
		WithField("port", port).
		Debug("UDP socket bound")
	return nil
}

// UDPSend sends one datagram to remote.
func UDPSend(ctx Context, h Handle, data []byte, remote address.Endpoint) error {
	s, err := lookup[*UDPSocket](ctx.Sockets(), h)
	if err != nil {
		return err
	}
	if !s.bound || s.closed || remote.Port == 0 || remote.Addr.IsUnspecified() ||
		remote.Addr.NetworkProtocol() != s.netProto {
		return newOpError("udp send", h, UDPSendUnaddressable, nil)
	}
	if s.txSize > 0 && len(data) > s.txSize {
		return newOpError("udp send", h, UDPSendBufferFull, nil)
	}
	if _, nerr := s.send(data, remote.Native()); nerr != nil {
		return newOpError("udp send", h, narrow(UDPSendErrors, nerr, UDPSendBufferFull), nerr)
	}
	return nil
}

// UDPRecv copies the next datagram into dst and returns its length and
// source. A dst shorter than the datagram fails with BufferInsufficient and
// leaves the datagram queued.
func UDPRecv(ctx Context, h Handle, dst []byte) (int, address.Endpoint, error) {
	s, err := lookup[*UDPSocket](ctx.Sockets(), h)
	if err != nil {
		return 0, address.Endpoint{}, err
	}
	n, from, ok, err := s.recv(dst)
	if err != nil {
		return 0, address.Endpoint{}, newOpError("udp recv", h, err, nil)
	}
	if !ok {
		return 0, address.Endpoint{}, newOpError("udp recv", h, UDPRecvExhausted, nil)
	}
	return n, address.EndpointFromNative(from), nil
}

// UDPPeekSize returns the size of the next queued datagram, or 0.
func UDPPeekSize(ctx Context, h Handle) (int, error) {
	s, err := lookup[*UDPSocket](ctx.Sockets(), h)
	if err != nil {
		return 0, err
	}
	size, _ := s.peek()
	return size, nil
}
