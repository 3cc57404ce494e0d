package socket

import (
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/header"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip/transport/icmp"

	"github.com/opd-ai/sionet/address"
	"github.com/opd-ai/sionet/logging"
)

// ICMPBinding selects what an ICMP socket is bound to.
type ICMPBinding uint8

const (
	// ICMPBindUnspecified binds to an ident chosen by the stack.
	ICMPBindUnspecified ICMPBinding = iota
	// ICMPBindIdent binds to a fixed echo identifier.
	ICMPBindIdent
	// ICMPBindUDP would receive ICMP errors for a UDP endpoint. The embedded
	// stack has no such socket, so it always fails with NotSupported.
	ICMPBindUDP
)

// ICMPEndpoint is the bind target of an ICMP socket.
type ICMPEndpoint struct {
	Binding ICMPBinding
	Ident   uint16
	UDP     address.ListenEndpoint
}

// ICMPSocket is an ICMPv4 echo socket. Outgoing data must start with an
// ICMP echo header; the stack rewrites its identifier and checksum.
type ICMPSocket struct {
	datagramEndpoint
}

// Kind implements Socket.
func (s *ICMPSocket) Kind() Kind { return KindICMP }

// Close implements Socket.
func (s *ICMPSocket) Close() { s.close() }

// NewICMP creates an ICMP socket with the given buffer sizes. The socket is
// IPv4 only.
func NewICMP(ctx Context, rxSize, txSize int) (Handle, error) {
	s := &ICMPSocket{}
	ep, err := ctx.Stack().NewEndpoint(icmp.ProtocolNumber4, ipv4.ProtocolNumber, &s.wq)
	if err != nil {
		return 0, newOpError("icmp new", 0, ErrCreate, err)
	}
	s.ep = ep
	s.txSize = txSize
	ep.SocketOptions().SetReceiveBufferSize(int64(rxSize), true)
	ep.SocketOptions().SetSendBufferSize(int64(txSize), true)
	return ctx.Sockets().Add(s)
}

// ICMPBind binds the socket. It succeeds without effect when the socket is
// already bound.
func ICMPBind(ctx Context, h Handle, target ICMPEndpoint) error {
	s, err := lookup[*ICMPSocket](ctx.Sockets(), h)
	if err != nil {
		return err
	}
	if s.bound {
		return nil
	}
	if s.closed {
		return newOpError("icmp bind", h, ICMPBindInvalidState, nil)
	}

	var ident uint16
	switch target.Binding {
	case ICMPBindUnspecified:
	case ICMPBindIdent:
		ident = target.Ident
	case ICMPBindUDP:
		return newOpError("icmp bind", h, ICMPBindNotSupported, nil)
	default:
		return newOpError("icmp bind", h, ICMPBindUnaddressable, nil)
	}

	if nerr := s.ep.Bind(tcpip.FullAddress{Port: ident}); nerr != nil {
		return newOpError("icmp bind", h, narrow(ICMPBindErrors, nerr, ICMPBindUnaddressable), nerr)
	}
	s.bound = true

	logging.New(ctx.Logger(), "socket", "ICMPBind").
		WithField("ident", ident).
		Debug("ICMP socket bound")
	return nil
}

// ICMPSend sends one ICMP echo message to dst. An unbound socket is bound
// to a stack-chosen ident first.
func ICMPSend(ctx Context, h Handle, data []byte, dst address.Address) error {
	s, err := lookup[*ICMPSocket](ctx.Sockets(), h)
	if err != nil {
		return err
	}
	if s.closed || dst.IsUnspecified() || !dst.IsIPv4() {
		return newOpError("icmp send", h, ICMPSendUnaddressable, nil)
	}
	if len(data) < header.ICMPv4MinimumSize {
		return newOpError("icmp send", h, ICMPSendUnaddressable, nil)
	}
	if s.txSize > 0 && len(data) > s.txSize {
		return newOpError("icmp send", h, ICMPSendBufferFull, nil)
	}
	if !s.bound {
		if err := ICMPBind(ctx, h, ICMPEndpoint{Binding: ICMPBindUnspecified}); err != nil {
			return newOpError("icmp send", h, ICMPSendUnaddressable, nil)
		}
	}
	if _, nerr := s.send(data, tcpip.FullAddress{Addr: dst.Native()}); nerr != nil {
		return newOpError("icmp send", h, narrow(ICMPSendErrors, nerr, ICMPSendBufferFull), nerr)
	}
	return nil
}

// ICMPRecv copies the next received ICMP message, header included, into dst
// and returns its length and source address.
func ICMPRecv(ctx Context, h Handle, dst []byte) (int, address.Address, error) {
	s, err := lookup[*ICMPSocket](ctx.Sockets(), h)
	if err != nil {
		return 0, address.Address{}, err
	}
	n, from, ok, err := s.recv(dst)
	if err != nil {
		return 0, address.Address{}, newOpError("icmp recv", h, err, nil)
	}
	if !ok {
		return 0, address.Address{}, newOpError("icmp recv", h, ICMPRecvExhausted, nil)
	}
	return n, address.FromNative(from.Addr), nil
}
