package socket

import (
	"bytes"
	"time"

	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/stack"
	"gvisor.dev/gvisor/pkg/tcpip/transport/tcp"
	"gvisor.dev/gvisor/pkg/waiter"

	"github.com/opd-ai/sionet/address"
	"github.com/opd-ai/sionet/logging"
)

// TCPSocket is a single-connection TCP socket. A listening socket is
// replaced by the first connection it accepts.
type TCPSocket struct {
	stack    *stack.Stack
	netProto tcpip.NetworkProtocolNumber
	rxSize   int
	txSize   int

	wq        *waiter.Queue
	ep        tcpip.Endpoint
	listening bool
	closed    bool
}

// Kind implements Socket.
func (s *TCPSocket) Kind() Kind { return KindTCP }

// Close implements Socket.
func (s *TCPSocket) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.ep.Close()
}

func (s *TCPSocket) state() tcp.EndpointState {
	return tcp.EndpointState(s.ep.State())
}

// open reports whether the socket is past its initial state and not yet
// fully closed.
func (s *TCPSocket) open() bool {
	switch s.state() {
	case tcp.StateInitial, tcp.StateBound, tcp.StateClose, tcp.StateTimeWait, tcp.StateError:
		return false
	default:
		return true
	}
}

// active reports whether the socket has a connection in progress or
// established.
func (s *TCPSocket) active() bool {
	return s.open() && !s.listening
}

func (s *TCPSocket) applyBufferSizes(ep tcpip.Endpoint) {
	opts := ep.SocketOptions()
	opts.SetReceiveBufferSize(int64(s.rxSize), true)
	opts.SetSendBufferSize(int64(s.txSize), true)
}

// poll promotes a listening socket to the first accepted connection.
func (s *TCPSocket) poll(time.Time) {
	if !s.listening || s.closed {
		return
	}
	conn, wq, err := s.ep.Accept(nil)
	if err != nil {
		return
	}
	s.applyBufferSizes(conn)
	s.ep.Close()
	s.ep = conn
	s.wq = wq
	s.listening = false
}

// NewTCP creates a TCP socket with the given buffer sizes.
func NewTCP(ctx Context, rxSize, txSize int) (Handle, error) {
	s := &TCPSocket{
		stack:    ctx.Stack(),
		netProto: ctx.NetworkProtocol(),
		rxSize:   rxSize,
		txSize:   txSize,
		wq:       new(waiter.Queue),
	}
	ep, err := s.stack.NewEndpoint(tcp.ProtocolNumber, s.netProto, s.wq)
	if err != nil {
		return 0, newOpError("tcp new", 0, ErrCreate, err)
	}
	s.ep = ep
	s.applyBufferSizes(ep)
	return ctx.Sockets().Add(s)
}

// TCPConnect starts an active open to remote from localPort. It succeeds
// without effect when the socket is already open.
func TCPConnect(ctx Context, h Handle, remote address.Endpoint, localPort uint16) error {
	s, err := lookup[*TCPSocket](ctx.Sockets(), h)
	if err != nil {
		return err
	}
	if s.open() {
		return nil
	}
	if s.closed || s.state() != tcp.StateInitial {
		return newOpError("tcp connect", h, TCPConnectInvalidState, nil)
	}
	if remote.Port == 0 || remote.Addr.IsUnspecified() || localPort == 0 ||
		remote.Addr.NetworkProtocol() != s.netProto {
		return newOpError("tcp connect", h, TCPConnectUnaddressable, nil)
	}

	if nerr := s.ep.Bind(tcpip.FullAddress{Port: localPort}); nerr != nil {
		return newOpError("tcp connect", h, narrow(TCPConnectErrors, nerr, TCPConnectUnaddressable), nerr)
	}
	if nerr := s.ep.Connect(remote.Native()); nerr != nil {
		if _, started := nerr.(*tcpip.ErrConnectStarted); !started {
			return newOpError("tcp connect", h, narrow(TCPConnectErrors, nerr, TCPConnectUnaddressable), nerr)
		}
	}

	logging.New(ctx.Logger(), "socket", "TCPConnect").
		WithFields(logging.OperationFields("connect", "started")).
		WithField("remote", remote.String()).
		WithField("local_port", localPort).
		Debug("TCP connect started")
	return nil
}

// TCPListen puts the socket in the listen state on port. It succeeds without
// effect when the socket is already open.
func TCPListen(ctx Context, h Handle, port uint16) error {
	s, err := lookup[*TCPSocket](ctx.Sockets(), h)
	if err != nil {
		return err
	}
	if s.open() {
		return nil
	}
	if s.closed || s.state() != tcp.StateInitial {
		return newOpError("tcp listen", h, TCPListenInvalidState, nil)
	}
	if port == 0 {
		return newOpError("tcp listen", h, TCPListenUnaddressable, nil)
	}
	if nerr := s.ep.Bind(tcpip.FullAddress{Port: port}); nerr != nil {
		return newOpError("tcp listen", h, narrow(TCPListenErrors, nerr, TCPListenUnaddressable), nerr)
	}
	if nerr := s.ep.Listen(1); nerr != nil {
		return newOpError("tcp listen", h, narrow(TCPListenErrors, nerr, TCPListenInvalidState), nerr)
	}
	s.listening = true

	logging.New(ctx.Logger(), "socket", "TCPListen").
		WithField("port", port).
		Debug("TCP socket listening")
	return nil
}

// TCPSend queues data for transmission and returns how many bytes the send
// buffer accepted, which is 0 when it is full.
func TCPSend(ctx Context, h Handle, data []byte) (int, error) {
	s, err := lookup[*TCPSocket](ctx.Sockets(), h)
	if err != nil {
		return 0, err
	}
	s.poll(time.Time{})
	switch s.state() {
	case tcp.StateEstablished, tcp.StateCloseWait:
	default:
		return 0, newOpError("tcp send", h, TCPSendInvalidState, nil)
	}
	if len(data) == 0 {
		return 0, nil
	}

	var r bytes.Reader
	r.Reset(data)
	n, nerr := s.ep.Write(&r, tcpip.WriteOptions{})
	if nerr != nil {
		if _, full := nerr.(*tcpip.ErrWouldBlock); full {
			return int(n), nil
		}
		return int(n), newOpError("tcp send", h, narrow(TCPSendErrors, nerr, TCPSendInvalidState), nerr)
	}
	return int(n), nil
}

// TCPRecv copies up to len(dst) bytes of received stream data into dst.
// It returns 0 when nothing is buffered and TCPRecvFinished once the peer
// closed its side and every byte was read.
func TCPRecv(ctx Context, h Handle, dst []byte) (int, error) {
	s, err := lookup[*TCPSocket](ctx.Sockets(), h)
	if err != nil {
		return 0, err
	}
	s.poll(time.Time{})
	switch st := s.state(); {
	case s.listening, st == tcp.StateInitial, st == tcp.StateBound:
		return 0, newOpError("tcp recv", h, TCPRecvInvalidState, nil)
	}
	if len(dst) == 0 {
		return 0, nil
	}

	w := tcpip.SliceWriter(dst)
	res, nerr := s.ep.Read(&w, tcpip.ReadOptions{})
	if nerr != nil {
		if _, empty := nerr.(*tcpip.ErrWouldBlock); empty {
			return 0, nil
		}
		return 0, newOpError("tcp recv", h, narrow(TCPRecvErrors, nerr, TCPRecvInvalidState), nerr)
	}
	return res.Count, nil
}

// TCPIsActive reports whether the socket has a connection in progress or
// established.
func TCPIsActive(ctx Context, h Handle) (bool, error) {
	s, err := lookup[*TCPSocket](ctx.Sockets(), h)
	if err != nil {
		return false, err
	}
	s.poll(time.Time{})
	return s.active(), nil
}

// TCPIsOpen reports whether the socket is listening or connected.
func TCPIsOpen(ctx Context, h Handle) (bool, error) {
	s, err := lookup[*TCPSocket](ctx.Sockets(), h)
	if err != nil {
		return false, err
	}
	return s.open(), nil
}

// TCPState returns the connection state name.
func TCPState(ctx Context, h Handle) (string, error) {
	s, err := lookup[*TCPSocket](ctx.Sockets(), h)
	if err != nil {
		return "", err
	}
	return s.state().String(), nil
}

// TCPClose closes the send side of the connection. The socket stays in the
// set until it is removed.
func TCPClose(ctx Context, h Handle) error {
	s, err := lookup[*TCPSocket](ctx.Sockets(), h)
	if err != nil {
		return err
	}
	if s.listening {
		s.Close()
		return nil
	}
	if nerr := s.ep.Shutdown(tcpip.ShutdownWrite); nerr != nil {
		return newOpError("tcp close", h, TCPCloseInvalidState, nerr)
	}
	return nil
}
