package socket

import (
	"errors"
	"fmt"

	"gvisor.dev/gvisor/pkg/tcpip"

	"github.com/opd-ai/sionet/handle"
	"github.com/opd-ai/sionet/result"
)

// Common socket errors
var (
	// ErrClosed indicates the socket was already closed
	ErrClosed = result.New(result.InvalidState, "socket closed")

	// ErrNoServers indicates a DNS socket was created without servers
	ErrNoServers = result.New(result.Unaddressable, "no dns servers")

	// ErrCreate indicates the stack refused to create an endpoint
	ErrCreate = errors.New("cannot create endpoint")

	// ErrICMPKind indicates an unknown ICMP message kind
	ErrICMPKind = result.New(result.Illegal, "unknown icmp message kind")
)

// OpError records a failed socket operation.
type OpError struct {
	Op     string        // operation that caused the error
	Handle handle.Handle // socket the operation ran on
	Err    error         // typed operation error
	Native string        // embedded stack error text, if any
}

func (e *OpError) Error() string {
	if e.Native != "" {
		return fmt.Sprintf("socket %s %v: %v (%s)", e.Op, e.Handle, e.Err, e.Native)
	}
	return fmt.Sprintf("socket %s %v: %v", e.Op, e.Handle, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func newOpError(op string, h handle.Handle, err error, native tcpip.Error) *OpError {
	e := &OpError{Op: op, Handle: h, Err: err}
	if native != nil {
		e.Native = native.String()
	}
	return e
}

// nativeCode classifies an embedded stack error in the master space.
func nativeCode(err tcpip.Error) result.Code {
	switch err.(type) {
	case nil, *tcpip.ErrConnectStarted:
		return result.OK
	case *tcpip.ErrWouldBlock:
		return result.Exhausted
	case *tcpip.ErrInvalidEndpointState, *tcpip.ErrAlreadyBound, *tcpip.ErrAlreadyConnected,
		*tcpip.ErrAlreadyConnecting, *tcpip.ErrNotConnected:
		return result.InvalidState
	case *tcpip.ErrPortInUse, *tcpip.ErrBadLocalAddress, *tcpip.ErrNetworkUnreachable,
		*tcpip.ErrHostUnreachable, *tcpip.ErrBadAddress, *tcpip.ErrAddressFamilyNotSupported,
		*tcpip.ErrDestinationRequired, *tcpip.ErrNoPortAvailable:
		return result.Unaddressable
	case *tcpip.ErrClosedForReceive, *tcpip.ErrClosedForSend, *tcpip.ErrConnectionReset,
		*tcpip.ErrConnectionAborted, *tcpip.ErrConnectionRefused, *tcpip.ErrAborted:
		return result.Finished
	case *tcpip.ErrMessageTooLong, *tcpip.ErrNoBufferSpace:
		return result.BufferFull
	case *tcpip.ErrNotSupported, *tcpip.ErrNotPermitted, *tcpip.ErrUnknownProtocol:
		return result.NotSupported
	default:
		return result.Failed
	}
}

// narrow converts a native error to one member of subset s, or fallback when
// the native classification is not one the operation reports.
func narrow[E ~uint8](s result.Subset[E], err tcpip.Error, fallback E) E {
	if e, ok := s.FromCode(nativeCode(err)); ok {
		return e
	}
	return fallback
}

// TCPListenError is returned by TCPListen.
type TCPListenError uint8

const (
	TCPListenInvalidState  = TCPListenError(result.InvalidState)
	TCPListenUnaddressable = TCPListenError(result.Unaddressable)
)

func (e TCPListenError) Code() result.Code { return result.Code(e) }
func (e TCPListenError) Error() string     { return "tcp listen: " + e.Code().String() }

// TCPConnectError is returned by TCPConnect.
type TCPConnectError uint8

const (
	TCPConnectInvalidState  = TCPConnectError(result.InvalidState)
	TCPConnectUnaddressable = TCPConnectError(result.Unaddressable)
)

func (e TCPConnectError) Code() result.Code { return result.Code(e) }
func (e TCPConnectError) Error() string     { return "tcp connect: " + e.Code().String() }

// TCPSendError is returned by TCPSend.
type TCPSendError uint8

const TCPSendInvalidState = TCPSendError(result.InvalidState)

func (e TCPSendError) Code() result.Code { return result.Code(e) }
func (e TCPSendError) Error() string     { return "tcp send: " + e.Code().String() }

// TCPRecvError is returned by TCPRecv.
type TCPRecvError uint8

const (
	TCPRecvInvalidState = TCPRecvError(result.InvalidState)
	TCPRecvFinished     = TCPRecvError(result.Finished)
)

func (e TCPRecvError) Code() result.Code { return result.Code(e) }
func (e TCPRecvError) Error() string     { return "tcp recv: " + e.Code().String() }

// TCPCloseError is returned by TCPClose.
type TCPCloseError uint8

const TCPCloseInvalidState = TCPCloseError(result.InvalidState)

func (e TCPCloseError) Code() result.Code { return result.Code(e) }
func (e TCPCloseError) Error() string     { return "tcp close: " + e.Code().String() }

// UDPBindError is returned by UDPBind.
type UDPBindError uint8

const (
	UDPBindInvalidState  = UDPBindError(result.InvalidState)
	UDPBindUnaddressable = UDPBindError(result.Unaddressable)
)

func (e UDPBindError) Code() result.Code { return result.Code(e) }
func (e UDPBindError) Error() string     { return "udp bind: " + e.Code().String() }

// UDPSendError is returned by UDPSend.
type UDPSendError uint8

const (
	UDPSendUnaddressable = UDPSendError(result.Unaddressable)
	UDPSendBufferFull    = UDPSendError(result.BufferFull)
)

func (e UDPSendError) Code() result.Code { return result.Code(e) }
func (e UDPSendError) Error() string     { return "udp send: " + e.Code().String() }

// UDPRecvError is returned by UDPRecv.
type UDPRecvError uint8

const UDPRecvExhausted = UDPRecvError(result.Exhausted)

func (e UDPRecvError) Code() result.Code { return result.Code(e) }
func (e UDPRecvError) Error() string     { return "udp recv: " + e.Code().String() }

// ICMPBindError is returned by the ICMP bind operations.
type ICMPBindError uint8

const (
	ICMPBindInvalidState  = ICMPBindError(result.InvalidState)
	ICMPBindUnaddressable = ICMPBindError(result.Unaddressable)
	ICMPBindNotSupported  = ICMPBindError(result.NotSupported)
)

func (e ICMPBindError) Code() result.Code { return result.Code(e) }
func (e ICMPBindError) Error() string     { return "icmp bind: " + e.Code().String() }

// ICMPSendError is returned by ICMPSend.
type ICMPSendError uint8

const (
	ICMPSendUnaddressable = ICMPSendError(result.Unaddressable)
	ICMPSendBufferFull    = ICMPSendError(result.BufferFull)
)

func (e ICMPSendError) Code() result.Code { return result.Code(e) }
func (e ICMPSendError) Error() string     { return "icmp send: " + e.Code().String() }

// ICMPRecvError is returned by ICMPRecv.
type ICMPRecvError uint8

const ICMPRecvExhausted = ICMPRecvError(result.Exhausted)

func (e ICMPRecvError) Code() result.Code { return result.Code(e) }
func (e ICMPRecvError) Error() string     { return "icmp recv: " + e.Code().String() }

// DNSStartQueryError is returned by DNSStartQuery.
type DNSStartQueryError uint8

const (
	DNSStartQueryNoFreeSlot  = DNSStartQueryError(result.NoFreeSlot)
	DNSStartQueryInvalidName = DNSStartQueryError(result.InvalidName)
	DNSStartQueryNameTooLong = DNSStartQueryError(result.NameTooLong)
)

func (e DNSStartQueryError) Code() result.Code { return result.Code(e) }
func (e DNSStartQueryError) Error() string     { return "dns start query: " + e.Code().String() }

// DNSGetQueryResultError is returned by DNSGetQueryResult.
type DNSGetQueryResultError uint8

const (
	// DNSQueryPending means no answer has arrived yet.
	DNSQueryPending = DNSGetQueryResultError(result.Pending)
	// DNSQueryFailed means the query was answered with an error or timed out.
	DNSQueryFailed = DNSGetQueryResultError(result.Failed)
)

func (e DNSGetQueryResultError) Code() result.Code { return result.Code(e) }
func (e DNSGetQueryResultError) Error() string     { return "dns query result: " + e.Code().String() }

// Per-operation subsets of the master code space.
var (
	TCPListenErrors         = result.NewSubset("tcp listen", TCPListenInvalidState, TCPListenUnaddressable)
	TCPConnectErrors        = result.NewSubset("tcp connect", TCPConnectInvalidState, TCPConnectUnaddressable)
	TCPSendErrors           = result.NewSubset("tcp send", TCPSendInvalidState)
	TCPRecvErrors           = result.NewSubset("tcp recv", TCPRecvInvalidState, TCPRecvFinished)
	TCPCloseErrors          = result.NewSubset("tcp close", TCPCloseInvalidState)
	UDPBindErrors           = result.NewSubset("udp bind", UDPBindInvalidState, UDPBindUnaddressable)
	UDPSendErrors           = result.NewSubset("udp send", UDPSendUnaddressable, UDPSendBufferFull)
	UDPRecvErrors           = result.NewSubset("udp recv", UDPRecvExhausted)
	ICMPBindErrors          = result.NewSubset("icmp bind", ICMPBindInvalidState, ICMPBindUnaddressable, ICMPBindNotSupported)
	ICMPSendErrors          = result.NewSubset("icmp send", ICMPSendUnaddressable, ICMPSendBufferFull)
	ICMPRecvErrors          = result.NewSubset("icmp recv", ICMPRecvExhausted)
	DNSStartQueryErrors     = result.NewSubset("dns start query", DNSStartQueryNoFreeSlot, DNSStartQueryInvalidName, DNSStartQueryNameTooLong)
	DNSGetQueryResultErrors = result.NewSubset("dns query result", DNSQueryPending, DNSQueryFailed)
)
