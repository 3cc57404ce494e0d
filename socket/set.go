package socket

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/stack"

	"github.com/opd-ai/sionet/handle"
)

// Handle identifies a socket inside its Set.
type Handle = handle.Handle

// Kind is the protocol of a socket.
type Kind uint8

const (
	KindTCP Kind = iota + 1
	KindUDP
	KindICMP
	KindDNS
)

func (k Kind) String() string {
	switch k {
	case KindTCP:
		return "tcp"
	case KindUDP:
		return "udp"
	case KindICMP:
		return "icmp"
	case KindDNS:
		return "dns"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Socket is one protocol socket owned by a Set.
type Socket interface {
	Kind() Kind
	Close()
}

// poller is implemented by sockets that have work to do on every poll.
type poller interface {
	poll(now time.Time)
}

// Context is what the socket operations need from the owning interface.
type Context interface {
	Stack() *stack.Stack
	NICID() tcpip.NICID
	NetworkProtocol() tcpip.NetworkProtocolNumber
	Sockets() *Set
	Logger() *logrus.Logger
	// Now is the clock socket timers run on; Set.Poll receives the same time.
	Now() time.Time
}

// Set owns every socket of one interface. Handles issued by a Set stay valid
// until the socket is removed or the Set is closed.
type Set struct {
	table  *handle.Table[Socket]
	closed bool
}

// NewSet returns an empty socket set.
func NewSet() *Set {
	return &Set{table: handle.NewTable[Socket](handle.KindSocket)}
}

// Add takes ownership of sock and returns its handle.
func (s *Set) Add(sock Socket) (Handle, error) {
	if s.closed {
		sock.Close()
		return handle.Null, ErrClosed
	}
	return s.table.Insert(sock), nil
}

// Get resolves h.
func (s *Set) Get(h Handle) (Socket, error) {
	return s.table.Get(h)
}

// Remove closes the socket behind h and invalidates h.
func (s *Set) Remove(h Handle) error {
	sock, err := s.table.Take(h)
	if err != nil {
		return err
	}
	sock.Close()
	return nil
}

// Len returns the number of live sockets.
func (s *Set) Len() int { return s.table.Len() }

// Poll gives every socket a chance to process what the stack delivered.
func (s *Set) Poll(now time.Time) {
	var pending []poller
	s.table.Range(func(_ Handle, sock Socket) bool {
		if p, ok := sock.(poller); ok {
			pending = append(pending, p)
		}
		return true
	})
	for _, p := range pending {
		p.poll(now)
	}
}

// Close closes every socket and invalidates every handle. Later calls to Add
// fail with ErrClosed.
func (s *Set) Close() {
	s.closed = true
	for _, sock := range s.table.Clear() {
		sock.Close()
	}
}

// lookup resolves h to a socket of concrete type T.
func lookup[T Socket](s *Set, h Handle) (T, error) {
	var zero T
	sock, err := s.table.Get(h)
	if err != nil {
		return zero, err
	}
	typed, ok := sock.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %v is a %v socket", handle.ErrWrongKind, h, sock.Kind())
	}
	return typed, nil
}
