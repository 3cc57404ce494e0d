// Package device implements the sans-I/O virtual device. It performs no I/O:
// the host pushes received frames into the rx queue, the embedded stack pulls
// them through Receive, and every frame the stack transmits lands in the tx
// queue until the host drains it.
//
// The device is not safe for concurrent use; its owner serializes access.
package device

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gvisor.dev/gvisor/pkg/tcpip/header"

	"github.com/opd-ai/sionet/limits"
	"github.com/opd-ai/sionet/logging"
	"github.com/opd-ai/sionet/result"
)

// ErrRxQueueFull is returned by PutRx when the rx queue limit is reached.
var ErrRxQueueFull = result.New(result.Exhausted, "rx queue full")

// Capabilities describes the device to the stack.
type Capabilities struct {
	// MTU is the largest frame the device carries, link header included.
	MTU    int
	Medium Medium
}

// Option configures a SansIO device.
type Option func(*SansIO)

// WithPolicy sets the rx queue policy.
func WithPolicy(p Policy) Option {
	return func(d *SansIO) { d.policy = p }
}

// WithRxLimit caps the number of queued rx frames. Zero means unlimited.
func WithRxLimit(n int) Option {
	return func(d *SansIO) { d.rxLimit = n }
}

// WithLogger sets the logger used for queue diagnostics.
func WithLogger(l *logrus.Logger) Option {
	return func(d *SansIO) { d.logger = l }
}

// SansIO is a device whose frames are plain memory buffers.
type SansIO struct {
	medium  Medium
	mtu     int
	policy  Policy
	rxLimit int
	logger  *logrus.Logger

	rx queue
	tx queue
}

// New creates a device for the given IP MTU. On Ethernet the link header is
// added, so the device MTU counts the whole frame.
func New(mtu int, medium Medium, opts ...Option) (*SansIO, error) {
	if err := medium.Validate(); err != nil {
		return nil, err
	}
	if err := limits.ValidateMTU(mtu); err != nil {
		return nil, err
	}
	if medium == MediumEthernet {
		mtu += header.EthernetMinimumSize
	}

	d := &SansIO{medium: medium, mtu: mtu}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	if d.rxLimit < 0 || d.rxLimit > limits.MaxQueueLimit {
		return nil, fmt.Errorf("device: rx limit %d not in [0, %d]", d.rxLimit, limits.MaxQueueLimit)
	}
	return d, nil
}

// Capabilities returns the device capabilities.
func (d *SansIO) Capabilities() Capabilities {
	return Capabilities{MTU: d.mtu, Medium: d.medium}
}

// Policy returns the rx queue policy.
func (d *SansIO) Policy() Policy { return d.policy }

// Receive takes one frame from the rx queue according to the policy. ok is
// false when the queue is empty.
func (d *SansIO) Receive() (rx RxToken, tx TxToken, ok bool) {
	var frame []byte
	if d.policy == PolicyLIFO {
		frame, ok = d.rx.popBack()
	} else {
		frame, ok = d.rx.popFront()
	}
	if !ok {
		return RxToken{}, TxToken{}, false
	}
	return RxToken{buffer: frame}, TxToken{parent: d}, true
}

// Transmit returns a token for one outgoing frame. A sans-I/O device can
// always transmit.
func (d *SansIO) Transmit() TxToken {
	return TxToken{parent: d}
}

// PutRx copies frame into the rx queue.
func (d *SansIO) PutRx(frame []byte) error {
	if err := limits.ValidateFrame(frame, limits.MaxFrameSize); err != nil {
		return err
	}
	if d.rxLimit > 0 && d.rx.len() >= d.rxLimit {
		logging.New(d.logger, "device", "PutRx").
			WithFields(logging.FrameFields(frame, "frame")).
			WithField("rx_limit", d.rxLimit).
			Debug("rx queue full, frame rejected")
		return fmt.Errorf("%w: limit %d", ErrRxQueueFull, d.rxLimit)
	}
	d.rx.pushBack(append([]byte(nil), frame...))
	return nil
}

// RxLen returns the number of queued rx frames.
func (d *SansIO) RxLen() int { return d.rx.len() }

// TxLen returns the number of queued tx frames.
func (d *SansIO) TxLen() int { return d.tx.len() }

// PeekTxSize returns the size of the oldest tx frame, or 0 if there is none.
func (d *SansIO) PeekTxSize() int {
	frame, ok := d.tx.front()
	if !ok {
		return 0
	}
	return len(frame)
}

// PopTx copies the oldest tx frame into dst and removes it. It returns 0 and
// no error when the queue is empty. If dst is too small the frame stays
// queued and the error maps to BufferInsufficient.
func (d *SansIO) PopTx(dst []byte) (int, error) {
	frame, ok := d.tx.front()
	if !ok {
		return 0, nil
	}
	if err := limits.ValidateDestination(len(dst), len(frame)); err != nil {
		return 0, err
	}
	d.tx.popFront()
	return copy(dst, frame), nil
}

// RxToken owns one received frame.
type RxToken struct {
	buffer []byte
}

// Consume hands the frame to f and returns f's result.
func (t RxToken) Consume(f func(frame []byte) error) error {
	return f(t.buffer)
}

// TxToken appends one frame to the parent's tx queue.
type TxToken struct {
	parent *SansIO
}

// Consume allocates an n-byte buffer and passes it to fill, which returns the
// number of bytes it wrote. That prefix is queued for transmission even when
// fill fails, and fill's error is returned.
func (t TxToken) Consume(n int, fill func(buf []byte) (int, error)) error {
	buf := make([]byte, n)
	written, err := fill(buf)
	if written < 0 {
		written = 0
	}
	if written > n {
		written = n
	}
	t.parent.tx.pushBack(buf[:written:written])
	return err
}

// Enqueue queues a copy of frame for transmission.
func (t TxToken) Enqueue(frame []byte) {
	_ = t.Consume(len(frame), func(buf []byte) (int, error) {
		return copy(buf, frame), nil
	})
}
