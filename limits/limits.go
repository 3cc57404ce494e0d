package limits

import (
	"fmt"

	"github.com/opd-ai/sionet/result"
)

const (
	// EthernetHeaderSize is the size of an untagged Ethernet II header.
	EthernetHeaderSize = 14

	// MinIPv4MTU is the minimum MTU of an IPv4 link (RFC 791).
	MinIPv4MTU = 68

	// DefaultMTU is the default IP MTU of a new interface.
	DefaultMTU = 1500

	// MaxIPDatagram is the maximum IPv4 total length.
	MaxIPDatagram = 65535

	// MaxFrameSize is the largest frame accepted by the device queues.
	MaxFrameSize = MaxIPDatagram + EthernetHeaderSize

	// MaxQueueLimit bounds the configurable rx queue limit.
	MaxQueueLimit = 1 << 16
)

var (
	// ErrFrameEmpty indicates an empty or nil frame was provided
	ErrFrameEmpty = result.New(result.Truncated, "empty frame")

	// ErrFrameTooLarge indicates a frame exceeds the maximum size
	ErrFrameTooLarge = result.New(result.BufferInsufficient, "frame too large")

	// ErrBufferTooSmall indicates a destination buffer cannot hold the data
	ErrBufferTooSmall = result.New(result.BufferInsufficient, "destination buffer too small")

	// ErrInvalidMTU indicates an MTU outside the supported range
	ErrInvalidMTU = result.New(result.Illegal, "invalid mtu")
)

// ValidateFrame validates a frame against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateFrame(frame []byte, maxSize int) error {
	if len(frame) == 0 {
		return ErrFrameEmpty
	}
	if len(frame) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrFrameTooLarge, len(frame), maxSize)
	}
	return nil
}

// ValidateMTU validates an IP MTU against MinIPv4MTU and MaxIPDatagram.
func ValidateMTU(mtu int) error {
	if mtu < MinIPv4MTU || mtu > MaxIPDatagram {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidMTU, mtu, MinIPv4MTU, MaxIPDatagram)
	}
	return nil
}

// ValidateDestination checks that a caller buffer of size have can hold need
// bytes. It is called before any copy so a short buffer never receives a
// partial write.
func ValidateDestination(have, need int) error {
	if have < need {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, need, have)
	}
	return nil
}
