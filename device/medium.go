package device

import (
	"errors"
	"fmt"
	"strings"

	"github.com/opd-ai/sionet/result"
)

// Medium is the link-layer medium of a device. The numeric values are part
// of the C ABI.
type Medium uint8

const (
	MediumInvalid    Medium = 0
	MediumEthernet   Medium = 2
	MediumIP         Medium = 3
	MediumIEEE802154 Medium = 4
)

var (
	// ErrInvalidMedium is returned for MediumInvalid and unknown values.
	ErrInvalidMedium = result.New(result.Illegal, "invalid medium")

	// ErrMediumNotSupported is returned for media this build cannot drive.
	ErrMediumNotSupported = result.New(result.NotSupported, "medium not supported")
)

func (m Medium) String() string {
	switch m {
	case MediumInvalid:
		return "invalid"
	case MediumEthernet:
		return "ethernet"
	case MediumIP:
		return "ip"
	case MediumIEEE802154:
		return "ieee802154"
	default:
		return fmt.Sprintf("medium(%d)", uint8(m))
	}
}

// Validate reports whether a device can be built for m.
func (m Medium) Validate() error {
	switch m {
	case MediumEthernet, MediumIP:
		return nil
	case MediumIEEE802154:
		return fmt.Errorf("%w: %v", ErrMediumNotSupported, m)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidMedium, m)
	}
}

// Policy selects which end of the rx queue Receive takes frames from.
type Policy uint8

const (
	// PolicyFIFO delivers frames to the stack in arrival order.
	PolicyFIFO Policy = iota
	// PolicyLIFO delivers the most recently queued frame first.
	PolicyLIFO
)

// ErrUnknownPolicy is returned by ParsePolicy.
var ErrUnknownPolicy = errors.New("unknown queue policy")

func (p Policy) String() string {
	switch p {
	case PolicyFIFO:
		return "fifo"
	case PolicyLIFO:
		return "lifo"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParsePolicy parses "fifo" or "lifo", case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fifo":
		return PolicyFIFO, nil
	case "lifo":
		return PolicyLIFO, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}
