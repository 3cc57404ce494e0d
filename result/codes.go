package result

import (
	"errors"
	"fmt"
)

// Code is the master result-code space shared by every fallible operation
// exposed across the C boundary. Zero always means success.
type Code uint8

const (
	// OK means the operation succeeded.
	OK Code = 0

	// Exhausted means a buffer was empty or full.
	Exhausted Code = 1

	// Illegal means the operation is not permitted in the current state.
	Illegal Code = 2

	// Unaddressable means an endpoint or remote address could not be
	// translated to a lower level address.
	Unaddressable Code = 3

	// Finished means the operation is complete, e.g. the remote closed the
	// stream and no more data remains.
	Finished Code = 4

	// Truncated means a packet field pointed beyond the received data.
	Truncated Code = 5

	// Checksum means a packet carried an incorrect checksum.
	Checksum Code = 6

	// Unrecognized means a packet could not be recognized.
	Unrecognized Code = 7

	// Fragmented means an IP fragment arrived while reassembly is disabled.
	Fragmented Code = 8

	// Malformed means a packet was self-contradictory.
	Malformed Code = 9

	// Dropped means a packet contradicted internal state.
	Dropped Code = 10

	// ReassemblyTimeout means a fragment arrived too late.
	ReassemblyTimeout Code = 11

	PacketAssemblerNotInit        Code = 12
	PacketAssemblerBufferTooSmall Code = 13
	PacketAssemblerIncomplete     Code = 14
	PacketAssemblerTooManyHoles   Code = 15
	PacketAssemblerOverlap        Code = 16
	PacketAssemblerSetFull        Code = 17
	PacketAssemblerSetKeyNotFound Code = 18

	// NotSupported means the request is valid but not supported by this build
	// or by the embedded stack.
	NotSupported Code = 19

	InvalidState  Code = 20
	BufferFull    Code = 21
	NoFreeSlot    Code = 22
	InvalidName   Code = 23
	NameTooLong   Code = 24
	Pending       Code = 25
	Failed        Code = 26
	InvalidHandle Code = 27

	// BufferInsufficient means a caller-provided buffer is too small for the
	// data that would be copied into it.
	BufferInsufficient Code = 0xFF
)

var names = map[Code]string{
	OK:                            "OK",
	Exhausted:                     "Exhausted",
	Illegal:                       "Illegal",
	Unaddressable:                 "Unaddressable",
	Finished:                      "Finished",
	Truncated:                     "Truncated",
	Checksum:                      "Checksum",
	Unrecognized:                  "Unrecognized",
	Fragmented:                    "Fragmented",
	Malformed:                     "Malformed",
	Dropped:                       "Dropped",
	ReassemblyTimeout:             "ReassemblyTimeout",
	PacketAssemblerNotInit:        "PacketAssemblerNotInit",
	PacketAssemblerBufferTooSmall: "PacketAssemblerBufferTooSmall",
	PacketAssemblerIncomplete:     "PacketAssemblerIncomplete",
	PacketAssemblerTooManyHoles:   "PacketAssemblerTooManyHoles",
	PacketAssemblerOverlap:        "PacketAssemblerOverlap",
	PacketAssemblerSetFull:        "PacketAssemblerSetFull",
	PacketAssemblerSetKeyNotFound: "PacketAssemblerSetKeyNotFound",
	NotSupported:                  "NotSupported",
	InvalidState:                  "InvalidState",
	BufferFull:                    "BufferFull",
	NoFreeSlot:                    "NoFreeSlot",
	InvalidName:                   "InvalidName",
	NameTooLong:                   "NameTooLong",
	Pending:                       "Pending",
	Failed:                        "Failed",
	InvalidHandle:                 "InvalidHandle",
	BufferInsufficient:            "BufferInsufficient",
}

// String returns the symbolic name of the code.
func (c Code) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", uint8(c))
}

// Valid reports whether c belongs to the master space.
func (c Code) Valid() bool {
	_, ok := names[c]
	return ok
}

// Codes returns every member of the master space in ascending order.
func Codes() []Code {
	out := make([]Code, 0, len(names))
	for c := 0; c <= 0xFF; c++ {
		if _, ok := names[Code(c)]; ok {
			out = append(out, Code(c))
		}
	}
	return out
}

// Coder is implemented by every error that maps onto the master space.
type Coder interface {
	Code() Code
}

type codedError struct {
	code Code
	msg  string
}

func (e *codedError) Error() string { return e.msg }
func (e *codedError) Code() Code    { return e.code }

// New returns a sentinel error carrying code. It is the coded counterpart of
// errors.New and is compared with errors.Is by identity.
func New(code Code, msg string) error {
	return &codedError{code: code, msg: msg}
}

// Of converts any error into a master code: nil maps to OK, errors that wrap
// a Coder map to its code and everything else maps to Failed.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var coder Coder
	if errors.As(err, &coder) {
		return coder.Code()
	}
	return Failed
}
