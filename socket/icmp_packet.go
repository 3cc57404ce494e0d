package socket

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/opd-ai/sionet/fragment"
	"github.com/opd-ai/sionet/limits"
)

// EchoKind selects the ICMPv4 echo message type.
type EchoKind uint8

const (
	EchoRequest EchoKind = 1
	EchoReply   EchoKind = 2
)

func (k EchoKind) typeCode() (layers.ICMPv4TypeCode, error) {
	switch k {
	case EchoRequest:
		return layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), nil
	case EchoReply:
		return layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoReply, 0), nil
	default:
		return 0, fmt.Errorf("%w: echo kind %d", ErrICMPKind, k)
	}
}

// ErrorKind selects the ICMPv4 error message type.
type ErrorKind uint8

const (
	DstUnreachable ErrorKind = 1
	TimeExceeded   ErrorKind = 2
)

func (k ErrorKind) typeCode(code uint8) (layers.ICMPv4TypeCode, error) {
	switch k {
	case DstUnreachable:
		return layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, code), nil
	case TimeExceeded:
		return layers.CreateICMPv4TypeCode(layers.ICMPv4TypeTimeExceeded, code), nil
	default:
		return 0, fmt.Errorf("%w: error kind %d", ErrICMPKind, k)
	}
}

const (
	icmpHeaderSize = 8
	// Bytes of the offending datagram's payload quoted after its header.
	icmpQuoteSize = 8
)

// EchoSize returns the encoded size of an echo message carrying payload.
func EchoSize(payload []byte) int {
	return icmpHeaderSize + len(payload)
}

// BuildICMPv4Echo encodes an ICMPv4 echo request or reply with a valid
// checksum.
func BuildICMPv4Echo(kind EchoKind, ident, seq uint16, payload []byte) ([]byte, error) {
	tc, err := kind.typeCode()
	if err != nil {
		return nil, err
	}
	return serializeICMPv4(&layers.ICMPv4{TypeCode: tc, Id: ident, Seq: seq}, payload)
}

// WriteICMPv4Echo encodes an echo message into dst. It returns 0 on success
// and the required size when dst is too short, in which case dst is left
// untouched.
func WriteICMPv4Echo(dst []byte, kind EchoKind, ident, seq uint16, payload []byte) (int, error) {
	pkt, err := BuildICMPv4Echo(kind, ident, seq, payload)
	if err != nil {
		return 0, err
	}
	if limits.ValidateDestination(len(dst), len(pkt)) != nil {
		return len(pkt), nil
	}
	copy(dst, pkt)
	return 0, nil
}

// BuildICMPv4Error encodes an ICMPv4 error message about original, a complete
// IPv4 datagram. The message quotes the original header and the first eight
// bytes of its payload.
func BuildICMPv4Error(kind ErrorKind, code uint8, original []byte) ([]byte, error) {
	tc, err := kind.typeCode(code)
	if err != nil {
		return nil, err
	}
	var ip layers.IPv4
	if err := ip.DecodeFromBytes(original, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("%w: %v", fragment.ErrMalformed, err)
	}
	hl := int(ip.IHL) * 4
	end := hl + icmpQuoteSize
	if end > int(ip.Length) {
		end = int(ip.Length)
	}
	if end > len(original) {
		end = len(original)
	}
	return serializeICMPv4(&layers.ICMPv4{TypeCode: tc}, original[:end])
}

func serializeICMPv4(msg *layers.ICMPv4, payload []byte) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, msg, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("serialize icmp: %w", err)
	}
	return buf.Bytes(), nil
}
