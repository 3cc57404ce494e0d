// Package fragment splits IPv4 datagrams that exceed a link MTU into
// fragments the receiving stack can reassemble.
package fragment

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"gvisor.dev/gvisor/pkg/tcpip/header"

	"github.com/opd-ai/sionet/result"
)

// blockSize is the fragment offset unit.
const blockSize = 8

var (
	// ErrMTUTooSmall is returned when the MTU leaves no room for one
	// fragment block after the header.
	ErrMTUTooSmall = result.New(result.Illegal, "mtu too small for ipv4 header")

	// ErrMalformed is returned for input that is not a well-formed IPv4 datagram.
	ErrMalformed = result.New(result.Malformed, "malformed ipv4 datagram")

	// ErrChecksum is returned by Validate for a bad header checksum.
	ErrChecksum = result.New(result.Checksum, "bad ipv4 header checksum")
)

// parse decodes the header and returns it with the datagram trimmed to its
// total length.
func parse(packet []byte) (*layers.IPv4, []byte, error) {
	var ip layers.IPv4
	if err := ip.DecodeFromBytes(packet, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ip.Version != 4 {
		return nil, nil, fmt.Errorf("%w: version %d", ErrMalformed, ip.Version)
	}
	total := int(ip.Length)
	if total == 0 {
		total = len(packet)
	}
	if total > len(packet) {
		return nil, nil, fmt.Errorf("%w: total length %d exceeds %d bytes", ErrMalformed, total, len(packet))
	}
	return &ip, packet[:total], nil
}

// ChunkSize returns the payload bytes carried per fragment for a header of
// headerLen bytes at the given MTU.
func ChunkSize(mtu, headerLen int) (int, error) {
	if mtu <= headerLen {
		return 0, fmt.Errorf("%w: mtu %d, header %d", ErrMTUTooSmall, mtu, headerLen)
	}
	chunk := (mtu - headerLen) &^ (blockSize - 1)
	if chunk < blockSize {
		return 0, fmt.Errorf("%w: mtu %d, header %d", ErrMTUTooSmall, mtu, headerLen)
	}
	return chunk, nil
}

// IPv4 splits packet into fragments of at most mtu bytes, in ascending
// offset order. The header, options included, is replicated into every
// fragment with DF cleared, MF set on all but the last fragment, the offset
// and total length rewritten and the checksum recomputed. The last fragment
// keeps the input's MF bit, so an input that is itself a non-final fragment
// stays non-final. A datagram that already fits is returned as one copy.
func IPv4(packet []byte, mtu int) ([][]byte, error) {
	ip, datagram, err := parse(packet)
	if err != nil {
		return nil, err
	}
	if len(datagram) <= mtu {
		return [][]byte{append([]byte(nil), datagram...)}, nil
	}

	headerLen := int(ip.IHL) * 4
	chunk, err := ChunkSize(mtu, headerLen)
	if err != nil {
		return nil, err
	}

	hdr := datagram[:headerLen]
	payload := datagram[headerLen:]
	baseOffset := int(ip.FragOffset) * blockSize
	lastMF := ip.Flags&layers.IPv4MoreFragments != 0
	if baseOffset+len(payload) > 0xffff {
		return nil, fmt.Errorf("%w: offset %d + payload %d overflows", ErrMalformed, baseOffset, len(payload))
	}

	frags := make([][]byte, 0, (len(payload)+chunk-1)/chunk)
	for off := 0; off < len(payload); off += chunk {
		end := off + chunk
		if end > len(payload) {
			end = len(payload)
		}
		last := end == len(payload)

		frag := make([]byte, headerLen+end-off)
		copy(frag, hdr)
		copy(frag[headerLen:], payload[off:end])

		var flags uint8
		if !last || lastMF {
			flags = header.IPv4FlagMoreFragments
		}
		h := header.IPv4(frag)
		h.SetFlagsFragmentOffset(flags, uint16(baseOffset+off))
		h.SetTotalLength(uint16(len(frag)))
		h.SetChecksum(0)
		h.SetChecksum(^h.CalculateChecksum())

		frags = append(frags, frag)
	}
	return frags, nil
}

// Count returns how many fragments IPv4 would produce for packet at mtu.
func Count(packet []byte, mtu int) (int, error) {
	ip, datagram, err := parse(packet)
	if err != nil {
		return 0, err
	}
	if len(datagram) <= mtu {
		return 1, nil
	}
	headerLen := int(ip.IHL) * 4
	chunk, err := ChunkSize(mtu, headerLen)
	if err != nil {
		return 0, err
	}
	payload := len(datagram) - headerLen
	return (payload + chunk - 1) / chunk, nil
}

// Validate checks that frag is a well-formed IPv4 datagram or fragment with
// a correct header checksum.
func Validate(frag []byte) error {
	ip, _, err := parse(frag)
	if err != nil {
		return err
	}
	h := header.IPv4(frag[:int(ip.IHL)*4])
	if h.CalculateChecksum() != 0xffff {
		return fmt.Errorf("%w: 0x%04x", ErrChecksum, h.Checksum())
	}
	return nil
}
