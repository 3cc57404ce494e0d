// Package limits provides the size constants and validation functions shared
// by the device, the fragmenter and the C surface. Every boundary that accepts
// host memory checks it here first.
//
// # Size Hierarchy
//
//   - MinIPv4MTU (68 bytes): the smallest MTU every IPv4 link must support,
//     a 60-byte maximum header plus one 8-byte fragment block.
//
//   - DefaultMTU (1500 bytes): the conventional Ethernet payload size.
//
//   - MaxIPDatagram (65535 bytes): the largest datagram the IPv4 total length
//     field can describe.
//
//   - MaxFrameSize (65549 bytes): MaxIPDatagram plus an Ethernet header, the
//     largest frame the device queues accept.
//
// # Validation Functions
//
//	if err := limits.ValidateFrame(frame, limits.MaxFrameSize); err != nil {
//	    // ErrFrameEmpty or ErrFrameTooLarge
//	}
//
// Every error carries a result code so the C surface can report it without
// further translation: empty input maps to Truncated, oversize input and short
// destination buffers map to BufferInsufficient.
package limits
