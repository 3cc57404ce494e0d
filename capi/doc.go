// Package main exposes sionet as a C shared library.
//
// # Build Instructions
//
// To build as a C shared library:
//
//	go build -buildmode=c-shared -o libsionet.so ./capi/
//
// This generates:
//   - libsionet.so: The shared library
//   - libsionet.h: Auto-generated C header file with function declarations
//
// # Handles
//
// Builders, interfaces, sockets and DNS queries are referred to by uint64
// handles. Zero is never a valid handle. A handle that was freed, or that
// belongs to another object category, is rejected with InvalidHandle rather
// than touching freed memory. Socket calls take both the interface handle
// and the socket handle; a socket used with an interface that does not own
// it is rejected the same way.
//
// Builder configuration calls return a new builder handle and release the
// old one. A call rejected for a bad argument returns 0 and leaves the old
// handle usable.
//
// # Addresses
//
// IP addresses are 16 bytes. IPv4 addresses use the IPv4-mapped form
// ::ffff:a.b.c.d, and IPv4 prefix lengths are counted from 96, so a /24
// network is passed as 120. Hardware addresses are 6 bytes.
//
// # C API Usage
//
//	#include "libsionet.h"
//
//	initLogging(4);
//	uint64_t b = newBuilder();
//	b = builderSetIPAddr(b, my_ip, 120);
//	uint64_t dev = builderFinalize(b, 3, 1500, NULL);
//
//	uint64_t udp = newUdpSocket(dev);
//	udpBind(dev, udp, 5000);
//
//	for (;;) {
//	    while (read_frame(buf, &len)) {
//	        putRxPacket(dev, buf, len);
//	    }
//	    ifacePoll(dev);
//	    while (getCountOfPacketsInTxQueue(dev) > 0) {
//	        size_t n = getLastTxPacket(dev, buf, sizeof(buf));
//	        write_frame(buf, n);
//	    }
//	}
//
//	deleteUdpSocket(udp);
//	freeDevice(dev);
//
// # Result Codes
//
// Calls that can fail return a uint8 result code. 0 is success; the other
// values follow the result package, for example 1 (Exhausted) when a receive
// queue is empty, 25 (Pending) while a DNS query is in flight, 27
// (InvalidHandle) for a stale or foreign handle and 255
// (BufferInsufficient) when a destination buffer is too small.
package main
