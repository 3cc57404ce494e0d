// Package sionet implements a sans-I/O network interface on top of the gVisor
// network stack.
//
// A sans-I/O interface never touches a socket or a device file. The host
// application moves raw frames in and out of two in-memory queues and calls
// Poll to let the embedded stack process them. Everything else (address
// resolution, routing, IP reassembly, the TCP/UDP/ICMP state machines) is the
// stack's job.
//
// # Getting Started
//
// Configure an interface with a Builder. Every configuration call consumes
// the receiver and returns the builder to use next:
//
//	b := sionet.NewBuilder()
//	b, _ = b.IPAddr(address.Interface{Prefix: 96 + 24, Addr: address.MustParse("10.0.0.2")})
//	b, _ = b.Routes(address.MustParse("10.0.0.1"))
//
//	iface, err := b.Finalize(device.MediumIP, 1500, sionet.NewOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer iface.Close()
//
// Then drive it from the host loop:
//
//	iface.PutRxPacket(frameFromWire)
//	iface.Poll()
//	for iface.TxQueueLen() > 0 {
//	    buf := make([]byte, iface.NextTxPacketSize())
//	    n, _ := iface.PopTxPacket(buf)
//	    sendToWire(buf[:n])
//	}
//
// # Sockets
//
// Sockets are created on an interface and operated through the socket
// package, which takes the interface as its Context:
//
//	h, _ := iface.NewUDPSocket()
//	socket.UDPBind(iface, h, 5000)
//	socket.UDPSend(iface, h, payload, address.Endpoint{Port: 53, Addr: server})
//
// Closing the interface closes its sockets; their handles become stale.
//
// # Configuration
//
// NewOptions returns defaults for queue policy, queue limits and socket
// buffer sizes. ApplyEnvironment overrides them from SIONET_QUEUE_POLICY,
// SIONET_RX_QUEUE_LIMIT and SIONET_LOG_LEVEL.
//
// # Fragmentation
//
// Inbound IPv4 fragments are dropped unless the builder enabled reassembly
// with InitIPv4Reassembly. Outbound fragmentation of a complete datagram is
// available separately in the fragment package.
package sionet
