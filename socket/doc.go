// Package socket provides the TCP, UDP, ICMP and DNS sockets of an
// interface. Sockets live in a Set owned by the interface and are addressed
// by generation-checked handles, so a handle used after its socket or its
// interface was closed fails with an InvalidHandle error instead of touching
// freed state.
//
// Every operation takes a Context, which supplies the embedded stack and the
// socket Set. Operations return errors whose result code is one member of
// the operation's subset, for example UDPBindErrors:
//
//	h, _ := socket.NewUDP(iface, 65535, 65535)
//	if err := socket.UDPBind(iface, h, 5353); err != nil {
//	    code := result.Of(err) // InvalidState or Unaddressable
//	}
//
// Sockets are not safe for concurrent use; callers serialize operations on
// one interface with its Poll.
package socket
