// Package result defines the single result-code space reported across the C
// boundary and the mapping from per-operation error types onto it.
//
// Every operation owns a narrow error type (for example socket.UDPBindError)
// whose constants are defined directly from master codes:
//
//	type UDPBindError uint8
//
//	const (
//	    UDPBindInvalidState  = UDPBindError(result.InvalidState)
//	    UDPBindUnaddressable = UDPBindError(result.Unaddressable)
//	)
//
//	func (e UDPBindError) Code() result.Code { return result.Code(e) }
//
// The error type implements Coder, so generic host code can always widen it
// with Of. The reverse direction is checked through a Subset, which rejects
// codes the operation never reports.
//
// Sentinel errors created with New carry a code as well, which is how handle
// misuse and size violations reach the host as InvalidHandle and
// BufferInsufficient instead of aborting the process.
package result
