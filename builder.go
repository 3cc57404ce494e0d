package sionet

import (
	"fmt"

	"github.com/opd-ai/sionet/address"
	"github.com/opd-ai/sionet/device"
	"github.com/opd-ai/sionet/result"
)

var (
	// ErrBuilderConsumed is returned when a builder is used after a
	// configuration call or Finalize took it over.
	ErrBuilderConsumed = result.New(result.InvalidState, "builder already consumed")

	// ErrNoHardwareAddr is returned when an Ethernet interface is finalized
	// without a hardware address.
	ErrNoHardwareAddr = result.New(result.Illegal, "ethernet interface needs a hardware address")

	// ErrNoNeighbourCache is returned by AddNeighbour before the cache was
	// initialized.
	ErrNoNeighbourCache = result.New(result.InvalidState, "neighbour cache not initialized")

	// ErrInvalidGateway is returned by Routes for an unspecified gateway.
	ErrInvalidGateway = result.New(result.Unaddressable, "invalid gateway")
)

// Builder stages the configuration of an Interface. Every configuration
// call consumes the receiver and returns the builder to use next, so a
// stale builder value cannot be configured twice.
type Builder struct {
	hwAddr     *address.MacAddress
	neighbours map[address.Address]address.MacAddress
	reassembly bool
	ipAddr     *address.Interface
	gateway    *address.Address
	consumed   bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Consumed reports whether b was taken over.
func (b *Builder) Consumed() bool { return b.consumed }

// next marks b consumed and returns a copy that owns the configuration.
func (b *Builder) next() (*Builder, error) {
	if b.consumed {
		return nil, ErrBuilderConsumed
	}
	n := *b
	b.consumed = true
	b.neighbours = nil
	return &n, nil
}

// HardwareAddr sets the Ethernet address.
func (b *Builder) HardwareAddr(mac address.MacAddress) (*Builder, error) {
	n, err := b.next()
	if err != nil {
		return nil, err
	}
	n.hwAddr = &mac
	return n, nil
}

// InitNeighbourCache enables an empty neighbour cache.
func (b *Builder) InitNeighbourCache() (*Builder, error) {
	return b.NeighbourCache(nil)
}

// NeighbourCache enables the neighbour cache seeded with entries.
func (b *Builder) NeighbourCache(entries map[address.Address]address.MacAddress) (*Builder, error) {
	n, err := b.next()
	if err != nil {
		return nil, err
	}
	n.neighbours = make(map[address.Address]address.MacAddress, len(entries))
	for ip, mac := range entries {
		n.neighbours[ip] = mac
	}
	return n, nil
}

// AddNeighbour adds a static neighbour entry.
func (b *Builder) AddNeighbour(ip address.Address, mac address.MacAddress) (*Builder, error) {
	if !b.consumed && b.neighbours == nil {
		return nil, ErrNoNeighbourCache
	}
	n, err := b.next()
	if err != nil {
		return nil, err
	}
	n.neighbours[ip] = mac
	return n, nil
}

// InitIPv4Reassembly enables reassembly of inbound IPv4 fragments. Without
// it fragments are dropped.
func (b *Builder) InitIPv4Reassembly() (*Builder, error) {
	n, err := b.next()
	if err != nil {
		return nil, err
	}
	n.reassembly = true
	return n, nil
}

// IPAddr sets the interface address, replacing an earlier one. An invalid
// prefix is rejected without consuming b.
func (b *Builder) IPAddr(iface address.Interface) (*Builder, error) {
	if _, err := iface.Native(); err != nil {
		return nil, err
	}
	n, err := b.next()
	if err != nil {
		return nil, err
	}
	n.ipAddr = &iface
	return n, nil
}

// Routes sets the default gateway of the gateway's address family.
func (b *Builder) Routes(gateway address.Address) (*Builder, error) {
	if gateway.IsUnspecified() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGateway, gateway)
	}
	n, err := b.next()
	if err != nil {
		return nil, err
	}
	n.gateway = &gateway
	return n, nil
}

// Finalize builds the interface. It consumes b even when it fails.
func (b *Builder) Finalize(medium device.Medium, mtu int, opts *Options) (*Interface, error) {
	n, err := b.next()
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if medium == device.MediumEthernet && (n.hwAddr == nil || n.hwAddr.IsZero()) {
		return nil, ErrNoHardwareAddr
	}
	return newInterface(n, medium, mtu, opts)
}
