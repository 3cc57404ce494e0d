package sionet

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/sionet/device"
	"github.com/opd-ai/sionet/limits"
	"github.com/opd-ai/sionet/logging"
	"github.com/opd-ai/sionet/result"
	"github.com/opd-ai/sionet/socket"
)

// Environment variables read by ApplyEnvironment.
const (
	EnvQueuePolicy  = "SIONET_QUEUE_POLICY"
	EnvRxQueueLimit = "SIONET_RX_QUEUE_LIMIT"
	EnvLogLevel     = "SIONET_LOG_LEVEL"
)

// ErrInvalidOptions is returned by Options.Validate.
var ErrInvalidOptions = result.New(result.Illegal, "invalid options")

// TimeProvider abstracts the clock used for poll timestamps.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the standard library clock.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// Options configures an Interface.
type Options struct {
	QueuePolicy       device.Policy
	RxQueueLimit      int
	OutboundQueueSize int

	TCPRxBuffer  int
	TCPTxBuffer  int
	UDPRxBuffer  int
	UDPTxBuffer  int
	ICMPRxBuffer int
	ICMPTxBuffer int

	DNSMaxQueries int

	Logger       *logrus.Logger
	TimeProvider TimeProvider
}

// NewOptions returns the default options.
func NewOptions() *Options {
	return &Options{
		QueuePolicy:       device.PolicyFIFO,
		RxQueueLimit:      1024,
		OutboundQueueSize: 512,
		TCPRxBuffer:       1024,
		TCPTxBuffer:       1024,
		UDPRxBuffer:       limits.MaxIPDatagram,
		UDPTxBuffer:       limits.MaxIPDatagram,
		ICMPRxBuffer:      256,
		ICMPTxBuffer:      256,
		DNSMaxQueries:     socket.DefaultMaxQueries,
		Logger:            logrus.New(),
		TimeProvider:      DefaultTimeProvider{},
	}
}

// ApplyEnvironment overrides options from the SIONET_* environment
// variables. Invalid values are logged and ignored.
func (o *Options) ApplyEnvironment() {
	log := logging.New(o.Logger, "sionet", "ApplyEnvironment")

	if v, ok := os.LookupEnv(EnvQueuePolicy); ok {
		if p, err := device.ParsePolicy(v); err != nil {
			log.WithField("variable", EnvQueuePolicy).WithField("value", v).Warn("Ignoring invalid queue policy")
		} else {
			o.QueuePolicy = p
		}
	}

	if v, ok := os.LookupEnv(EnvRxQueueLimit); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > limits.MaxQueueLimit {
			log.WithField("variable", EnvRxQueueLimit).WithField("value", v).Warn("Ignoring invalid rx queue limit")
		} else {
			o.RxQueueLimit = n
		}
	}

	if v, ok := os.LookupEnv(EnvLogLevel); ok && o.Logger != nil {
		if lvl, err := logging.ParseLevel(v); err != nil {
			log.WithField("variable", EnvLogLevel).WithField("value", v).Warn("Ignoring invalid log level")
		} else {
			o.Logger.SetLevel(lvl)
		}
	}
}

// Validate checks every option against its bounds.
func (o *Options) Validate() error {
	if o.QueuePolicy != device.PolicyFIFO && o.QueuePolicy != device.PolicyLIFO {
		return fmt.Errorf("%w: queue policy %v", ErrInvalidOptions, o.QueuePolicy)
	}
	if o.RxQueueLimit < 0 || o.RxQueueLimit > limits.MaxQueueLimit {
		return fmt.Errorf("%w: rx queue limit %d not in [0, %d]", ErrInvalidOptions, o.RxQueueLimit, limits.MaxQueueLimit)
	}
	if o.OutboundQueueSize <= 0 || o.OutboundQueueSize > limits.MaxQueueLimit {
		return fmt.Errorf("%w: outbound queue size %d not in [1, %d]", ErrInvalidOptions, o.OutboundQueueSize, limits.MaxQueueLimit)
	}
	buffers := []struct {
		name string
		size int
	}{
		{"tcp rx", o.TCPRxBuffer},
		{"tcp tx", o.TCPTxBuffer},
		{"udp rx", o.UDPRxBuffer},
		{"udp tx", o.UDPTxBuffer},
		{"icmp rx", o.ICMPRxBuffer},
		{"icmp tx", o.ICMPTxBuffer},
	}
	for _, b := range buffers {
		if b.size <= 0 || b.size > limits.MaxIPDatagram {
			return fmt.Errorf("%w: %s buffer %d not in [1, %d]", ErrInvalidOptions, b.name, b.size, limits.MaxIPDatagram)
		}
	}
	if o.DNSMaxQueries <= 0 {
		return fmt.Errorf("%w: dns max queries %d", ErrInvalidOptions, o.DNSMaxQueries)
	}
	return nil
}

// logger returns the configured logger or a discarding one.
func (o *Options) logger() *logrus.Logger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

func (o *Options) clock() TimeProvider {
	if o.TimeProvider == nil {
		return DefaultTimeProvider{}
	}
	return o.TimeProvider
}
