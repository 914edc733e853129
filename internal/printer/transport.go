package printer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrTransport marks failures to open, write to, or flush a printer transport
var ErrTransport = errors.New("transport error")

// Transport is an open byte channel to a printer. Writes are ordered; Flush
// returns once buffered bytes have been handed to the device.
type Transport interface {
	Write(ctx context.Context, data []byte) error
	Flush(ctx context.Context) error
	Close() error
	Endpoint() Endpoint
}

// Opener opens a transport for an endpoint
type Opener interface {
	Open(ctx context.Context, ep Endpoint) (Transport, error)
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(ctx context.Context, ep Endpoint) (Transport, error)

// Open calls f
func (f OpenerFunc) Open(ctx context.Context, ep Endpoint) (Transport, error) {
	return f(ctx, ep)
}

// TransportOptions tune the built in transports
type TransportOptions struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultTransportOptions are used for zero values
var DefaultTransportOptions = TransportOptions{
	DialTimeout:  5 * time.Second,
	WriteTimeout: 10 * time.Second,
}

// DeviceOpener opens serial, TCP and USB transports
type DeviceOpener struct {
	options TransportOptions
	logger  *zap.Logger
}

// NewDeviceOpener creates the opener for real devices
func NewDeviceOpener(options TransportOptions, logger *zap.Logger) *DeviceOpener {
	if options.DialTimeout <= 0 {
		options.DialTimeout = DefaultTransportOptions.DialTimeout
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = DefaultTransportOptions.WriteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceOpener{options: options, logger: logger}
}

// Open opens the transport for ep
func (o *DeviceOpener) Open(ctx context.Context, ep Endpoint) (Transport, error) {
	var (
		t   Transport
		err error
	)

	switch ep.Kind {
	case KindSerial:
		t, err = ConnectSerial(ep, o.logger)
	case KindNetwork:
		t, err = ConnectNetwork(ctx, ep, o.options, o.logger)
	case KindUSB:
		t, err = ConnectUSB(ep, o.options, o.logger)
	default:
		return nil, fmt.Errorf("%w: unsupported printer type: %s", ErrTransport, ep.Kind)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: failed to open printer on %s: %v", ErrTransport, ep.Describe(), err)
	}
	return t, nil
}
