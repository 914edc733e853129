package printer

import (
	"context"
	"fmt"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// SerialConnection is a serial port printer connection
type SerialConnection struct {
	endpoint Endpoint
	port     serial.Port
	logger   *zap.Logger
	mu       sync.Mutex
}

// ConnectSerial opens a serial printer at 8N1
func ConnectSerial(ep Endpoint, logger *zap.Logger) (*SerialConnection, error) {
	if ep.BaudRate == 0 {
		ep.BaudRate = DefaultBaudRate
	}

	logger = logger.With(
		zap.String("protocol", "serial"),
		zap.String("port", ep.Device),
	)

	mode := &serial.Mode{
		BaudRate: ep.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(serialPortName(ep.Device), mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	logger.Info("Serial port opened", zap.Int("baud_rate", ep.BaudRate))

	return &SerialConnection{
		endpoint: ep,
		port:     port,
		logger:   logger,
	}, nil
}

// Write sends data to the serial printer
func (c *SerialConnection) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return fmt.Errorf("serial port not open")
	}

	n, err := c.port.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write to serial printer: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	c.logger.Debug("Serial write completed", zap.Int("bytes", n))
	return nil
}

// Flush waits until the output buffer has been transmitted
func (c *SerialConnection) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return fmt.Errorf("serial port not open")
	}
	if err := c.port.Drain(); err != nil {
		return fmt.Errorf("failed to drain serial port: %w", err)
	}
	return nil
}

// Close closes the serial connection
func (c *SerialConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return nil
	}

	err := c.port.Close()
	c.port = nil
	return err
}

// Endpoint returns the address the connection was opened with
func (c *SerialConnection) Endpoint() Endpoint {
	return c.endpoint
}
