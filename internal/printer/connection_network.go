package printer

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NetworkConnection is a raw TCP (port 9100) printer connection
type NetworkConnection struct {
	endpoint     Endpoint
	conn         net.Conn
	writer       *bufio.Writer
	writeTimeout time.Duration
	logger       *zap.Logger
	mu           sync.Mutex
}

// ConnectNetwork connects to a network printer
func ConnectNetwork(ctx context.Context, ep Endpoint, options TransportOptions, logger *zap.Logger) (*NetworkConnection, error) {
	address := net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))

	dialer := net.Dialer{Timeout: options.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to network printer: %w", err)
	}

	logger = logger.With(zap.String("protocol", "tcp"), zap.String("address", address))
	logger.Info("Network printer connected")

	return &NetworkConnection{
		endpoint:     ep,
		conn:         conn,
		writer:       bufio.NewWriterSize(conn, 32*1024),
		writeTimeout: options.WriteTimeout,
		logger:       logger,
	}, nil
}

// Write buffers data for the network printer
func (c *NetworkConnection) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("network connection not open")
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write to network printer: %w", err)
	}
	return nil
}

// Flush sends all buffered bytes
func (c *NetworkConnection) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("network connection not open")
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush network printer: %w", err)
	}
	c.logger.Debug("Network flush completed")
	return nil
}

// Close closes the network connection
func (c *NetworkConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}

// Endpoint returns the address the connection was opened with
func (c *NetworkConnection) Endpoint() Endpoint {
	return c.endpoint
}
