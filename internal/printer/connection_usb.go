package printer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"
)

// USBConnection is a USB printer connection over the first bulk OUT endpoint
type USBConnection struct {
	endpoint     Endpoint
	usb          *gousb.Context
	device       *gousb.Device
	iface        *gousb.Interface
	done         func()
	out          *gousb.OutEndpoint
	writeTimeout time.Duration
	logger       *zap.Logger
	mu           sync.Mutex
}

// ConnectUSB opens a USB printer by vendor and product ID. Requires libusb.
func ConnectUSB(ep Endpoint, options TransportOptions, logger *zap.Logger) (*USBConnection, error) {
	usb := gousb.NewContext()

	dev, err := usb.OpenDeviceWithVIDPID(gousb.ID(ep.VID), gousb.ID(ep.PID))
	if err != nil {
		usb.Close()
		return nil, fmt.Errorf("failed to open USB device: %w", err)
	}
	if dev == nil {
		usb.Close()
		return nil, fmt.Errorf("device not found: %04X:%04X", ep.VID, ep.PID)
	}

	// Printers are often claimed by the kernel usblp driver
	if err := dev.SetAutoDetach(true); err != nil {
		logger.Debug("Auto detach not supported", zap.Error(err))
	}

	iface, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		usb.Close()
		return nil, fmt.Errorf("failed to claim USB interface: %w", err)
	}

	var out *gousb.OutEndpoint
	for _, desc := range iface.Setting.Endpoints {
		if desc.Direction != gousb.EndpointDirectionOut {
			continue
		}
		if out, err = iface.OutEndpoint(desc.Number); err == nil {
			break
		}
	}
	if out == nil {
		done()
		dev.Close()
		usb.Close()
		return nil, fmt.Errorf("no OUT endpoint found for USB printer %04X:%04X", ep.VID, ep.PID)
	}

	logger = logger.With(zap.String("protocol", "usb"), zap.String("device", ep.Describe()))
	logger.Info("USB printer opened")

	return &USBConnection{
		endpoint:     ep,
		usb:          usb,
		device:       dev,
		iface:        iface,
		done:         done,
		out:          out,
		writeTimeout: options.WriteTimeout,
		logger:       logger,
	}, nil
}

// Write sends data to the USB printer
func (c *USBConnection) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.out == nil {
		return fmt.Errorf("USB connection not open")
	}

	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	n, err := c.out.WriteContext(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to write to USB printer: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}
	return nil
}

// Flush is a no-op: bulk transfers complete before Write returns
func (c *USBConnection) Flush(ctx context.Context) error {
	return nil
}

// Close releases the interface and device
func (c *USBConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.out == nil {
		return nil
	}
	c.out = nil

	c.done()
	err := c.device.Close()
	c.usb.Close()
	return err
}

// Endpoint returns the address the connection was opened with
func (c *USBConnection) Endpoint() Endpoint {
	return c.endpoint
}
