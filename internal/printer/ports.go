package printer

import (
	"fmt"

	"github.com/google/gousb"
	"go.bug.st/serial"
)

// ListSerialPorts returns the serial ports present on this machine
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// USBDevice is an attached USB device that may be a printer
type USBDevice struct {
	VID          uint16 `json:"vid"`
	PID          uint16 `json:"pid"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Product      string `json:"product,omitempty"`
	// Printer is true when the device exposes a USB printer class interface
	Printer bool `json:"printer"`
}

// Endpoint returns the usb:// endpoint for the device
func (d USBDevice) Endpoint() Endpoint {
	return Endpoint{Kind: KindUSB, VID: d.VID, PID: d.PID}
}

// ListUSBDevices enumerates attached USB devices. Requires libusb.
func ListUSBDevices() ([]USBDevice, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var found []USBDevice
	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		d := USBDevice{VID: uint16(desc.Vendor), PID: uint16(desc.Product)}
		for _, cfg := range desc.Configs {
			for _, iface := range cfg.Interfaces {
				for _, alt := range iface.AltSettings {
					if alt.Class == gousb.ClassPrinter {
						d.Printer = true
					}
				}
			}
		}
		found = append(found, d)
		return true
	})
	defer func() {
		for _, dev := range devices {
			dev.Close()
		}
	}()
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	for i := range found {
		for _, dev := range devices {
			if uint16(dev.Desc.Vendor) == found[i].VID && uint16(dev.Desc.Product) == found[i].PID {
				found[i].Manufacturer, _ = dev.Manufacturer()
				found[i].Product, _ = dev.Product()
				break
			}
		}
	}

	return found, nil
}
