package printer

import (
	"fmt"
	"net"
	"net/url"
	"runtime"
	"strconv"
	"strings"
)

// Kind of transport
type Kind string

const (
	KindSerial  Kind = "serial"
	KindNetwork Kind = "tcp"
	KindUSB     Kind = "usb"
)

// Defaults used when an endpoint omits them
const (
	DefaultBaudRate    = 9600
	DefaultNetworkPort = 9100
	DefaultCOMPort     = "COM7"
)

// Endpoint addresses a printer
type Endpoint struct {
	Kind     Kind
	Device   string // serial device, e.g. COM7 or /dev/ttyUSB0
	BaudRate int
	Host     string
	Port     int
	VID      uint16
	PID      uint16
}

// ParseEndpoint parses serial://COM7?baud=9600, serial:///dev/ttyUSB0,
// tcp://192.168.1.50:9100 and usb://04b8:0e15. A bare device name is taken
// as a serial port.
func ParseEndpoint(s string) (Endpoint, error) {
	if s == "" {
		return Endpoint{}, fmt.Errorf("endpoint is empty")
	}
	if !strings.Contains(s, "://") {
		return Endpoint{Kind: KindSerial, Device: s, BaudRate: DefaultBaudRate}, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", s, err)
	}

	switch Kind(u.Scheme) {
	case KindSerial:
		ep := Endpoint{Kind: KindSerial, Device: u.Host + u.Path, BaudRate: DefaultBaudRate}
		if ep.Device == "" {
			return Endpoint{}, fmt.Errorf("invalid endpoint %q: missing serial device", s)
		}
		if baud := u.Query().Get("baud"); baud != "" {
			ep.BaudRate, err = strconv.Atoi(baud)
			if err != nil || ep.BaudRate <= 0 {
				return Endpoint{}, fmt.Errorf("invalid endpoint %q: bad baud rate %q", s, baud)
			}
		}
		return ep, nil

	case KindNetwork:
		ep := Endpoint{Kind: KindNetwork, Host: u.Hostname(), Port: DefaultNetworkPort}
		if ep.Host == "" {
			return Endpoint{}, fmt.Errorf("invalid endpoint %q: missing host", s)
		}
		if p := u.Port(); p != "" {
			ep.Port, err = strconv.Atoi(p)
			if err != nil || ep.Port <= 0 || ep.Port > 65535 {
				return Endpoint{}, fmt.Errorf("invalid endpoint %q: bad port %q", s, p)
			}
		}
		return ep, nil

	case KindUSB:
		vid, pid, ok := strings.Cut(u.Host, ":")
		if !ok {
			return Endpoint{}, fmt.Errorf("invalid endpoint %q: expected usb://VID:PID", s)
		}
		v, err1 := strconv.ParseUint(vid, 16, 16)
		p, err2 := strconv.ParseUint(pid, 16, 16)
		if err1 != nil || err2 != nil {
			return Endpoint{}, fmt.Errorf("invalid endpoint %q: VID and PID must be hex", s)
		}
		return Endpoint{Kind: KindUSB, VID: uint16(v), PID: uint16(p)}, nil

	default:
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: unsupported scheme %q", s, u.Scheme)
	}
}

// String renders the endpoint as a URL
func (e Endpoint) String() string {
	switch e.Kind {
	case KindSerial:
		return fmt.Sprintf("serial://%s?baud=%d", e.Device, e.BaudRate)
	case KindNetwork:
		return "tcp://" + net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	case KindUSB:
		return fmt.Sprintf("usb://%04x:%04x", e.VID, e.PID)
	}
	return string(e.Kind)
}

// Describe is the human readable form used in confirmations and errors
func (e Endpoint) Describe() string {
	switch e.Kind {
	case KindSerial:
		return fmt.Sprintf("port %s at baud %d", e.Device, e.BaudRate)
	case KindNetwork:
		return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	case KindUSB:
		return fmt.Sprintf("usb %04X:%04X", e.VID, e.PID)
	}
	return string(e.Kind)
}

// serialPortName returns the name to open. Windows only accepts COM10 and
// above through the device namespace.
func serialPortName(device string) string {
	return normalizeCOMPort(device, runtime.GOOS)
}

func normalizeCOMPort(device, goos string) string {
	if goos != "windows" {
		return device
	}
	upper := strings.ToUpper(device)
	if !strings.HasPrefix(upper, "COM") {
		return device
	}
	n, err := strconv.Atoi(upper[3:])
	if err != nil || n <= 9 {
		return device
	}
	return `\\.\` + upper
}
