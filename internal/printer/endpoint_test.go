package printer

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/thereceipt/receipt-raster/pkg/receiptformat"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		want Endpoint
		desc string
	}{
		{"serial://COM7?baud=9600", Endpoint{Kind: KindSerial, Device: "COM7", BaudRate: 9600}, "port COM7 at baud 9600"},
		{"serial:///dev/ttyUSB0?baud=19200", Endpoint{Kind: KindSerial, Device: "/dev/ttyUSB0", BaudRate: 19200}, "port /dev/ttyUSB0 at baud 19200"},
		{"COM3", Endpoint{Kind: KindSerial, Device: "COM3", BaudRate: 9600}, "port COM3 at baud 9600"},
		{"tcp://192.168.1.50:9100", Endpoint{Kind: KindNetwork, Host: "192.168.1.50", Port: 9100}, "192.168.1.50:9100"},
		{"tcp://printer.local", Endpoint{Kind: KindNetwork, Host: "printer.local", Port: 9100}, "printer.local:9100"},
		{"usb://04b8:0e15", Endpoint{Kind: KindUSB, VID: 0x04B8, PID: 0x0E15}, "usb 04B8:0E15"},
	}

	for _, tt := range tests {
		got, err := ParseEndpoint(tt.in)
		if err != nil {
			t.Errorf("ParseEndpoint(%q) returned error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEndpoint(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
		if got.Describe() != tt.desc {
			t.Errorf("Describe() = %q, want %q", got.Describe(), tt.desc)
		}

		again, err := ParseEndpoint(got.String())
		if err != nil || again != got {
			t.Errorf("String() %q does not parse back to %+v", got.String(), got)
		}
	}
}

func TestParseEndpoint_Invalid(t *testing.T) {
	inputs := []string{
		"",
		"serial://COM7?baud=fast",
		"tcp://:9100",
		"tcp://host:99999",
		"usb://04b8",
		"usb://zz:0e15",
		"lpt://LPT1",
	}
	for _, in := range inputs {
		if _, err := ParseEndpoint(in); err == nil {
			t.Errorf("Expected error for %q", in)
		}
	}
}

func TestNormalizeCOMPort(t *testing.T) {
	tests := []struct {
		device, goos, want string
	}{
		{"COM7", "windows", "COM7"},
		{"COM10", "windows", `\\.\COM10`},
		{"com12", "windows", `\\.\COM12`},
		{"COM10", "linux", "COM10"},
		{"/dev/ttyUSB0", "windows", "/dev/ttyUSB0"},
	}
	for _, tt := range tests {
		if got := normalizeCOMPort(tt.device, tt.goos); got != tt.want {
			t.Errorf("normalizeCOMPort(%q, %q) = %q, want %q", tt.device, tt.goos, got, tt.want)
		}
	}
}

func win1256(t *testing.T, s string) []byte {
	t.Helper()
	out, err := charmap.Windows1256.NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("Failed to encode %q: %v", s, err)
	}
	return out
}

func TestTextReceipt(t *testing.T) {
	req := &receiptformat.Request{
		Title: "متجر",
		Items: []receiptformat.LineItem{
			{Name: "Apple", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("3.5")},
		},
		Discount: decimal.RequireFromString("1"),
		Footer:   receiptformat.Footer{Phones: []string{"0100-123-4567"}},
	}

	out := TextReceipt(req, DefaultTextOptions())

	// the title is sent in visual order
	if !bytes.Contains(out, win1256(t, "رجتم")) {
		t.Error("Expected the title reversed for visual order")
	}
	if !bytes.Contains(out, []byte("7.00")) || !bytes.Contains(out, []byte("Apple")) {
		t.Error("Expected the item row with its line total")
	}
	if !bytes.Contains(out, []byte(" 2.00 ")) {
		t.Error("Expected the quantity with two decimals")
	}
	if !bytes.Contains(out, []byte("6.00")) {
		t.Error("Expected the recomputed total 6.00")
	}
	if !bytes.Contains(out, []byte("0100-123-4567")) {
		t.Error("Expected the phone number unchanged")
	}
	if !bytes.Contains(out, win1256(t, "مصخلا")) {
		t.Error("Expected the discount label in visual order")
	}
	if !bytes.HasPrefix(out, []byte{ESC, 'a', 1, ESC, 'E', 1}) {
		t.Errorf("Expected centred bold title, got % X", out[:6])
	}
}

func TestTextReceipt_RowWidth(t *testing.T) {
	req := &receiptformat.Request{
		Items: []receiptformat.LineItem{
			{Name: "A very long product name that will not fit", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1)},
		},
	}
	opts := DefaultTextOptions()
	opts.Columns = 32

	for _, line := range bytes.Split(TextReceipt(req, opts), []byte{LF}) {
		// strip leading command bytes
		for len(line) > 0 && (line[0] == ESC) {
			line = line[3:]
		}
		if len(line) > 32 {
			t.Errorf("line %q is wider than 32 columns", line)
		}
	}
}

func TestEncodeWindows1256_Unmappable(t *testing.T) {
	got := encodeWindows1256("a☃ب")
	want := []byte{'a', '?', 0xC8}
	if !bytes.Equal(got, want) {
		t.Errorf("Expected % X, got % X", want, got)
	}
}

func TestSession_Probe(t *testing.T) {
	transport := &fakeTransport{}
	session := NewSession(&fakeOpener{transport: transport}, DefaultSessionConfig, nil)

	if _, err := session.Probe(context.Background(), com7, 27, 29); err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	out := transport.bytes()
	for _, n := range []byte{27, 28, 29} {
		if !bytes.Contains(out, []byte{ESC, 't', n}) {
			t.Errorf("Expected code page %d to be selected", n)
		}
	}

	if _, err := session.Probe(context.Background(), com7, 10, 5); err == nil {
		t.Error("Expected error for an inverted range")
	}
}
