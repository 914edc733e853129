package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thereceipt/receipt-raster/internal/printer"
	"github.com/thereceipt/receipt-raster/internal/renderer"
	"github.com/thereceipt/receipt-raster/pkg/receiptformat"
)

type memoryTransport struct {
	mu      sync.Mutex
	ep      printer.Endpoint
	data    []byte
	failing bool
}

func (m *memoryTransport) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("paper jam")
	}
	m.data = append(m.data, data...)
	return nil
}

func (m *memoryTransport) Flush(ctx context.Context) error { return nil }
func (m *memoryTransport) Close() error                    { return nil }
func (m *memoryTransport) Endpoint() printer.Endpoint      { return m.ep }

func (m *memoryTransport) bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

func newTestService(t *testing.T, mode string) (*Service, *memoryTransport) {
	t.Helper()

	fonts, err := renderer.DefaultFonts()
	if err != nil {
		t.Fatalf("Failed to load fonts: %v", err)
	}

	transport := &memoryTransport{}
	opener := printer.OpenerFunc(func(ctx context.Context, ep printer.Endpoint) (printer.Transport, error) {
		transport.ep = ep
		return transport, nil
	})

	spooler := printer.NewSpooler(0, 0, nil)
	t.Cleanup(spooler.Stop)

	svc, err := New(fonts, printer.NewSession(opener, printer.DefaultSessionConfig, nil), spooler, Options{
		Layout:          receiptformat.DefaultLayout(),
		Mode:            mode,
		DefaultEndpoint: "tcp://127.0.0.1:9100",
		TextColumns:     32,
		PrintTimeout:    5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return svc, transport
}

func cafeReceipt() *receiptformat.Request {
	return &receiptformat.Request{
		Title:    "Corner Cafe",
		DateTime: "2024-11-04 10:30",
		Items: []receiptformat.LineItem{
			{Name: "Coffee", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("3.50")},
			{Name: "Bagel", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("2.50")},
		},
	}
}

func TestPrintRaster(t *testing.T) {
	svc, transport := newTestService(t, "raster")

	job, err := svc.Print(context.Background(), PrintRequest{Receipt: cafeReceipt()})
	if err != nil {
		t.Fatalf("Print failed: %v", err)
	}
	if job.Status != printer.JobCompleted {
		t.Fatalf("Expected completed job, got %s", job.Status)
	}
	if job.Confirmation == nil || job.Confirmation.Mode != "raster" {
		t.Fatalf("Unexpected confirmation: %+v", job.Confirmation)
	}

	data := transport.bytes()
	if !bytes.HasPrefix(data, []byte{0x1B, '@', 0x1D, 'v', '0', 0x00}) {
		t.Errorf("Expected ESC @ followed by GS v 0, got % X", data[:min(8, len(data))])
	}
	if job.Printer != "tcp://127.0.0.1:9100" {
		t.Errorf("Expected default endpoint, got %s", job.Printer)
	}
}

func TestPrintBandsOverride(t *testing.T) {
	svc, transport := newTestService(t, "raster")

	job, err := svc.Print(context.Background(), PrintRequest{Receipt: cafeReceipt(), Mode: "bands"})
	if err != nil {
		t.Fatalf("Print failed: %v", err)
	}
	if job.Confirmation.Mode != "bands" {
		t.Errorf("Expected bands mode, got %s", job.Confirmation.Mode)
	}
	if !bytes.Contains(transport.bytes(), []byte{0x1B, '*', 33}) {
		t.Error("Expected ESC * 33 band commands")
	}
}

func TestPrintText(t *testing.T) {
	svc, transport := newTestService(t, ModeText)

	job, err := svc.Print(context.Background(), PrintRequest{Receipt: cafeReceipt()})
	if err != nil {
		t.Fatalf("Print failed: %v", err)
	}
	if job.Confirmation.Mode != "text" {
		t.Errorf("Expected text mode, got %s", job.Confirmation.Mode)
	}

	data := transport.bytes()
	setup := []byte{0x1B, '@', 0x1B, 't', 28, 0x1C, 'C', 5}
	if !bytes.HasPrefix(data, setup) {
		t.Errorf("Expected code page setup % X, got % X", setup, data[:min(len(setup), len(data))])
	}
	if !bytes.Contains(data, []byte("Coffee")) {
		t.Error("Expected item name in text output")
	}
}

func TestPrintAsync(t *testing.T) {
	svc, _ := newTestService(t, "raster")

	job, err := svc.Print(context.Background(), PrintRequest{Receipt: cafeReceipt(), Async: true})
	if err != nil {
		t.Fatalf("Print failed: %v", err)
	}
	if job.ID == "" || job.Status != printer.JobQueued {
		t.Fatalf("Expected queued job with an id, got %+v", job)
	}

	done, err := svc.wait(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if done.Status != printer.JobCompleted {
		t.Errorf("Expected completed, got %s", done.Status)
	}
	if svc.Job(job.ID) == nil || len(svc.Jobs()) != 1 {
		t.Error("Expected job to be listed")
	}
	if n := svc.ClearJobs(); n != 1 {
		t.Errorf("Expected 1 cleared job, got %d", n)
	}
}

func TestPrintTransportFailure(t *testing.T) {
	svc, transport := newTestService(t, "raster")
	transport.failing = true

	job, err := svc.Print(context.Background(), PrintRequest{Receipt: cafeReceipt()})
	if !errors.Is(err, ErrPrintFailed) {
		t.Fatalf("Expected ErrPrintFailed, got %v", err)
	}
	if job.Status != printer.JobFailed {
		t.Errorf("Expected failed job, got %s", job.Status)
	}
	if IsClientError(err) {
		t.Error("Transport failure is not a client error")
	}
}

func TestSubmitClientErrors(t *testing.T) {
	svc, _ := newTestService(t, "raster")

	bad := cafeReceipt()
	bad.Items[0].Name = ""

	tests := []struct {
		name string
		req  PrintRequest
	}{
		{"missing receipt", PrintRequest{}},
		{"bad endpoint", PrintRequest{Receipt: cafeReceipt(), Endpoint: "ftp://printer"}},
		{"bad mode", PrintRequest{Receipt: cafeReceipt(), Mode: "laser"}},
		{"invalid receipt", PrintRequest{Receipt: bad}},
		{"invalid layout", PrintRequest{Receipt: cafeReceipt(), Layout: json.RawMessage(`{"paper_width": 570}`)}},
		{"malformed layout", PrintRequest{Receipt: cafeReceipt(), Layout: json.RawMessage(`{"paper_width": "wide"}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(tt.req)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !IsClientError(err) {
				t.Errorf("Expected client error, got %v", err)
			}
		})
	}

	if len(svc.Jobs()) != 0 {
		t.Error("Rejected requests must not create jobs")
	}
}

func TestPreview(t *testing.T) {
	svc, _ := newTestService(t, "raster")

	data, result, err := svc.Preview(cafeReceipt(), json.RawMessage(`{"paper_width": 384}`))
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Preview is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 384 {
		t.Errorf("Expected width 384, got %d", img.Bounds().Dx())
	}
	if !result.Totals.Total.Equal(decimal.RequireFromString("9.50")) {
		t.Errorf("Expected total 9.50, got %s", result.Totals.Total)
	}
}

func TestProbeRange(t *testing.T) {
	svc, transport := newTestService(t, "raster")

	if _, err := svc.Probe(context.Background(), "", 10, 5); !IsClientError(err) {
		t.Errorf("Expected client error for reversed range, got %v", err)
	}

	job, err := svc.Probe(context.Background(), "", 20, 22)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if job.Confirmation.Mode != "probe" {
		t.Errorf("Expected probe mode, got %s", job.Confirmation.Mode)
	}
	for _, n := range []byte{20, 21, 22} {
		if !bytes.Contains(transport.bytes(), []byte{0x1B, 't', n}) {
			t.Errorf("Expected ESC t %d", n)
		}
	}
}

func TestNewRejectsBadMode(t *testing.T) {
	fonts, err := renderer.DefaultFonts()
	if err != nil {
		t.Fatalf("Failed to load fonts: %v", err)
	}
	_, err = New(fonts, nil, nil, Options{Layout: receiptformat.DefaultLayout(), Mode: "laser"}, nil)
	if err == nil {
		t.Error("Expected error for unknown mode")
	}
}
