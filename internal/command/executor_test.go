package command

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/thereceipt/receipt-raster/internal/printer"
	"github.com/thereceipt/receipt-raster/internal/renderer"
	"github.com/thereceipt/receipt-raster/internal/service"
	"github.com/thereceipt/receipt-raster/pkg/receiptformat"
)

type bufferTransport struct {
	mu   sync.Mutex
	data bytes.Buffer
}

func (b *bufferTransport) Write(ctx context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data.Write(data)
	return nil
}

func (b *bufferTransport) Flush(ctx context.Context) error { return nil }
func (b *bufferTransport) Close() error                    { return nil }
func (b *bufferTransport) Endpoint() printer.Endpoint      { return printer.Endpoint{} }

func (b *bufferTransport) bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data.Bytes()...)
}

func newTestExecutor(t *testing.T) (*Executor, *bufferTransport) {
	t.Helper()

	fonts, err := renderer.DefaultFonts()
	if err != nil {
		t.Fatalf("Failed to load fonts: %v", err)
	}

	transport := &bufferTransport{}
	opener := printer.OpenerFunc(func(ctx context.Context, ep printer.Endpoint) (printer.Transport, error) {
		return transport, nil
	})
	spooler := printer.NewSpooler(0, 0, nil)
	t.Cleanup(spooler.Stop)

	svc, err := service.New(fonts, printer.NewSession(opener, printer.DefaultSessionConfig, nil), spooler, service.Options{
		Layout:          receiptformat.DefaultLayout(),
		Mode:            "raster",
		DefaultEndpoint: "serial://COM7?baud=9600",
		TextColumns:     48,
		PrintTimeout:    5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return NewExecutor(svc), transport
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"   ", []string{}},
		{"jobs", []string{"jobs"}},
		{"print  ./r.json   COM3", []string{"print", "./r.json", "COM3"}},
		{`print "C:\receipts\my receipt.json"`, []string{"print", `C:\receipts\my receipt.json`}},
		{`print 'it"s.json'`, []string{"print", `it"s.json`}},
	}

	for _, tt := range tests {
		if got := parseCommand(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitFlags(t *testing.T) {
	positional, flags := splitFlags([]string{"sample", "--mode=bands", "tcp://host", "--async"})

	if !reflect.DeepEqual(positional, []string{"sample", "tcp://host"}) {
		t.Errorf("Unexpected positional args %q", positional)
	}
	if flags["mode"] != "bands" {
		t.Errorf("Expected mode=bands, got %q", flags["mode"])
	}
	if _, ok := flags["async"]; !ok {
		t.Error("Expected async flag")
	}
}

func TestExecute_UnknownAndEmpty(t *testing.T) {
	e, _ := newTestExecutor(t)

	if r := e.Execute(context.Background(), ""); r.Success || r.Error != "empty command" {
		t.Errorf("Unexpected result for empty command: %+v", r)
	}
	if r := e.Execute(context.Background(), "detect"); r.Success || !strings.Contains(r.Error, "unknown command") {
		t.Errorf("Unexpected result for unknown command: %+v", r)
	}
}

func TestExecute_Help(t *testing.T) {
	e, _ := newTestExecutor(t)

	r := e.Execute(context.Background(), "help")
	if !r.Success || !strings.Contains(r.Message, "probe [endpoint]") {
		t.Errorf("Unexpected help: %+v", r)
	}
}

func TestExecute_PrintSample(t *testing.T) {
	e, transport := newTestExecutor(t)

	r := e.Execute(context.Background(), "print sample")
	if !r.Success {
		t.Fatalf("Print failed: %s", r.Error)
	}
	if r.Message != "Receipt printed successfully on port COM7 at baud 9600" {
		t.Errorf("Unexpected message %q", r.Message)
	}
	if !bytes.HasPrefix(transport.bytes(), []byte{0x1B, '@'}) {
		t.Error("Expected the job to start with ESC @")
	}

	r = e.Execute(context.Background(), "jobs")
	jobs, ok := r.Data["jobs"].([]*printer.PrintJob)
	if !r.Success || !ok || len(jobs) != 1 {
		t.Fatalf("Expected one job, got %+v", r)
	}

	r = e.Execute(context.Background(), "job "+jobs[0].ID)
	if !r.Success || !strings.Contains(r.Message, "completed") {
		t.Errorf("Unexpected job result: %+v", r)
	}

	r = e.Execute(context.Background(), "jobs clear")
	if !r.Success || r.Message != "Cleared 1 finished job(s)" {
		t.Errorf("Unexpected clear result: %+v", r)
	}
}

func TestExecute_PrintFile(t *testing.T) {
	e, _ := newTestExecutor(t)

	path := filepath.Join(t.TempDir(), "receipt.json")
	body := `{"title":"Deli","items":[{"name":"Soup","quantity":"1","unit_price":"4.00"}]}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write receipt: %v", err)
	}

	r := e.Execute(context.Background(), "print "+path+" --async")
	if !r.Success {
		t.Fatalf("Print failed: %s", r.Error)
	}
	if _, ok := r.Data["job_id"].(string); !ok {
		t.Errorf("Expected job_id, got %+v", r.Data)
	}
}

func TestExecute_PrintErrors(t *testing.T) {
	e, _ := newTestExecutor(t)

	tests := []struct {
		cmd  string
		want string
	}{
		{"print", "usage: print"},
		{"print /no/such/receipt.json", "failed to load receipt"},
		{"print sample ftp://printer", "bad request"},
		{"print sample --mode=laser", "bad request"},
		{"job", "usage: job"},
		{"job missing", "job not found"},
		{"jobs purge", "unknown jobs subcommand"},
		{"probe COM3 x", "invalid code page"},
		{"probe 30 20", "invalid code page range"},
	}

	for _, tt := range tests {
		r := e.Execute(context.Background(), tt.cmd)
		if r.Success || !strings.Contains(r.Error, tt.want) {
			t.Errorf("%q: expected error containing %q, got %+v", tt.cmd, tt.want, r)
		}
	}
}

func TestExecute_Preview(t *testing.T) {
	e, _ := newTestExecutor(t)
	out := filepath.Join(t.TempDir(), "preview.png")

	r := e.Execute(context.Background(), "preview sample "+out+" --paper=58mm")
	if !r.Success {
		t.Fatalf("Preview failed: %s", r.Error)
	}
	if r.Data["width"] != 384 {
		t.Errorf("Expected width 384, got %v", r.Data["width"])
	}
	if r.Data["total"] != "114.50" {
		t.Errorf("Expected total 114.50, got %v", r.Data["total"])
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Preview file missing: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("Preview is not a PNG")
	}

	if r := e.Execute(context.Background(), "preview sample "+out+" --paper=90mm"); r.Success {
		t.Error("Expected error for unknown paper")
	}
}

func TestExecute_Probe(t *testing.T) {
	e, transport := newTestExecutor(t)

	r := e.Execute(context.Background(), "probe serial://COM9 27 28")
	if !r.Success {
		t.Fatalf("Probe failed: %s", r.Error)
	}
	if !strings.Contains(r.Message, "27..28") || !strings.Contains(r.Message, "COM9") {
		t.Errorf("Unexpected message %q", r.Message)
	}
	if !bytes.Contains(transport.bytes(), []byte{0x1B, 't', 27}) {
		t.Error("Expected ESC t 27 in probe output")
	}
}
