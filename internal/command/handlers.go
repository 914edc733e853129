package command

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/thereceipt/receipt-raster/internal/service"
	"github.com/thereceipt/receipt-raster/pkg/receiptformat"
)

// handlePrint handles print commands
// Usage: print <receipt-path|url|sample> [endpoint] [--mode=raster|bands|text] [--async]
func (e *Executor) handlePrint(ctx context.Context, args []string) *Result {
	positional, flags := splitFlags(args)
	if len(positional) < 1 {
		return failure("usage: print <receipt-path|url|sample> [endpoint] [--mode=raster|bands|text] [--async]")
	}

	receipt, err := loadReceipt(positional[0])
	if err != nil {
		return failure("failed to load receipt: %v", err)
	}

	req := service.PrintRequest{
		Receipt: receipt,
		Mode:    flags["mode"],
	}
	if len(positional) >= 2 {
		req.Endpoint = positional[1]
	}
	if _, ok := flags["async"]; ok {
		req.Async = true
	}

	job, err := e.service.Print(ctx, req)
	if err != nil {
		return failure("%v", err)
	}

	if req.Async {
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Queued job %s", job.ID),
			Data:    map[string]interface{}{"job_id": job.ID},
		}
	}

	message := "Receipt printed"
	if job.Confirmation != nil {
		message = job.Confirmation.Message
	}
	return &Result{
		Success: true,
		Message: message,
		Data: map[string]interface{}{
			"job_id":       job.ID,
			"confirmation": job.Confirmation,
		},
	}
}

// handlePreview renders a receipt to a PNG file on the server host
// Usage: preview <receipt-path|url|sample> <output.png> [--paper=58mm|80mm|112mm]
func (e *Executor) handlePreview(args []string) *Result {
	positional, flags := splitFlags(args)
	if len(positional) < 2 {
		return failure("usage: preview <receipt-path|url|sample> <output.png> [--paper=58mm|80mm|112mm]")
	}

	receipt, err := loadReceipt(positional[0])
	if err != nil {
		return failure("failed to load receipt: %v", err)
	}

	var override []byte
	if paper, ok := flags["paper"]; ok {
		width, err := receiptformat.PaperWidthToPixels(paper)
		if err != nil {
			return failure("%v", err)
		}
		override = []byte(fmt.Sprintf(`{"paper_width": %d}`, width))
	}

	data, result, err := e.service.Preview(receipt, override)
	if err != nil {
		return failure("%v", err)
	}

	if err := os.WriteFile(positional[1], data, 0644); err != nil {
		return failure("failed to write preview: %v", err)
	}

	bounds := result.Image.Bounds()
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Wrote %dx%d preview to %s", bounds.Dx(), bounds.Dy(), positional[1]),
		Data: map[string]interface{}{
			"width":          bounds.Dx(),
			"height":         bounds.Dy(),
			"total":          result.Totals.Total.StringFixed(2),
			"truncated":      result.Degradations.Truncated,
			"missing_glyphs": result.Degradations.MissingGlyphs,
			"skipped":        result.Degradations.Skipped,
		},
	}
}

// handleJobs handles job listing
// Usage: jobs [clear]
func (e *Executor) handleJobs(args []string) *Result {
	if len(args) > 0 {
		if args[0] != "clear" {
			return failure("unknown jobs subcommand: %s. Use: clear", args[0])
		}
		n := e.service.ClearJobs()
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Cleared %d finished job(s)", n),
		}
	}

	jobs := e.service.Jobs()
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Found %d job(s)", len(jobs)),
		Data: map[string]interface{}{
			"jobs": jobs,
		},
	}
}

// handleJob returns one job
// Usage: job <id>
func (e *Executor) handleJob(args []string) *Result {
	if len(args) < 1 {
		return failure("usage: job <id>")
	}

	job := e.service.Job(args[0])
	if job == nil {
		return failure("job not found: %s", args[0])
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Job %s is %s", job.ID, job.Status),
		Data: map[string]interface{}{
			"job": job,
		},
	}
}

// handlePorts lists local serial ports and USB devices
// Usage: ports
func (e *Executor) handlePorts(args []string) *Result {
	ports, err := e.service.Ports()
	if err != nil {
		return failure("%v", err)
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Found %d serial port(s) and %d USB device(s)", len(ports.Serial), len(ports.USB)),
		Data: map[string]interface{}{
			"serial":    ports.Serial,
			"usb":       ports.USB,
			"usb_error": ports.USBError,
		},
	}
}

// handleProbe prints the code page probe
// Usage: probe [endpoint] [from] [to]
func (e *Executor) handleProbe(ctx context.Context, args []string) *Result {
	endpoint := ""
	from, to := 0, 255

	rest := args
	if len(rest) > 0 {
		if _, err := strconv.Atoi(rest[0]); err != nil {
			endpoint = rest[0]
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		n, err := strconv.Atoi(rest[0])
		if err != nil {
			return failure("invalid code page: %s", rest[0])
		}
		from, to = n, n
	}
	if len(rest) > 1 {
		n, err := strconv.Atoi(rest[1])
		if err != nil {
			return failure("invalid code page: %s", rest[1])
		}
		to = n
	}

	job, err := e.service.Probe(ctx, endpoint, from, to)
	if err != nil {
		return failure("%v", err)
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Printed code pages %d..%d on %s", from, to, job.Printer),
		Data: map[string]interface{}{
			"job_id": job.ID,
		},
	}
}

// handleHelp handles help command
func (e *Executor) handleHelp(args []string) *Result {
	return &Result{
		Success: true,
		Message: HelpText,
	}
}

// HelpText lists the available commands
const HelpText = `Available Commands:

  print <receipt-path|url|sample> [endpoint] [--mode=raster|bands|text] [--async]
    Render a receipt and print it. Without an endpoint the configured
    printer is used.

  preview <receipt-path|url|sample> <output.png> [--paper=58mm|80mm|112mm]
    Render a receipt to a PNG exactly as it would print

  jobs
    List all print jobs

  jobs clear
    Remove completed and failed jobs

  job <id>
    Get status of a specific job

  ports
    List serial ports and USB devices on the server host

  probe [endpoint] [from] [to]
    Print a sample line under each code page in the range

  help
    Show this help message

Endpoints:
  serial://COM7?baud=9600   serial:///dev/ttyUSB0   COM3
  tcp://192.168.1.50:9100   usb://04b8:0e15

Examples:
  print ./receipt.json
  print sample tcp://192.168.1.50:9100 --mode=bands
  print ./receipt.json COM3 --async
  preview sample /tmp/receipt.png --paper=58mm
  probe serial://COM7 20 30
  job 3f1c2a9e-6c1b-4d7e-9a51-0f2b8c7d9e10
`

// loadReceipt reads a receipt from a file, an http(s) URL or the sample
func loadReceipt(source string) (*receiptformat.Request, error) {
	if source == "sample" {
		return receiptformat.Sample(), nil
	}
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return loadReceiptFromURL(source)
	}
	return receiptformat.ParseFile(source)
}

// loadReceiptFromURL loads a receipt from a URL
func loadReceiptFromURL(url string) (*receiptformat.Request, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipt from URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch receipt: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt from URL: %w", err)
	}

	return receiptformat.Parse(data)
}
