// Package service ties rendering, packing and the printer session together
// behind the operations exposed by the API and the command executor.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/thereceipt/receipt-raster/internal/printer"
	"github.com/thereceipt/receipt-raster/internal/raster"
	"github.com/thereceipt/receipt-raster/internal/renderer"
	"github.com/thereceipt/receipt-raster/pkg/receiptformat"
)

// ModeText sends code page text instead of a raster image
const ModeText = "text"

var (
	// ErrBadRequest marks problems with what the caller sent
	ErrBadRequest = errors.New("bad request")
	// ErrPrintFailed marks a job that ran and did not complete
	ErrPrintFailed = errors.New("print failed")
)

// Options are the host defaults applied to every request
type Options struct {
	Layout          receiptformat.LayoutConfig
	Mode            string
	DefaultEndpoint string
	TextColumns     int
	PrintTimeout    time.Duration
}

// PrintRequest is a receipt plus where and how to print it
type PrintRequest struct {
	Receipt  *receiptformat.Request `json:"receipt"`
	Endpoint string                 `json:"endpoint,omitempty"`
	Mode     string                 `json:"mode,omitempty"`
	// Layout is merged over the configured layout
	Layout json.RawMessage `json:"layout,omitempty"`
	Async  bool            `json:"async,omitempty"`
}

// Service renders receipts and submits them to the spooler
type Service struct {
	fonts   *renderer.Fonts
	session *printer.Session
	spooler *printer.Spooler
	opts    Options
	logger  *zap.Logger
}

// New creates a service
func New(fonts *renderer.Fonts, session *printer.Session, spooler *printer.Spooler, opts Options, logger *zap.Logger) (*Service, error) {
	if err := opts.Layout.Validate(); err != nil {
		return nil, err
	}
	if err := checkMode(opts.Mode); err != nil {
		return nil, err
	}
	if opts.PrintTimeout <= 0 {
		opts.PrintTimeout = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		fonts:   fonts,
		session: session,
		spooler: spooler,
		opts:    opts,
		logger:  logger.With(zap.String("component", "service")),
	}, nil
}

func checkMode(mode string) error {
	if mode == ModeText {
		return nil
	}
	if _, err := raster.ParseMode(mode); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// Layout returns the configured layout with override merged over it
func (s *Service) Layout(override json.RawMessage) (receiptformat.LayoutConfig, error) {
	if len(override) == 0 || string(override) == "null" {
		return s.opts.Layout, nil
	}
	return receiptformat.ParseLayout(override, s.opts.Layout)
}

// Render lays out and binarizes a receipt without printing it
func (s *Service) Render(req *receiptformat.Request, override json.RawMessage) (*renderer.Result, *raster.Bitmap, error) {
	if req == nil {
		return nil, nil, fmt.Errorf("%w: receipt is required", ErrBadRequest)
	}
	cfg, err := s.Layout(override)
	if err != nil {
		return nil, nil, err
	}
	result, bitmap, err := renderer.RenderBitmap(s.fonts, cfg, req, s.logger)
	if err != nil {
		return nil, nil, err
	}
	if d := result.Degradations; d.Truncated > 0 || d.MissingGlyphs > 0 || len(d.Skipped) > 0 {
		s.logger.Warn("Receipt rendered with degradations",
			zap.Int("truncated", d.Truncated),
			zap.Int("missing_glyphs", d.MissingGlyphs),
			zap.Strings("skipped", d.Skipped),
		)
	}
	return result, bitmap, nil
}

// Preview renders a receipt to PNG exactly as it would be printed
func (s *Service) Preview(req *receiptformat.Request, override json.RawMessage) ([]byte, *renderer.Result, error) {
	result, bitmap, err := s.Render(req, override)
	if err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, bitmap.Image(), imaging.PNG); err != nil {
		return nil, nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), result, nil
}

// Submit prepares the print payload and queues it. Rendering and validation
// errors are returned here; transport errors surface on the job.
func (s *Service) Submit(req PrintRequest) (printer.PrintJob, error) {
	if req.Receipt == nil {
		return printer.PrintJob{}, fmt.Errorf("%w: receipt is required", ErrBadRequest)
	}

	ep, err := s.endpoint(req.Endpoint)
	if err != nil {
		return printer.PrintJob{}, err
	}

	mode := req.Mode
	if mode == "" {
		mode = s.opts.Mode
	}
	if err := checkMode(mode); err != nil {
		return printer.PrintJob{}, err
	}

	var print printer.PrintFunc
	if mode == ModeText {
		cfg, err := s.Layout(req.Layout)
		if err != nil {
			return printer.PrintJob{}, err
		}
		if err := req.Receipt.Validate(); err != nil {
			return printer.PrintJob{}, err
		}
		text := printer.TextReceipt(req.Receipt, printer.TextOptions{
			Columns:         s.opts.TextColumns,
			DiscountEpsilon: cfg.DiscountEpsilon,
			Labels:          cfg.Labels,
		})
		print = func(ctx context.Context) (*printer.Confirmation, error) {
			return s.session.PrintText(ctx, ep, text)
		}
	} else {
		_, bitmap, err := s.Render(req.Receipt, req.Layout)
		if err != nil {
			return printer.PrintJob{}, err
		}
		frame := raster.Pack(bitmap, raster.Mode(mode))
		print = func(ctx context.Context) (*printer.Confirmation, error) {
			return s.session.PrintFrame(ctx, ep, frame)
		}
	}

	job, err := s.spooler.Submit(ep.String(), print)
	if err != nil {
		return printer.PrintJob{}, err
	}
	s.logger.Info("Print job queued",
		zap.String("job_id", job.ID),
		zap.String("endpoint", ep.String()),
		zap.String("mode", mode),
	)
	return job, nil
}

// Print submits a job and, unless the request is async, waits for it
func (s *Service) Print(ctx context.Context, req PrintRequest) (printer.PrintJob, error) {
	job, err := s.Submit(req)
	if err != nil || req.Async {
		return job, err
	}
	return s.wait(ctx, job.ID)
}

// Probe prints the code page probe through the spooler
func (s *Service) Probe(ctx context.Context, endpoint string, from, to int) (printer.PrintJob, error) {
	if from < 0 || to > 255 || from > to {
		return printer.PrintJob{}, fmt.Errorf("%w: invalid code page range %d..%d", ErrBadRequest, from, to)
	}
	ep, err := s.endpoint(endpoint)
	if err != nil {
		return printer.PrintJob{}, err
	}
	job, err := s.spooler.Submit(ep.String(), func(ctx context.Context) (*printer.Confirmation, error) {
		return s.session.Probe(ctx, ep, from, to)
	})
	if err != nil {
		return printer.PrintJob{}, err
	}
	return s.wait(ctx, job.ID)
}

func (s *Service) wait(ctx context.Context, id string) (printer.PrintJob, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.PrintTimeout)
	defer cancel()

	job, err := s.spooler.Wait(ctx, id)
	if err != nil {
		return printer.PrintJob{}, fmt.Errorf("failed waiting for job %s: %w", id, err)
	}
	if job.Status == printer.JobFailed {
		return job, fmt.Errorf("%w: %s", ErrPrintFailed, job.Error)
	}
	return job, nil
}

func (s *Service) endpoint(raw string) (printer.Endpoint, error) {
	if raw == "" {
		raw = s.opts.DefaultEndpoint
	}
	ep, err := printer.ParseEndpoint(raw)
	if err != nil {
		return printer.Endpoint{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return ep, nil
}

// Jobs returns all known jobs, oldest first
func (s *Service) Jobs() []*printer.PrintJob {
	return s.spooler.GetAllJobs()
}

// Job returns one job, or nil
func (s *Service) Job(id string) *printer.PrintJob {
	return s.spooler.GetJob(id)
}

// OnJobEvent registers fn for every job state change
func (s *Service) OnJobEvent(fn func(printer.JobEvent)) {
	s.spooler.OnEvent(fn)
}

// ClearJobs drops finished jobs and returns how many were removed
func (s *Service) ClearJobs() int {
	return s.spooler.ClearFinished()
}

// Ports found on this machine. USB enumeration needs libusb, so its failure
// is reported next to the serial list instead of replacing it.
type Ports struct {
	Serial   []string            `json:"serial"`
	USB      []printer.USBDevice `json:"usb"`
	USBError string              `json:"usb_error,omitempty"`
}

// Ports enumerates local printer ports
func (s *Service) Ports() (*Ports, error) {
	serialPorts, err := printer.ListSerialPorts()
	if err != nil {
		return nil, err
	}
	ports := &Ports{Serial: serialPorts}
	if usb, err := printer.ListUSBDevices(); err != nil {
		ports.USBError = err.Error()
	} else {
		ports.USB = usb
	}
	return ports, nil
}

// Sample returns the built in sample receipt
func (s *Service) Sample() *receiptformat.Request {
	return receiptformat.Sample()
}

// IsClientError reports whether err was caused by the request itself
func IsClientError(err error) bool {
	return errors.Is(err, ErrBadRequest) ||
		errors.Is(err, receiptformat.ErrInvalidRequest) ||
		errors.Is(err, receiptformat.ErrInvalidLayout)
}
