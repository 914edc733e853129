package printer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/thereceipt/receipt-raster/internal/raster"
)

// chunkSize bounds a single transport write of raster data
const chunkSize = 4096

// SessionConfig controls the command framing around the payload
type SessionConfig struct {
	FeedLines      int
	PartialCut     bool
	CodePage       byte
	ContextualMode byte
}

// DefaultSessionConfig feeds four lines and cuts fully
var DefaultSessionConfig = SessionConfig{
	FeedLines:      4,
	CodePage:       CodePageWIN1256,
	ContextualMode: ContextualMode,
}

// Confirmation describes a completed print
type Confirmation struct {
	Endpoint Endpoint `json:"-"`
	Address  string   `json:"endpoint"`
	Mode     string   `json:"mode"`
	Bytes    int      `json:"bytes"`
	Message  string   `json:"message"`
}

// Session sends one print job at a time to a transport. It does not
// serialize concurrent callers; see Spooler.
type Session struct {
	opener Opener
	cfg    SessionConfig
	logger *zap.Logger
}

// NewSession creates a session
func NewSession(opener Opener, cfg SessionConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		opener: opener,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "session")),
	}
}

// PrintFrame prints a packed raster frame: initialize, raster data, feed, cut, flush
func (s *Session) PrintFrame(ctx context.Context, ep Endpoint, frame *raster.Frame) (*Confirmation, error) {
	enc := NewEncoder()
	enc.Image(frame)
	return s.run(ctx, ep, string(frame.Mode), nil, enc.Bytes())
}

// PrintText prints text already encoded in the printer code page. The code
// page and contextual shaping mode are selected after initialization.
func (s *Session) PrintText(ctx context.Context, ep Endpoint, text []byte) (*Confirmation, error) {
	setup := NewEncoder()
	setup.SelectCodePage(s.cfg.CodePage)
	setup.SelectContextualMode(s.cfg.ContextualMode)
	return s.run(ctx, ep, "text", setup.Bytes(), text)
}

func (s *Session) run(ctx context.Context, ep Endpoint, mode string, setup, payload []byte) (*Confirmation, error) {
	// Cancellation is honoured only until the transport is open
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, err := s.opener.Open(ctx, ep)
	if err != nil {
		s.logger.Error("Failed to open printer", zap.String("endpoint", ep.Describe()), zap.Error(err))
		return nil, err
	}
	defer t.Close()

	wctx := context.WithoutCancel(ctx)
	sent := 0
	write := func(what string, data []byte) error {
		for len(data) > 0 {
			n := len(data)
			if n > chunkSize {
				n = chunkSize
			}
			if err := t.Write(wctx, data[:n]); err != nil {
				return fmt.Errorf("%w: failed to write %s to %s: %v", ErrTransport, what, ep.Describe(), err)
			}
			sent += n
			data = data[n:]
		}
		return nil
	}

	tail := NewEncoder()
	tail.Feed(s.cfg.FeedLines)
	if s.cfg.PartialCut {
		tail.PartialCut()
	} else {
		tail.Cut()
	}

	head := NewEncoder()
	head.Initialize()

	steps := []struct {
		what string
		data []byte
	}{
		{"initialize", head.Bytes()},
		{"code page", setup},
		{"payload", payload},
		{"feed and cut", tail.Bytes()},
	}
	for _, step := range steps {
		if err := write(step.what, step.data); err != nil {
			s.logger.Error("Print aborted", zap.String("step", step.what), zap.Int("bytes_sent", sent), zap.Error(err))
			return nil, err
		}
	}

	if err := t.Flush(wctx); err != nil {
		return nil, fmt.Errorf("%w: failed to flush %s: %v", ErrTransport, ep.Describe(), err)
	}

	s.logger.Info("Receipt printed",
		zap.String("endpoint", ep.Describe()),
		zap.String("mode", mode),
		zap.Int("bytes", sent),
	)

	return &Confirmation{
		Endpoint: ep,
		Address:  ep.String(),
		Mode:     mode,
		Bytes:    sent,
		Message:  "Receipt printed successfully on " + ep.Describe(),
	}, nil
}
