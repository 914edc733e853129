package printer

import (
	"context"
	"fmt"

	"github.com/thereceipt/receipt-raster/internal/bidi"
)

// ProbeSample is printed once per code page during a probe
const ProbeSample = "مرحبا 123"

// Probe prints the sample line under every ESC t value in [from, to] so the
// code page that renders Arabic correctly can be read off the paper. It is a
// diagnostic and is not used when printing receipts.
func (s *Session) Probe(ctx context.Context, ep Endpoint, from, to int) (*Confirmation, error) {
	if from < 0 || to > 255 || from > to {
		return nil, fmt.Errorf("invalid code page range %d..%d", from, to)
	}

	setup := NewEncoder()
	setup.SelectContextualMode(s.cfg.ContextualMode)

	enc := NewEncoder()
	sample := encodeWindows1256(bidi.Visual(ProbeSample))
	for n := from; n <= to; n++ {
		enc.SelectCodePage(byte(n))
		enc.WriteRaw([]byte(fmt.Sprintf("%3d: ", n)))
		enc.WriteRaw(sample)
		enc.LineFeed()
	}

	return s.run(ctx, ep, "probe", setup.Bytes(), enc.Bytes())
}
