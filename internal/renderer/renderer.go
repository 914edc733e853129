// Package renderer composes receipts onto a pixel canvas
package renderer

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"go.uber.org/zap"

	"github.com/thereceipt/receipt-raster/internal/bidi"
	"github.com/thereceipt/receipt-raster/internal/layout"
	"github.com/thereceipt/receipt-raster/pkg/receiptformat"
)

// Renderer draws one receipt. Create a new Renderer for every receipt; the
// Fonts it is given may be shared.
type Renderer struct {
	cfg    receiptformat.LayoutConfig
	logger *zap.Logger
	raster *Rasterizer

	width  int // Paper width in pixels
	height int // Current canvas height
	ctx    *gg.Context
	y      float64 // Top of the next row
	bottom float64 // Lowest drawn pixel row

	geometry     *ColumnGeometry
	fields       []DrawnField
	degradations Degradations
}

// DrawnField records one laid out field
type DrawnField struct {
	Section  string
	Text     string
	Anchor   layout.Anchor
	Column   int
	Geometry *ColumnGeometry
	Line     layout.Line
}

// Degradations are non-fatal rendering problems
type Degradations struct {
	Truncated     int
	MissingGlyphs int
	Skipped       []string
}

// Result of rendering a receipt
type Result struct {
	Image        image.Image
	Totals       receiptformat.Totals
	Geometry     *ColumnGeometry
	Fields       []DrawnField
	Degradations Degradations
}

// New creates a renderer. The layout is validated before anything is drawn.
func New(fonts *Fonts, cfg receiptformat.LayoutConfig, logger *zap.Logger) (*Renderer, error) {
	if fonts == nil {
		return nil, fmt.Errorf("fonts are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Renderer{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "renderer")),
		raster: NewRasterizer(fonts),
		width:  cfg.PaperWidth,
	}, nil
}

type stage struct {
	name string
	run  func() error
}

// Render runs the receipt sections in order and crops the canvas to the
// lowest drawn row plus the bottom margin
func (r *Renderer) Render(req *receiptformat.Request) (*Result, error) {
	if r.ctx != nil {
		return nil, fmt.Errorf("renderer already used")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	totals := receiptformat.ComputeTotals(req, r.cfg.DiscountEpsilon)

	r.newCanvas(r.estimateHeight(req))
	r.y = r.cfg.MarginY

	stages := []stage{
		{"logo", func() error { return r.renderLogo(req.Logo) }},
		{"title", func() error { return r.renderTitle(req) }},
		{"date_time", func() error { return r.renderDateTime(req) }},
		{"invoice", func() error { return r.renderInvoice(req) }},
		{"column_headers", r.renderColumnHeaders},
		{"items", func() error { return r.renderItems(req) }},
		{"discount", func() error { return r.renderDiscount(req, &totals) }},
		{"tax", func() error { return r.renderTax(req, &totals) }},
		{"total", func() error { return r.renderTotal(req, &totals) }},
		{"footer", func() error { return r.renderFooter(req) }},
		{"qr", func() error { return r.renderQRCode(req.QRPayload) }},
	}

	for _, s := range stages {
		if err := s.run(); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", s.name, err)
		}
	}

	r.degradations.MissingGlyphs = r.raster.Missing()
	if r.degradations.MissingGlyphs > 0 {
		r.logger.Warn("Font has no glyph for some characters",
			zap.String("font", r.raster.fonts.Name()),
			zap.Int("count", r.degradations.MissingGlyphs),
		)
	}

	return &Result{
		Image:        r.cropToContent(),
		Totals:       totals,
		Geometry:     r.geometry,
		Fields:       r.fields,
		Degradations: r.degradations,
	}, nil
}

func (r *Renderer) newCanvas(height int) {
	ctx := gg.NewContext(r.width, height)
	ctx.SetColor(color.White)
	ctx.Clear()
	ctx.SetColor(color.Black)

	r.ctx = ctx
	r.height = height
}

// estimateHeight is a generous upper bound; ensureHeight grows the canvas if
// it turns out to be short
func (r *Renderer) estimateHeight(req *receiptformat.Request) int {
	s := r.cfg.FontSizes
	line := func(size float64) float64 { return size*1.6 + r.cfg.RowGap }

	h := r.cfg.MarginY + r.cfg.BottomMargin
	h += 4 * line(s.Title)
	h += 3 * line(s.Header)
	h += float64(len(req.Items)) * line(s.Item)
	h += 4 * line(s.TotalLabel+s.TotalValue)
	h += float64(3+len(req.Footer.Phones)) * line(s.Footer)
	h += 8 * dividerHeight
	if req.Logo != nil {
		h += float64(r.width)
	}
	if req.QRPayload != "" {
		h += float64(r.width)
	}
	if r.cfg.InvoiceBarcode && req.InvoiceNumber != "" {
		h += barcodeHeight + 20
	}
	return int(math.Ceil(h))
}

func (r *Renderer) ensureHeight(neededHeight int) {
	if int(r.y)+neededHeight <= r.height {
		return
	}

	newHeight := r.height * 2
	if newHeight < int(r.y)+neededHeight {
		newHeight = int(r.y) + neededHeight + 1000
	}

	old := r.ctx
	r.newCanvas(newHeight)
	r.ctx.DrawImage(old.Image(), 0, 0)
}

// mark records that pixels down to row y were drawn
func (r *Renderer) mark(y float64) {
	if y > r.bottom {
		r.bottom = y
	}
}

func (r *Renderer) cropToContent() image.Image {
	finalHeight := int(math.Ceil(r.bottom + r.cfg.BottomMargin))
	if finalHeight > r.height {
		finalHeight = r.height
	}
	if finalHeight < 1 {
		finalHeight = 1
	}

	img := r.ctx.Image()
	return img.(interface {
		SubImage(r image.Rectangle) image.Image
	}).SubImage(image.Rect(0, 0, r.width, finalHeight))
}

// textRow describes one field of a row of text
type textRow struct {
	section string
	text    string
	field   layout.Field
	column  int
	bold    bool
}

// drawRow shapes, lays out and draws fields that share a baseline and
// advances the cursor by the tallest font size used
func (r *Renderer) drawRow(size float64, fields ...textRow) {
	r.drawSizedRow(fields, func(textRow) float64 { return size })
}

func (r *Renderer) drawSizedRow(fields []textRow, sizeOf func(textRow) float64) {
	var tallest Metrics
	for _, f := range fields {
		if m := r.raster.Metrics(sizeOf(f)); m.Height > tallest.Height {
			tallest = m
		}
	}

	r.ensureHeight(int(math.Ceil(tallest.Height + r.cfg.RowGap)))
	baseline := r.y + tallest.Ascent

	for _, f := range fields {
		size := sizeOf(f)
		f.field.Y = baseline
		engine := layout.Engine{Measurer: r.raster.Measurer(size)}
		line := engine.Line(bidi.Shape(f.text), f.field)
		if line.Truncated {
			r.degradations.Truncated++
			r.logger.Debug("Field truncated",
				zap.String("section", f.section),
				zap.String("text", f.text),
			)
		}

		r.raster.Draw(r.ctx, line, size, f.bold)

		drawn := DrawnField{
			Section: f.section,
			Text:    f.text,
			Anchor:  f.field.Anchor,
			Column:  f.column,
			Line:    line,
		}
		if f.column >= 0 {
			drawn.Geometry = r.geometry
		}
		r.fields = append(r.fields, drawn)
	}

	r.mark(baseline + tallest.Descent + 1)
	r.y += tallest.Height + r.cfg.RowGap
}

// Field helpers

func (r *Renderer) innerRight() float64 {
	return float64(r.width) - r.cfg.MarginX
}

func (r *Renderer) rightField(edge, limit float64) layout.Field {
	return layout.Field{Anchor: layout.AnchorRight, Edge: edge, Limit: limit}
}

func (r *Renderer) centerField() layout.Field {
	return layout.Field{Anchor: layout.AnchorCenter, Edge: float64(r.width), Limit: r.cfg.MarginX}
}

func (r *Renderer) leftField(limit float64) layout.Field {
	return layout.Field{Anchor: layout.AnchorLeft, Edge: r.cfg.MarginX, Limit: limit}
}

func (r *Renderer) skip(section string, err error) {
	r.degradations.Skipped = append(r.degradations.Skipped, section)
	r.logger.Warn("Section skipped", zap.String("section", section), zap.Error(err))
}
