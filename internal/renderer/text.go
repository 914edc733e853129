package renderer

import (
	"unicode"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/thereceipt/receipt-raster/internal/layout"
)

// missingGlyphEm is the advance given to characters the font cannot draw
const missingGlyphEm = 0.6

// boldOffsets overpaint a glyph to thicken its strokes
var boldOffsets = [4][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}}

// Rasterizer draws placed characters with a vector font. It owns one face per
// size, so measuring and drawing always use the same metrics. Not safe for
// concurrent use.
type Rasterizer struct {
	fonts   *Fonts
	faces   map[float64]font.Face
	missing int
}

// NewRasterizer creates a rasterizer for one render
func NewRasterizer(fonts *Fonts) *Rasterizer {
	return &Rasterizer{
		fonts: fonts,
		faces: make(map[float64]font.Face),
	}
}

func (r *Rasterizer) face(size float64) font.Face {
	face, ok := r.faces[size]
	if !ok {
		face = r.fonts.newFace(size)
		r.faces[size] = face
	}
	return face
}

// Metrics of a font size in pixels
type Metrics struct {
	Ascent  float64
	Descent float64
	Height  float64
}

// Metrics returns the vertical metrics for size
func (r *Rasterizer) Metrics(size float64) Metrics {
	m := r.face(size).Metrics()
	return Metrics{
		Ascent:  float64(m.Ascent) / 64,
		Descent: float64(m.Descent) / 64,
		Height:  float64(m.Height) / 64,
	}
}

// Measurer returns the layout measurer for size
func (r *Rasterizer) Measurer(size float64) layout.Measurer {
	return sizedMeasurer{r: r, size: size}
}

type sizedMeasurer struct {
	r    *Rasterizer
	size float64
}

func (m sizedMeasurer) Advance(ch rune) float64 {
	if m.r.isMissing(ch) {
		return m.size * missingGlyphEm
	}
	adv, ok := m.r.face(m.size).GlyphAdvance(ch)
	if !ok {
		return m.size * missingGlyphEm
	}
	return float64(adv) / 64
}

func (r *Rasterizer) isMissing(ch rune) bool {
	if unicode.IsSpace(ch) || !unicode.IsPrint(ch) {
		return false
	}
	return !r.fonts.HasGlyph(ch)
}

// Draw paints the placements of a line. Placement Y is the baseline.
func (r *Rasterizer) Draw(ctx *gg.Context, line layout.Line, size float64, bold bool) {
	ctx.SetFontFace(r.face(size))
	ascent := r.Metrics(size).Ascent

	offsets := boldOffsets[:1]
	if bold {
		offsets = boldOffsets[:]
	}

	for _, p := range line.Placements {
		ch := []rune(p.Text)[0]
		if r.isMissing(ch) {
			r.missing++
			r.drawMissing(ctx, p, ascent)
			continue
		}
		for _, off := range offsets {
			ctx.DrawString(p.Text, p.X+off[0], p.Y+off[1])
		}
	}
}

// drawMissing outlines a box where the glyph would have been
func (r *Rasterizer) drawMissing(ctx *gg.Context, p layout.Placement, ascent float64) {
	h := ascent * 0.7
	ctx.SetLineWidth(1)
	ctx.DrawRectangle(p.X+1, p.Y-h, p.Advance-2, h)
	ctx.Stroke()
}

// Missing returns how many characters were drawn as fallback boxes
func (r *Rasterizer) Missing() int {
	return r.missing
}
