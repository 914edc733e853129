// Package printer frames raster receipts as ESC/POS commands and streams them
// to thermal printers over serial, TCP or USB transports.
package printer

import (
	"bytes"

	"github.com/thereceipt/receipt-raster/internal/raster"
)

// ESC/POS commands
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
	FS  byte = 0x1C
	LF  byte = 0x0A
)

// Code page constants calibrated for Arabic printers: WIN1256 in the ESC t
// table and the FS C value that turns on contextual Arabic shaping.
const (
	CodePageWIN1256 = 28
	ContextualMode  = 5
)

// Encoder builds ESC/POS command streams
type Encoder struct {
	buffer *bytes.Buffer
}

// NewEncoder creates a new ESC/POS encoder
func NewEncoder() *Encoder {
	return &Encoder{
		buffer: new(bytes.Buffer),
	}
}

// Initialize resets the printer (ESC @)
func (e *Encoder) Initialize() {
	e.buffer.Write([]byte{ESC, '@'})
}

// SelectCodePage selects a character code table (ESC t n)
func (e *Encoder) SelectCodePage(n byte) {
	e.buffer.Write([]byte{ESC, 't', n})
}

// SelectContextualMode selects the printer's text shaping mode (FS C n)
func (e *Encoder) SelectContextualMode(n byte) {
	e.buffer.Write([]byte{FS, 'C', n})
}

// RasterImage writes a whole frame as one raster bit image block:
// GS v 0 m xL xH yL yH d1..dk with x in bytes and y in dots.
func (e *Encoder) RasterImage(f *raster.Frame) {
	e.buffer.Write([]byte{GS, 'v', '0', 0})
	e.buffer.Write(lowHigh(f.WidthBytes))
	e.buffer.Write(lowHigh(f.Height))
	e.buffer.Write(f.Data)
}

// BitImageBands writes each 24-dot band as ESC * 33 nL nH d1..dk followed by
// a line feed. Line spacing is set to 24 dots so bands abut and restored after.
func (e *Encoder) BitImageBands(f *raster.Frame) {
	e.SetLineSpacing(raster.BandHeight)
	for _, band := range f.Bands {
		e.buffer.Write([]byte{ESC, '*', 33})
		e.buffer.Write(lowHigh(f.Width))
		e.buffer.Write(band)
		e.LineFeed()
	}
	e.DefaultLineSpacing()
}

// Image writes the frame using the command matching its mode
func (e *Encoder) Image(f *raster.Frame) {
	if f.Mode == raster.ModeBands {
		e.BitImageBands(f)
		return
	}
	e.RasterImage(f)
}

// SetLineSpacing sets line spacing in dots (ESC 3 n)
func (e *Encoder) SetLineSpacing(dots byte) {
	e.buffer.Write([]byte{ESC, '3', dots})
}

// DefaultLineSpacing restores the default line spacing (ESC 2)
func (e *Encoder) DefaultLineSpacing() {
	e.buffer.Write([]byte{ESC, '2'})
}

// Cut sends the full cut command (GS V 0)
func (e *Encoder) Cut() {
	e.buffer.Write([]byte{GS, 'V', 0})
}

// PartialCut sends the partial cut command (GS V 1)
func (e *Encoder) PartialCut() {
	e.buffer.Write([]byte{GS, 'V', 1})
}

// LineFeed sends a line feed
func (e *Encoder) LineFeed() {
	e.buffer.WriteByte(LF)
}

// Feed prints and feeds n lines (ESC d n)
func (e *Encoder) Feed(lines int) {
	if lines <= 0 {
		return
	}
	if lines > 255 {
		lines = 255
	}
	e.buffer.Write([]byte{ESC, 'd', byte(lines)})
}

// SetAlignment sets text alignment (ESC a n)
func (e *Encoder) SetAlignment(align string) {
	var n byte
	switch align {
	case "center":
		n = 1
	case "right":
		n = 2
	}
	e.buffer.Write([]byte{ESC, 'a', n})
}

// SetBold enables or disables emphasized text (ESC E n)
func (e *Encoder) SetBold(enabled bool) {
	var n byte
	if enabled {
		n = 1
	}
	e.buffer.Write([]byte{ESC, 'E', n})
}

// WriteRaw appends already encoded bytes
func (e *Encoder) WriteRaw(data []byte) {
	e.buffer.Write(data)
}

// Bytes returns the generated commands
func (e *Encoder) Bytes() []byte {
	return e.buffer.Bytes()
}

// Reset clears the buffer
func (e *Encoder) Reset() {
	e.buffer.Reset()
}

// lowHigh encodes n as the little-endian byte pair used by ESC/POS parameters
func lowHigh(n int) []byte {
	return []byte{byte(n & 0xFF), byte((n >> 8) & 0xFF)}
}
