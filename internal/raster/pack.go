package raster

import "fmt"

// Mode selects the raster packing
type Mode string

const (
	// ModeRaster packs the whole image as one row-major block (GS v 0)
	ModeRaster Mode = "raster"
	// ModeBands packs 24-row column-major bands (ESC * 33)
	ModeBands Mode = "bands"
)

// BandHeight is the number of pixel rows in one column-major band
const BandHeight = 24

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRaster, "":
		return ModeRaster, nil
	case ModeBands:
		return ModeBands, nil
	default:
		return "", fmt.Errorf("unknown raster mode: %s (must be raster or bands)", s)
	}
}

// Frame is a packed bitmap ready for framing into printer commands
type Frame struct {
	Mode       Mode
	Width      int
	WidthBytes int
	Height     int
	// Data holds the packed block in raster mode
	Data []byte
	// Bands holds one entry of Width*3 bytes per band in band mode
	Bands [][]byte
}

// Size is the number of packed data bytes, excluding command headers
func (f *Frame) Size() int {
	if f.Mode == ModeBands {
		n := 0
		for _, b := range f.Bands {
			n += len(b)
		}
		return n
	}
	return len(f.Data)
}

// Pack packs b with the given mode
func Pack(b *Bitmap, mode Mode) *Frame {
	if mode == ModeBands {
		return PackBands(b)
	}
	return PackRaster(b)
}

// PackRaster packs rows top to bottom, (width+7)/8 bytes per row, the most
// significant bit of each byte being the leftmost pixel. Padding bits are white.
func PackRaster(b *Bitmap) *Frame {
	widthBytes := (b.Width + 7) / 8
	data := make([]byte, widthBytes*b.Height)

	for y := 0; y < b.Height; y++ {
		row := b.Pix[y*b.Width : (y+1)*b.Width]
		for x, p := range row {
			if p != 0 {
				data[y*widthBytes+x/8] |= 0x80 >> uint(x%8)
			}
		}
	}

	return &Frame{
		Mode:       ModeRaster,
		Width:      b.Width,
		WidthBytes: widthBytes,
		Height:     b.Height,
		Data:       data,
	}
}

// PackBands splits the bitmap into 24-row bands. Inside a band every column is
// three bytes, top slice first, the most significant bit being the topmost
// pixel of its 8-row slice. Rows past the bottom of the image are white.
func PackBands(b *Bitmap) *Frame {
	bandCount := (b.Height + BandHeight - 1) / BandHeight
	bands := make([][]byte, bandCount)

	for band := 0; band < bandCount; band++ {
		top := band * BandHeight
		data := make([]byte, b.Width*3)
		for x := 0; x < b.Width; x++ {
			for k := 0; k < 3; k++ {
				var v byte
				for j := 0; j < 8; j++ {
					if b.Black(x, top+k*8+j) {
						v |= 0x80 >> uint(j)
					}
				}
				data[x*3+k] = v
			}
		}
		bands[band] = data
	}

	return &Frame{
		Mode:       ModeBands,
		Width:      b.Width,
		WidthBytes: (b.Width + 7) / 8,
		Height:     b.Height,
		Bands:      bands,
	}
}

// Unpack decodes a frame back into a bitmap
func Unpack(f *Frame) (*Bitmap, error) {
	b := NewBitmap(f.Width, f.Height)

	switch f.Mode {
	case ModeRaster:
		if len(f.Data) != f.WidthBytes*f.Height {
			return nil, fmt.Errorf("raster data is %d bytes, expected %d", len(f.Data), f.WidthBytes*f.Height)
		}
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				if f.Data[y*f.WidthBytes+x/8]&(0x80>>uint(x%8)) != 0 {
					b.Set(x, y, true)
				}
			}
		}
	case ModeBands:
		for band, data := range f.Bands {
			if len(data) != f.Width*3 {
				return nil, fmt.Errorf("band %d is %d bytes, expected %d", band, len(data), f.Width*3)
			}
			top := band * BandHeight
			for x := 0; x < f.Width; x++ {
				for k := 0; k < 3; k++ {
					for j := 0; j < 8; j++ {
						if data[x*3+k]&(0x80>>uint(j)) != 0 {
							b.Set(x, top+k*8+j, true)
						}
					}
				}
			}
		}
	default:
		return nil, fmt.Errorf("unknown raster mode: %s", f.Mode)
	}

	return b, nil
}
