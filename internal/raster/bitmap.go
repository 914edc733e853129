// Package raster turns rendered receipts into 1-bit bitmaps and packs them into
// the byte layouts used by thermal printer raster commands.
package raster

import (
	"image"
	"image/color"
)

// DefaultThreshold is the luminance at or below which a pixel prints black
const DefaultThreshold = 150

// Bitmap is a 1-bit image stored one byte per pixel, 1 meaning black
type Bitmap struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewBitmap returns a white bitmap
func NewBitmap(width, height int) *Bitmap {
	return &Bitmap{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height),
	}
}

// Black reports whether the pixel at (x, y) is black. Pixels outside the bitmap are white.
func (b *Bitmap) Black(x, y int) bool {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return false
	}
	return b.Pix[y*b.Width+x] != 0
}

// Set sets the pixel at (x, y)
func (b *Bitmap) Set(x, y int, black bool) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	if black {
		b.Pix[y*b.Width+x] = 1
	} else {
		b.Pix[y*b.Width+x] = 0
	}
}

// Ink counts black pixels inside the rectangle
func (b *Bitmap) Ink(r image.Rectangle) int {
	r = r.Intersect(image.Rect(0, 0, b.Width, b.Height))
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if b.Pix[y*b.Width+x] != 0 {
				n++
			}
		}
	}
	return n
}

// Equal reports whether two bitmaps hold the same pixels
func (b *Bitmap) Equal(o *Bitmap) bool {
	if b.Width != o.Width || b.Height != o.Height {
		return false
	}
	for i := range b.Pix {
		if (b.Pix[i] != 0) != (o.Pix[i] != 0) {
			return false
		}
	}
	return true
}

// Binarize converts img to a bitmap. A pixel is black when its luminance is at
// or below threshold. Transparent pixels are treated as white paper.
func Binarize(img image.Image, threshold uint8) *Bitmap {
	bounds := img.Bounds()
	b := NewBitmap(bounds.Dx(), bounds.Dy())

	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			c := img.At(x+bounds.Min.X, y+bounds.Min.Y)
			if _, _, _, a := c.RGBA(); a == 0 {
				continue
			}
			gray := color.GrayModel.Convert(c).(color.Gray)
			if gray.Y <= threshold {
				b.Pix[y*b.Width+x] = 1
			}
		}
	}

	return b
}

// Image renders the bitmap as a grayscale image for previews
func (b *Bitmap) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
	for i, p := range b.Pix {
		if p != 0 {
			img.Pix[i] = 0
		} else {
			img.Pix[i] = 0xFF
		}
	}
	return img
}
