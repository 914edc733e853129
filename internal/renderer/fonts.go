package renderer

import (
	"fmt"
	"os"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// Fonts is a parsed TrueType font. It is loaded once at startup and shared
// read-only by every render; faces are created per render.
type Fonts struct {
	font *truetype.Font
	name string
}

// LoadFonts loads the font at path. An empty path selects the embedded Go
// Regular font, which has no Arabic glyphs and is meant for Latin receipts
// and tests.
func LoadFonts(path string) (*Fonts, error) {
	if path == "" {
		return DefaultFonts()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}

	f, err := ParseFonts(data)
	if err != nil {
		return nil, err
	}
	f.name = path
	return f, nil
}

// ParseFonts parses TrueType font data
func ParseFonts(data []byte) (*Fonts, error) {
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &Fonts{font: f, name: f.Name(truetype.NameIDFontFullName)}, nil
}

// DefaultFonts returns the embedded Go Regular font
func DefaultFonts() (*Fonts, error) {
	f, err := ParseFonts(goregular.TTF)
	if err != nil {
		return nil, err
	}
	f.name = "Go Regular"
	return f, nil
}

// Name is the font's full name or the path it was loaded from
func (f *Fonts) Name() string {
	return f.name
}

// HasGlyph reports whether the font maps r to a real glyph
func (f *Fonts) HasGlyph(r rune) bool {
	return f.font.Index(r) != 0
}

func (f *Fonts) newFace(size float64) font.Face {
	return truetype.NewFace(f.font, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
