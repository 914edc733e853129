// Package layout places directional runs on a line anchored to the right edge,
// the centre, or the left edge of a field.
package layout

import (
	"github.com/thereceipt/receipt-raster/internal/bidi"
)

// Measurer reports the horizontal advance of a character at a fixed scale.
// The same measurer must be used for layout and drawing.
type Measurer interface {
	Advance(r rune) float64
}

// Anchor selects how a line is positioned inside its field
type Anchor uint8

const (
	AnchorRight Anchor = iota
	AnchorCenter
	AnchorLeft
)

func (a Anchor) String() string {
	switch a {
	case AnchorCenter:
		return "center"
	case AnchorLeft:
		return "left"
	default:
		return "right"
	}
}

// MeasuredRun is a directional run with the advance of every character
type MeasuredRun struct {
	bidi.Run
	Runes    []rune
	Advances []float64
	Width    float64
}

// Placement is one character to draw with the left edge of its advance at X
type Placement struct {
	Text    string
	X       float64
	Y       float64
	Advance float64
}

// Line is the result of laying out one field
type Line struct {
	Placements []Placement
	// Left and Right bound the drawn placements
	Left, Right float64
	Width       float64
	Truncated   bool
}

// Measure attaches per-character advances to runs
func Measure(runs []bidi.Run, m Measurer) []MeasuredRun {
	out := make([]MeasuredRun, 0, len(runs))
	for _, run := range runs {
		mr := MeasuredRun{Run: run, Runes: []rune(run.Text)}
		mr.Advances = make([]float64, len(mr.Runes))
		for i, r := range mr.Runes {
			mr.Advances[i] = m.Advance(r)
			mr.Width += mr.Advances[i]
		}
		out = append(out, mr)
	}
	return out
}

// TotalWidth sums the widths of all runs
func TotalWidth(runs []MeasuredRun) float64 {
	w := 0.0
	for _, r := range runs {
		w += r.Width
	}
	return w
}

// PlaceRight lays runs out in logical order from right leftwards. RTL runs draw
// their characters right to left, LTR runs left to right. A run that would
// cross minX is dropped together with every run after it.
func PlaceRight(runs []MeasuredRun, right, minX, y float64) Line {
	line := Line{Left: right, Right: right}
	cursor := right
	for _, run := range runs {
		if cursor-run.Width < minX-epsilon {
			line.Truncated = true
			break
		}

		if run.Dir == bidi.RTL {
			x := cursor
			for i, r := range run.Runes {
				x -= run.Advances[i]
				line.Placements = append(line.Placements, Placement{Text: string(r), X: x, Y: y, Advance: run.Advances[i]})
			}
		} else {
			x := cursor - run.Width
			for i, r := range run.Runes {
				line.Placements = append(line.Placements, Placement{Text: string(r), X: x, Y: y, Advance: run.Advances[i]})
				x += run.Advances[i]
			}
		}

		cursor -= run.Width
		line.Width += run.Width
	}
	line.Left = cursor
	return line
}

// PlaceCenter right-anchors the line at the virtual edge (width+total)/2 so
// the whole line is centred within [0, width]. Lines wider than the space
// between the margins are truncated like right-anchored lines.
func PlaceCenter(runs []MeasuredRun, width, margin, y float64) Line {
	right := (width + TotalWidth(runs)) / 2
	if right > width-margin {
		right = width - margin
	}
	return PlaceRight(runs, right, margin, y)
}

// PlaceLeft lays the runs out left to right starting at left. Used for fields
// that carry no Arabic such as invoice numbers and phone numbers.
func PlaceLeft(runs []MeasuredRun, left, maxX, y float64) Line {
	line := Line{Left: left, Right: left}
	cursor := left
	for _, run := range runs {
		if cursor+run.Width > maxX+epsilon {
			line.Truncated = true
			break
		}
		for i, r := range run.Runes {
			line.Placements = append(line.Placements, Placement{Text: string(r), X: cursor, Y: y, Advance: run.Advances[i]})
			cursor += run.Advances[i]
		}
		line.Width += run.Width
	}
	line.Right = cursor
	return line
}

const epsilon = 1e-6

// Field describes where a line goes
type Field struct {
	Anchor Anchor
	// Edge is the right edge for AnchorRight and the left edge for AnchorLeft.
	// For AnchorCenter it is the width centred within.
	Edge float64
	// Limit is the opposite boundary past which runs are truncated
	Limit float64
	Y     float64
}

// Engine segments and measures text before placing it
type Engine struct {
	Measurer Measurer
}

// Line lays out already shaped text in a field
func (e Engine) Line(text string, f Field) Line {
	runs := Measure(bidi.Segment(text), e.Measurer)
	switch f.Anchor {
	case AnchorCenter:
		return PlaceCenter(runs, f.Edge, f.Limit, f.Y)
	case AnchorLeft:
		return PlaceLeft(runs, f.Edge, f.Limit, f.Y)
	default:
		return PlaceRight(runs, f.Edge, f.Limit, f.Y)
	}
}

// Width returns the measured width of text
func (e Engine) Width(text string) float64 {
	w := 0.0
	for _, r := range text {
		w += e.Measurer.Advance(r)
	}
	return w
}
