package bidi

// Direction of a run
type Direction uint8

const (
	LTR Direction = iota
	RTL
)

func (d Direction) String() string {
	if d == RTL {
		return "rtl"
	}
	return "ltr"
}

// Run is a maximal substring whose characters share a direction
type Run struct {
	Text string
	Dir  Direction
}

// DirectionOf classifies a single character. Arabic letters and presentation
// forms are RTL; everything else, including Arabic-Indic digits and the
// separators used in dates and amounts, is LTR.
func DirectionOf(r rune) Direction {
	switch {
	case r >= 0x0660 && r <= 0x0669, r >= 0x06F0 && r <= 0x06F9:
		return LTR
	case r == 0x060C, r == 0x066B, r == 0x066C: // Arabic comma, decimal and thousands separators
		return LTR
	case r >= 0x0600 && r <= 0x06FF,
		r >= 0x0750 && r <= 0x077F,
		r >= 0x08A0 && r <= 0x08FF,
		r >= 0xFB50 && r <= 0xFDFF,
		r >= 0xFE70 && r <= 0xFEFF:
		return RTL
	}
	return LTR
}

// IsRTL reports whether s contains any RTL character
func IsRTL(s string) bool {
	for _, r := range s {
		if DirectionOf(r) == RTL {
			return true
		}
	}
	return false
}

// Segment splits s into maximal same-direction runs in logical order. The
// concatenation of the run texts equals s.
func Segment(s string) []Run {
	var runs []Run
	start := 0
	var cur Direction
	for i, r := range s {
		d := DirectionOf(r)
		if i == 0 {
			cur = d
			continue
		}
		if d != cur {
			runs = append(runs, Run{Text: s[start:i], Dir: cur})
			start = i
			cur = d
		}
	}
	if start < len(s) {
		runs = append(runs, Run{Text: s[start:], Dir: cur})
	}
	return runs
}

// Visual returns s in left-to-right display order for devices that print
// characters in the order they are received: run order is reversed and the
// characters of RTL runs are reversed, LTR runs keep their order.
func Visual(s string) string {
	runs := Segment(s)
	out := make([]rune, 0, len(s))
	for i := len(runs) - 1; i >= 0; i-- {
		rs := []rune(runs[i].Text)
		if runs[i].Dir == RTL {
			for j := len(rs) - 1; j >= 0; j-- {
				out = append(out, rs[j])
			}
			continue
		}
		out = append(out, rs...)
	}
	return string(out)
}
