// Package bidi shapes Arabic text into presentation forms and splits mixed
// lines into right-to-left and left-to-right runs.
package bidi

// Shape replaces every Arabic letter with the presentation form selected by its
// neighbours. The output has exactly as many runes as the input; runes that are
// not Arabic letters are copied unchanged. Joining is decided on the logical
// string, transparent marks are skipped when looking for neighbours.
func Shape(s string) string {
	in := []rune(s)
	if len(in) == 0 {
		return s
	}

	types := make([]joiningType, len(in))
	for i, r := range in {
		types[i] = joiningOf(r)
	}

	out := make([]rune, len(in))
	for i, r := range in {
		out[i] = r

		f, ok := arabicForms[r]
		if !ok {
			continue
		}

		prev := neighbour(types, i, -1)
		next := neighbour(types, i, 1)

		joinPrev := prev >= 0 && types[prev].joinsForward() && types[i].joinsBackward()
		joinNext := next >= 0 && types[next].joinsBackward() && types[i].joinsForward()

		form := formIsolated
		switch {
		case joinPrev && joinNext:
			form = formMedial
		case joinPrev:
			form = formFinal
		case joinNext:
			form = formInitial
		}

		if f[form] != 0 {
			out[i] = f[form]
		} else {
			out[i] = f[formIsolated]
		}
	}

	return string(out)
}

// neighbour returns the index of the closest non-transparent character in the
// given direction, or -1.
func neighbour(types []joiningType, i, step int) int {
	for j := i + step; j >= 0 && j < len(types); j += step {
		if types[j] != joinTransparent {
			return j
		}
	}
	return -1
}
