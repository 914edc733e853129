package bidi

// forms holds the presentation forms of a letter in the order
// isolated, final, initial, medial. A zero entry means the letter has no such
// form: right-joining letters only have isolated and final forms.
type forms [4]rune

const (
	formIsolated = iota
	formFinal
	formInitial
	formMedial
)

var arabicForms = map[rune]forms{
	0x0621: {0xFE80, 0, 0, 0},                // HAMZA
	0x0622: {0xFE81, 0xFE82, 0, 0},           // ALEF WITH MADDA ABOVE
	0x0623: {0xFE83, 0xFE84, 0, 0},           // ALEF WITH HAMZA ABOVE
	0x0624: {0xFE85, 0xFE86, 0, 0},           // WAW WITH HAMZA ABOVE
	0x0625: {0xFE87, 0xFE88, 0, 0},           // ALEF WITH HAMZA BELOW
	0x0626: {0xFE89, 0xFE8A, 0xFE8B, 0xFE8C}, // YEH WITH HAMZA ABOVE
	0x0627: {0xFE8D, 0xFE8E, 0, 0},           // ALEF
	0x0628: {0xFE8F, 0xFE90, 0xFE91, 0xFE92}, // BEH
	0x0629: {0xFE93, 0xFE94, 0, 0},           // TEH MARBUTA
	0x062A: {0xFE95, 0xFE96, 0xFE97, 0xFE98}, // TEH
	0x062B: {0xFE99, 0xFE9A, 0xFE9B, 0xFE9C}, // THEH
	0x062C: {0xFE9D, 0xFE9E, 0xFE9F, 0xFEA0}, // JEEM
	0x062D: {0xFEA1, 0xFEA2, 0xFEA3, 0xFEA4}, // HAH
	0x062E: {0xFEA5, 0xFEA6, 0xFEA7, 0xFEA8}, // KHAH
	0x062F: {0xFEA9, 0xFEAA, 0, 0},           // DAL
	0x0630: {0xFEAB, 0xFEAC, 0, 0},           // THAL
	0x0631: {0xFEAD, 0xFEAE, 0, 0},           // REH
	0x0632: {0xFEAF, 0xFEB0, 0, 0},           // ZAIN
	0x0633: {0xFEB1, 0xFEB2, 0xFEB3, 0xFEB4}, // SEEN
	0x0634: {0xFEB5, 0xFEB6, 0xFEB7, 0xFEB8}, // SHEEN
	0x0635: {0xFEB9, 0xFEBA, 0xFEBB, 0xFEBC}, // SAD
	0x0636: {0xFEBD, 0xFEBE, 0xFEBF, 0xFEC0}, // DAD
	0x0637: {0xFEC1, 0xFEC2, 0xFEC3, 0xFEC4}, // TAH
	0x0638: {0xFEC5, 0xFEC6, 0xFEC7, 0xFEC8}, // ZAH
	0x0639: {0xFEC9, 0xFECA, 0xFECB, 0xFECC}, // AIN
	0x063A: {0xFECD, 0xFECE, 0xFECF, 0xFED0}, // GHAIN
	0x0641: {0xFED1, 0xFED2, 0xFED3, 0xFED4}, // FEH
	0x0642: {0xFED5, 0xFED6, 0xFED7, 0xFED8}, // QAF
	0x0643: {0xFED9, 0xFEDA, 0xFEDB, 0xFEDC}, // KAF
	0x0644: {0xFEDD, 0xFEDE, 0xFEDF, 0xFEE0}, // LAM
	0x0645: {0xFEE1, 0xFEE2, 0xFEE3, 0xFEE4}, // MEEM
	0x0646: {0xFEE5, 0xFEE6, 0xFEE7, 0xFEE8}, // NOON
	0x0647: {0xFEE9, 0xFEEA, 0xFEEB, 0xFEEC}, // HEH
	0x0648: {0xFEED, 0xFEEE, 0, 0},           // WAW
	0x0649: {0xFEEF, 0xFEF0, 0, 0},           // ALEF MAKSURA
	0x064A: {0xFEF1, 0xFEF2, 0xFEF3, 0xFEF4}, // YEH
	0x0671: {0xFB50, 0xFB51, 0, 0},           // ALEF WASLA
	0x067E: {0xFB56, 0xFB57, 0xFB58, 0xFB59}, // PEH
	0x0686: {0xFB7A, 0xFB7B, 0xFB7C, 0xFB7D}, // TCHEH
	0x0698: {0xFB8A, 0xFB8B, 0, 0},           // JEH
	0x06A9: {0xFB8E, 0xFB8F, 0xFB90, 0xFB91}, // KEHEH
	0x06AF: {0xFB92, 0xFB93, 0xFB94, 0xFB95}, // GAF
	0x06CC: {0xFBFC, 0xFBFD, 0xFBFE, 0xFBFF}, // FARSI YEH
}

// joiningType follows the Unicode ArabicShaping classes the shaper needs
type joiningType uint8

const (
	joinNone         joiningType = iota // U: breaks joining on both sides
	joinRight                           // R: joins the preceding letter only
	joinDual                            // D: joins on both sides
	joinCausing                         // C: tatweel, ZWJ
	joinTransparent                     // T: harakat and other marks
)

func joiningOf(r rune) joiningType {
	switch {
	case r == 0x0640 || r == 0x200D:
		return joinCausing
	case r >= 0x064B && r <= 0x065F, r == 0x0670, r >= 0x06D6 && r <= 0x06DC, r >= 0x06DF && r <= 0x06E4:
		return joinTransparent
	}
	f, ok := arabicForms[r]
	if !ok || f[formFinal] == 0 {
		return joinNone
	}
	if f[formInitial] == 0 {
		return joinRight
	}
	return joinDual
}

// joinsForward reports whether a character connects to the letter after it
func (j joiningType) joinsForward() bool {
	return j == joinDual || j == joinCausing
}

// joinsBackward reports whether a character connects to the letter before it
func (j joiningType) joinsBackward() bool {
	return j == joinDual || j == joinRight || j == joinCausing
}
