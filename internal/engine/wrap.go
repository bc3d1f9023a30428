package engine

import (
	"strings"
	"unicode/utf8"
)

// LineHeight is the baseline advance between wrapped lines, as a multiple of the font size.
const LineHeight = 1.2

// Measurer reports the advance width of a string set in the given font and size.
type Measurer interface {
	Measure(s, font string, size float64) float64
}

// FixedAdvance measures every rune as Ratio × size wide. It stands in when no font backend is
// available, e.g. in the browser build before fonts load.
type FixedAdvance struct {
	Ratio float64
}

func (f FixedAdvance) Measure(s, _ string, size float64) float64 {
	return float64(utf8.RuneCountInString(s)) * f.Ratio * size
}

// DefaultMeasurer approximates a proportional sans-serif face.
var DefaultMeasurer Measurer = FixedAdvance{Ratio: 0.55}

// TextLine is one wrapped line with its baseline in the object's local frame.
type TextLine struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// WrapText breaks content into lines no wider than width. Words are split on single spaces and
// accumulated greedily; a line keeps the trailing space it was measured with, so aligned lines
// are anchored on the same width that decided the break. A word that alone
// exceeds width still gets a line of its own. The first baseline sits at y = size and each
// further line advances by LineHeight × size. x is the alignment anchor (0, width/2 or width).
// The box height is ignored: overflow is drawn, not truncated.
func WrapText(m Measurer, content, font string, size, width, x float64) []TextLine {
	words := strings.Split(content, " ")
	lines := make([]TextLine, 0, 1)
	y := size
	line := ""
	for n, w := range words {
		candidate := line + w + " "
		if n > 0 && m.Measure(candidate, font, size) > width {
			lines = append(lines, TextLine{Text: line, X: x, Y: y})
			line = w + " "
			y += size * LineHeight
			continue
		}
		line = candidate
	}
	return append(lines, TextLine{Text: line, X: x, Y: y})
}
