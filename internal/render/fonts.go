package render

import (
	"fmt"
	"sync"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"
)

// maxCachedFaces bounds the face cache; zooming produces many distinct sizes.
const maxCachedFaces = 64

// Fonts hands out faces of the bundled Go Regular font. Every family name resolves to it.
// Fonts is safe for concurrent use.
type Fonts struct {
	src *text.FontSource

	mu    sync.Mutex
	faces map[float64]text.Face
}

// NewFonts parses the bundled font.
func NewFonts() (*Fonts, error) {
	src, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	return &Fonts{src: src, faces: make(map[float64]text.Face)}, nil
}

// Face returns a face at the given pixel size.
func (f *Fonts) Face(size float64) text.Face {
	f.mu.Lock()
	defer f.mu.Unlock()
	if face, ok := f.faces[size]; ok {
		return face
	}
	if len(f.faces) >= maxCachedFaces {
		clear(f.faces)
	}
	face := f.src.Face(size)
	f.faces[size] = face
	return face
}

// Measure implements engine.Measurer.
func (f *Fonts) Measure(s, _ string, size float64) float64 {
	w, _ := text.Measure(s, f.Face(size))
	return w
}

// Descent returns how far glyphs reach below the baseline at the given size.
func (f *Fonts) Descent(size float64) float64 {
	return f.Face(size).Metrics().Descent
}
