package document

import (
	"errors"

	"github.com/kcwdesign/kcw/backend-go/internal/typeid"
)

var (
	ErrLastPage       = errors.New("at least one page required")
	ErrPageOutOfRange = errors.New("page index out of range")
	ErrUnknownPreset  = errors.New("unknown page preset")
	ErrUnknownKind    = errors.New("unknown object kind")
)

// Document is the full, ordered page set being edited. It always holds at least one page.
type Document struct {
	Pages []*Page `json:"pages"`
}

// Page is one fixed-size canvas. Objects are stored back to front: the last entry is drawn
// on top and wins hit tests.
type Page struct {
	ID      string   `json:"id"`
	Width   float64  `json:"width"`
	Height  float64  `json:"height"`
	Objects []Object `json:"objects"`
	NextID  int      `json:"nextId"`
}

type Kind string

const (
	KindRect     Kind = "rect"
	KindEllipse  Kind = "circle"
	KindTriangle Kind = "triangle"
	KindLine     Kind = "line"
	KindText     Kind = "text"
	KindImage    Kind = "image"
)

// Valid reports whether k names one of the drawable kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindRect, KindEllipse, KindTriangle, KindLine, KindText, KindImage:
		return true
	}
	return false
}

type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Geometry is an object's box in page space. Rot is in degrees, clockwise, about the box centre.
type Geometry struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	W   float64 `json:"w"`
	H   float64 `json:"h"`
	Rot float64 `json:"rot"`
}

// Center returns the pivot used for rotation.
func (g Geometry) Center() (float64, float64) {
	return g.X + g.W/2, g.Y + g.H/2
}

type Style struct {
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeW"`
}

// Base holds the fields every drawable shares.
type Base struct {
	ID int `json:"id"`
	Geometry
	Style
}

// Common returns the shared fields so callers can edit geometry and style without a type switch.
func (b *Base) Common() *Base { return b }

// Object is one drawable on a page. The concrete types are *Rect, *Ellipse, *Triangle, *Line,
// *Text and *Image.
type Object interface {
	Common() *Base
	Kind() Kind
	// Clone returns an independent copy. Image objects re-decode their pixels.
	Clone() (Object, error)
}

type Rect struct{ Base }

type Ellipse struct{ Base }

type Triangle struct{ Base }

type Line struct{ Base }

type Text struct {
	Base
	Content string  `json:"text"`
	Font    string  `json:"font"`
	Size    float64 `json:"size"`
	Align   Align   `json:"align"`
}

type Image struct {
	Base
	Handle *ImageHandle `json:"img"`
}

func (*Rect) Kind() Kind     { return KindRect }
func (*Ellipse) Kind() Kind  { return KindEllipse }
func (*Triangle) Kind() Kind { return KindTriangle }
func (*Line) Kind() Kind     { return KindLine }
func (*Text) Kind() Kind     { return KindText }
func (*Image) Kind() Kind    { return KindImage }

func (o *Rect) Clone() (Object, error)     { c := *o; return &c, nil }
func (o *Ellipse) Clone() (Object, error)  { c := *o; return &c, nil }
func (o *Triangle) Clone() (Object, error) { c := *o; return &c, nil }
func (o *Line) Clone() (Object, error)     { c := *o; return &c, nil }
func (o *Text) Clone() (Object, error)     { c := *o; return &c, nil }

func (o *Image) Clone() (Object, error) {
	c := *o
	if o.Handle != nil {
		h, err := o.Handle.Redecode()
		if err != nil {
			return nil, err
		}
		c.Handle = h
	}
	return &c, nil
}

// NewDocument creates a document holding a single empty page of the given preset.
func NewDocument(preset Preset) *Document {
	return &Document{Pages: []*Page{NewPage(preset)}}
}

// NewPage creates an empty page sized to the preset.
func NewPage(preset Preset) *Page {
	return &Page{
		ID:      typeid.NewPageID(),
		Width:   preset.Width,
		Height:  preset.Height,
		Objects: []Object{},
		NextID:  1,
	}
}
