package document

import (
	"fmt"
	"math"
	"sort"
)

// Preset is a named page size in design units.
type Preset struct {
	Name   string  `json:"name"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

var presets = map[string]Preset{
	"a4":     {Name: "a4", Width: 2480, Height: 3508},
	"insta":  {Name: "insta", Width: 1080, Height: 1080},
	"story":  {Name: "story", Width: 1080, Height: 1920},
	"thumb":  {Name: "thumb", Width: 1280, Height: 720},
	"poster": {Name: "poster", Width: 1080, Height: 1350},
}

// DefaultPreset is the size of a fresh page.
var DefaultPreset = presets["poster"]

// LookupPreset returns the named page size.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p, nil
}

// Presets lists every page size, ordered by name.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Template is a starter layout: a page size plus the objects placed on a cleared page.
type Template struct {
	Name   string `json:"name"`
	Preset string `json:"preset"`
}

var templates = map[string]Template{
	"poster": {Name: "poster", Preset: "poster"},
	"insta":  {Name: "insta", Preset: "insta"},
	"thumb":  {Name: "thumb", Preset: "thumb"},
	"flyer":  {Name: "flyer", Preset: "a4"},
}

// LookupTemplate returns the named starter layout.
func LookupTemplate(name string) (Template, error) {
	t, ok := templates[name]
	if !ok {
		return Template{}, fmt.Errorf("%w: template %q", ErrUnknownPreset, name)
	}
	return t, nil
}

// Templates lists every starter layout, ordered by name.
func Templates() []Template {
	out := make([]Template, 0, len(templates))
	for _, t := range templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Apply clears p, resizes it to the template preset and lays out a title, an accent bar and a
// body paragraph. Ids continue from the page counter.
func (t Template) Apply(p *Page) error {
	preset, err := LookupPreset(t.Preset)
	if err != nil {
		return err
	}
	p.Clear()
	p.Resize(preset)

	title := NewObject(KindText, p.NextID).(*Text)
	title.Content = "Your Big Title"
	title.Size = 96
	title.Fill = "#111827"
	title.W, title.H = p.Width*0.8, 240
	title.X, title.Y = p.Width*0.1, 120
	p.Add(title)

	bar := NewObject(KindRect, p.NextID).(*Rect)
	bar.W, bar.H = p.Width*0.6, 24
	bar.X, bar.Y = p.Width*0.2, 380
	bar.Fill = "#8b5cf6"
	p.Add(bar)

	body := NewObject(KindText, p.NextID).(*Text)
	body.Content = "Add a short description that invites curiosity."
	body.Size = 40
	body.Fill = "#334155"
	body.W, body.H = p.Width*0.8, 400
	body.X, body.Y = p.Width*0.1, 440
	p.Add(body)

	return nil
}

// NewObject builds an object of the given kind with the editor's default look. id only seeds
// the cascading default position; Page.Add assigns the real id. Image objects come back without
// a handle.
func NewObject(kind Kind, id int) Object {
	base := Base{
		ID: id,
		Geometry: Geometry{
			X: 120 + float64(id)*6,
			Y: 120 + float64(id)*6,
			W: 260,
			H: 180,
		},
		Style: Style{
			Fill:        "#22d3ee",
			Stroke:      "#111827",
			StrokeWidth: 2,
		},
	}

	switch kind {
	case KindEllipse:
		base.W, base.H = 220, 220
		base.Fill = "#8b5cf6"
		return &Ellipse{Base: base}
	case KindTriangle:
		base.W, base.H = 220, 180
		return &Triangle{Base: base}
	case KindLine:
		base.W, base.H = 300, 4
		base.Stroke = "#8b5cf6"
		base.StrokeWidth = 6
		base.Fill = "transparent"
		return &Line{Base: base}
	case KindText:
		base.W, base.H = 420, 200
		base.Fill = "#111827"
		return &Text{
			Base:    base,
			Content: "Type your title",
			Font:    "Inter",
			Size:    48,
			Align:   AlignLeft,
		}
	case KindImage:
		return &Image{Base: base}
	default:
		return &Rect{Base: base}
	}
}

// NewImageObject wraps a decoded handle, capping the width at 600 units and keeping the natural
// aspect ratio.
func NewImageObject(h *ImageHandle, id int) *Image {
	obj := NewObject(KindImage, id).(*Image)
	obj.Handle = h
	nw, nh := h.Size()
	if nw > 0 && nh > 0 {
		obj.W = math.Min(float64(nw), 600)
		obj.H = math.Round(obj.W * float64(nh) / float64(nw))
	}
	return obj
}
