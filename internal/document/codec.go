package document

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrEmptyDocument = errors.New("document has no pages")

type wirePage struct {
	ID      string            `json:"id"`
	Width   float64           `json:"width"`
	Height  float64           `json:"height"`
	Objects []json.RawMessage `json:"objects"`
	NextID  int               `json:"nextId"`
}

// MarshalJSON writes objects as flat records tagged with their kind under "type".
func (p *Page) MarshalJSON() ([]byte, error) {
	w := wirePage{
		ID:      p.ID,
		Width:   p.Width,
		Height:  p.Height,
		Objects: make([]json.RawMessage, 0, len(p.Objects)),
		NextID:  p.NextID,
	}
	for _, o := range p.Objects {
		data, err := MarshalObject(o)
		if err != nil {
			return nil, err
		}
		w.Objects = append(w.Objects, data)
	}
	return json.Marshal(w)
}

func (p *Page) UnmarshalJSON(data []byte) error {
	var w wirePage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.ID = w.ID
	p.Width = w.Width
	p.Height = w.Height
	p.NextID = w.NextID
	p.Objects = make([]Object, 0, len(w.Objects))
	for _, raw := range w.Objects {
		o, err := UnmarshalObject(raw)
		if err != nil {
			return err
		}
		p.Objects = append(p.Objects, o)
	}
	return nil
}

// MarshalObject encodes one object with its kind tag.
func MarshalObject(o Object) ([]byte, error) {
	switch v := o.(type) {
	case *Rect:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*Rect
		}{KindRect, v})
	case *Ellipse:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*Ellipse
		}{KindEllipse, v})
	case *Triangle:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*Triangle
		}{KindTriangle, v})
	case *Line:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*Line
		}{KindLine, v})
	case *Text:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*Text
		}{KindText, v})
	case *Image:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*Image
		}{KindImage, v})
	default:
		return nil, fmt.Errorf("marshal object: %w: %T", ErrUnknownKind, o)
	}
}

// UnmarshalObject decodes a kind-tagged record into its concrete type.
func UnmarshalObject(data []byte) (Object, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	var obj Object
	switch head.Type {
	case KindRect:
		obj = &Rect{}
	case KindEllipse:
		obj = &Ellipse{}
	case KindTriangle:
		obj = &Triangle{}
	case KindLine:
		obj = &Line{}
	case KindText:
		obj = &Text{}
	case KindImage:
		obj = &Image{}
	default:
		return nil, fmt.Errorf("unmarshal object: %w: %q", ErrUnknownKind, head.Type)
	}
	if err := json.Unmarshal(data, obj); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", head.Type, err)
	}
	return obj, nil
}

// Marshal serializes a page set into the self-describing blob used for history and persistence.
func Marshal(pages []*Page) ([]byte, error) {
	return json.Marshal(Document{Pages: pages})
}

// Unmarshal parses a blob written by Marshal and checks the page invariants.
func Unmarshal(blob []byte) ([]*Page, error) {
	var doc Document
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc.Pages, nil
}

// Validate checks that the document is usable: at least one page, positive page sizes and ids
// unique within each page. A stale id counter is advanced past the largest id in use.
func (d *Document) Validate() error {
	if len(d.Pages) == 0 {
		return ErrEmptyDocument
	}
	for i, p := range d.Pages {
		if p == nil {
			return fmt.Errorf("page %d: missing", i)
		}
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("page %d: invalid size %gx%g", i, p.Width, p.Height)
		}
		seen := make(map[int]bool, len(p.Objects))
		for _, o := range p.Objects {
			id := o.Common().ID
			if seen[id] {
				return fmt.Errorf("page %d: duplicate object id %d", i, id)
			}
			seen[id] = true
			if id >= p.NextID {
				p.NextID = id + 1
			}
		}
		if p.NextID < 1 {
			p.NextID = 1
		}
	}
	return nil
}
