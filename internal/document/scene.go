package document

import (
	"fmt"

	"github.com/kcwdesign/kcw/backend-go/internal/typeid"
)

// Direction moves an object one step through the z-order.
type Direction int

const (
	// Backward swaps with the object directly below.
	Backward Direction = -1
	// Forward swaps with the object directly above.
	Forward Direction = 1
)

// Add assigns the page's next id to obj and appends it on top of the stack.
func (p *Page) Add(obj Object) Object {
	b := obj.Common()
	b.ID = p.NextID
	p.NextID++
	p.Objects = append(p.Objects, obj)
	return obj
}

// Find returns the object with the given id and its z-index.
func (p *Page) Find(id int) (Object, int, bool) {
	for i, o := range p.Objects {
		if o.Common().ID == id {
			return o, i, true
		}
	}
	return nil, -1, false
}

// Remove deletes the object with the given id. It reports whether anything was removed.
func (p *Page) Remove(id int) bool {
	_, i, ok := p.Find(id)
	if !ok {
		return false
	}
	p.Objects = append(p.Objects[:i], p.Objects[i+1:]...)
	return true
}

// Reorder swaps the object with its neighbour in dir. It is a no-op at either end of the stack
// and reports whether the order changed.
func (p *Page) Reorder(id int, dir Direction) bool {
	_, i, ok := p.Find(id)
	if !ok {
		return false
	}
	j := i + int(dir)
	if j < 0 || j >= len(p.Objects) {
		return false
	}
	p.Objects[i], p.Objects[j] = p.Objects[j], p.Objects[i]
	return true
}

// CanReorder reports whether Reorder(id, dir) would change anything.
func (p *Page) CanReorder(id int, dir Direction) bool {
	_, i, ok := p.Find(id)
	if !ok {
		return false
	}
	j := i + int(dir)
	return j >= 0 && j < len(p.Objects)
}

// Resize applies a preset's dimensions to the page. Objects are left where they are.
func (p *Page) Resize(preset Preset) {
	p.Width = preset.Width
	p.Height = preset.Height
}

// Clear removes every object. The id counter keeps counting so ids are never reused.
func (p *Page) Clear() {
	p.Objects = []Object{}
}

// DuplicatePage deep-copies p under a fresh page id. Image objects get independently decoded
// handles.
func DuplicatePage(p *Page) (*Page, error) {
	cp := &Page{
		ID:      typeid.NewPageID(),
		Width:   p.Width,
		Height:  p.Height,
		Objects: make([]Object, 0, len(p.Objects)),
		NextID:  p.NextID,
	}
	for _, o := range p.Objects {
		c, err := o.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone object %d: %w", o.Common().ID, err)
		}
		cp.Objects = append(cp.Objects, c)
	}
	return cp, nil
}

// InsertPage places p at index i, shifting later pages back.
func (d *Document) InsertPage(i int, p *Page) error {
	if i < 0 || i > len(d.Pages) {
		return ErrPageOutOfRange
	}
	d.Pages = append(d.Pages, nil)
	copy(d.Pages[i+1:], d.Pages[i:])
	d.Pages[i] = p
	return nil
}

// DeletePage removes the page at index i. The last remaining page can never be deleted.
func (d *Document) DeletePage(i int) error {
	if len(d.Pages) <= 1 {
		return ErrLastPage
	}
	if i < 0 || i >= len(d.Pages) {
		return ErrPageOutOfRange
	}
	d.Pages = append(d.Pages[:i], d.Pages[i+1:]...)
	return nil
}

// Page returns the page at index i.
func (d *Document) Page(i int) (*Page, error) {
	if i < 0 || i >= len(d.Pages) {
		return nil, ErrPageOutOfRange
	}
	return d.Pages[i], nil
}
