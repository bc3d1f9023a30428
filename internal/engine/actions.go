package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/kcwdesign/kcw/backend-go/internal/document"
)

const (
	MinEditSize     = 10
	MinEditFontSize = 8
)

// --- Objects ---

// AddObject places a default object of the given kind on the current page and selects it.
func (e *Engine) AddObject(kind document.Kind) (document.Object, error) {
	if !kind.Valid() {
		return nil, e.reject(fmt.Errorf("add object: %w: %q", document.ErrUnknownKind, kind))
	}
	if kind == document.KindImage {
		return nil, e.reject(fmt.Errorf("add object: %w", ErrImageRequired))
	}
	p := e.Page()
	return e.insert(document.NewObject(kind, p.NextID))
}

// AddImage places a decoded image on the current page, whatever page that is by the time the
// decode finished, and selects it.
func (e *Engine) AddImage(h *document.ImageHandle) (document.Object, error) {
	if h == nil {
		return nil, e.reject(fmt.Errorf("add image: %w", ErrImageRequired))
	}
	return e.insert(document.NewImageObject(h, e.Page().NextID))
}

func (e *Engine) insert(obj document.Object) (document.Object, error) {
	if err := e.snapshot(); err != nil {
		return nil, err
	}
	e.Page().Add(obj)
	e.selected = obj.Common().ID
	e.Render()
	return obj, nil
}

// Select makes id the selection. 0 or an id missing from the current page clears it.
func (e *Engine) Select(id int) {
	if _, _, ok := e.Page().Find(id); !ok {
		id = 0
	}
	e.selected = id
	e.Render()
}

// DeleteSelected removes the selected object.
func (e *Engine) DeleteSelected() error {
	o, ok := e.Selected()
	if !ok {
		return ErrNoSelection
	}
	if err := e.snapshot(); err != nil {
		return err
	}
	e.Page().Remove(o.Common().ID)
	e.selected = 0
	e.Render()
	return nil
}

// BringForward swaps the selection with the object above it.
func (e *Engine) BringForward() error {
	return e.reorder(document.Forward)
}

// SendBack swaps the selection with the object below it.
func (e *Engine) SendBack() error {
	return e.reorder(document.Backward)
}

func (e *Engine) reorder(dir document.Direction) error {
	o, ok := e.Selected()
	if !ok {
		return ErrNoSelection
	}
	id := o.Common().ID
	if !e.Page().CanReorder(id, dir) {
		return nil
	}
	if err := e.snapshot(); err != nil {
		return err
	}
	e.Page().Reorder(id, dir)
	e.Render()
	return nil
}

// Edit is a property-panel change to the selected object. Nil fields are left alone. The text
// fields only apply to text objects.
type Edit struct {
	X           *float64        `json:"x,omitempty"`
	Y           *float64        `json:"y,omitempty"`
	W           *float64        `json:"w,omitempty"`
	H           *float64        `json:"h,omitempty"`
	Rot         *float64        `json:"rot,omitempty"`
	Fill        *string         `json:"fill,omitempty"`
	Stroke      *string         `json:"stroke,omitempty"`
	StrokeWidth *float64        `json:"strokeW,omitempty"`
	Text        *string         `json:"text,omitempty"`
	Font        *string         `json:"font,omitempty"`
	Size        *float64        `json:"size,omitempty"`
	Align       *document.Align `json:"align,omitempty"`
}

func (ed Edit) touchesBase() bool {
	return ed.X != nil || ed.Y != nil || ed.W != nil || ed.H != nil || ed.Rot != nil ||
		ed.Fill != nil || ed.Stroke != nil || ed.StrokeWidth != nil
}

func (ed Edit) touchesText() bool {
	return ed.Text != nil || ed.Font != nil || ed.Size != nil || ed.Align != nil
}

// ApplyEdit changes properties of the selected object as one history entry. Sizes are clamped:
// width and height to 10, stroke width to 0 and font size to 8.
func (e *Engine) ApplyEdit(ed Edit) error {
	o, ok := e.Selected()
	if !ok {
		return ErrNoSelection
	}
	t, isText := o.(*document.Text)
	if !ed.touchesBase() && !(isText && ed.touchesText()) {
		return nil
	}
	if ed.Align != nil {
		switch *ed.Align {
		case document.AlignLeft, document.AlignCenter, document.AlignRight:
		default:
			return e.reject(fmt.Errorf("edit: %w %q", ErrInvalidAlign, *ed.Align))
		}
	}
	if err := e.snapshot(); err != nil {
		return err
	}

	b := o.Common()
	setFloat(&b.X, ed.X)
	setFloat(&b.Y, ed.Y)
	setFloat(&b.Rot, ed.Rot)
	if ed.W != nil {
		b.W = math.Max(MinEditSize, *ed.W)
	}
	if ed.H != nil {
		b.H = math.Max(MinEditSize, *ed.H)
	}
	if ed.StrokeWidth != nil {
		b.StrokeWidth = math.Max(0, *ed.StrokeWidth)
	}
	if ed.Fill != nil {
		b.Fill = *ed.Fill
	}
	if ed.Stroke != nil {
		b.Stroke = *ed.Stroke
	}
	if isText {
		if ed.Text != nil {
			t.Content = *ed.Text
		}
		if ed.Font != nil {
			t.Font = *ed.Font
		}
		if ed.Size != nil {
			t.Size = math.Max(MinEditFontSize, *ed.Size)
		}
		if ed.Align != nil {
			t.Align = *ed.Align
		}
	}
	e.Render()
	return nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) {
		*dst = *v
	}
}

// --- History ---

// Undo restores the page set from before the last action. It reports false when there was
// nothing to undo.
func (e *Engine) Undo() (bool, error) {
	pages, ok, err := e.history.Undo(e.doc.Pages)
	if err != nil || !ok {
		return false, err
	}
	e.restore(pages)
	e.Render()
	return true, nil
}

// Redo re-applies the last undone action.
func (e *Engine) Redo() (bool, error) {
	pages, ok, err := e.history.Redo(e.doc.Pages)
	if err != nil || !ok {
		return false, err
	}
	e.restore(pages)
	e.Render()
	return true, nil
}

// --- Pages ---

// AddPage appends an empty page of the session preset and switches to it.
func (e *Engine) AddPage() error {
	if err := e.snapshot(); err != nil {
		return err
	}
	e.doc.Pages = append(e.doc.Pages, document.NewPage(e.preset))
	e.switchPage(len(e.doc.Pages) - 1)
	return nil
}

// DuplicatePage inserts a deep copy of the current page right after it and switches to the copy.
func (e *Engine) DuplicatePage() error {
	cp, err := document.DuplicatePage(e.Page())
	if err != nil {
		return e.reject(fmt.Errorf("duplicate page: %w", err))
	}
	if err := e.snapshot(); err != nil {
		return err
	}
	if err := e.doc.InsertPage(e.pageIndex+1, cp); err != nil {
		return err
	}
	e.switchPage(e.pageIndex + 1)
	return nil
}

// DeletePage removes the current page and moves to the one before it. The last page is kept and
// the refusal shows in the status line.
func (e *Engine) DeletePage() error {
	if len(e.doc.Pages) <= 1 {
		return e.reject(document.ErrLastPage)
	}
	if err := e.snapshot(); err != nil {
		return err
	}
	if err := e.doc.DeletePage(e.pageIndex); err != nil {
		return e.reject(err)
	}
	e.switchPage(max(0, e.pageIndex-1))
	return nil
}

// SelectPage makes page i current and clears the selection.
func (e *Engine) SelectPage(i int) error {
	if _, err := e.doc.Page(i); err != nil {
		return e.reject(fmt.Errorf("select page %d: %w", i, err))
	}
	e.switchPage(i)
	return nil
}

func (e *Engine) switchPage(i int) {
	e.pageIndex = i
	e.selected = 0
	e.drag = drag{}
	e.Render()
}

// PageSummary describes one entry of the page list.
type PageSummary struct {
	Index   int     `json:"index"`
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Objects int     `json:"objects"`
	Current bool    `json:"current"`
}

// PageSummaries lists the pages in order for the page panel.
func (e *Engine) PageSummaries() []PageSummary {
	out := make([]PageSummary, len(e.doc.Pages))
	for i, p := range e.doc.Pages {
		out[i] = PageSummary{
			Index:   i,
			ID:      p.ID,
			Label:   fmt.Sprintf("Page %d", i+1),
			Width:   p.Width,
			Height:  p.Height,
			Objects: len(p.Objects),
			Current: i == e.pageIndex,
		}
	}
	return out
}

// --- Document ---

// NewDocument replaces every page with a single empty one. It can be undone.
func (e *Engine) NewDocument() error {
	if err := e.snapshot(); err != nil {
		return err
	}
	e.doc = document.NewDocument(e.preset)
	e.switchPage(0)
	return nil
}

// SetPreset resizes the current page to a named preset.
func (e *Engine) SetPreset(name string) error {
	preset, err := document.LookupPreset(name)
	if err != nil {
		return e.reject(err)
	}
	if err := e.snapshot(); err != nil {
		return err
	}
	e.Page().Resize(preset)
	e.Render()
	return nil
}

// ApplyTemplate clears the current page and lays out a named starter design as one history entry.
func (e *Engine) ApplyTemplate(name string) error {
	t, err := document.LookupTemplate(name)
	if err != nil {
		return e.reject(err)
	}
	if err := e.snapshot(); err != nil {
		return err
	}
	if err := t.Apply(e.Page()); err != nil {
		return e.reject(err)
	}
	e.selected = 0
	e.Render()
	return nil
}

// SetZoom changes the device pixels per page unit, clamped to [MinZoom, max zoom]. Zoom is a view
// setting and never enters history. It returns the zoom in effect.
func (e *Engine) SetZoom(z float64) float64 {
	if math.IsNaN(z) {
		return e.zoom
	}
	e.zoom = math.Min(math.Max(z, MinZoom), e.maxZoom)
	e.drag = drag{}
	e.Render()
	return e.zoom
}

// --- Persistence ---

// Save writes the page set to the store.
func (e *Engine) Save(ctx context.Context) error {
	if err := e.Persist(ctx); err != nil {
		return e.reject(err)
	}
	e.status = "Saved."
	return nil
}

// Persist writes the page set to the store without touching the status line or history.
func (e *Engine) Persist(ctx context.Context) error {
	if e.store == nil {
		return ErrNoStore
	}
	blob, err := e.Snapshot()
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := e.store.Put(ctx, e.storeKey, blob); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	e.log.Info("design saved", "key", e.storeKey, "bytes", len(blob))
	return nil
}

// Load replaces the page set with the stored one and moves to the first page. When the stored
// blob cannot be read the session starts over with a fresh document and ErrUnreadableSave is
// returned.
func (e *Engine) Load(ctx context.Context) error {
	if e.store == nil {
		return e.reject(ErrNoStore)
	}
	blob, ok, err := e.store.Get(ctx, e.storeKey)
	if err != nil {
		return e.reject(fmt.Errorf("load: %w", err))
	}
	if !ok {
		return e.reject(ErrNothingSaved)
	}

	pages, err := document.Unmarshal(blob)
	if err != nil {
		e.log.Warn("stored design unreadable", "key", e.storeKey, "error", err)
		e.restore(document.NewDocument(e.preset).Pages)
		e.switchPage(0)
		e.status = "Saved data was unreadable; started a new document."
		return fmt.Errorf("load: %w: %v", ErrUnreadableSave, err)
	}
	e.restore(pages)
	e.switchPage(0)
	e.status = "Loaded."
	return nil
}

// ExportName is the file name offered for a PNG of the current page.
func (e *Engine) ExportName() string {
	return fmt.Sprintf("kcw-design-page-%d.png", e.pageIndex+1)
}
