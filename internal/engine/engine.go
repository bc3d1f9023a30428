package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kcwdesign/kcw/backend-go/internal/document"
)

var (
	ErrNoSelection    = errors.New("no object selected")
	ErrNothingSaved   = errors.New("nothing saved yet")
	ErrUnreadableSave = errors.New("saved data was unreadable")
	ErrNoStore        = errors.New("no store configured")
	ErrImageRequired  = errors.New("image objects need decoded pixels")
	ErrInvalidAlign   = errors.New("unknown alignment")
)

// DefaultStoreKey is the key a design is saved under when no other key is configured.
const DefaultStoreKey = "kcw.design"

const (
	MinZoom        = 0.1
	DefaultMaxZoom = 4.0
)

// BlobStore persists serialized documents by key.
type BlobStore interface {
	Put(ctx context.Context, key string, blob []byte) error
	// Get reports ok=false when nothing is stored under key.
	Get(ctx context.Context, key string) (blob []byte, ok bool, err error)
}

// Options configures a new Engine. The zero value is usable.
type Options struct {
	HistoryLimit int
	MaxZoom      float64
	Preset       document.Preset
	Measurer     Measurer
	Store        BlobStore
	StoreKey     string
	Logger       *slog.Logger
	// OnRender receives the draw commands after every redraw, including each drag sample.
	OnRender func([]DrawCommand)
}

// Engine is one editing session: it owns the document, the current page, the selection, the
// history and any drag in progress. It is not safe for concurrent use; callers serialize access.
type Engine struct {
	doc       *document.Document
	pageIndex int
	selected  int
	zoom      float64
	maxZoom   float64

	history  *History
	drag     drag
	status   string
	revision uint64

	preset   document.Preset
	measure  Measurer
	store    BlobStore
	storeKey string
	onRender func([]DrawCommand)
	log      *slog.Logger
}

// NewEngine creates an engine holding one empty page.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		zoom:     1,
		maxZoom:  opts.MaxZoom,
		history:  NewHistory(opts.HistoryLimit),
		preset:   opts.Preset,
		measure:  opts.Measurer,
		store:    opts.Store,
		storeKey: opts.StoreKey,
		onRender: opts.OnRender,
		log:      opts.Logger,
	}
	if e.maxZoom < MinZoom {
		e.maxZoom = DefaultMaxZoom
	}
	if e.preset.Width <= 0 || e.preset.Height <= 0 {
		e.preset = document.DefaultPreset
	}
	if e.measure == nil {
		e.measure = DefaultMeasurer
	}
	if e.storeKey == "" {
		e.storeKey = DefaultStoreKey
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	e.doc = document.NewDocument(e.preset)
	e.status = "Tip: Hold Shift to rotate, Alt to resize while dragging."
	return e
}

// SetRenderSink replaces the redraw callback.
func (e *Engine) SetRenderSink(fn func([]DrawCommand)) {
	e.onRender = fn
}

// SetMeasurer replaces the text measurer used for wrapping. nil restores the default.
func (e *Engine) SetMeasurer(m Measurer) {
	if m == nil {
		m = DefaultMeasurer
	}
	e.measure = m
}

// SetStore replaces the blob store and the key designs are saved under.
func (e *Engine) SetStore(s BlobStore, key string) {
	e.store = s
	if key != "" {
		e.storeKey = key
	}
}

// --- Queries ---

// StoreKey is the key Save and Load use.
func (e *Engine) StoreKey() string {
	return e.storeKey
}

// Pages returns the live page set. Callers must not retain it past the current call.
func (e *Engine) Pages() []*document.Page {
	return e.doc.Pages
}

// Page returns the current page.
func (e *Engine) Page() *document.Page {
	return e.doc.Pages[e.pageIndex]
}

// PageIndex returns the zero-based index of the current page.
func (e *Engine) PageIndex() int {
	return e.pageIndex
}

// Selection returns the selected object id, or 0.
func (e *Engine) Selection() int {
	return e.selected
}

// Selected returns the selected object if it still exists on the current page.
func (e *Engine) Selected() (document.Object, bool) {
	if e.selected == 0 {
		return nil, false
	}
	o, _, ok := e.Page().Find(e.selected)
	return o, ok
}

// Zoom returns the device pixels per page unit.
func (e *Engine) Zoom() float64 {
	return e.zoom
}

// Revision counts document changes. It moves on every mutation, undo, redo and load.
func (e *Engine) Revision() uint64 {
	return e.revision
}

// Status returns the status line shown under the canvas.
func (e *Engine) Status() string {
	return e.status
}

// DragMode returns the state of the interaction machine.
func (e *Engine) DragMode() DragMode {
	return e.drag.mode
}

// History exposes the undo log, mostly for inspection.
func (e *Engine) History() *History {
	return e.history
}

// Snapshot serializes the whole page set.
func (e *Engine) Snapshot() ([]byte, error) {
	return document.Marshal(e.doc.Pages)
}

// ClonePages returns an independent copy of the page set, safe to hand to another goroutine.
func (e *Engine) ClonePages() ([]*document.Page, error) {
	blob, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	return document.Unmarshal(blob)
}

// Measurer returns the text measurer used for wrapping.
func (e *Engine) Measurer() Measurer {
	return e.measure
}

// HitTest returns the id of the topmost object under the device point, or 0.
func (e *Engine) HitTest(x, y float64) int {
	o, ok := PickTopmost(e.Page(), x, y, e.zoom)
	if !ok {
		return 0
	}
	return o.Common().ID
}

// SelectionBounds returns the page-space box around the selected object after rotation.
func (e *Engine) SelectionBounds() Rect {
	o, ok := e.Selected()
	if !ok {
		return Rect{}
	}
	return Bounds(o.Common().Geometry)
}

// Render compiles the current page and hands the commands to the render sink.
func (e *Engine) Render() []DrawCommand {
	cmds := CompileDrawCommands(e.Page(), e.selected, e.zoom, e.measure)
	e.status = e.summary()
	if e.onRender != nil {
		e.onRender(cmds)
	}
	return cmds
}

func (e *Engine) summary() string {
	s := fmt.Sprintf("Objects: %d", len(e.Page().Objects))
	if e.selected != 0 {
		s += fmt.Sprintf(" • Selected #%d", e.selected)
	}
	return s
}

// --- Internal helpers ---

// snapshot records the pre-mutation state. Every user-visible mutation calls it first.
func (e *Engine) snapshot() error {
	if _, err := e.history.Snapshot(e.doc.Pages); err != nil {
		e.log.Error("history snapshot failed", "error", err)
		return err
	}
	e.revision++
	return nil
}

// restore swaps in a page set from history or storage.
func (e *Engine) restore(pages []*document.Page) {
	e.doc = &document.Document{Pages: pages}
	e.revision++
	e.pageIndex = min(e.pageIndex, len(pages)-1)
	e.selected = 0
	e.drag = drag{}
}

// reject mirrors a refused action into the status line.
func (e *Engine) reject(err error) error {
	e.status = statusText(err)
	e.log.Debug("action rejected", "error", err)
	return err
}

func statusText(err error) string {
	switch {
	case errors.Is(err, document.ErrLastPage):
		return "At least one page required."
	case errors.Is(err, ErrNothingSaved):
		return "Nothing saved yet."
	case errors.Is(err, ErrNoStore):
		return "Saving is not available."
	default:
		return "Error: " + err.Error()
	}
}
