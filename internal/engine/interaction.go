package engine

import (
	"errors"
	"math"
	"strings"

	"github.com/kcwdesign/kcw/backend-go/internal/document"
)

// Modifiers is the set of modifier keys held during an input event.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModAlt
	ModCtrl
	ModMeta
)

// Has reports whether every key in f is held.
func (m Modifiers) Has(f Modifiers) bool { return m&f == f }

// DragMode is the state of the pointer interaction machine.
type DragMode int

const (
	Idle DragMode = iota
	Moving
	Resizing
	Rotating
)

func (d DragMode) String() string {
	switch d {
	case Moving:
		return "moving"
	case Resizing:
		return "resizing"
	case Rotating:
		return "rotating"
	default:
		return "idle"
	}
}

const (
	// MinDragSize is the smallest width or height a resize drag can produce.
	MinDragSize = 20
	// NudgeStep and NudgeStepLarge are the arrow-key steps without and with Shift.
	NudgeStep      = 2
	NudgeStepLarge = 10
)

// drag is the state captured at pointer-down. The mode is latched: modifier changes during the
// drag are ignored.
type drag struct {
	mode   DragMode
	target int

	startX, startY   float64 // device space
	offsetX, offsetY float64 // page space, pointer relative to the object's top-left
	startW, startH   float64
	startRot         float64
}

func modeFor(mods Modifiers) DragMode {
	switch {
	case mods.Has(ModShift):
		return Rotating
	case mods.Has(ModAlt):
		return Resizing
	default:
		return Moving
	}
}

// PointerDown selects the topmost object under the device point and starts a drag on it. One
// history entry is recorded for the whole drag. A press on empty space clears the selection.
func (e *Engine) PointerDown(x, y float64, mods Modifiers) error {
	o, ok := PickTopmost(e.Page(), x, y, e.zoom)
	if !ok {
		e.selected = 0
		e.drag = drag{}
		e.Render()
		return nil
	}

	b := o.Common()
	if err := e.snapshot(); err != nil {
		return err
	}
	e.selected = b.ID
	e.drag = drag{
		mode:     modeFor(mods),
		target:   b.ID,
		startX:   x,
		startY:   y,
		offsetX:  x/e.zoom - b.X,
		offsetY:  y/e.zoom - b.Y,
		startW:   b.W,
		startH:   b.H,
		startRot: b.Rot,
	}
	e.log.Debug("drag started", "mode", e.drag.mode, "object", b.ID)
	e.Render()
	return nil
}

// PointerMove applies one drag sample and redraws. It reports whether anything changed.
func (e *Engine) PointerMove(x, y float64) bool {
	if e.drag.mode == Idle {
		return false
	}
	o, ok := e.dragTarget()
	if !ok {
		// The object went away under the drag, e.g. an undo mid-gesture.
		e.drag = drag{}
		return false
	}

	b := o.Common()
	switch e.drag.mode {
	case Moving:
		b.X = x/e.zoom - e.drag.offsetX
		b.Y = y/e.zoom - e.drag.offsetY
	case Resizing:
		b.W = math.Max(MinDragSize, e.drag.startW+(x-e.drag.startX)/e.zoom)
		b.H = math.Max(MinDragSize, e.drag.startH+(y-e.drag.startY)/e.zoom)
	case Rotating:
		cx, cy := b.Center()
		b.Rot = roundHalfUp(AngleFromPivot(x, y, cx*e.zoom, cy*e.zoom) + 90)
	}
	e.Render()
	return true
}

// PointerUp ends any drag, wherever the pointer is.
func (e *Engine) PointerUp() {
	if e.drag.mode != Idle {
		e.log.Debug("drag ended", "mode", e.drag.mode, "object", e.drag.target)
	}
	e.drag = drag{}
}

// roundHalfUp rounds to the nearest integer with halves going towards +Inf.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

// KeyDown handles the editor shortcuts: arrows nudge, Delete/Backspace delete the selection,
// Ctrl/Meta+Z undoes, Ctrl/Meta+Shift+Z and Ctrl/Meta+Y redo. It reports whether the key was
// consumed.
func (e *Engine) KeyDown(key string, mods Modifiers) (bool, error) {
	ctrl := mods.Has(ModCtrl) || mods.Has(ModMeta)
	if ctrl {
		switch strings.ToLower(key) {
		case "z":
			if mods.Has(ModShift) {
				_, err := e.Redo()
				return true, err
			}
			_, err := e.Undo()
			return true, err
		case "y":
			_, err := e.Redo()
			return true, err
		}
		return false, nil
	}

	step := float64(NudgeStep)
	if mods.Has(ModShift) {
		step = NudgeStepLarge
	}
	switch key {
	case "Delete", "Backspace":
		return true, ignoreNoSelection(e.DeleteSelected())
	case "ArrowUp":
		return true, ignoreNoSelection(e.Nudge(0, -step))
	case "ArrowDown":
		return true, ignoreNoSelection(e.Nudge(0, step))
	case "ArrowLeft":
		return true, ignoreNoSelection(e.Nudge(-step, 0))
	case "ArrowRight":
		return true, ignoreNoSelection(e.Nudge(step, 0))
	}
	return false, nil
}

func ignoreNoSelection(err error) error {
	if errors.Is(err, ErrNoSelection) {
		return nil
	}
	return err
}

// Nudge moves the selected object by (dx, dy) page units as one history entry.
func (e *Engine) Nudge(dx, dy float64) error {
	o, ok := e.Selected()
	if !ok {
		return ErrNoSelection
	}
	if err := e.snapshot(); err != nil {
		return err
	}
	b := o.Common()
	b.X += dx
	b.Y += dy
	e.Render()
	return nil
}

// dragTarget returns the object being dragged, if any.
func (e *Engine) dragTarget() (document.Object, bool) {
	if e.drag.mode == Idle {
		return nil, false
	}
	o, _, ok := e.Page().Find(e.drag.target)
	return o, ok
}
