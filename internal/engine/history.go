package engine

import (
	"fmt"

	"github.com/kcwdesign/kcw/backend-go/internal/document"
	"github.com/kcwdesign/kcw/backend-go/internal/typeid"
)

// DefaultHistoryLimit caps the undo stack when no limit is configured.
const DefaultHistoryLimit = 200

type snapshot struct {
	id   string
	blob []byte
}

// History is a snapshot-based undo/redo log over the whole page set. Entries are serialized
// documents, so restoring one never aliases pages that are still being edited.
type History struct {
	undo  []snapshot
	redo  []snapshot
	limit int
}

// NewHistory creates an empty log. A limit of 0 or less keeps every entry.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

func capture(pages []*document.Page) (snapshot, error) {
	blob, err := document.Marshal(pages)
	if err != nil {
		return snapshot{}, fmt.Errorf("snapshot pages: %w", err)
	}
	return snapshot{id: typeid.NewSnapshotID(), blob: blob}, nil
}

// Snapshot records pages as the state to return to on the next Undo and drops the redo stack.
// It returns the id of the new entry.
func (h *History) Snapshot(pages []*document.Page) (string, error) {
	s, err := capture(pages)
	if err != nil {
		return "", err
	}
	h.undo = append(h.undo, s)
	if h.limit > 0 && len(h.undo) > h.limit {
		h.undo = append(h.undo[:0:0], h.undo[len(h.undo)-h.limit:]...)
	}
	h.redo = nil
	return s.id, nil
}

// Undo pops the latest entry and returns the pages it holds. current is pushed onto the redo
// stack. ok is false when there is nothing to undo.
func (h *History) Undo(current []*document.Page) ([]*document.Page, bool, error) {
	return h.step(&h.undo, &h.redo, current)
}

// Redo is the mirror of Undo.
func (h *History) Redo(current []*document.Page) ([]*document.Page, bool, error) {
	return h.step(&h.redo, &h.undo, current)
}

func (h *History) step(from, to *[]snapshot, current []*document.Page) ([]*document.Page, bool, error) {
	if len(*from) == 0 {
		return nil, false, nil
	}
	top := (*from)[len(*from)-1]
	pages, err := document.Unmarshal(top.blob)
	if err != nil {
		return nil, false, fmt.Errorf("restore snapshot %s: %w", top.id, err)
	}
	cur, err := capture(current)
	if err != nil {
		return nil, false, err
	}
	*from = (*from)[:len(*from)-1]
	*to = append(*to, cur)
	return pages, true, nil
}

// CanUndo reports whether Undo would restore anything.
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether Redo would restore anything.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Len returns the undo and redo depths.
func (h *History) Len() (undo, redo int) { return len(h.undo), len(h.redo) }

// Reset forgets every entry.
func (h *History) Reset() {
	h.undo = nil
	h.redo = nil
}
