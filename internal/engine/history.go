package engine

import (
	"bytes"
	"fmt"

	"github.com/certdesk/certdesk/backend-go/internal/document"
)

const DefaultHistoryDepth = 60

// History keeps bounded undo/redo stacks of canonical document snapshots.
// past[0] is the undo floor and is never popped.
type History struct {
	depth  int
	past   [][]byte
	future [][]byte
}

func NewHistory(depth int) *History {
	if depth < 1 {
		depth = DefaultHistoryDepth
	}
	return &History{depth: depth}
}

// Reset discards both stacks and makes doc the new floor.
func (h *History) Reset(doc *document.Document) error {
	snap, err := document.Marshal(doc)
	if err != nil {
		return fmt.Errorf("snapshot document: %w", err)
	}
	h.past = [][]byte{snap}
	h.future = nil
	return nil
}

// Commit records doc if it differs from the latest snapshot. It reports
// whether a new entry was pushed.
func (h *History) Commit(doc *document.Document) (bool, error) {
	snap, err := document.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("snapshot document: %w", err)
	}
	if n := len(h.past); n > 0 && bytes.Equal(h.past[n-1], snap) {
		return false, nil
	}
	h.past = append(h.past, snap)
	h.future = nil
	if over := len(h.past) - h.depth; over > 0 {
		h.past = append(h.past[:0], h.past[over:]...)
	}
	return true, nil
}

// Undo returns the document to install, or false at the floor.
func (h *History) Undo() (*document.Document, bool) {
	if len(h.past) <= 1 {
		return nil, false
	}
	top := h.past[len(h.past)-1]
	doc, err := document.Unmarshal(h.past[len(h.past)-2])
	if err != nil {
		return nil, false
	}
	h.past = h.past[:len(h.past)-1]
	h.future = append(h.future, top)
	return doc, true
}

// Redo returns the document to install, or false when nothing was undone.
func (h *History) Redo() (*document.Document, bool) {
	if len(h.future) == 0 {
		return nil, false
	}
	top := h.future[len(h.future)-1]
	doc, err := document.Unmarshal(top)
	if err != nil {
		return nil, false
	}
	h.future = h.future[:len(h.future)-1]
	h.past = append(h.past, top)
	return doc, true
}

func (h *History) CanUndo() bool { return len(h.past) > 1 }
func (h *History) CanRedo() bool { return len(h.future) > 0 }

// Len reports the number of snapshots on the undo stack, floor included.
func (h *History) Len() int { return len(h.past) }

func (h *History) Depth() int { return h.depth }
