package engine

import "strings"

// Key is a keyboard event as reported by the host.
type Key struct {
	Name  string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Meta  bool   `json:"meta"`
	Shift bool   `json:"shift"`
}

// HandleKey maps shortcuts onto editor operations and reports whether the
// key was bound. Bound keys that find nothing to act on still report true
// so the host can suppress the browser default.
func (e *Editor) HandleKey(k Key) bool {
	name := strings.ToLower(k.Name)
	mod := k.Ctrl || k.Meta

	switch {
	case !mod && (name == "delete" || name == "backspace"):
		e.DeleteActive()
	case mod && name == "d":
		e.Clone()
	case mod && name == "z" && k.Shift:
		e.Redo()
	case mod && name == "z":
		e.Undo()
	case mod && name == "y":
		e.Redo()
	case !mod && name == "escape":
		e.ClearSelection()
	default:
		return false
	}
	return true
}
