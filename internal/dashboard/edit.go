package dashboard

import (
	"context"
	"strings"
)

type EditMode int

const (
	Viewing EditMode = iota
	Editing
)

func (m EditMode) String() string {
	if m == Editing {
		return "editing"
	}
	return "viewing"
}

// EditState says whether the expense table shows the category editor, and
// on which row. The zero value is Viewing.
type EditState struct {
	mode  EditMode
	rowID int64
}

// Select opens the category editor on a row.
func (e EditState) Select(id int64) EditState {
	return EditState{mode: Editing, rowID: id}
}

// Blur closes the editor without saving.
func (e EditState) Blur() EditState {
	return EditState{}
}

func (e EditState) Mode() EditMode {
	return e.mode
}

// Row returns the row being edited.
func (e EditState) Row() (int64, bool) {
	return e.rowID, e.mode == Editing
}

// IsEditing reports whether the editor is open on the given row.
func (e EditState) IsEditing(id int64) bool {
	return e.mode == Editing && e.rowID == id
}

// Choose saves the chosen category for the edited row and returns to
// Viewing whatever the outcome. The empty placeholder option saves nothing.
func (e EditState) Choose(ctx context.Context, store *Store, category string) (EditState, error) {
	id, ok := e.Row()
	category = strings.TrimSpace(category)
	if !ok || category == "" {
		return e.Blur(), nil
	}
	return e.Blur(), store.UpdateCategory(ctx, id, category)
}
