package field

import "sort"

// FieldNavigator walks the unprotected fields of a screen in buffer
// address order for tab / back-tab key handling. It maintains its own
// 0-indexed cursor, independent of the fields' 1-indexed coordinates.
type FieldNavigator struct {
	fields []*ScreenField // unprotected only, sorted by 0-indexed addr
	row    int
	col    int
}

// NewFieldNavigator builds a navigator over the unprotected fields
// currently in m, sorted by row*80+col ascending.
func NewFieldNavigator(m *FieldManager) *FieldNavigator {
	var fields []*ScreenField
	for _, f := range m.Fields() {
		if !f.Attributes.Protected {
			fields = append(fields, f)
		}
	}
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].dataStart() < fields[j].dataStart()
	})
	return &FieldNavigator{fields: fields}
}

// SetCursor places the navigator's 0-indexed cursor at (row, col).
func (n *FieldNavigator) SetCursor(row, col int) {
	n.row, n.col = row, col
}

// Cursor returns the navigator's current 0-indexed cursor position.
func (n *FieldNavigator) Cursor() (row, col int) { return n.row, n.col }

func (n *FieldNavigator) cursorAddr() int { return n.row*80 + n.col }

// landOn places the cursor one column right of f's attribute byte --
// the first data column of the field -- and returns f.
func (n *FieldNavigator) landOn(f *ScreenField) *ScreenField {
	n.row = f.Row - 1
	n.col = f.Col
	return f
}

// Tab moves to the next unprotected field whose data start address is
// strictly greater than the cursor's, wrapping to the first field if
// the cursor is at or past the last one. It reports false if there are
// no unprotected fields at all. Comparing against each field's data
// start (not its attribute byte) is what keeps repeated Tab/BackTab
// from re-landing on the field the cursor is already sitting in.
func (n *FieldNavigator) Tab() (*ScreenField, bool) {
	if len(n.fields) == 0 {
		return nil, false
	}
	cur := n.cursorAddr()
	for _, f := range n.fields {
		if f.dataStart() > cur {
			return n.landOn(f), true
		}
	}
	return n.landOn(n.fields[0]), true
}

// BackTab is the mirror image of Tab: it moves to the nearest
// unprotected field whose data start address is strictly less than the
// cursor's, wrapping to the last field if the cursor is at or before
// the first one.
func (n *FieldNavigator) BackTab() (*ScreenField, bool) {
	if len(n.fields) == 0 {
		return nil, false
	}
	cur := n.cursorAddr()
	for i := len(n.fields) - 1; i >= 0; i-- {
		if n.fields[i].dataStart() < cur {
			return n.landOn(n.fields[i]), true
		}
	}
	return n.landOn(n.fields[len(n.fields)-1]), true
}

// CurrentField returns the unprotected field whose data range contains
// the navigator's cursor, if any.
func (n *FieldNavigator) CurrentField() (*ScreenField, bool) {
	cur := n.cursorAddr()
	for _, f := range n.fields {
		start, end := f.DataRange()
		if cur >= start && cur < end {
			return f, true
		}
	}
	return nil, false
}
