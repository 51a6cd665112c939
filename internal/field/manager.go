package field

import (
	"fmt"
	"sync"
)

// FieldManager owns the set of fields rendered onto a single screen. It
// rejects fields that overlap an existing field on the same row and
// preserves insertion order, which doubles as tab order for any field
// not otherwise sorted by a Navigator.
type FieldManager struct {
	mu     sync.Mutex
	fields []*ScreenField
	byName map[string]*ScreenField
}

// NewFieldManager returns an empty field set.
func NewFieldManager() *FieldManager {
	return &FieldManager{byName: make(map[string]*ScreenField)}
}

// Add inserts f, rejecting it with a FieldOverlap error if it shares a
// row with, and horizontally overlaps, any field already present.
func (m *FieldManager) Add(f *ScreenField) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.fields {
		if existing.Row == f.Row && columnsOverlap(existing, f) {
			return &Error{
				Kind:  FieldOverlap,
				Field: f.Name,
				Other: existing.Name,
				Msg:   fmt.Sprintf("row %d cols [%d,%d) collide with [%d,%d)", f.Row, f.Col, f.Col+f.Length, existing.Col, existing.Col+existing.Length),
			}
		}
	}
	m.fields = append(m.fields, f)
	m.byName[f.Name] = f
	return nil
}

func columnsOverlap(a, b *ScreenField) bool {
	aStart, aEnd := a.Col, a.Col+a.Length
	bStart, bEnd := b.Col, b.Col+b.Length
	return aStart < bEnd && bStart < aEnd
}

// Fields returns the field set in insertion order. The returned slice
// is a copy; mutating it does not affect the manager.
func (m *FieldManager) Fields() []*ScreenField {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ScreenField, len(m.fields))
	copy(out, m.fields)
	return out
}

// Get looks up a field by name.
func (m *FieldManager) Get(name string) (*ScreenField, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.byName[name]
	return f, ok
}

// FieldAt returns the field whose data range contains the given
// 0-indexed buffer address, used to route inbound modified-field data
// back to a field name. Per the 3270 stream shape, addr must fall
// within [field.addr0+1, field.addr0+1+length) -- inside the data
// region, not on the attribute byte itself.
func (m *FieldManager) FieldAt(addr int) (*ScreenField, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.fields {
		start, end := f.DataRange()
		if addr >= start && addr < end {
			return f, true
		}
	}
	return nil, false
}
