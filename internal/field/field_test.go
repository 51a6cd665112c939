package field

import "testing"

func TestValidateTruncates(t *testing.T) {
	f, err := New("note", 1, 1, 5, Attributes{}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := f.Validate("abcdefgh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "abcde" {
		t.Errorf("got %q, want truncated to 5 chars", v)
	}
}

func TestValidateNumericRejectsLetters(t *testing.T) {
	f, _ := New("amount", 1, 1, 6, Attributes{Numeric: true}, "")
	if _, err := f.Validate("12a.34"); err == nil {
		t.Fatal("expected error for non-numeric character")
	}
	v, err := f.Validate("12.-34")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "12.-34" {
		t.Errorf("got %q", v)
	}
}

func TestValidateUppercaseFolds(t *testing.T) {
	f, _ := New("code", 1, 1, 10, Attributes{Uppercase: true}, "")
	v, err := f.Validate("abcXYZ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ABCXYZ" {
		t.Errorf("got %q, want ABCXYZ", v)
	}
}

func TestValidateProtectedRejectsWrite(t *testing.T) {
	f, _ := New("label", 1, 1, 10, Attributes{Protected: true}, "")
	if _, err := f.Validate("hello"); err == nil {
		t.Fatal("expected error writing to protected field")
	}
	if _, err := f.Validate(""); err != nil {
		t.Fatalf("empty write to protected field should not error: %v", err)
	}
}

func TestNewRejectsOutOfBoundsPlacement(t *testing.T) {
	if _, err := New("x", 25, 1, 5, Attributes{}, ""); err == nil {
		t.Fatal("expected error for row out of [1,24]")
	}
	if _, err := New("x", 1, 78, 5, Attributes{}, ""); err == nil {
		t.Fatal("expected error for field extending past column 80")
	}
}

func TestFieldManagerRejectsOverlap(t *testing.T) {
	m := NewFieldManager()
	a, _ := New("a", 5, 10, 8, Attributes{}, "")
	b, _ := New("b", 5, 12, 2, Attributes{}, "")
	if err := m.Add(a); err != nil {
		t.Fatalf("unexpected error adding a: %v", err)
	}
	err := m.Add(b)
	if err == nil {
		t.Fatal("expected FieldOverlap error")
	}
	ferr, ok := err.(*Error)
	if !ok || ferr.Kind != FieldOverlap {
		t.Fatalf("got %v, want FieldOverlap", err)
	}
	if ferr.Field != "b" || ferr.Other != "a" {
		t.Errorf("error names = (%s,%s), want (b,a)", ferr.Field, ferr.Other)
	}
}

func TestFieldManagerAllowsAdjacentFields(t *testing.T) {
	m := NewFieldManager()
	a, _ := New("a", 5, 10, 8, Attributes{}, "")
	b, _ := New("b", 5, 18, 2, Attributes{}, "")
	if err := m.Add(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Add(b); err != nil {
		t.Fatalf("adjacent, non-overlapping fields should be accepted: %v", err)
	}
}

func TestFieldManagerPreservesInsertionOrder(t *testing.T) {
	m := NewFieldManager()
	names := []string{"third", "first", "second"}
	rows := []int{3, 1, 2}
	for i, n := range names {
		f, _ := New(n, rows[i], 1, 5, Attributes{}, "")
		if err := m.Add(f); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	got := m.Fields()
	for i, want := range names {
		if got[i].Name != want {
			t.Errorf("position %d = %s, want %s", i, got[i].Name, want)
		}
	}
}

func TestFieldAtMapsDataRange(t *testing.T) {
	m := NewFieldManager()
	f, _ := New("x", 2, 5, 4, Attributes{}, "abcd")
	m.Add(f)

	start, end := f.DataRange()
	if got, ok := m.FieldAt(start); !ok || got.Name != "x" {
		t.Errorf("FieldAt(%d) = %v,%v, want x", start, got, ok)
	}
	if _, ok := m.FieldAt(end); ok {
		t.Errorf("FieldAt(%d) should be out of range (exclusive end)", end)
	}
	if _, ok := m.FieldAt(start - 1); ok {
		t.Error("FieldAt on the attribute byte itself should not match")
	}
}

func TestNavigatorTabWrapsAndSkipsProtected(t *testing.T) {
	m := NewFieldManager()
	a, _ := New("a", 1, 10, 5, Attributes{}, "")
	p, _ := New("p", 1, 20, 5, Attributes{Protected: true}, "")
	b, _ := New("b", 2, 5, 5, Attributes{}, "")
	for _, f := range []*ScreenField{a, p, b} {
		if err := m.Add(f); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	nav := NewFieldNavigator(m)
	nav.SetCursor(0, 0)

	f1, ok := nav.Tab()
	if !ok || f1.Name != "a" {
		t.Fatalf("first tab = %v,%v, want a", f1, ok)
	}
	f2, ok := nav.Tab()
	if !ok || f2.Name != "b" {
		t.Fatalf("second tab = %v,%v, want b (protected field p must be skipped)", f2, ok)
	}
	f3, ok := nav.Tab()
	if !ok || f3.Name != "a" {
		t.Fatalf("third tab should wrap to a, got %v,%v", f3, ok)
	}
}

func TestNavigatorBackTabMirrorsTab(t *testing.T) {
	m := NewFieldManager()
	a, _ := New("a", 1, 10, 5, Attributes{}, "")
	b, _ := New("b", 2, 5, 5, Attributes{}, "")
	m.Add(a)
	m.Add(b)

	nav := NewFieldNavigator(m)
	nav.SetCursor(23, 79)

	f1, ok := nav.BackTab()
	if !ok || f1.Name != "b" {
		t.Fatalf("first back-tab = %v,%v, want b", f1, ok)
	}
	f2, ok := nav.BackTab()
	if !ok || f2.Name != "a" {
		t.Fatalf("second back-tab = %v,%v, want a", f2, ok)
	}
}

func TestNavigatorLandsOneColumnRightOfAttributeByte(t *testing.T) {
	m := NewFieldManager()
	a, _ := New("a", 3, 10, 5, Attributes{}, "")
	m.Add(a)
	nav := NewFieldNavigator(m)
	nav.SetCursor(0, 0)
	f, ok := nav.Tab()
	if !ok || f.Name != "a" {
		t.Fatalf("tab = %v,%v", f, ok)
	}
	row, col := nav.Cursor()
	if row != 2 || col != 10 {
		t.Errorf("cursor = (%d,%d), want (2,10)", row, col)
	}
}

func TestCurrentField(t *testing.T) {
	m := NewFieldManager()
	a, _ := New("a", 1, 10, 5, Attributes{}, "")
	m.Add(a)
	nav := NewFieldNavigator(m)
	nav.SetCursor(0, 11)
	f, ok := nav.CurrentField()
	if !ok || f.Name != "a" {
		t.Fatalf("CurrentField = %v,%v, want a", f, ok)
	}
	nav.SetCursor(5, 5)
	if _, ok := nav.CurrentField(); ok {
		t.Error("expected no current field away from any field")
	}
}
