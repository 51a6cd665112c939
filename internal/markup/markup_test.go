package markup

import "testing"

func intp(n int) *int { return &n }

func TestPositionedColoredText(t *testing.T) {
	els, err := Parse("[XY5,10][BLUE]Hello[/BLUE]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(els) != 1 {
		t.Fatalf("expected 1 element, got %d: %#v", len(els), els)
	}
	txt, ok := els[0].(Text)
	if !ok {
		t.Fatalf("expected Text element, got %T", els[0])
	}
	if txt.Content != "Hello" {
		t.Errorf("content = %q, want Hello", txt.Content)
	}
	if txt.Row == nil || txt.Col == nil || *txt.Row != 5 || *txt.Col != 10 {
		t.Errorf("position = (%v,%v), want (5,10)", txt.Row, txt.Col)
	}
	if txt.Color != ColorBlue {
		t.Errorf("color = %v, want blue", txt.Color)
	}
}

func TestNestedSameColorTagsBalance(t *testing.T) {
	els, err := Parse("[BLUE]A[BLUE]B[/BLUE]C[/BLUE]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(els) != 3 {
		t.Fatalf("expected 3 text runs, got %d: %#v", len(els), els)
	}
	want := []string{"A", "B", "C"}
	for i, el := range els {
		txt, ok := el.(Text)
		if !ok {
			t.Fatalf("element %d: expected Text, got %T", i, el)
		}
		if txt.Content != want[i] {
			t.Errorf("element %d content = %q, want %q", i, txt.Content, want[i])
		}
		if txt.Color != ColorBlue {
			t.Errorf("element %d color = %v, want blue", i, txt.Color)
		}
	}
}

func TestNestedAttributeInheritsOuterColor(t *testing.T) {
	els, err := Parse("[RED]a[BRIGHT]b[/BRIGHT]c[/RED]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(els) != 3 {
		t.Fatalf("expected 3 text runs, got %d", len(els))
	}
	b := els[1].(Text)
	if b.Color != ColorRed || !b.Bright {
		t.Errorf("nested run = %+v, want red+bright", b)
	}
	a := els[0].(Text)
	if a.Color != ColorRed || a.Bright {
		t.Errorf("outer run = %+v, want red, not bright", a)
	}
}

func TestFieldTag(t *testing.T) {
	els, err := Parse("[XY3,1][FIELD username,length=20,uppercase]joe[/FIELD]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(els) != 1 {
		t.Fatalf("expected 1 element, got %d: %#v", len(els), els)
	}
	f, ok := els[0].(Field)
	if !ok {
		t.Fatalf("expected Field, got %T", els[0])
	}
	if f.Name != "username" || f.Row != 3 || f.Col != 1 {
		t.Errorf("field = %+v, want name=username row=3 col=1", f)
	}
	if f.Length == nil || *f.Length != 20 {
		t.Errorf("length = %v, want 20", f.Length)
	}
	if !f.Uppercase {
		t.Error("expected uppercase attribute set")
	}
	if f.Default != "joe" {
		t.Errorf("default = %q, want joe", f.Default)
	}
}

func TestFieldDefaultsLengthFromContent(t *testing.T) {
	els, err := Parse("[XY1,1][FIELD code]ABCDE[/FIELD]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := els[0].(Field)
	if f.Length == nil || *f.Length != 5 {
		t.Errorf("length = %v, want 5", f.Length)
	}
}

func TestVariableSubstitution(t *testing.T) {
	src := Substitute("Welcome {user_id} to {system}", map[string]string{"user_id": "ABC123"}, map[string]string{"system": "NEO6"})
	if src != "Welcome ABC123 to NEO6" {
		t.Errorf("substituted = %q", src)
	}
}

func TestUnknownVariableLeftLiteral(t *testing.T) {
	src := Substitute("Hi {nope}", nil, nil)
	if src != "Hi {nope}" {
		t.Errorf("expected literal passthrough, got %q", src)
	}
}

func TestPositionOutOfBoundsError(t *testing.T) {
	_, err := Parse("[XY25,1]text")
	perr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Kind != PositionOutOfBounds {
		t.Errorf("kind = %v, want PositionOutOfBounds", perr.Kind)
	}
}

func TestUnmatchedClosingTagError(t *testing.T) {
	_, err := Parse("[BLUE]x[/RED]")
	perr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Kind != UnmatchedTag {
		t.Errorf("kind = %v, want UnmatchedTag", perr.Kind)
	}
}

func TestMissingClosingTagError(t *testing.T) {
	_, err := Parse("[BLUE]x")
	perr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Kind != UnmatchedTag {
		t.Errorf("kind = %v, want UnmatchedTag", perr.Kind)
	}
}

func TestLegacyAngleTagsAreLiteral(t *testing.T) {
	els, err := Parse("[XY1,1]<b>bold</b>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(els) != 1 {
		t.Fatalf("expected 1 element, got %d", len(els))
	}
	txt := els[0].(Text)
	if txt.Content != "<b>bold</b>" {
		t.Errorf("content = %q, want literal angle tags preserved", txt.Content)
	}
}

func TestCursorAdvancesAndWraps(t *testing.T) {
	els, err := Parse("[XY1,78]XYZW[FIELD f1][/FIELD]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	txt := els[0].(Text)
	if txt.Content != "XYZW" {
		t.Fatalf("content = %q", txt.Content)
	}
	fld := els[1].(Field)
	if fld.Row != 2 || fld.Col != 2 {
		t.Errorf("Field position = (%d,%d), want (2,2) after wrapping mid-screen", fld.Row, fld.Col)
	}
}

func TestCursorAdvancePastRow24IsClamped(t *testing.T) {
	els, err := Parse("[XY24,78]XYZW[FIELD f1][/FIELD]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	txt := els[0].(Text)
	if txt.Content != "XYZW" {
		t.Fatalf("content = %q", txt.Content)
	}
	fld := els[1].(Field)
	if fld.Row != 24 || fld.Col != 78 {
		t.Errorf("Field position = (%d,%d), want (24,78): advance past row 24 must clamp at the pre-advance position, not wrap to row 1", fld.Row, fld.Col)
	}
}

func TestColorByteValues(t *testing.T) {
	cases := map[Color]byte{
		ColorDefault: 0x00,
		ColorBlue:    0xF1,
		ColorWhite:   0xF7,
	}
	for c, want := range cases {
		if got := c.Byte(); got != want {
			t.Errorf("%v.Byte() = 0x%02x, want 0x%02x", c, got, want)
		}
	}
}
