// Package field implements the 3270 input field model: per-field value
// validation, an overlap-checking field set, and a tab-order navigator.
package field

import "fmt"

// ErrorKind classifies a field model failure.
type ErrorKind int

const (
	FieldNotFound ErrorKind = iota
	InvalidFieldValue
	FieldOverlap
	ValidationError
)

func (k ErrorKind) String() string {
	switch k {
	case FieldNotFound:
		return "FieldNotFound"
	case InvalidFieldValue:
		return "InvalidFieldValue"
	case FieldOverlap:
		return "FieldOverlap"
	case ValidationError:
		return "ValidationError"
	default:
		return "Unknown"
	}
}

// Error reports a field model failure. Field and Other are populated
// for FieldOverlap (the incoming field, and the existing field it
// collides with); otherwise only Field is set.
type Error struct {
	Kind  ErrorKind
	Field string
	Other string
	Msg   string
}

func (e *Error) Error() string {
	if e.Other != "" {
		return fmt.Sprintf("%s: %s overlaps %s: %s", e.Kind, e.Field, e.Other, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Msg)
}

// Attributes are the field-level flags carried from a parsed markup
// Field tag through to rendering and input validation.
type Attributes struct {
	Protected bool
	Numeric   bool
	Hidden    bool
	Uppercase bool
}

// ScreenField is the assembler-side view of an input field: a fixed
// screen position and length, plus its live value.
type ScreenField struct {
	Name       string
	Row, Col   int // 1-indexed, matching the markup-level coordinate space
	Length     int
	Value      string
	Attributes Attributes
}

// New validates placement bounds and returns a ScreenField seeded with
// initial (itself run through Validate, so truncation/casing apply to
// the default value exactly as they would to a later edit).
func New(name string, row, col, length int, attrs Attributes, initial string) (*ScreenField, error) {
	if row < 1 || row > 24 {
		return nil, &Error{Kind: ValidationError, Field: name, Msg: fmt.Sprintf("row %d out of [1,24]", row)}
	}
	if col < 1 || col > 80 {
		return nil, &Error{Kind: ValidationError, Field: name, Msg: fmt.Sprintf("col %d out of [1,80]", col)}
	}
	if length < 1 || col+length > 81 {
		return nil, &Error{Kind: ValidationError, Field: name, Msg: fmt.Sprintf("length %d at col %d exceeds row width", length, col)}
	}
	f := &ScreenField{Name: name, Row: row, Col: col, Length: length, Attributes: attrs}
	v, err := f.Validate(initial)
	if err != nil {
		return nil, err
	}
	f.Value = v
	return f, nil
}

// addr0 is the 0-indexed 3270 buffer address of the field's attribute
// byte: (row-1)*80 + (col-1).
func (f *ScreenField) addr0() int { return (f.Row-1)*80 + (f.Col - 1) }

// DataRange returns the half-open 0-indexed buffer address interval
// occupied by the field's editable data, i.e. everything after its
// attribute byte: [addr0+1, addr0+1+length).
func (f *ScreenField) DataRange() (start, end int) {
	start = f.addr0() + 1
	return start, start + f.Length
}

// dataStart is the 0-indexed buffer address of the field's first data
// column -- where the cursor lands after a Tab to this field.
func (f *ScreenField) dataStart() int {
	start, _ := f.DataRange()
	return start
}

// Validate runs an input value through the field's edit rules without
// committing it: truncate to Length, reject non-numeric characters if
// Numeric, fold to uppercase if Uppercase, and reject any write at all
// if Protected.
func (f *ScreenField) Validate(input string) (string, error) {
	if f.Attributes.Protected && input != "" {
		return "", &Error{Kind: InvalidFieldValue, Field: f.Name, Msg: "field is protected"}
	}
	runes := []rune(input)
	if len(runes) > f.Length {
		runes = runes[:f.Length]
	}
	if f.Attributes.Numeric {
		for _, r := range runes {
			if !(r >= '0' && r <= '9') && r != '.' && r != '-' {
				return "", &Error{Kind: ValidationError, Field: f.Name, Msg: fmt.Sprintf("non-numeric character %q", r)}
			}
		}
	}
	out := string(runes)
	if f.Attributes.Uppercase {
		out = toUpperASCII(out)
	}
	return out, nil
}

// SetValue validates input and, if it passes, commits it as the
// field's current value.
func (f *ScreenField) SetValue(input string) error {
	v, err := f.Validate(input)
	if err != nil {
		return err
	}
	f.Value = v
	return nil
}

func toUpperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
