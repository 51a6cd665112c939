// Package tnstream assembles a parsed markup element list into an
// outbound 3270 data stream, and can walk a stream back to check it
// has the expected shape.
package tnstream

import (
	"bytes"
	"fmt"

	"github.com/neo6/tn3270gw/internal/codec"
	"github.com/neo6/tn3270gw/internal/field"
	"github.com/neo6/tn3270gw/internal/markup"
)

// Order and command bytes recognized by the assembler and verifier.
const (
	OrderSBA = 0x11
	OrderSF  = 0x1D
	OrderSFE = 0x29
	OrderSA  = 0x28
	OrderIC  = 0x13

	CmdEraseWrite = 0xF5

	// WCC resets the keyboard, resets MDT, and unlocks the keyboard.
	// Kept stable rather than switching to 0xFC per-screen.
	WCC = 0xC0

	attrProtected  = 0x20
	attrNumeric    = 0x10
	attrNonDisplay = 0x0C

	saTypeColor     = 0x42
	saTypeHighlight = 0x41

	highlightBright    = 0xF8
	highlightBlink     = 0xF1
	highlightUnderline = 0xF4
)

// bufAddr encodes a 0-indexed (row, col) into its two-byte 12-bit
// buffer address form: each 6-bit half is OR'd with 0x40 so both bytes
// land at >= 0x40, which is how a buffer address survives binary
// telnet transparency without colliding with IAC (0xFF) or any order
// byte (all of which are < 0x40).
func bufAddr(row, col int) []byte {
	addr := row*80 + col
	hi := byte((addr>>6)&0x3F) | 0x40
	lo := byte(addr&0x3F) | 0x40
	return []byte{hi, lo}
}

func sba(row, col int) []byte {
	return append([]byte{OrderSBA}, bufAddr(row, col)...)
}

// startField renders a field's attribute byte from its flags: the
// protected, numeric, and non-display bits combine independently, per
// the 3270 field attribute byte layout (0x20 protected, 0x10 numeric,
// 0x0C non-display).
func startField(attrs field.Attributes) []byte {
	var b byte
	if attrs.Protected {
		b |= attrProtected
	}
	if attrs.Numeric {
		b |= attrNumeric
	}
	if attrs.Hidden {
		b |= attrNonDisplay
	}
	return []byte{OrderSF, b}
}

func protectedAttr() field.Attributes { return field.Attributes{Protected: true} }

// Assemble renders a parsed element list into an outbound 3270 data
// stream and the FieldManager describing every field it placed. cp
// encodes Text and Field default content to the host code page.
func Assemble(elements []markup.Element, cp codec.Codepage) ([]byte, *field.FieldManager, error) {
	var buf bytes.Buffer
	fm := field.NewFieldManager()

	buf.WriteByte(CmdEraseWrite)
	buf.WriteByte(WCC)

	// Initial protected anchor establishes a baseline at (0,0).
	buf.Write(sba(0, 0))
	buf.Write(startField(protectedAttr()))

	var firstUnprotected *field.ScreenField

	for _, el := range elements {
		switch e := el.(type) {
		case markup.Text:
			if e.Row != nil && e.Col != nil {
				buf.Write(sba(*e.Row-1, *e.Col-1))
			}
			if e.Color != markup.ColorDefault {
				buf.Write([]byte{OrderSA, saTypeColor, e.Color.Byte()})
			}
			if h, ok := highlightByte(e); ok {
				buf.Write([]byte{OrderSA, saTypeHighlight, h})
			}
			buf.Write(cp.ToHost([]byte(e.Content)))

		case markup.Field:
			attrs := field.Attributes{
				Protected: e.Protected,
				Numeric:   e.Numeric,
				Hidden:    e.Hidden,
				Uppercase: e.Uppercase,
			}
			buf.Write(sba(e.Row-1, e.Col-1))
			buf.Write(startField(attrs))
			if e.Default != "" {
				buf.Write(cp.ToHost([]byte(e.Default)))
			}

			length := 1
			if e.Length != nil {
				length = *e.Length
			}
			sf, err := field.New(e.Name, e.Row, e.Col, length, attrs, e.Default)
			if err != nil {
				return nil, nil, err
			}
			if err := fm.Add(sf); err != nil {
				return nil, nil, err
			}
			if !e.Protected && firstUnprotected == nil {
				firstUnprotected = sf
			}
		}
	}

	// Terminal protected anchor bounds the last field.
	buf.Write(sba(23, 79))
	buf.Write(startField(protectedAttr()))

	if firstUnprotected != nil {
		buf.Write(sba(firstUnprotected.Row-1, firstUnprotected.Col-1))
		buf.WriteByte(OrderIC)
	}

	return buf.Bytes(), fm, nil
}

func highlightByte(t markup.Text) (byte, bool) {
	switch {
	case t.Bright:
		return highlightBright, true
	case t.Blink:
		return highlightBlink, true
	case t.Underline:
		return highlightUnderline, true
	default:
		return 0, false
	}
}

// Verify walks a generated stream and checks its overall shape: it
// must open with the Erase/Write command and a WCC byte, and every
// subsequent order byte -- any byte < 0x40, since CP037-encoded
// visible text never produces one -- must be one of the five
// recognized orders with the right number of operand bytes.
func Verify(stream []byte) error {
	if len(stream) < 2 {
		return fmt.Errorf("tnstream: stream too short to hold a command and WCC")
	}
	if stream[0] != CmdEraseWrite {
		return fmt.Errorf("tnstream: expected Erase/Write command 0x%02x, got 0x%02x", CmdEraseWrite, stream[0])
	}

	i := 2
	for i < len(stream) {
		b := stream[i]
		if b >= 0x40 {
			i++
			continue
		}
		switch b {
		case OrderSBA:
			if i+2 >= len(stream) {
				return fmt.Errorf("tnstream: truncated SBA at offset %d", i)
			}
			i += 3
		case OrderSF:
			if i+1 >= len(stream) {
				return fmt.Errorf("tnstream: truncated SF at offset %d", i)
			}
			i += 2
		case OrderSFE:
			if i+1 >= len(stream) {
				return fmt.Errorf("tnstream: truncated SFE at offset %d", i)
			}
			pairs := int(stream[i+1])
			need := 2 + pairs*2
			if i+need > len(stream) {
				return fmt.Errorf("tnstream: truncated SFE at offset %d", i)
			}
			i += need
		case OrderSA:
			if i+2 >= len(stream) {
				return fmt.Errorf("tnstream: truncated SA at offset %d", i)
			}
			i += 3
		case OrderIC:
			i++
		default:
			return fmt.Errorf("tnstream: unrecognized order byte 0x%02x at offset %d", b, i)
		}
	}
	return nil
}
