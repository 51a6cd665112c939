// Package codec provides EBCDIC <-> ASCII byte translation for the 3270
// data stream. Translation is pure and stateless: callers pass a byte
// slice in, get a same-length byte slice out.
package codec

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Codepage converts bytes between a host EBCDIC code page and ASCII.
// Both directions are length-preserving.
type Codepage interface {
	// ToHost encodes ASCII bytes into EBCDIC bytes for transmission to
	// the terminal.
	ToHost(ascii []byte) []byte

	// FromHost decodes EBCDIC bytes received from the terminal into
	// ASCII bytes.
	FromHost(ebcdic []byte) []byte

	// ID returns the code page name, e.g. "037".
	ID() string
}

type table struct {
	id       string
	toHost   [256]byte // ascii byte -> ebcdic byte
	fromHost [256]byte // ebcdic byte -> ascii byte
}

func (t *table) ToHost(ascii []byte) []byte {
	out := make([]byte, len(ascii))
	for i, b := range ascii {
		out[i] = t.toHost[b]
	}
	return out
}

func (t *table) FromHost(ebcdic []byte) []byte {
	out := make([]byte, len(ebcdic))
	for i, b := range ebcdic {
		out[i] = t.fromHost[b]
	}
	return out
}

func (t *table) ID() string { return t.id }

// buildTable derives the 256-entry lookup tables for a charmap code page
// by round-tripping every byte value through its encoder/decoder once.
// This keeps the codec itself a flat array lookup (pure, with one output
// slice allocated per call) while reusing charmap's published EBCDIC tables instead of
// hand-transcribing them.
func buildTable(id string, cm *charmap.Charmap) *table {
	t := &table{id: id}

	dec := cm.NewDecoder()
	enc := cm.NewEncoder()

	for i := 0; i < 256; i++ {
		// EBCDIC byte i decodes to some Unicode rune. Code points in
		// 0..255 map onto a single Latin-1/ASCII byte directly; anything
		// wider (rare, outside the printable set the spec guarantees)
		// falls back to the input byte so the table stays total.
		t.fromHost[i] = byte(i)
		if out, _, err := transform.Bytes(dec, []byte{byte(i)}); err == nil && len(out) > 0 {
			if r, _ := utf8.DecodeRune(out); r != utf8.RuneError && r <= 0xFF {
				t.fromHost[i] = byte(r)
			}
		}
	}

	for i := 0; i < 256; i++ {
		t.toHost[i] = byte(i)
		if out, _, err := transform.Bytes(enc, []byte{byte(i)}); err == nil && len(out) > 0 {
			t.toHost[i] = out[0]
		}
	}

	return t
}

// CP037 is the default EBCDIC code page: IBM CP 037, US English.
var CP037 Codepage = buildTable("037", charmap.CodePage037)

var defaultCodepage = CP037

// SetDefault changes the package-level default code page used by the
// package-level ToHost/FromHost helpers. This is a global setting; most
// callers should leave it at CP037 and only change it during process
// initialization.
func SetDefault(cp Codepage) {
	defaultCodepage = cp
}

// ToHost encodes ASCII bytes to EBCDIC using the default code page.
func ToHost(ascii []byte) []byte { return defaultCodepage.ToHost(ascii) }

// FromHost decodes EBCDIC bytes to ASCII using the default code page.
func FromHost(ebcdic []byte) []byte { return defaultCodepage.FromHost(ebcdic) }
