package markup

import "strings"

// Color is one of the closed set of 3270 extended-highlighting colors.
type Color int

const (
	ColorDefault Color = iota
	ColorBlue
	ColorRed
	ColorPink
	ColorGreen
	ColorTurquoise
	ColorYellow
	ColorWhite
)

var colorNames = map[string]Color{
	"DEFAULT":    ColorDefault,
	"BLUE":       ColorBlue,
	"RED":        ColorRed,
	"PINK":       ColorPink,
	"GREEN":      ColorGreen,
	"TURQUOISE":  ColorTurquoise,
	"YELLOW":     ColorYellow,
	"WHITE":      ColorWhite,
}

// byteValues maps each Color to its 3270 foreground attribute byte.
var byteValues = [...]byte{
	ColorDefault:   0x00,
	ColorBlue:      0xF1,
	ColorRed:       0xF2,
	ColorPink:      0xF3,
	ColorGreen:     0xF4,
	ColorTurquoise: 0xF5,
	ColorYellow:    0xF6,
	ColorWhite:     0xF7,
}

// Byte returns the 3270 Set-Attribute color value for c.
func (c Color) Byte() byte { return byteValues[c] }

// ParseColor resolves a tag name (case-insensitive) to a Color. The
// second return value is false if name is not one of the closed set.
func ParseColor(name string) (Color, bool) {
	c, ok := colorNames[strings.ToUpper(strings.TrimSpace(name))]
	return c, ok
}

func (c Color) String() string {
	for name, v := range colorNames {
		if v == c {
			return name
		}
	}
	return "DEFAULT"
}
