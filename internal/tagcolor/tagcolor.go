// Package tagcolor maps tag names onto a fixed colour palette.
//
// The mapping hashes the UTF-16 code units of the tag with the classic
// "hash * 31 + c" string hash in wrapping 32-bit arithmetic, so a tag keeps
// its colour across processes and matches colours produced by browser code
// using the same hash.
package tagcolor

import (
	"fmt"
	"unicode/utf16"

	"github.com/lucasb-eyer/go-colorful"
)

// Size is the number of colours in a Palette.
const Size = 8

// Palette is an ordered set of hex colours. It is a value type; copies
// never alias.
type Palette [Size]string

var defaultPalette = Palette{
	"#093145",
	"#107896",
	"#60d878",
	"#DB504A",
	"#9A2617",
	"#58d4c8",
	"#747C92",
	"#c16ed6",
}

// Default returns the built-in palette.
func Default() Palette {
	return defaultPalette
}

// NewPalette builds a palette from exactly Size hex colours ("#rrggbb").
func NewPalette(hexes []string) (Palette, error) {
	var p Palette
	if len(hexes) != Size {
		return p, fmt.Errorf("tagcolor: palette needs %d colours, got %d", Size, len(hexes))
	}
	for i, h := range hexes {
		if _, err := colorful.Hex(h); err != nil {
			return p, fmt.Errorf("tagcolor: colour %d %q: %w", i, h, err)
		}
		p[i] = h
	}
	return p, nil
}

// Hash returns the wrapped 32-bit hash of tag's UTF-16 code units.
func Hash(tag string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(tag)) {
		h = h<<5 - h + int32(u)
	}
	return h
}

// Index returns the palette slot for tag.
func (p Palette) Index(tag string) int {
	return slot(Hash(tag), len(p))
}

// ColorFor returns the colour assigned to tag.
func (p Palette) ColorFor(tag string) string {
	return p[p.Index(tag)]
}

// Foreground returns a text colour readable on top of ColorFor(tag).
func (p Palette) Foreground(tag string) string {
	return foreground(p.ColorFor(tag))
}

// ColorFor returns the colour assigned to tag by the default palette.
func ColorFor(tag string) string {
	return defaultPalette.ColorFor(tag)
}

// slot widens before taking the absolute value so MinInt32 maps to 2^31.
func slot(h int32, n int) int {
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return int(v % int64(n))
}

const (
	darkText  = "#1b1b1b"
	lightText = "#ffffff"
)

// foreground picks dark or light text using the WCAG luminance threshold.
func foreground(hex string) string {
	c, err := colorful.Hex(hex)
	if err != nil {
		return lightText
	}
	r, g, b := c.LinearRgb()
	if 0.2126*r+0.7152*g+0.0722*b > 0.179 {
		return darkText
	}
	return lightText
}
