package terminal

import (
	"fmt"
	"math"
)

// RGB is a palette entry.
type RGB struct {
	R, G, B uint8
}

// String formats the colour the way clients expect it, as "rgb(r,g,b)".
func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// Hex formats the colour as "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

var defaultPalette = [len(Colours)]RGB{
	{0xF0, 0xF0, 0xF0},
	{0xF2, 0xB2, 0x33},
	{0xE5, 0x7F, 0xD8},
	{0x99, 0xB2, 0xF2},
	{0xDE, 0xDE, 0x6C},
	{0x7F, 0xCC, 0x19},
	{0xF2, 0xB2, 0xCC},
	{0x4C, 0x4C, 0x4C},
	{0x99, 0x99, 0x99},
	{0x4C, 0x99, 0xB2},
	{0xB2, 0x66, 0xE5},
	{0x33, 0x66, 0xCC},
	{0x7F, 0x66, 0x4C},
	{0x57, 0xA6, 0x4E},
	{0xCC, 0x4C, 0x4C},
	{0x11, 0x11, 0x11},
}

// DefaultPalette returns a fresh copy of the standard sixteen colours.
func DefaultPalette() map[byte]RGB {
	palette := make(map[byte]RGB, len(Colours))
	for i, colour := range defaultPalette {
		palette[Colours[i]] = colour
	}
	return palette
}

// SetPaletteColour sets a palette entry from channels in the range 0 to 1.
// Values outside that range are clamped.
func (s *State) SetPaletteColour(colour int, r, g, b float64) error {
	return s.SetPaletteRGB(colour, channel(r), channel(g), channel(b))
}

// SetPaletteRGB sets a palette entry.
func (s *State) SetPaletteRGB(colour int, r, g, b uint8) error {
	symbol, err := Colour(colour)
	if err != nil {
		return err
	}
	if s.Palette == nil {
		s.Palette = DefaultPalette()
	}
	s.Palette[symbol] = RGB{R: r, G: g, B: b}
	return nil
}

func channel(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xFF
	}
	return uint8(v * 0xFF)
}
