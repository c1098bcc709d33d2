// Package terminal holds the character grid a computer draws to.
//
// A State is a fixed-size grid of rows. Each row is three strings of equal
// length, counted in characters rather than bytes: the characters, their
// foreground colours and their background colours. Colours are single symbols from Colours, mapped to RGB values by
// the State's palette.
package terminal

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Colours is the alphabet of colour symbols, indexed by colour number.
const Colours = "0123456789abcdef"

// Symbols used to fill new cells.
const (
	DefaultFore byte = '0'
	DefaultBack byte = 'f'
)

var (
	ErrInvalidSize   = errors.New("terminal size must be positive")
	ErrRowRange      = errors.New("row out of range")
	ErrLineLength    = errors.New("line length does not match terminal width")
	ErrUnknownColour = errors.New("unknown colour")
)

// State is the contents of a terminal. It is not safe for concurrent use.
type State struct {
	SizeX, SizeY int

	Text []string
	Fore []string
	Back []string

	Palette map[byte]RGB

	CursorX, CursorY int
	CursorBlink      bool
	CurrentFore      byte
}

// New returns a blank terminal of the given size with the default palette.
func New(width, height int) (*State, error) {
	s := &State{
		Palette:     DefaultPalette(),
		CurrentFore: DefaultFore,
	}
	if err := s.Resize(width, height); err != nil {
		return nil, err
	}
	return s, nil
}

// Resize changes the grid size. Cells within both the old and new size keep
// their contents; rows and columns gained are blank. The cursor is left
// where it is, even if it now lies outside the grid.
func (s *State) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("resize to %dx%d: %w", width, height, ErrInvalidSize)
	}
	if width == s.SizeX && height == s.SizeY {
		return nil
	}

	s.Text = resizeRows(s.Text, width, height, ' ')
	s.Fore = resizeRows(s.Fore, width, height, rune(DefaultFore))
	s.Back = resizeRows(s.Back, width, height, rune(DefaultBack))
	s.SizeX, s.SizeY = width, height
	return nil
}

func resizeRows(rows []string, width, height int, fill rune) []string {
	blank := strings.Repeat(string(fill), width)
	resized := make([]string, height)
	for i := range resized {
		if i >= len(rows) {
			resized[i] = blank
			continue
		}
		row := []rune(rows[i])
		if len(row) >= width {
			resized[i] = string(row[:width])
		} else {
			resized[i] = string(row) + strings.Repeat(string(fill), width-len(row))
		}
	}
	return resized
}

// SetLine replaces a whole row. All three strings must be exactly SizeX
// characters long and the colour strings may only hold symbols from Colours.
func (s *State) SetLine(row int, text, fore, back string) error {
	if row < 0 || row >= s.SizeY {
		return fmt.Errorf("set line %d of %d: %w", row, s.SizeY, ErrRowRange)
	}
	textLen, foreLen, backLen := utf8.RuneCountInString(text), utf8.RuneCountInString(fore), utf8.RuneCountInString(back)
	if textLen != s.SizeX || foreLen != s.SizeX || backLen != s.SizeX {
		return fmt.Errorf("set line %d: got %d/%d/%d, want %d: %w",
			row, textLen, foreLen, backLen, s.SizeX, ErrLineLength)
	}
	if err := validColours(fore); err != nil {
		return fmt.Errorf("set line %d foreground: %w", row, err)
	}
	if err := validColours(back); err != nil {
		return fmt.Errorf("set line %d background: %w", row, err)
	}

	s.Text[row], s.Fore[row], s.Back[row] = text, fore, back
	return nil
}

// SetCursor moves the cursor and sets the colour it is drawn with.
func (s *State) SetCursor(x, y int, blink bool, colour int) error {
	symbol, err := Colour(colour)
	if err != nil {
		return err
	}
	s.CursorX, s.CursorY = x, y
	s.CursorBlink = blink
	s.CurrentFore = symbol
	return nil
}

// Colour returns the symbol for a colour number.
func Colour(index int) (byte, error) {
	if index < 0 || index >= len(Colours) {
		return 0, fmt.Errorf("colour %d: %w", index, ErrUnknownColour)
	}
	return Colours[index], nil
}

func validColours(line string) error {
	for i := 0; i < len(line); i++ {
		if strings.IndexByte(Colours, line[i]) < 0 {
			return fmt.Errorf("symbol %q at %d: %w", line[i], i, ErrUnknownColour)
		}
	}
	return nil
}
