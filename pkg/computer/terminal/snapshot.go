package terminal

// Snapshot is the wire form of a terminal, sent to clients whenever it is
// opened or flushed.
type Snapshot struct {
	Text        []string          `json:"text" cbor:"text"`
	Fore        []string          `json:"fore" cbor:"fore"`
	Back        []string          `json:"back" cbor:"back"`
	Palette     map[string]string `json:"palette" cbor:"palette"`
	CurrentFore string            `json:"currentFore" cbor:"currentFore"`
	SizeX       int               `json:"sizeX" cbor:"sizeX"`
	SizeY       int               `json:"sizeY" cbor:"sizeY"`
	CursorX     int               `json:"cursorX" cbor:"cursorX"`
	CursorY     int               `json:"cursorY" cbor:"cursorY"`
	CursorBlink bool              `json:"cursorBlink" cbor:"cursorBlink"`
}

// Snapshot copies the terminal into its wire form. Later changes to the
// State do not affect the returned value.
func (s *State) Snapshot() Snapshot {
	palette := make(map[string]string, len(s.Palette))
	for symbol, colour := range s.Palette {
		palette[string(symbol)] = colour.String()
	}

	return Snapshot{
		Text:        append([]string(nil), s.Text...),
		Fore:        append([]string(nil), s.Fore...),
		Back:        append([]string(nil), s.Back...),
		Palette:     palette,
		CurrentFore: string(s.CurrentFore),
		SizeX:       s.SizeX,
		SizeY:       s.SizeY,
		CursorX:     s.CursorX,
		CursorY:     s.CursorY,
		CursorBlink: s.CursorBlink,
	}
}
