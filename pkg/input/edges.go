package input

// Pressed holds the bits that went from released to pressed on one
// update.
type Pressed struct {
	Buttons uint16
	Dpad    uint8
	Misc    uint8
}

// Button reports a rising edge on any bit of b.
func (p Pressed) Button(b uint16) bool { return p.Buttons&b != 0 }

// DpadDir reports a rising edge on any d-pad bit of d.
func (p Pressed) DpadDir(d uint8) bool { return p.Dpad&d != 0 }

// MiscButton reports a rising edge on any misc bit of m.
func (p Pressed) MiscButton(m uint8) bool { return p.Misc&m != 0 }

// Any reports whether anything was pressed.
func (p Pressed) Any() bool { return p.Buttons|uint16(p.Dpad)|uint16(p.Misc) != 0 }

// Edges turns successive states into rising edges.
type Edges struct {
	prev   State
	reseed bool
}

// Update records s and returns the bits newly pressed since the last
// update. The first update after Reset only seeds the previous state.
func (e *Edges) Update(s State) Pressed {
	if e.reseed {
		e.prev = s
		e.reseed = false
		return Pressed{}
	}
	p := Pressed{
		Buttons: s.Buttons &^ e.prev.Buttons,
		Dpad:    s.Dpad &^ e.prev.Dpad,
		Misc:    s.Misc &^ e.prev.Misc,
	}
	e.prev = s
	return p
}

// Reset forgets the previous state. Buttons already held at the next
// update do not register until they are released and pressed again.
func (e *Edges) Reset() {
	e.prev = State{}
	e.reseed = true
}
