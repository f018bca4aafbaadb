package midi

// Decoder turns a MIDI 1.0 byte stream into Events one byte at a time.
//
// It keeps running status, so a data byte that arrives without a new status
// byte reuses the last channel voice status. Bytes that cannot be framed are
// dropped and the decoder waits for the next status byte. Decode never
// allocates; the zero value is ready to use.
type Decoder struct {
	status  uint8 // running status, 0 = none
	need    uint8 // data bytes expected for status
	have    uint8 // data bytes accumulated
	data    [2]uint8
	inSysEx bool
}

// Decode feeds one byte. It returns an event when b completes a message.
func (d *Decoder) Decode(b byte) (Event, bool) {
	switch {
	case b >= 0xF8:
		// System real-time may be interleaved anywhere, even inside a message.
		return Event{}, false
	case b >= 0xF0:
		// System common cancels running status. 0xF0 opens SysEx, which
		// runs until 0xF7 or the next status byte.
		d.status = 0
		d.have = 0
		d.inSysEx = b == 0xF0
		return Event{}, false
	case b >= 0x80:
		d.status = b
		d.need = dataLength(b)
		d.have = 0
		d.inSysEx = false
		return Event{}, false
	}

	if d.status == 0 || d.inSysEx {
		// Data byte with no status, or SysEx payload.
		return Event{}, false
	}

	d.data[d.have] = b
	d.have++
	if d.have < d.need {
		return Event{}, false
	}
	d.have = 0
	return d.emit()
}

// Reset forgets running status and any partial message.
func (d *Decoder) Reset() {
	*d = Decoder{}
}

// Status returns the current running status byte, or 0.
func (d *Decoder) Status() uint8 {
	return d.status
}

func (d *Decoder) emit() (Event, bool) {
	ch := d.status & 0x0F
	switch d.status & 0xF0 {
	case StatusNoteOn:
		if d.data[1] == 0 {
			return NoteOff(d.data[0], 0).OnChannel(ch), true
		}
		return NoteOn(d.data[0], d.data[1]).OnChannel(ch), true
	case StatusNoteOff:
		return NoteOff(d.data[0], d.data[1]).OnChannel(ch), true
	case StatusControlChange:
		return ControlChange(d.data[0], d.data[1]).OnChannel(ch), true
	case StatusPitchBend:
		bend := int16(d.data[1])<<7 | int16(d.data[0])
		return PitchBend(bend).OnChannel(ch), true
	default:
		// Poly pressure, program change and channel pressure are framed
		// but not part of the event set.
		return Event{}, false
	}
}

func dataLength(status uint8) uint8 {
	switch status & 0xF0 {
	case StatusProgramChange, StatusChannelPressure:
		return 1
	default:
		return 2
	}
}

// DecodeMessage decodes a complete message held in p with a fresh decoder.
// It is a convenience for callers that already have framed messages; the
// input path should keep a long-lived Decoder instead.
func DecodeMessage(p []byte) (Event, bool) {
	var d Decoder
	for _, b := range p {
		if ev, ok := d.Decode(b); ok {
			return ev, true
		}
	}
	return Event{}, false
}
