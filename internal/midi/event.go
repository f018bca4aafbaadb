package midi

// Channel voice status nibbles.
const (
	StatusNoteOff         uint8 = 0x80
	StatusNoteOn          uint8 = 0x90
	StatusPolyPressure    uint8 = 0xA0
	StatusControlChange   uint8 = 0xB0
	StatusProgramChange   uint8 = 0xC0
	StatusChannelPressure uint8 = 0xD0
	StatusPitchBend       uint8 = 0xE0
)

// Controller numbers the engine handles itself.
const (
	CCAllSoundOff uint8 = 120
	CCAllNotesOff uint8 = 123
)

// BendCentre is the raw pitch bend value for "no bend".
const BendCentre = 8192

const (
	maxData7 = 127
	maxBend  = 16383
)

type Kind uint8

const (
	KindNone Kind = iota
	KindNoteOn
	KindNoteOff
	KindControlChange
	KindPitchBend
)

func (k Kind) String() string {
	switch k {
	case KindNoteOn:
		return "NoteOn"
	case KindNoteOff:
		return "NoteOff"
	case KindControlChange:
		return "ControlChange"
	case KindPitchBend:
		return "PitchBend"
	default:
		return "None"
	}
}

// Event is a decoded channel voice message. It is a plain value so it can be
// copied through the event queue without allocating.
//
// Data1/Data2 hold note+velocity for note events and controller+value for
// control changes. Bend holds the raw 14-bit pitch bend (8192 = centre).
type Event struct {
	Kind    Kind
	Channel uint8
	Data1   uint8
	Data2   uint8
	Bend    int16
}

func NoteOn(note, velocity uint8) Event {
	return Event{Kind: KindNoteOn, Data1: clamp7(note), Data2: clamp7(velocity)}
}

func NoteOff(note, velocity uint8) Event {
	return Event{Kind: KindNoteOff, Data1: clamp7(note), Data2: clamp7(velocity)}
}

func ControlChange(index, value uint8) Event {
	return Event{Kind: KindControlChange, Data1: clamp7(index), Data2: clamp7(value)}
}

// PitchBend builds a pitch bend event from a raw 14-bit value in [0, 16383].
func PitchBend(value int16) Event {
	if value < 0 {
		value = 0
	}
	if value > maxBend {
		value = maxBend
	}
	return Event{Kind: KindPitchBend, Bend: value}
}

// OnChannel returns a copy of e tagged with the given channel (0-15).
func (e Event) OnChannel(ch uint8) Event {
	e.Channel = ch & 0x0F
	return e
}

func (e Event) Note() uint8       { return e.Data1 }
func (e Event) Velocity() uint8   { return e.Data2 }
func (e Event) Controller() uint8 { return e.Data1 }
func (e Event) Value() uint8      { return e.Data2 }

// BendValue returns the raw 14-bit bend.
func (e Event) BendValue() int16 { return e.Bend }

func clamp7(v uint8) uint8 {
	if v > maxData7 {
		return maxData7
	}
	return v
}
