package input

import (
	"reflect"
	"testing"

	"gitlab.com/gomidi/midi/v2"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		msg  midi.Message
		want Event
	}{
		{midi.NoteOn(0, 60, 100), Event{Kind: NoteOn, Note: 60, Velocity: 100}},
		{midi.NoteOn(3, 21, 1), Event{Kind: NoteOn, Channel: 3, Note: 21, Velocity: 1}},
		{midi.NoteOn(0, 60, 0), Event{Kind: NoteOff, Note: 60}},
		{midi.NoteOff(1, 72), Event{Kind: NoteOff, Channel: 1, Note: 72}},
		{midi.ControlChange(0, 64, 127), Event{Kind: SustainOn}},
		{midi.ControlChange(0, 64, 64), Event{Kind: SustainOn}},
		{midi.ControlChange(0, 64, 63), Event{Kind: SustainOff}},
		{midi.ControlChange(0, 7, 100), Event{Kind: Unknown}},
		{midi.ProgramChange(0, 5), Event{Kind: Unknown}},
	}
	for _, test := range tests {
		if got := Decode(test.msg); !reflect.DeepEqual(test.want, got) {
			t.Errorf("Decode(%v):\nwant: %+v\ngot:  %+v", test.msg, test.want, got)
		}
	}
}

type recorder struct {
	calls []string
}

func (r *recorder) NoteOn(note, velocity int) { r.calls = append(r.calls, "on") }
func (r *recorder) NoteOff(note int)          { r.calls = append(r.calls, "off") }
func (r *recorder) SustainOn()                { r.calls = append(r.calls, "pedal down") }
func (r *recorder) SustainOff()               { r.calls = append(r.calls, "pedal up") }

func TestDispatch(t *testing.T) {
	var r recorder
	msgs := []midi.Message{
		midi.ControlChange(0, 64, 127),
		midi.NoteOn(0, 60, 90),
		midi.NoteOn(0, 60, 0),
		midi.Pitchbend(0, 100),
		midi.ControlChange(0, 64, 0),
	}
	handled := 0
	for _, msg := range msgs {
		if Dispatch(Decode(msg), &r) {
			handled++
		}
	}
	if want, got := []string{"pedal down", "on", "off", "pedal up"}, r.calls; !reflect.DeepEqual(want, got) {
		t.Errorf("calls:\nwant: %v\ngot:  %v", want, got)
	}
	if want, got := 4, handled; want != got {
		t.Errorf("handled: want %v, got %v", want, got)
	}
}

func TestChoosePort(t *testing.T) {
	tests := []struct {
		ports []string
		want  string
		index int
		err   bool
	}{
		{nil, "", -1, true},
		{[]string{"Midi Through Port-0", "CASIO USB-MIDI"}, "", 1, false},
		{[]string{"Midi Through Port-0", "Arturia KeyStep"}, "", 1, false},
		{[]string{"Midi Through Port-0"}, "", 0, false},
		{[]string{"Arturia KeyStep", "CASIO USB-MIDI"}, "keystep", 0, false},
		{[]string{"Arturia KeyStep"}, "roland", -1, true},
	}
	for _, test := range tests {
		got, err := ChoosePort(test.ports, test.want)
		if test.err {
			if err == nil {
				t.Errorf("ChoosePort(%v, %q): want error", test.ports, test.want)
			}
			continue
		}
		if err != nil {
			t.Errorf("ChoosePort(%v, %q): %v", test.ports, test.want, err)
			continue
		}
		if want := test.index; want != got {
			t.Errorf("ChoosePort(%v, %q): want %v, got %v", test.ports, test.want, want, got)
		}
	}
}
