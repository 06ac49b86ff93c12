package main

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mrdg/keybed/analysis"
	"github.com/mrdg/keybed/audio"
	"github.com/mrdg/keybed/dub"
	"github.com/mrdg/keybed/input"
)

const defaultVelocity = 100

type command struct {
	name     string
	usage    string
	run      func(*app, []dub.Node) (string, error)
	arity    int // -n means len(args) must be >= n
	optional int // extra arguments allowed after arity
}

var commands []command

func init() {
	commands = []command{
		{name: "note", usage: "note <note> [velocity]", run: noteCommand, arity: 1, optional: 1},
		{name: "off", usage: "off <note>... | off all", run: offCommand, arity: -1},
		{name: "chord", usage: "chord <note>...", run: chordCommand, arity: -1},
		{name: "sustain", usage: "sustain on|off", run: sustainCommand, arity: 1},
		{name: "volume", usage: "volume <0-1>", run: volumeCommand, arity: 1},
		{name: "instrument", usage: "instrument <name>", run: instrumentCommand, arity: 1},
		{name: "synth", usage: "synth [instrument]", run: synthCommand, optional: 1},
		{name: "metronome", usage: "metronome on|off", run: metronomeCommand, arity: 1},
		{name: "bpm", usage: "bpm <20-300>", run: bpmCommand, arity: 1},
		{name: "meter", usage: "meter <beats> [accent] | meter <beats>/<unit>", run: meterCommand, arity: 1, optional: 1},
		{name: "reset", usage: "reset", run: resetCommand},
		{name: "countin", usage: "countin <beats> [file.wav]", run: countInCommand, arity: 1, optional: 1},
		{name: "devices", usage: "devices", run: devicesCommand},
		{name: "device", usage: "device <id>|default", run: deviceCommand, arity: 1},
		{name: "ports", usage: "ports", run: portsCommand},
		{name: "midi", usage: "midi [port]", run: midiCommand, optional: 1},
		{name: "record", usage: "record <file.wav>", run: recordCommand, arity: 1},
		{name: "stop-record", usage: "stop-record", run: stopRecordCommand},
		{name: "probe", usage: "probe [note] [seconds]", run: probeCommand, optional: 2},
		{name: "click", usage: "click <accent.wav> <normal.wav>", run: clickCommand, arity: 2},
		{name: "set", usage: "set <property> <value>", run: setCommand, arity: 2},
		{name: "get", usage: "get <property>", run: getCommand, arity: 1},
		{name: "status", usage: "status", run: statusCommand},
		{name: "help", usage: "help", run: helpCommand},
	}
}

func noteCommand(a *app, args []dub.Node) (string, error) {
	note, err := readNote(args[0])
	if err != nil {
		return "", err
	}
	velocity := defaultVelocity
	if len(args) > 1 {
		if err := readArgs(args[1:], &velocity); err != nil {
			return "", err
		}
	}
	router{a.engine}.NoteOn(note, velocity)
	return "", nil
}

type allNotesOff interface {
	AllNotesOff()
}

func offCommand(a *app, args []dub.Node) (string, error) {
	if id, ok := args[0].(dub.Identifier); ok && id == "all" {
		s, ok := a.engine.Synth().(allNotesOff)
		if !ok {
			return "", errors.New("synthesizer cannot release all notes")
		}
		s.AllNotesOff()
		return "", nil
	}
	notes, err := readNotes(args)
	if err != nil {
		return "", err
	}
	for _, n := range notes {
		router{a.engine}.NoteOff(n)
	}
	return "", nil
}

func chordCommand(a *app, args []dub.Node) (string, error) {
	notes, err := readNotes(args)
	if err != nil {
		return "", err
	}
	for _, n := range notes {
		router{a.engine}.NoteOn(n, defaultVelocity)
	}
	return "", nil
}

func sustainCommand(a *app, args []dub.Node) (string, error) {
	on, err := readSwitch(args[0])
	if err != nil {
		return "", err
	}
	if on {
		router{a.engine}.SustainOn()
	} else {
		router{a.engine}.SustainOff()
	}
	return "", nil
}

func volumeCommand(a *app, args []dub.Node) (string, error) {
	var v float64
	if err := readArgs(args, &v); err != nil {
		return "", err
	}
	return "", a.props.Set("volume", v)
}

func instrumentCommand(a *app, args []dub.Node) (string, error) {
	var name string
	if err := readArgs(args, &name); err != nil {
		return "", err
	}
	return "", a.props.Set("instrument", name)
}

// synthCommand replaces the playing synthesizer with a fresh one. Notes held on the old
// synthesizer are cut.
func synthCommand(a *app, args []dub.Node) (string, error) {
	name, err := a.props.Get("instrument")
	if err != nil {
		return "", err
	}
	instrument := name.(string)
	if len(args) > 0 {
		if err := readArgs(args, &instrument); err != nil {
			return "", err
		}
	}
	s, err := a.newSynth(instrument)
	if err != nil {
		return "", err
	}
	a.engine.SetSynth(s)
	if err := a.props.Set("instrument", s.Instrument()); err != nil {
		return "", err
	}
	return fmt.Sprintf("new %s synthesizer", s.Instrument()), nil
}

func metronomeCommand(a *app, args []dub.Node) (string, error) {
	on, err := readSwitch(args[0])
	if err != nil {
		return "", err
	}
	if on {
		a.metronome.Start()
	} else {
		a.metronome.Stop()
	}
	return "", nil
}

func bpmCommand(a *app, args []dub.Node) (string, error) {
	var bpm float64
	if err := readArgs(args, &bpm); err != nil {
		return "", err
	}
	return "", a.props.Set("bpm", bpm)
}

func meterCommand(a *app, args []dub.Node) (string, error) {
	var beats, accent int
	if r, ok := args[0].(dub.Ratio); ok {
		if len(args) > 1 {
			return "", errors.New("accent cannot follow a time signature")
		}
		beats, accent = r.Num, 1
	} else {
		accent = 1
		slots := []interface{}{&beats, &accent}
		if err := readArgs(args, slots[:len(args)]...); err != nil {
			return "", err
		}
	}
	if accent > beats {
		return "", fmt.Errorf("accent %d is beyond the %d beat cycle", accent, beats)
	}
	if err := a.props.Set("beats", beats); err != nil {
		return "", err
	}
	return "", a.props.Set("accent", accent)
}

func resetCommand(a *app, args []dub.Node) (string, error) {
	a.metronome.ResetCounter()
	return "", nil
}

// countInCommand clicks beats times and then keeps the metronome going. With a file
// argument recording starts where the count-in ends.
func countInCommand(a *app, args []dub.Node) (string, error) {
	var beats int
	if err := readArgs(args[:1], &beats); err != nil {
		return "", err
	}
	if beats < 1 {
		return "", fmt.Errorf("count-in needs at least one beat: %d", beats)
	}
	var path string
	if len(args) > 1 {
		if err := readArgs(args[1:], &path); err != nil {
			return "", err
		}
		if a.recording() != nil {
			return "", errors.New("already recording")
		}
	}
	a.metronome.CountIn(beats, func() {
		if path != "" {
			if err := a.startRecording(path); err != nil {
				a.log.WithError(err).Error("recording after count-in")
			}
		}
		a.metronome.Start()
	})
	return "", nil
}

func devicesCommand(a *app, args []dub.Node) (string, error) {
	devices, err := a.engine.OutputDevices()
	if err != nil {
		return "", err
	}
	return renderDevices(devices, a.engine.OutputDevice()), nil
}

func deviceCommand(a *app, args []dub.Node) (string, error) {
	id := audio.DefaultDevice
	if s, ok := args[0].(dub.Identifier); !ok || s != "default" {
		if err := readArgs(args, &id); err != nil {
			return "", err
		}
	}
	if err := a.engine.SetOutputDevice(id); err != nil {
		return "", err
	}
	return "output device " + deviceName(id), nil
}

func portsCommand(a *app, args []dub.Node) (string, error) {
	ports, err := input.Ports()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", input.ErrNoPorts
	}
	return strings.Join(ports, "\n"), nil
}

func midiCommand(a *app, args []dub.Node) (string, error) {
	port := a.cfg.midiPort
	if len(args) > 0 {
		if err := readArgs(args, &port); err != nil {
			return "", err
		}
	}
	if err := a.connectMIDI(port); err != nil {
		return "", err
	}
	return "midi input " + a.midi.Port(), nil
}

func recordCommand(a *app, args []dub.Node) (string, error) {
	var path string
	if err := readArgs(args, &path); err != nil {
		return "", err
	}
	if err := a.startRecording(path); err != nil {
		return "", err
	}
	return "recording to " + path, nil
}

func stopRecordCommand(a *app, args []dub.Node) (string, error) {
	rec := a.recording()
	if rec == nil {
		return "", errors.New("not recording")
	}
	if err := a.stopRecording(); err != nil {
		return "", err
	}
	return fmt.Sprintf("saved %s (%v, %d samples dropped)", rec.Path(), rec.Duration(), rec.Dropped()), nil
}

// probeCommand renders a note offline on a private synthesizer with the current
// instrument and reports its pitch and level.
func probeCommand(a *app, args []dub.Node) (string, error) {
	note, seconds := 69, 0.5
	if len(args) > 0 {
		n, err := readNote(args[0])
		if err != nil {
			return "", err
		}
		note = n
	}
	if len(args) > 1 {
		if err := readArgs(args[1:], &seconds); err != nil {
			return "", err
		}
	}
	if seconds <= 0 || seconds > 10 {
		return "", fmt.Errorf("probe length out of range 0-10s: %v", seconds)
	}
	name, err := a.props.Get("instrument")
	if err != nil {
		return "", err
	}
	r, err := probe(a.instruments, name.(string), a.cfg.sampleRate, note, seconds)
	if err != nil {
		return "", err
	}
	return r.String(), nil
}

type probeResult struct {
	note     int
	expected float64
	measured float64
	peak     float64
	rms      float64
}

func (r probeResult) String() string {
	return fmt.Sprintf("%s: expected %.2f Hz, measured %.2f Hz, peak %.3f, rms %.3f",
		dub.NoteName(r.note), r.expected, r.measured, r.peak, r.rms)
}

func probe(instruments audio.Instruments, instrument string, sampleRate, note int, seconds float64) (probeResult, error) {
	if note < 0 || note > 127 {
		return probeResult{}, fmt.Errorf("note out of range 0-127: %d", note)
	}
	s, err := audio.NewSynth(instruments, audio.SynthOptions{
		SampleRate: float64(sampleRate),
		MaxVoices:  1,
		Instrument: instrument,
		Seed:       1,
	})
	if err != nil {
		return probeResult{}, err
	}
	s.NoteOn(note, 127)
	buf := make([]float64, int(seconds*float64(sampleRate)))
	s.Generate(buf)
	return probeResult{
		note:     note,
		expected: 440 * math.Pow(2, float64(note-69)/12),
		measured: analysis.DominantFrequency(buf, float64(sampleRate)),
		peak:     analysis.Peak(buf),
		rms:      analysis.RMS(buf),
	}, nil
}

func clickCommand(a *app, args []dub.Node) (string, error) {
	var accent, normal string
	if err := readArgs(args, &accent, &normal); err != nil {
		return "", err
	}
	return "", a.loadClicks(accent, normal)
}

func setCommand(a *app, args []dub.Node) (string, error) {
	var prop string
	if err := readArgs(args[:1], &prop); err != nil {
		return "", err
	}
	switch v := args[1].(type) {
	case dub.Int:
		return "", a.props.Set(prop, int(v))
	case dub.Float:
		return "", a.props.Set(prop, float64(v))
	case dub.String:
		return "", a.props.Set(prop, string(v))
	case dub.Identifier:
		return "", a.props.Set(prop, string(v))
	default:
		return "", fmt.Errorf("unsupported property type: %v", v)
	}
}

func getCommand(a *app, args []dub.Node) (string, error) {
	var prop string
	if err := readArgs(args, &prop); err != nil {
		return "", err
	}
	v, err := a.props.Get(prop)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(v), nil
}

func statusCommand(a *app, args []dub.Node) (string, error) {
	return renderStatus(a.status()), nil
}

func helpCommand(a *app, args []dub.Node) (string, error) {
	return renderHelp(commands, a.props.Keys()), nil
}

func readNotes(args []dub.Node) ([]int, error) {
	notes := make([]int, 0, len(args))
	for _, arg := range args {
		n, err := readNote(arg)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// readNote accepts a note name or a MIDI note number.
func readNote(arg dub.Node) (int, error) {
	var n int
	switch v := arg.(type) {
	case dub.Note:
		n = int(v)
	case dub.Int:
		n = int(v)
	default:
		return 0, fmt.Errorf("argument error: expected a note, got %v", arg)
	}
	if n < 0 || n > 127 {
		return 0, fmt.Errorf("note out of range 0-127: %d", n)
	}
	return n, nil
}

func readSwitch(arg dub.Node) (bool, error) {
	if id, ok := arg.(dub.Identifier); ok {
		switch id {
		case "on":
			return true, nil
		case "off":
			return false, nil
		}
	}
	return false, fmt.Errorf("argument error: expected on or off, got %v", arg)
}

func readArgs(args []dub.Node, slots ...interface{}) error {
	if len(args) != len(slots) {
		return errors.New("not enough arguments")
	}
	for n, arg := range args {
		dest := slots[n]
		switch p := dest.(type) {
		case *string:
			switch s := arg.(type) {
			case dub.String:
				*p = string(s)
			case dub.Identifier:
				*p = string(s)
			default:
				return fmt.Errorf("argument error: expected a string or identifier")
			}
		case *float64:
			switch f := arg.(type) {
			case dub.Float:
				*p = float64(f)
			case dub.Int:
				*p = float64(f)
			default:
				return fmt.Errorf("argument error: expected a number")
			}
		case *int:
			i, ok := arg.(dub.Int)
			if !ok {
				return fmt.Errorf("argument error: expected an integer")
			}
			*p = int(i)
		default:
			panic("readArgs: unhandled destination type: " + fmt.Sprint(p))
		}
	}
	return nil
}
