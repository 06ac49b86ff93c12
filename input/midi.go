// Package input connects MIDI keyboards to a synthesizer.
package input

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

var ErrNoPorts = errors.New("no MIDI input ports")

const sustainPedal = 64

type Kind int

const (
	Unknown Kind = iota
	NoteOn
	NoteOff
	SustainOn
	SustainOff
)

func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "note on"
	case NoteOff:
		return "note off"
	case SustainOn:
		return "sustain on"
	case SustainOff:
		return "sustain off"
	}
	return "unknown"
}

type Event struct {
	Kind     Kind
	Channel  int
	Note     int
	Velocity int
}

// Target receives decoded events. Methods are called on the driver's thread.
type Target interface {
	NoteOn(note, velocity int)
	NoteOff(note int)
	SustainOn()
	SustainOff()
}

// Decode interprets a channel message. A note on with velocity 0 is a note off and the
// sustain pedal is down from controller value 64.
func Decode(msg midi.Message) Event {
	var ch, key, vel, cc, val uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return Event{Kind: NoteOn, Channel: int(ch), Note: int(key), Velocity: int(vel)}
	case msg.GetNoteEnd(&ch, &key):
		return Event{Kind: NoteOff, Channel: int(ch), Note: int(key)}
	case msg.GetControlChange(&ch, &cc, &val) && cc == sustainPedal:
		if val >= 64 {
			return Event{Kind: SustainOn, Channel: int(ch)}
		}
		return Event{Kind: SustainOff, Channel: int(ch)}
	}
	return Event{Kind: Unknown}
}

// Dispatch forwards ev to t and reports whether it was handled.
func Dispatch(ev Event, t Target) bool {
	switch ev.Kind {
	case NoteOn:
		t.NoteOn(ev.Note, ev.Velocity)
	case NoteOff:
		t.NoteOff(ev.Note)
	case SustainOn:
		t.SustainOn()
	case SustainOff:
		t.SustainOff()
	default:
		return false
	}
	return true
}

// ChoosePort picks the input to open. A non-empty want selects the first port whose name
// contains it. Otherwise a Casio keyboard is preferred, then the first port that is not
// a software through port.
func ChoosePort(ports []string, want string) (int, error) {
	if len(ports) == 0 {
		return -1, ErrNoPorts
	}
	if want != "" {
		for n, p := range ports {
			if strings.Contains(strings.ToLower(p), strings.ToLower(want)) {
				return n, nil
			}
		}
		return -1, fmt.Errorf("no MIDI input matching %q", want)
	}
	for n, p := range ports {
		if strings.Contains(strings.ToLower(p), "casio") {
			return n, nil
		}
	}
	for n, p := range ports {
		if !strings.Contains(strings.ToLower(p), "through") {
			return n, nil
		}
	}
	return 0, nil
}

// Listener delivers events from one input port until Close.
type Listener struct {
	drv  *rtmididrv.Driver
	in   drivers.In
	stop func()
	log  *logrus.Entry

	mu      sync.Mutex
	events  int
	unknown int
}

// Ports lists the available input port names.
func Ports() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, err
	}
	defer drv.Close()
	ins, err := drv.Ins()
	if err != nil {
		return nil, err
	}
	return portNames(ins), nil
}

func portNames(ins []drivers.In) []string {
	names := make([]string, len(ins))
	for n, in := range ins {
		names[n] = in.String()
	}
	return names
}

// Listen opens the port chosen by ChoosePort(want) and sends its events to t.
func Listen(want string, t Target, log *logrus.Entry) (*Listener, error) {
	if log == nil {
		log = logrus.WithField("component", "midi")
	}
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("midi driver: %w", err)
	}
	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, err
	}
	n, err := ChoosePort(portNames(ins), want)
	if err != nil {
		drv.Close()
		return nil, err
	}
	in := ins[n]
	if err := in.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("open %s: %w", in.String(), err)
	}

	l := &Listener{drv: drv, in: in, log: log.WithField("port", in.String())}
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		ev := Decode(msg)
		handled := Dispatch(ev, t)
		l.mu.Lock()
		l.events++
		if !handled {
			l.unknown++
		}
		l.mu.Unlock()
	}, midi.HandleError(func(err error) {
		l.log.WithError(err).Warn("midi input error")
	}))
	if err != nil {
		in.Close()
		drv.Close()
		return nil, fmt.Errorf("listen %s: %w", in.String(), err)
	}
	l.stop = stop
	l.log.Info("midi input connected")
	return l, nil
}

func (l *Listener) Port() string { return l.in.String() }

// Stats returns the number of messages received and how many were ignored.
func (l *Listener) Stats() (events, unknown int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events, l.unknown
}

func (l *Listener) Close() error {
	l.stop()
	err := errors.Join(l.in.Close(), l.drv.Close())
	l.log.Info("midi input closed")
	return err
}
