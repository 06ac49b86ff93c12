package audio

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrUnknownInstrument = errors.New("unknown instrument")

// maxHarmonics bounds the partials per instrument so voices can weight them on the stack.
const maxHarmonics = 16

// Harmonic is one partial of an additive instrument.
type Harmonic struct {
	Multiplier float64
	Amplitude  float64
}

// InstrumentProfile describes the envelope, timbre and output shaping of an instrument.
// Profiles are values and are never modified once registered.
type InstrumentProfile struct {
	Name string

	Attack       float64 // seconds
	Decay        float64 // seconds
	SustainLevel float64 // 0-1
	Release      float64 // seconds
	PedalRelease float64 // seconds

	Gain      float64
	Harmonics []Harmonic

	PolyphonyCompensation float64
	LowBalanceHz          float64
	LowMinGain            float64
	HighPassHz            float64
	LowPassHz             float64
}

func (p InstrumentProfile) Validate() error {
	if len(p.Harmonics) == 0 {
		return fmt.Errorf("instrument %s: no harmonics", p.Name)
	}
	if len(p.Harmonics) > maxHarmonics {
		return fmt.Errorf("instrument %s: more than %d harmonics", p.Name, maxHarmonics)
	}
	if p.Attack < 0 || p.Decay < 0 || p.Release < 0 || p.PedalRelease < 0 {
		return fmt.Errorf("instrument %s: negative envelope time", p.Name)
	}
	if p.SustainLevel < 0 || p.SustainLevel > 1 {
		return fmt.Errorf("instrument %s: sustain level out of range 0-1: %v", p.Name, p.SustainLevel)
	}
	if p.LowMinGain < 0 || p.LowMinGain > 1 {
		return fmt.Errorf("instrument %s: low min gain out of range 0-1: %v", p.Name, p.LowMinGain)
	}
	return nil
}

// Instruments is an immutable registry of instrument profiles keyed by name.
type Instruments struct {
	profiles map[string]InstrumentProfile
	names    []string
	def      string
}

// NewInstruments builds a registry. The first profile becomes the default.
func NewInstruments(profiles ...InstrumentProfile) (Instruments, error) {
	if len(profiles) == 0 {
		return Instruments{}, errors.New("no instrument profiles")
	}
	reg := Instruments{profiles: make(map[string]InstrumentProfile, len(profiles))}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return Instruments{}, err
		}
		key := strings.ToLower(p.Name)
		if _, ok := reg.profiles[key]; ok {
			return Instruments{}, fmt.Errorf("duplicate instrument %s", p.Name)
		}
		// the harmonics slice is shared with the caller otherwise
		p.Harmonics = append([]Harmonic(nil), p.Harmonics...)
		reg.profiles[key] = p
		reg.names = append(reg.names, p.Name)
	}
	reg.def = profiles[0].Name
	sort.Strings(reg.names)
	return reg, nil
}

func (r Instruments) Lookup(name string) (InstrumentProfile, error) {
	p, ok := r.profiles[strings.ToLower(name)]
	if !ok {
		return InstrumentProfile{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, name)
	}
	return p, nil
}

func (r Instruments) Names() []string {
	return append([]string(nil), r.names...)
}

func (r Instruments) Default() string { return r.def }
