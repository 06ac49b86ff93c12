package audio

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Props holds named settings that can be read without locks. Each property validates new
// values and may forward them to the component that owns the setting. All properties
// should be registered before any reads take place.
type Props struct {
	mu         sync.Mutex // serialises Set
	properties map[string]*atomic.Value
	setters    map[string]setter
	apply      map[string]func(interface{}) error
}

func NewProps() *Props {
	return &Props{
		properties: make(map[string]*atomic.Value),
		setters:    make(map[string]setter),
		apply:      make(map[string]func(interface{}) error),
	}
}

// Set validates value, forwards it and stores it. Nothing is stored when forwarding fails.
func (p *Props) Set(key string, value interface{}) error {
	prop, ok := p.properties[key]
	if !ok {
		return fmt.Errorf("unknown property %s", key)
	}
	set := p.setters[key]

	p.mu.Lock()
	defer p.mu.Unlock()
	var next atomic.Value
	if err := set(value, &next); err != nil {
		return fmt.Errorf("set property %s: %w", key, err)
	}
	if apply := p.apply[key]; apply != nil {
		if err := apply(next.Load()); err != nil {
			return fmt.Errorf("set property %s: %w", key, err)
		}
	}
	prop.Store(next.Load())
	return nil
}

func (p *Props) Get(key string) (interface{}, error) {
	prop, ok := p.properties[key]
	if !ok {
		return nil, fmt.Errorf("unknown property %s", key)
	}
	return prop.Load(), nil
}

// Keys returns the registered property names in order.
func (p *Props) Keys() []string {
	keys := make([]string, 0, len(p.properties))
	for k := range p.properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Register adds a new property. apply, if not nil, receives every validated value
// including init.
func (p *Props) Register(key string, set setter, init interface{}, apply func(interface{}) error) (*atomic.Value, error) {
	var prop atomic.Value
	p.properties[key] = &prop
	p.setters[key] = set
	p.apply[key] = apply
	return &prop, p.Set(key, init)
}

func (p *Props) MustRegister(key string, set setter, init interface{}, apply func(interface{}) error) *atomic.Value {
	if prop, err := p.Register(key, set, init, apply); err != nil {
		panic(err)
	} else {
		return prop
	}
}

type setter func(val interface{}, dest *atomic.Value) error

func setFloat64(min, max float64) setter {
	return func(v interface{}, dest *atomic.Value) error {
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case int:
			f = float64(n)
		default:
			return fmt.Errorf("value is not a float64: %v", v)
		}
		if f < min || f > max {
			return fmt.Errorf("property value is not in valid range %v - %v: %v", min, max, f)
		}
		dest.Store(f)
		return nil
	}
}

func setInt(min, max int) setter {
	return func(v interface{}, dest *atomic.Value) error {
		var i int
		switch n := v.(type) {
		case float64:
			i = int(n)
		case int:
			i = n
		default:
			return fmt.Errorf("value is not an int: %v", v)
		}
		if i < min || i > max {
			return fmt.Errorf("property value is not in valid range %v - %v: %v", min, max, i)
		}
		dest.Store(i)
		return nil
	}
}

// setChoice accepts one of choices, case-insensitively, and stores its canonical spelling.
func setChoice(choices []string) setter {
	return func(v interface{}, dest *atomic.Value) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("value is not a string: %v", v)
		}
		for _, c := range choices {
			if strings.EqualFold(c, s) {
				dest.Store(c)
				return nil
			}
		}
		return fmt.Errorf("%q is not one of %s", s, strings.Join(choices, ", "))
	}
}

// instrumentSetter is implemented by synthesizers with switchable instruments.
type instrumentSetter interface {
	SetInstrument(name string) error
}

// NewControlProps registers the live settings of an engine and its metronome: volume,
// bpm, beats, accent and instrument. The instrument applies to whichever synthesizer the
// engine is playing when it is set.
func NewControlProps(e *Engine, m *Metronome, instruments Instruments, instrument string) *Props {
	p := NewProps()
	p.MustRegister("volume", setFloat64(0, 1), e.Volume(), func(v interface{}) error {
		e.SetVolume(v.(float64))
		return nil
	})
	p.MustRegister("bpm", setFloat64(MinBPM, MaxBPM), m.BPM(), func(v interface{}) error {
		m.SetBPM(v.(float64))
		return nil
	})
	beats, accent := m.Meter()
	p.MustRegister("beats", setInt(1, 32), beats, func(v interface{}) error {
		_, accent := m.Meter()
		m.SetMeter(v.(int), accent)
		// a shorter cycle may have pulled the accent in
		if prop, ok := p.properties["accent"]; ok {
			_, accent = m.Meter()
			prop.Store(accent)
		}
		return nil
	})
	p.MustRegister("accent", setInt(1, 32), accent, func(v interface{}) error {
		beats, _ := m.Meter()
		if v.(int) > beats {
			return fmt.Errorf("accent %d is beyond the %d beat cycle", v, beats)
		}
		m.SetMeter(beats, v.(int))
		return nil
	})
	if instrument == "" {
		instrument = instruments.Default()
	}
	p.MustRegister("instrument", setChoice(instruments.Names()), instrument, func(v interface{}) error {
		s, ok := e.Synth().(instrumentSetter)
		if !ok {
			return nil
		}
		return s.SetInstrument(v.(string))
	})
	return p
}
