package audio

import (
	"testing"
)

func newTestProps(t *testing.T) (*Props, *Engine, *Metronome) {
	t.Helper()
	e, _ := newTestEngine(64)
	s, err := NewSynth(DefaultInstruments(), SynthOptions{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	e.SetSynth(s)
	m := NewMetronome(e, MetronomeOptions{Clock: newFakeClock()})
	return NewControlProps(e, m, DefaultInstruments(), ""), e, m
}

func TestControlProps(t *testing.T) {
	props, e, m := newTestProps(t)

	if err := props.Set("volume", 0.3); err != nil {
		t.Fatal(err)
	}
	if want, got := 0.3, e.Volume(); want != got {
		t.Errorf("volume: want %v, got %v", want, got)
	}
	if err := props.Set("bpm", 90); err != nil {
		t.Fatal(err)
	}
	if want, got := 90.0, m.BPM(); want != got {
		t.Errorf("bpm: want %v, got %v", want, got)
	}
	if err := props.Set("instrument", "guitar"); err != nil {
		t.Fatal(err)
	}
	if want, got := "Guitar", e.Synth().(*Synth).Instrument(); want != got {
		t.Errorf("instrument: want %v, got %v", want, got)
	}
	v, err := props.Get("instrument")
	if err != nil {
		t.Fatal(err)
	}
	if want, got := "Guitar", v; want != got {
		t.Errorf("stored instrument: want %v, got %v", want, got)
	}
}

func TestControlPropsValidation(t *testing.T) {
	props, e, _ := newTestProps(t)
	tests := []struct {
		key   string
		value interface{}
	}{
		{"volume", 1.5},
		{"volume", "loud"},
		{"bpm", 5},
		{"beats", 0},
		{"accent", 9},
		{"instrument", "banjo"},
		{"tempo", 100},
	}
	for _, test := range tests {
		if err := props.Set(test.key, test.value); err == nil {
			t.Errorf("Set(%v, %v): want error", test.key, test.value)
		}
	}
	if want, got := 1.0, e.Volume(); want != got {
		t.Errorf("rejected volume was applied: %v", got)
	}
}

func TestControlPropsMeter(t *testing.T) {
	props, _, m := newTestProps(t)
	if err := props.Set("accent", 4); err != nil {
		t.Fatal(err)
	}
	if err := props.Set("beats", 3); err != nil {
		t.Fatal(err)
	}
	beats, accent := m.Meter()
	if beats != 3 || accent != 3 {
		t.Errorf("meter: want (3, 3), got (%v, %v)", beats, accent)
	}
	v, _ := props.Get("accent")
	if want, got := 3, v; want != got {
		t.Errorf("stored accent: want %v, got %v", want, got)
	}
}

func TestPropsKeys(t *testing.T) {
	props, _, _ := newTestProps(t)
	want := []string{"accent", "beats", "bpm", "instrument", "volume"}
	got := props.Keys()
	if len(want) != len(got) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for n := range want {
		if want[n] != got[n] {
			t.Errorf("want %v, got %v", want, got)
			break
		}
	}
}
