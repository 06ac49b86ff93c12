package main

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mrdg/keybed/audio"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg, err := loadConfig([]string{"-backend", "null"}, env(nil), io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	a, err := newApp(cfg, audio.NewNullSink(), io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(a.shutdown)
	return a
}

func mustEval(t *testing.T, a *app, line string) string {
	t.Helper()
	result, err := a.eval(line)
	if err != nil {
		t.Fatalf("%s: %v", line, err)
	}
	return result
}

func synthOf(t *testing.T, a *app) *audio.Synth {
	t.Helper()
	s, ok := a.engine.Synth().(*audio.Synth)
	if !ok {
		t.Fatalf("engine synth is %T", a.engine.Synth())
	}
	return s
}

// render advances the engine by seconds of audio.
func render(t *testing.T, a *app, seconds float64) {
	t.Helper()
	n := int(seconds * float64(a.engine.SampleRate()) / float64(a.engine.BufferSize()))
	for i := 0; i < n; i++ {
		if _, err := a.engine.GenerateBuffer(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestEvalArity(t *testing.T) {
	a := newTestApp(t)
	tests := []struct {
		input string
		err   bool
	}{
		{"", false},
		{"# just a comment", false},
		{"status", false},
		{"status now", true},
		{"note", true},
		{"note C4", false},
		{"note C4 90", false},
		{"note C4 90 1", true},
		{"chord", true},
		{"chord C4 E4 G4 C5", false},
		{"probe 69 0.1", false},
		{"probe 69 0.1 2", true},
		{"dance", true},
	}
	for _, test := range tests {
		_, err := a.eval(test.input)
		if want, got := test.err, err != nil; want != got {
			t.Errorf("%q: want error %v, got %v", test.input, want, err)
		}
	}
}

func TestNoteCommands(t *testing.T) {
	a := newTestApp(t)
	s := synthOf(t, a)

	mustEval(t, a, "chord C4 E4 G4")
	mustEval(t, a, "note 72 64")
	if want, got := 4, s.ActiveNotes(); want != got {
		t.Errorf("active notes: want %v, got %v", want, got)
	}

	mustEval(t, a, "off E4 G4")
	render(t, a, 1)
	if want, got := 2, s.ActiveNotes(); want != got {
		t.Errorf("active notes after off: want %v, got %v", want, got)
	}

	mustEval(t, a, "off all")
	render(t, a, 1)
	if want, got := 0, s.ActiveNotes(); want != got {
		t.Errorf("active notes after off all: want %v, got %v", want, got)
	}
}

func TestSustainCommand(t *testing.T) {
	a := newTestApp(t)
	s := synthOf(t, a)

	mustEval(t, a, "sustain on")
	mustEval(t, a, "note A4")
	render(t, a, 0.1)
	mustEval(t, a, "off A4")
	render(t, a, 1)
	if want, got := 1, s.ActiveNotes(); want != got {
		t.Errorf("pedal should hold the note: want %v, got %v", want, got)
	}
	mustEval(t, a, "sustain off")
	render(t, a, 1)
	if want, got := 0, s.ActiveNotes(); want != got {
		t.Errorf("note should end after the pedal lifts: want %v, got %v", want, got)
	}
	if _, err := a.eval("sustain maybe"); err == nil {
		t.Error("expected an error for sustain maybe")
	}
}

func TestReadNote(t *testing.T) {
	a := newTestApp(t)
	for _, input := range []string{"note 128", "note -1", "note hello", `note "C4"`} {
		if _, err := a.eval(input); err == nil {
			t.Errorf("%s: expected an error", input)
		}
	}
}

func TestInstrumentCommands(t *testing.T) {
	a := newTestApp(t)
	mustEval(t, a, "instrument guitar")
	if want, got := "Guitar", synthOf(t, a).Instrument(); want != got {
		t.Errorf("instrument: want %v, got %v", want, got)
	}
	if _, err := a.eval("instrument banjo"); err == nil {
		t.Error("expected an error for an unknown instrument")
	}
	if want, got := "Guitar", mustEval(t, a, "get instrument"); want != got {
		t.Errorf("instrument property: want %v, got %v", want, got)
	}

	old := synthOf(t, a)
	mustEval(t, a, "synth piano")
	s := synthOf(t, a)
	if s == old {
		t.Error("synth should replace the synthesizer")
	}
	if want, got := "Piano", s.Instrument(); want != got {
		t.Errorf("new synth instrument: want %v, got %v", want, got)
	}
	if want, got := "Piano", mustEval(t, a, "get instrument"); want != got {
		t.Errorf("instrument property: want %v, got %v", want, got)
	}
	mustEval(t, a, "synth")
	if want, got := "Piano", synthOf(t, a).Instrument(); want != got {
		t.Errorf("synth without arguments keeps the instrument: want %v, got %v", want, got)
	}
}

func TestSetGet(t *testing.T) {
	a := newTestApp(t)
	mustEval(t, a, "set volume 0.5")
	if want, got := "0.5", mustEval(t, a, "get volume"); want != got {
		t.Errorf("volume: want %v, got %v", want, got)
	}
	if want, got := 0.5, a.engine.Volume(); want != got {
		t.Errorf("engine volume: want %v, got %v", want, got)
	}
	mustEval(t, a, "volume 1")
	if want, got := 1.0, a.engine.Volume(); want != got {
		t.Errorf("engine volume: want %v, got %v", want, got)
	}

	mustEval(t, a, "set bpm 90")
	if want, got := "90", mustEval(t, a, "get bpm"); want != got {
		t.Errorf("bpm: want %v, got %v", want, got)
	}
	mustEval(t, a, "bpm 140.5")
	if want, got := 140.5, a.metronome.BPM(); want != got {
		t.Errorf("metronome bpm: want %v, got %v", want, got)
	}

	for _, input := range []string{"set volume 2", "set bpm 1000", "set tempo 100", "get tempo"} {
		if _, err := a.eval(input); err == nil {
			t.Errorf("%s: expected an error", input)
		}
	}
}

func TestMeterCommand(t *testing.T) {
	a := newTestApp(t)
	tests := []struct {
		input         string
		beats, accent int
	}{
		{"meter 3", 3, 1},
		{"meter 4 2", 4, 2},
		{"meter 3", 3, 1},
		{"meter 7/8", 7, 1},
	}
	for _, test := range tests {
		mustEval(t, a, test.input)
		beats, accent := a.metronome.Meter()
		if want, got := test.beats, beats; want != got {
			t.Errorf("%s: beats: want %v, got %v", test.input, want, got)
		}
		if want, got := test.accent, accent; want != got {
			t.Errorf("%s: accent: want %v, got %v", test.input, want, got)
		}
	}
	for _, input := range []string{"meter 2 3", "meter 0", "meter 3/4 2", "meter four"} {
		if _, err := a.eval(input); err == nil {
			t.Errorf("%s: expected an error", input)
		}
	}
}

func TestMetronomeCommand(t *testing.T) {
	a := newTestApp(t)
	mustEval(t, a, "metronome on")
	if !a.metronome.Running() {
		t.Error("metronome should be running")
	}
	mustEval(t, a, "reset")
	mustEval(t, a, "metronome off")
	if a.metronome.Running() {
		t.Error("metronome should be stopped")
	}
	if _, err := a.eval("countin 0"); err == nil {
		t.Error("expected an error for an empty count-in")
	}
}

func TestDeviceCommands(t *testing.T) {
	a := newTestApp(t)
	out := mustEval(t, a, "devices")
	if !strings.Contains(out, "null") {
		t.Errorf("devices should list the null device: %q", out)
	}
	mustEval(t, a, "device 3")
	if want, got := 3, a.engine.OutputDevice(); want != got {
		t.Errorf("device: want %v, got %v", want, got)
	}
	mustEval(t, a, "device default")
	if want, got := audio.DefaultDevice, a.engine.OutputDevice(); want != got {
		t.Errorf("device: want %v, got %v", want, got)
	}
	if _, err := a.eval("device -2"); err == nil {
		t.Error("expected an error for device -2")
	}
}

func TestRecordCommands(t *testing.T) {
	a := newTestApp(t)
	path := filepath.Join(t.TempDir(), "take.wav")

	if _, err := a.eval("stop-record"); err == nil {
		t.Error("expected an error when not recording")
	}
	mustEval(t, a, `record "`+path+`"`)
	if _, err := a.eval(`record "` + path + `"`); err == nil {
		t.Error("expected an error when already recording")
	}
	mustEval(t, a, "note A4")
	render(t, a, 0.5)
	out := mustEval(t, a, "stop-record")
	if !strings.Contains(out, "saved") {
		t.Errorf("unexpected stop-record output %q", out)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() <= 44 {
		t.Errorf("recording has no audio: %d bytes", info.Size())
	}
}

func TestProbe(t *testing.T) {
	r, err := probe(audio.DefaultInstruments(), "Piano", 44100, 69, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if want, got := 440.0, r.expected; math.Abs(want-got) > 1e-9 {
		t.Errorf("expected frequency: want %v, got %v", want, got)
	}
	if math.Abs(r.measured-440) > 3 {
		t.Errorf("measured frequency: want 440±3, got %v", r.measured)
	}
	if r.peak <= 0 || r.rms <= 0 || r.rms > r.peak {
		t.Errorf("unexpected levels: peak %v, rms %v", r.peak, r.rms)
	}
	if _, err := probe(audio.DefaultInstruments(), "Piano", 44100, 200, 0.5); err == nil {
		t.Error("expected an error for note 200")
	}
}

func TestStatusAndHelp(t *testing.T) {
	a := newTestApp(t)
	mustEval(t, a, "chord C4 E4")
	out := mustEval(t, a, "status")
	for _, want := range []string{"Piano", "2/88 voices", "120 bpm", "null", "not connected"} {
		if !strings.Contains(out, want) {
			t.Errorf("status should contain %q:\n%s", want, out)
		}
	}

	help := mustEval(t, a, "help")
	for _, cmd := range commands {
		if !strings.Contains(help, cmd.usage) {
			t.Errorf("help is missing %q", cmd.usage)
		}
	}
	if !strings.Contains(help, "volume") {
		t.Error("help should list the properties")
	}
}

func TestRouterFollowsSynthSwap(t *testing.T) {
	a := newTestApp(t)
	r := router{a.engine}
	mustEval(t, a, "synth")
	s := synthOf(t, a)
	r.NoteOn(60, 100)
	if want, got := 1, s.ActiveNotes(); want != got {
		t.Errorf("active notes: want %v, got %v", want, got)
	}

	a.engine.SetSynth(nil)
	r.NoteOn(61, 100)
	r.NoteOff(61)
	r.SustainOn()
	r.SustainOff()
}
