package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mrdg/keybed/audio"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle = lipgloss.NewStyle().Width(12).Align(lipgloss.Left).Foreground(lipgloss.Color("#666666"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))
	onStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true)
	offStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

type status struct {
	backend    string
	device     int
	running    bool
	sampleRate int
	bufferSize int
	latency    audio.LatencyHint
	volume     float64

	instrument string
	voices     int
	maxVoices  int
	steals     int

	metronome bool
	bpm       float64
	beats     int
	accent    int
	dropped   int

	midiPort   string
	midiEvents int

	recording string
	recorded  time.Duration
}

// voiceCounter is implemented by synthesizers that report their voice usage.
type voiceCounter interface {
	ActiveNotes() int
	Steals() int
	Instrument() string
}

func (a *app) status() status {
	beats, accent := a.metronome.Meter()
	st := status{
		backend:    a.cfg.backend,
		device:     a.engine.OutputDevice(),
		running:    a.engine.Running(),
		sampleRate: a.engine.SampleRate(),
		bufferSize: a.engine.BufferSize(),
		latency:    a.cfg.latency,
		volume:     a.engine.Volume(),
		maxVoices:  a.cfg.maxVoices,
		metronome:  a.metronome.Running(),
		bpm:        a.metronome.BPM(),
		beats:      beats,
		accent:     accent,
		dropped:    a.metronome.Dropped(),
	}
	if s, ok := a.engine.Synth().(voiceCounter); ok {
		st.instrument = s.Instrument()
		st.voices = s.ActiveNotes()
		st.steals = s.Steals()
	}
	if a.midi != nil {
		st.midiPort = a.midi.Port()
		st.midiEvents, _ = a.midi.Stats()
	}
	if rec := a.recording(); rec != nil {
		st.recording = rec.Path()
		st.recorded = rec.Duration()
	}
	return st
}

func renderStatus(st status) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("keybed") + "\n")

	audioState := offStyle.Render("stopped")
	if st.running {
		audioState = onStyle.Render("running")
	}
	row(&b, "audio", fmt.Sprintf("%s %s, device %s", audioState, st.backend, deviceName(st.device)))
	row(&b, "stream", valueStyle.Render(fmt.Sprintf("%d Hz, %d frames, latency %s",
		st.sampleRate, st.bufferSize, st.latency)))
	row(&b, "volume", valueStyle.Render(fmt.Sprintf("%.2f", st.volume)))

	instrument := st.instrument
	if instrument == "" {
		instrument = "none"
	}
	row(&b, "synth", valueStyle.Render(fmt.Sprintf("%s, %d/%d voices, %d stolen",
		instrument, st.voices, st.maxVoices, st.steals)))

	metronome := offStyle.Render("off")
	if st.metronome {
		metronome = onStyle.Render("on")
	}
	row(&b, "metronome", fmt.Sprintf("%s %s", metronome, valueStyle.Render(fmt.Sprintf(
		"%g bpm, %d beats, accent on %d", st.bpm, st.beats, st.accent))))
	if st.dropped > 0 {
		row(&b, "", offStyle.Render(fmt.Sprintf("%d clicks dropped", st.dropped)))
	}

	midi := offStyle.Render("not connected")
	if st.midiPort != "" {
		midi = valueStyle.Render(fmt.Sprintf("%s, %d events", st.midiPort, st.midiEvents))
	}
	row(&b, "midi", midi)

	if st.recording != "" {
		row(&b, "recording", onStyle.Render(fmt.Sprintf("%s %v", st.recording, st.recorded.Round(time.Second/10))))
	}
	return strings.TrimRight(b.String(), "\n")
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label) + value + "\n")
}

func renderDevices(devices []audio.Device, current int) string {
	if len(devices) == 0 {
		return offStyle.Render("no output devices")
	}
	var lines []string
	for _, d := range devices {
		marker := "  "
		if d.ID == current || (current == audio.DefaultDevice && d.Default) {
			marker = onStyle.Render("* ")
		}
		name := d.Name
		if d.Default {
			name += " (default)"
		}
		lines = append(lines, fmt.Sprintf("%s%s %s", marker, labelStyle.Width(4).Render(fmt.Sprint(d.ID)), name))
	}
	return strings.Join(lines, "\n")
}

func renderHelp(cmds []command, props []string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("commands") + "\n")
	for _, cmd := range cmds {
		b.WriteString("  " + cmd.usage + "\n")
	}
	b.WriteString(titleStyle.Render("properties") + "\n")
	b.WriteString("  " + strings.Join(props, ", "))
	return b.String()
}
