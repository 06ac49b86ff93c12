package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mrdg/keybed/audio"
	"github.com/mrdg/keybed/input"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := loadConfig(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	log := logrus.WithField("component", "main")

	if cfg.mlock {
		if err := lockMemory(); err != nil {
			log.WithError(err).Warn("memory not locked")
		}
	}

	var commands []string
	if cfg.run != "" {
		commands, err = readCommands(cfg.run)
		if err != nil {
			log.Fatal(err)
		}
	}

	sink, closeSink, err := newSink(cfg.backend)
	if err != nil {
		log.Fatal(err)
	}
	defer closeSink()

	a, err := newApp(cfg, sink, os.Stdout)
	if err != nil {
		log.Fatal(err)
	}
	if err := a.engine.Start(); err != nil {
		log.Fatal(err)
	}
	defer a.shutdown()
	log.Info(cfg)

	if !cfg.noMidi {
		if err := a.connectMIDI(cfg.midiPort); err != nil {
			log.WithError(err).Warn("no MIDI input, use the console or the midi command")
		}
	}

	for _, line := range commands {
		if _, err := a.eval(line); err != nil {
			log.Fatal(err)
		}
	}

	if err := repl(a); err != nil && err != io.EOF {
		fmt.Println(err)
	}
}

func readCommands(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var commands []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		commands = append(commands, strings.TrimSpace(scanner.Text()))
	}
	return commands, scanner.Err()
}

func newSink(backend string) (audio.Sink, func(), error) {
	switch backend {
	case "oto":
		return audio.NewOtoSink(), func() {}, nil
	case "null":
		return audio.NewNullSink(), func() {}, nil
	}
	pa, err := audio.NewPortAudioSink()
	if err != nil {
		return nil, nil, fmt.Errorf("portaudio: %w", err)
	}
	return pa, func() {
		if err := pa.Terminate(); err != nil {
			logrus.WithError(err).Warn("portaudio terminate")
		}
	}, nil
}

// app owns everything the console controls.
type app struct {
	cfg         config
	engine      *audio.Engine
	metronome   *audio.Metronome
	props       *audio.Props
	instruments audio.Instruments
	midi        *input.Listener
	out         io.Writer
	log         *logrus.Entry

	mu       sync.Mutex // guards recorder, a count-in may start it from the timer goroutine
	recorder *audio.WavRecorder
}

func newApp(cfg config, sink audio.Sink, out io.Writer) (*app, error) {
	instruments := audio.DefaultInstruments()
	a := &app{
		cfg:         cfg,
		instruments: instruments,
		out:         out,
		log:         logrus.WithField("component", "app"),
	}
	a.engine = audio.NewEngine(sink, audio.EngineConfig{
		SampleRate: cfg.sampleRate,
		BufferSize: cfg.bufferSize,
		Device:     cfg.device,
		Latency:    cfg.latency,
		Volume:     cfg.volume,
	})
	synth, err := a.newSynth(cfg.instrument)
	if err != nil {
		return nil, err
	}
	a.engine.SetSynth(synth)

	a.metronome = audio.NewMetronome(a.engine, audio.MetronomeOptions{
		SampleRate:    float64(cfg.sampleRate),
		BPM:           cfg.bpm,
		BeatsPerCycle: cfg.beats,
		Accent:        cfg.accent,
	})
	if err := a.loadClicks(cfg.accentWav, cfg.normalWav); err != nil {
		return nil, err
	}
	a.props = audio.NewControlProps(a.engine, a.metronome, instruments, synth.Instrument())
	return a, nil
}

func (a *app) newSynth(instrument string) (*audio.Synth, error) {
	return audio.NewSynth(a.instruments, audio.SynthOptions{
		SampleRate: float64(a.cfg.sampleRate),
		MaxVoices:  a.cfg.maxVoices,
		Instrument: instrument,
		BlockSize:  a.cfg.bufferSize,
		Logger:     logrus.WithField("component", "synth"),
	})
}

func (a *app) loadClicks(accentPath, normalPath string) error {
	var accent, normal []float64
	var err error
	if accentPath != "" {
		if accent, err = audio.LoadClick(accentPath, a.cfg.sampleRate); err != nil {
			return err
		}
	}
	if normalPath != "" {
		if normal, err = audio.LoadClick(normalPath, a.cfg.sampleRate); err != nil {
			return err
		}
	}
	a.metronome.SetClicks(accent, normal)
	return nil
}

func (a *app) connectMIDI(port string) error {
	if a.midi != nil {
		if err := a.midi.Close(); err != nil {
			a.log.WithError(err).Warn("closing midi input")
		}
		a.midi = nil
	}
	l, err := input.Listen(port, router{a.engine}, nil)
	if err != nil {
		return err
	}
	a.midi = l
	return nil
}

func (a *app) shutdown() {
	a.metronome.Stop()
	if a.midi != nil {
		if err := a.midi.Close(); err != nil {
			a.log.WithError(err).Warn("closing midi input")
		}
	}
	if err := a.stopRecording(); err != nil {
		a.log.WithError(err).Error("saving recording")
	}
	if err := a.engine.Stop(); err != nil {
		a.log.WithError(err).Error("stopping audio")
	}
}

func (a *app) startRecording(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.recorder != nil {
		return fmt.Errorf("already recording to %s", a.recorder.Path())
	}
	rec, err := audio.NewWavRecorder(path, a.engine.SampleRate(), a.engine.BufferSize(),
		logrus.WithField("component", "recorder"))
	if err != nil {
		return err
	}
	a.recorder = rec
	a.engine.SetRecordingSink(rec.Write)
	return nil
}

func (a *app) stopRecording() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.recorder == nil {
		return nil
	}
	a.engine.SetRecordingSink(nil)
	rec := a.recorder
	a.recorder = nil
	return rec.Close()
}

func (a *app) recording() *audio.WavRecorder {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recorder
}

// router sends input events to whichever synthesizer the engine is playing, so a
// hot-swapped synth takes over immediately.
type router struct {
	engine *audio.Engine
}

func (r router) NoteOn(note, velocity int) {
	if s := r.engine.Synth(); s != nil {
		s.NoteOn(note, velocity)
	}
}

func (r router) NoteOff(note int) {
	if s := r.engine.Synth(); s != nil {
		s.NoteOff(note)
	}
}

func (r router) SustainOn() {
	if s := r.engine.Synth(); s != nil {
		s.SustainOn()
	}
}

func (r router) SustainOff() {
	if s := r.engine.Synth(); s != nil {
		s.SustainOff()
	}
}
