package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mrdg/keybed/audio"
)

type config struct {
	sampleRate int
	bufferSize int
	latency    audio.LatencyHint
	device     int
	backend    string
	maxVoices  int
	instrument string
	volume     float64
	bpm        float64
	beats      int
	accent     int
	midiPort   string
	noMidi     bool
	accentWav  string
	normalWav  string
	run        string
	debug      bool
	mlock      bool
}

var backends = []string{"portaudio", "oto", "null"}

// envOverrides maps environment variables to the flags whose default they replace.
var envOverrides = map[string]string{
	"KEYBED_SAMPLE_RATE": "sample-rate",
	"KEYBED_BUFFER_SIZE": "buffer-size",
	"KEYBED_LATENCY":     "latency",
	"KEYBED_MAX_VOICES":  "max-voices",
	"KEYBED_BACKEND":     "backend",
	"KEYBED_MIDI_PORT":   "midi-port",
	"KEYBED_INSTRUMENT":  "instrument",
}

// loadConfig parses flags. Environment variables replace flag defaults, and flags given
// on the command line win over both.
func loadConfig(args []string, getenv func(string) string, stderr io.Writer) (config, error) {
	var cfg config
	var latency string

	fs := flag.NewFlagSet("keybed", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&cfg.sampleRate, "sample-rate", audio.DefaultSampleRate, "output sample rate in Hz")
	fs.IntVar(&cfg.bufferSize, "buffer-size", audio.DefaultBufferSize, "frames per audio callback")
	fs.StringVar(&latency, "latency", "low", "output latency: low, high or seconds")
	fs.IntVar(&cfg.device, "device", audio.DefaultDevice, "output device id, -1 for the default")
	fs.StringVar(&cfg.backend, "backend", "portaudio", "audio backend: "+strings.Join(backends, ", "))
	fs.IntVar(&cfg.maxVoices, "max-voices", audio.DefaultMaxVoices, "maximum simultaneous notes")
	fs.StringVar(&cfg.instrument, "instrument", "", "instrument to start with")
	fs.Float64Var(&cfg.volume, "volume", 0.8, "master volume 0-1")
	fs.Float64Var(&cfg.bpm, "bpm", audio.DefaultBPM, "metronome tempo")
	fs.IntVar(&cfg.beats, "beats", 4, "metronome beats per cycle")
	fs.IntVar(&cfg.accent, "accent", 1, "accented beat of the cycle")
	fs.StringVar(&cfg.midiPort, "midi-port", "", "MIDI input port name (substring match)")
	fs.BoolVar(&cfg.noMidi, "no-midi", false, "do not open a MIDI input")
	fs.StringVar(&cfg.accentWav, "accent-click", "", "WAV file for the accented click")
	fs.StringVar(&cfg.normalWav, "click", "", "WAV file for the normal click")
	fs.StringVar(&cfg.run, "run", "", "file with console commands to run at startup")
	fs.BoolVar(&cfg.debug, "debug", false, "debug logging")
	fs.BoolVar(&cfg.mlock, "mlock", false, "lock memory to avoid page faults in the audio thread")

	for env, name := range envOverrides {
		v := getenv(env)
		if v == "" {
			continue
		}
		f := fs.Lookup(name)
		if err := f.Value.Set(v); err != nil {
			return cfg, fmt.Errorf("%s: %w", env, err)
		}
		f.DefValue = v
	}
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	var err error
	if cfg.latency, err = audio.ParseLatency(latency); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c config) validate() error {
	if c.sampleRate < 8000 || c.sampleRate > 192000 {
		return fmt.Errorf("sample rate out of range 8000-192000: %d", c.sampleRate)
	}
	if c.bufferSize < 16 || c.bufferSize > 8192 {
		return fmt.Errorf("buffer size out of range 16-8192: %d", c.bufferSize)
	}
	if c.maxVoices < 1 || c.maxVoices > 128 {
		return fmt.Errorf("max voices out of range 1-128: %d", c.maxVoices)
	}
	if c.volume < 0 || c.volume > 1 {
		return fmt.Errorf("volume out of range 0-1: %v", c.volume)
	}
	if c.bpm < audio.MinBPM || c.bpm > audio.MaxBPM {
		return fmt.Errorf("bpm out of range %v-%v: %v", audio.MinBPM, audio.MaxBPM, c.bpm)
	}
	if c.beats < 1 || c.beats > 32 {
		return fmt.Errorf("beats out of range 1-32: %d", c.beats)
	}
	if c.accent < 1 || c.accent > c.beats {
		return fmt.Errorf("accent out of range 1-%d: %d", c.beats, c.accent)
	}
	for _, b := range backends {
		if b == c.backend {
			return nil
		}
	}
	return fmt.Errorf("unknown backend %q", c.backend)
}

func (c config) String() string {
	return fmt.Sprintf("%s %d Hz, %d frames, latency %s, device %s",
		c.backend, c.sampleRate, c.bufferSize, c.latency, deviceName(c.device))
}

func deviceName(id int) string {
	if id == audio.DefaultDevice {
		return "default"
	}
	return strconv.Itoa(id)
}
