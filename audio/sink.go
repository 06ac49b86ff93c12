package audio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"
)

var (
	ErrInvalidDevice     = errors.New("invalid output device")
	ErrDeviceUnsupported = errors.New("output device selection not supported")
	ErrStreamOpen        = errors.New("stream already open")
)

// DefaultDevice selects the host's default output.
const DefaultDevice = -1

// Sink abstracts the host audio API. Open prepares a mono float32 stream, Deliver starts
// calling process from the audio thread, Close stops the stream and returns only once no
// further process call can happen.
type Sink interface {
	Open(p StreamParams) error
	Deliver(process func(out []float32)) error
	Close() error
	OutputDevices() ([]Device, error)
	DefaultOutputDevice() (int, error)
}

type Device struct {
	ID      int
	Name    string
	Default bool
}

type StreamParams struct {
	SampleRate int
	BufferSize int
	Device     int
	Latency    LatencyHint
}

type latencyMode int

const (
	latencyLow latencyMode = iota
	latencyHigh
	latencyExplicit
)

// LatencyHint asks the host for its low or high default output latency, or an
// explicit latency in seconds.
type LatencyHint struct {
	mode    latencyMode
	seconds float64
}

var (
	LatencyLow  = LatencyHint{mode: latencyLow}
	LatencyHigh = LatencyHint{mode: latencyHigh}
)

func LatencySeconds(s float64) LatencyHint {
	return LatencyHint{mode: latencyExplicit, seconds: s}
}

func ParseLatency(s string) (LatencyHint, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "low":
		return LatencyLow, nil
	case "high":
		return LatencyHigh, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return LatencyHint{}, fmt.Errorf("latency must be low, high or seconds: %q", s)
	}
	if f <= 0 || f > 1 {
		return LatencyHint{}, fmt.Errorf("latency out of range 0-1s: %v", f)
	}
	return LatencySeconds(f), nil
}

func (l LatencyHint) String() string {
	switch l.mode {
	case latencyHigh:
		return "high"
	case latencyExplicit:
		return strconv.FormatFloat(l.seconds, 'f', -1, 64)
	}
	return "low"
}

func (l LatencyHint) duration(low, high time.Duration) time.Duration {
	switch l.mode {
	case latencyHigh:
		return high
	case latencyExplicit:
		return time.Duration(l.seconds * float64(time.Second))
	}
	return low
}

// PortAudioSink plays through PortAudio. Device IDs are indices into portaudio.Devices.
type PortAudioSink struct {
	stream  *portaudio.Stream
	process func(out []float32)
}

func NewPortAudioSink() (*PortAudioSink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	return &PortAudioSink{}, nil
}

func (s *PortAudioSink) Open(p StreamParams) error {
	if s.stream != nil {
		return ErrStreamOpen
	}
	dev, err := s.device(p.Device)
	if err != nil {
		return err
	}
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  p.Latency.duration(dev.DefaultLowOutputLatency, dev.DefaultHighOutputLatency),
		},
		SampleRate:      float64(p.SampleRate),
		FramesPerBuffer: p.BufferSize,
	}
	stream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		return fmt.Errorf("open %s: %w", dev.Name, err)
	}
	s.stream = stream
	return nil
}

func (s *PortAudioSink) callback(out []float32) {
	if s.process == nil {
		for n := range out {
			out[n] = 0
		}
		return
	}
	s.process(out)
}

func (s *PortAudioSink) Deliver(process func(out []float32)) error {
	if s.stream == nil {
		return errors.New("stream not open")
	}
	s.process = process
	return s.stream.Start()
}

func (s *PortAudioSink) Close() error {
	if s.stream == nil {
		return nil
	}
	stream := s.stream
	s.stream = nil
	var stopErr error
	if stream.Info() != nil {
		stopErr = stream.Stop()
	}
	if err := stream.Close(); err != nil {
		return err
	}
	s.process = nil
	return stopErr
}

// Terminate closes any open stream and releases PortAudio.
func (s *PortAudioSink) Terminate() error {
	return errors.Join(s.Close(), portaudio.Terminate())
}

func (s *PortAudioSink) device(id int) (*portaudio.DeviceInfo, error) {
	if id < 0 {
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if id >= len(devices) || devices[id].MaxOutputChannels < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDevice, id)
	}
	return devices[id], nil
}

func (s *PortAudioSink) OutputDevices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var defName string
	if def, err := portaudio.DefaultOutputDevice(); err == nil {
		defName = def.Name
	}
	var out []Device
	for id, d := range devices {
		if d.MaxOutputChannels < 1 {
			continue
		}
		out = append(out, Device{ID: id, Name: d.Name, Default: d.Name == defName})
	}
	return out, nil
}

func (s *PortAudioSink) DefaultOutputDevice() (int, error) {
	devices, err := s.OutputDevices()
	if err != nil {
		return DefaultDevice, err
	}
	for _, d := range devices {
		if d.Default {
			return d.ID, nil
		}
	}
	return DefaultDevice, nil
}
