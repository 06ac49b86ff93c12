package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoSink plays through oto. Oto allows one context per process, so the context is
// created on first Open and the sample rate is fixed from then on. Only the default
// device is available.
type OtoSink struct {
	ctx        *oto.Context
	sampleRate int
	player     *oto.Player

	mu      sync.Mutex // held by Read while process runs
	process func(out []float32)
	buf     []float32
}

func NewOtoSink() *OtoSink {
	return &OtoSink{}
}

func (s *OtoSink) Open(p StreamParams) error {
	if p.Device != DefaultDevice {
		return fmt.Errorf("%w: oto plays on the default device only", ErrDeviceUnsupported)
	}
	if s.player != nil {
		return ErrStreamOpen
	}
	if s.ctx == nil {
		frame := time.Duration(p.BufferSize) * time.Second / time.Duration(p.SampleRate)
		op := &oto.NewContextOptions{
			SampleRate:   p.SampleRate,
			ChannelCount: 1,
			Format:       oto.FormatFloat32LE,
			BufferSize:   p.Latency.duration(2*frame, 8*frame),
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			return fmt.Errorf("oto context: %w", err)
		}
		<-ready
		s.ctx = ctx
		s.sampleRate = p.SampleRate
	} else if p.SampleRate != s.sampleRate {
		return fmt.Errorf("oto context runs at %d Hz, cannot reopen at %d Hz", s.sampleRate, p.SampleRate)
	}
	s.mu.Lock()
	if len(s.buf) < 4*p.BufferSize {
		s.buf = make([]float32, 4*p.BufferSize)
	}
	s.mu.Unlock()
	s.player = s.ctx.NewPlayer(s)
	return nil
}

// Read implements io.Reader for the oto player.
func (s *OtoSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(p) / 4
	if s.process == nil {
		for i := range p[:n*4] {
			p[i] = 0
		}
		return n * 4, nil
	}
	for off := 0; off < n; off += len(s.buf) {
		samples := s.buf[:min(len(s.buf), n-off)]
		s.process(samples)
		for i, v := range samples {
			binary.LittleEndian.PutUint32(p[(off+i)*4:], math.Float32bits(v))
		}
	}
	return n * 4, nil
}

func (s *OtoSink) Deliver(process func(out []float32)) error {
	if s.player == nil {
		return errors.New("stream not open")
	}
	s.mu.Lock()
	s.process = process
	s.mu.Unlock()
	s.player.Play()
	return nil
}

func (s *OtoSink) Close() error {
	if s.player == nil {
		return nil
	}
	player := s.player
	s.player = nil
	player.Pause()
	s.mu.Lock()
	s.process = nil
	s.mu.Unlock()
	return player.Close()
}

func (s *OtoSink) OutputDevices() ([]Device, error) {
	return []Device{{ID: DefaultDevice, Name: "default", Default: true}}, nil
}

func (s *OtoSink) DefaultOutputDevice() (int, error) { return DefaultDevice, nil }
