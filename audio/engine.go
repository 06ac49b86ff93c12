package audio

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var ErrRunning = errors.New("engine is running")

const (
	DefaultBufferSize = 256
	clipQueueSize     = 8
)

type EngineConfig struct {
	SampleRate int
	BufferSize int
	Device     int // DefaultDevice selects the host default
	Latency    LatencyHint
	Volume     float64
	Logger     *logrus.Entry
}

// synthRef boxes the interface so it can be published with an atomic pointer.
type synthRef struct{ Synthesizer }

type recordRef struct{ write func([]float32) }

// Engine drives the output stream. The synthesizer, volume and recording sink are
// published atomically so the audio callback never waits on the control goroutine.
type Engine struct {
	sink Sink
	cfg  EngineConfig
	log  *logrus.Entry

	synth  atomic.Pointer[synthRef]
	volume atomic.Uint64
	record atomic.Pointer[recordRef]
	clips  *clipQueue

	// audio thread only
	scratch []float64
	clip    []float64
	clipPos int

	mu      sync.Mutex
	device  int
	running atomic.Bool
}

func NewEngine(sink Sink, cfg EngineConfig) *Engine {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.WithField("component", "engine")
	}
	e := &Engine{
		sink:    sink,
		cfg:     cfg,
		log:     cfg.Logger,
		clips:   newClipQueue(clipQueueSize),
		scratch: make([]float64, cfg.BufferSize),
		device:  cfg.Device,
	}
	e.SetVolume(cfg.Volume)
	return e
}

func (e *Engine) SampleRate() int { return e.cfg.SampleRate }
func (e *Engine) BufferSize() int { return e.cfg.BufferSize }

// SetSynth publishes s to the audio callback. A nil synthesizer, including a nil pointer
// of a concrete type, renders silence.
func (e *Engine) SetSynth(s Synthesizer) {
	if isNil(s) {
		e.synth.Store(nil)
		return
	}
	e.synth.Store(&synthRef{s})
}

func isNil(s Synthesizer) bool {
	if s == nil {
		return true
	}
	switch v := reflect.ValueOf(s); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func (e *Engine) Synth() Synthesizer {
	ref := e.synth.Load()
	if ref == nil {
		return nil
	}
	return ref.Synthesizer
}

func (e *Engine) SetVolume(v float64) {
	if math.IsNaN(v) {
		v = 0
	}
	e.volume.Store(math.Float64bits(clamp(v, 0, 1)))
}

func (e *Engine) Volume() float64 {
	return math.Float64frombits(e.volume.Load())
}

// QueueAuxClip schedules a one-shot clip to be mixed into the output after any clips
// already queued. The clip must not be modified afterwards. It reports false when the
// clip is empty or the queue is full.
func (e *Engine) QueueAuxClip(clip []float64) bool {
	if len(clip) == 0 {
		return false
	}
	return e.clips.push(clip)
}

// SetRecordingSink installs fn to receive every output buffer after clipping. fn runs
// on the audio thread, must not block and must not retain the slice. nil removes it.
func (e *Engine) SetRecordingSink(fn func([]float32)) {
	if fn == nil {
		e.record.Store(nil)
		return
	}
	e.record.Store(&recordRef{fn})
}

func (e *Engine) Running() bool { return e.running.Load() }

func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running.Load() {
		return nil
	}
	if err := e.open(e.device); err != nil {
		return err
	}
	e.running.Store(true)
	e.log.WithFields(logrus.Fields{
		"device":      e.device,
		"sample_rate": e.cfg.SampleRate,
		"buffer_size": e.cfg.BufferSize,
		"latency":     e.cfg.Latency,
	}).Info("audio started")
	return nil
}

func (e *Engine) open(device int) error {
	params := StreamParams{
		SampleRate: e.cfg.SampleRate,
		BufferSize: e.cfg.BufferSize,
		Device:     device,
		Latency:    e.cfg.Latency,
	}
	if err := e.sink.Open(params); err != nil {
		return fmt.Errorf("open output device %d: %w", device, err)
	}
	if err := e.sink.Deliver(e.process); err != nil {
		return errors.Join(fmt.Errorf("start output device %d: %w", device, err), e.sink.Close())
	}
	return nil
}

// Stop tears down the stream. No callback runs after Stop returns.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running.Load() {
		return nil
	}
	e.running.Store(false)
	if err := e.sink.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	e.log.Info("audio stopped")
	return nil
}

// SetOutputDevice switches to device id, restarting the stream when running. If the new
// device cannot be opened the previous one is restored and the error returned.
func (e *Engine) SetOutputDevice(id int) error {
	if id < DefaultDevice {
		return fmt.Errorf("%w: %d", ErrInvalidDevice, id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.device
	if !e.running.Load() {
		e.device = id
		return nil
	}
	if err := e.sink.Close(); err != nil {
		e.log.WithError(err).Warn("closing output")
	}
	err := e.open(id)
	if err == nil {
		e.device = id
		e.log.WithField("device", id).Info("output device changed")
		return nil
	}
	if rerr := e.open(prev); rerr != nil {
		e.running.Store(false)
		return errors.Join(err, fmt.Errorf("restore device %d: %w", prev, rerr))
	}
	e.log.WithError(err).WithField("device", prev).Warn("output device restored")
	return err
}

func (e *Engine) OutputDevice() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.device
}

func (e *Engine) OutputDevices() ([]Device, error) { return e.sink.OutputDevices() }

func (e *Engine) DefaultOutputDevice() (int, error) { return e.sink.DefaultOutputDevice() }

// GenerateBuffer renders one buffer without a device. It fails with ErrRunning while
// the stream is running since the callback owns the render state then.
func (e *Engine) GenerateBuffer() ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running.Load() {
		return nil, ErrRunning
	}
	out := make([]float32, e.cfg.BufferSize)
	e.process(out)
	return out, nil
}

// process is the audio callback. It does not allocate or block except on the synth lock.
func (e *Engine) process(out []float32) {
	for start := 0; start < len(out); start += len(e.scratch) {
		end := min(start+len(e.scratch), len(out))
		e.render(out[start:end])
	}
	if rec := e.record.Load(); rec != nil {
		rec.write(out)
	}
}

func (e *Engine) render(out []float32) {
	buf := e.scratch[:len(out)]
	if ref := e.synth.Load(); ref != nil {
		ref.Generate(buf)
		vol := e.Volume()
		for n := range buf {
			buf[n] *= vol
		}
	} else {
		for n := range buf {
			buf[n] = 0
		}
	}

	e.mixClips(buf)

	for n, v := range buf {
		out[n] = float32(clipSample(v))
	}
}

// mixClips plays queued clips back to back, continuing a clip across buffers.
func (e *Engine) mixClips(buf []float64) {
	i := 0
	for i < len(buf) {
		if e.clip == nil {
			clip, ok := e.clips.pop()
			if !ok {
				return
			}
			e.clip, e.clipPos = clip, 0
		}
		n := copyAdd(buf[i:], e.clip[e.clipPos:])
		i += n
		e.clipPos += n
		if e.clipPos >= len(e.clip) {
			e.clip, e.clipPos = nil, 0
		}
	}
}

func copyAdd(dst, src []float64) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] += src[i]
	}
	return n
}

func clipSample(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, -1, 1)
}
