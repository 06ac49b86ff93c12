package audio

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/youpy/go-wav"
)

const recorderBlocks = 64

type recordBlock struct {
	n   int
	buf []float32
}

// WavRecorder captures engine output to a 16-bit mono WAV file. Write is safe to call
// from the audio callback: it copies into a preallocated block and hands it to a writer
// goroutine without waiting. When no block is free the audio is dropped and counted.
type WavRecorder struct {
	path       string
	file       *os.File
	sampleRate int
	log        *logrus.Entry

	free   chan *recordBlock
	filled chan *recordBlock
	stop   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool

	written atomic.Int64
	dropped atomic.Int64

	pcm []int16 // writer goroutine only
}

func NewWavRecorder(path string, sampleRate, blockSize int, log *logrus.Entry) (*WavRecorder, error) {
	if sampleRate <= 0 || blockSize <= 0 {
		return nil, errors.New("sample rate and block size must be positive")
	}
	if log == nil {
		log = logrus.WithField("component", "recorder")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	r := &WavRecorder{
		path:       path,
		file:       f,
		sampleRate: sampleRate,
		log:        log.WithField("path", path),
		free:       make(chan *recordBlock, recorderBlocks),
		filled:     make(chan *recordBlock, recorderBlocks),
		stop:       make(chan struct{}),
	}
	for i := 0; i < recorderBlocks; i++ {
		r.free <- &recordBlock{buf: make([]float32, blockSize)}
	}
	r.wg.Add(1)
	go r.run()
	return r, nil
}

// Write queues samples for the file. It never blocks.
func (r *WavRecorder) Write(samples []float32) {
	if r.closed.Load() {
		return
	}
	for len(samples) > 0 && !r.closed.Load() {
		var b *recordBlock
		select {
		case b = <-r.free:
		default:
			r.dropped.Add(int64(len(samples)))
			return
		}
		b.n = copy(b.buf, samples)
		samples = samples[b.n:]
		r.filled <- b
	}
}

func (r *WavRecorder) run() {
	defer r.wg.Done()
	for {
		select {
		case b := <-r.filled:
			r.collect(b)
		case <-r.stop:
			for {
				select {
				case b := <-r.filled:
					r.collect(b)
				default:
					return
				}
			}
		}
	}
}

func (r *WavRecorder) collect(b *recordBlock) {
	for _, v := range b.buf[:b.n] {
		r.pcm = append(r.pcm, int16(math.Round(float64(clipSample(float64(v)))*math.MaxInt16)))
	}
	r.written.Add(int64(b.n))
	r.free <- b
}

// Duration is the length of audio taken up by the writer so far. After Close it is the
// length of the file.
func (r *WavRecorder) Duration() time.Duration {
	return time.Duration(r.written.Load()) * time.Second / time.Duration(r.sampleRate)
}

// Dropped is the number of samples lost because the writer fell behind.
func (r *WavRecorder) Dropped() int64 { return r.dropped.Load() }

func (r *WavRecorder) Path() string { return r.path }

// Close stops accepting audio and writes the file.
func (r *WavRecorder) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	close(r.stop)
	r.wg.Wait()

	err := r.encode()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", r.path, err)
	}
	r.log.WithFields(logrus.Fields{
		"duration": r.Duration(),
		"dropped":  r.Dropped(),
	}).Info("recording saved")
	return nil
}

func (r *WavRecorder) encode() error {
	bw := bufio.NewWriter(r.file)
	w := wav.NewWriter(bw, uint32(len(r.pcm)), 1, uint32(r.sampleRate), 16)
	samples := make([]wav.Sample, 0, 4096)
	for start := 0; start < len(r.pcm); start += cap(samples) {
		samples = samples[:0]
		for _, v := range r.pcm[start:min(start+cap(samples), len(r.pcm))] {
			samples = append(samples, wav.Sample{Values: [2]int{int(v), int(v)}})
		}
		if err := w.WriteSamples(samples); err != nil {
			return err
		}
	}
	return bw.Flush()
}
