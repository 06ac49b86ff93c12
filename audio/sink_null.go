package audio

import (
	"errors"
	"sync"
	"time"
)

// NullSink discards audio but calls process at the real buffer rate, for running
// without a sound card.
type NullSink struct {
	params StreamParams
	open   bool

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewNullSink() *NullSink {
	return &NullSink{}
}

func (s *NullSink) Open(p StreamParams) error {
	if s.open {
		return ErrStreamOpen
	}
	if p.Device != DefaultDevice {
		return ErrInvalidDevice
	}
	s.params = p
	s.open = true
	return nil
}

func (s *NullSink) Deliver(process func(out []float32)) error {
	if !s.open {
		return errors.New("stream not open")
	}
	s.stop = make(chan struct{})
	period := time.Duration(s.params.BufferSize) * time.Second / time.Duration(s.params.SampleRate)
	buf := make([]float32, s.params.BufferSize)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				process(buf)
			}
		}
	}()
	return nil
}

func (s *NullSink) Close() error {
	if !s.open {
		return nil
	}
	if s.stop != nil {
		close(s.stop)
		s.wg.Wait()
		s.stop = nil
	}
	s.open = false
	return nil
}

func (s *NullSink) OutputDevices() ([]Device, error) {
	return []Device{{ID: DefaultDevice, Name: "null", Default: true}}, nil
}

func (s *NullSink) DefaultOutputDevice() (int, error) { return DefaultDevice, nil }
