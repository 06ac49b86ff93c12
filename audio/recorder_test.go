package audio

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/youpy/go-wav"
)

func readWav(t *testing.T, path string) (*wav.WavFormat, []float64) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r := wav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		t.Fatal(err)
	}
	var out []float64
	for {
		samples, err := r.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		for _, s := range samples {
			out = append(out, r.FloatValue(s, 0))
		}
	}
	return format, out
}

func TestWavRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	rec, err := NewWavRecorder(path, 8000, 256, nil)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]float32, 1000)
	for n := range buf {
		buf[n] = 0.5
	}
	rec.Write(buf)
	rec.Write(buf[:600])
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	if want, got := 200*time.Millisecond, rec.Duration(); want != got {
		t.Errorf("duration: want %v, got %v", want, got)
	}
	rec.Write(buf)
	if err := rec.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	format, samples := readWav(t, path)
	if want, got := uint32(8000), format.SampleRate; want != got {
		t.Errorf("sample rate: want %v, got %v", want, got)
	}
	if want, got := uint16(1), format.NumChannels; want != got {
		t.Errorf("channels: want %v, got %v", want, got)
	}
	if want, got := 1600, len(samples); want != got {
		t.Fatalf("samples: want %v, got %v", want, got)
	}
	for n, v := range samples {
		if math.Abs(v-0.5) > 1e-3 {
			t.Fatalf("sample %d: want 0.5, got %v", n, v)
		}
	}
}

func TestWavRecorderClips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loud.wav")
	rec, err := NewWavRecorder(path, 8000, 16, nil)
	if err != nil {
		t.Fatal(err)
	}
	rec.Write([]float32{3, -3, float32(math.NaN())})
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	_, samples := readWav(t, path)
	if len(samples) != 3 {
		t.Fatalf("want 3 samples, got %v", len(samples))
	}
	if samples[0] < 0.99 || samples[1] > -0.99 || samples[2] != 0 {
		t.Errorf("samples not clipped: %v", samples)
	}
}

func TestWavRecorderFromEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.wav")
	e, _ := newTestEngine(128)
	e.SetSynth(&constSynth{0.25})
	rec, err := NewWavRecorder(path, e.SampleRate(), e.BufferSize(), nil)
	if err != nil {
		t.Fatal(err)
	}
	e.SetRecordingSink(rec.Write)
	for n := 0; n < 10; n++ {
		if _, err := e.GenerateBuffer(); err != nil {
			t.Fatal(err)
		}
	}
	e.SetRecordingSink(nil)
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	_, samples := readWav(t, path)
	if want, got := 1280, len(samples); want != got {
		t.Errorf("samples: want %v, got %v", want, got)
	}
	if want, got := int64(0), rec.Dropped(); want != got {
		t.Errorf("dropped: want %v, got %v", want, got)
	}
}

func TestWavRecorderWriteRacingClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.wav")
	rec, err := NewWavRecorder(path, 8000, 256, nil)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]float32, 800)
	rec.Write(buf)
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	// a callback that passed the closed check just before Close flipped it
	rec.closed.Store(false)
	rec.Write(buf)
	rec.closed.Store(true)

	_, samples := readWav(t, path)
	if want, got := 800, len(samples); want != got {
		t.Fatalf("samples: want %v, got %v", want, got)
	}
	want := time.Duration(len(samples)) * time.Second / 8000
	if got := rec.Duration(); want != got {
		t.Errorf("duration should match the file: want %v, got %v", want, got)
	}
}
