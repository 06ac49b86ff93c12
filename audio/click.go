package audio

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/gopxl/beep/v2"
	"github.com/youpy/go-wav"
)

const (
	clickLength    = 0.020
	clickDecay     = 50.0
	clickAmplitude = 0.5

	AccentClickHz = 1500.0
	NormalClickHz = 1000.0
)

// renderClick renders a short decaying sine burst.
func renderClick(freq, sampleRate float64) []float64 {
	n := int(math.Round(clickLength * sampleRate))
	clip := make([]float64, n)
	for i := range clip {
		t := float64(i) / sampleRate
		clip[i] = clickAmplitude * math.Exp(-clickDecay*t) * math.Sin(twoPi*freq*t)
	}
	return clip
}

// LoadClick reads a WAV file into a mono clip at sampleRate. Multichannel files are
// mixed down.
func LoadClick(path string, sampleRate int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := wav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	channels := int(format.NumChannels)
	if channels < 1 {
		return nil, fmt.Errorf("read %s: no channels", path)
	}

	var clip []float64
	for {
		samples, err := r.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for _, sample := range samples {
			var v float64
			for c := 0; c < channels; c++ {
				v += r.FloatValue(sample, uint(c))
			}
			clip = append(clip, v/float64(channels))
		}
	}
	if len(clip) == 0 {
		return nil, fmt.Errorf("read %s: no samples", path)
	}
	if int(format.SampleRate) == sampleRate {
		return clip, nil
	}
	return resample(clip, int(format.SampleRate), sampleRate)
}

func resample(clip []float64, from, to int) ([]float64, error) {
	pos := 0
	src := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= len(clip) {
			return 0, false
		}
		n := 0
		for n < len(samples) && pos < len(clip) {
			samples[n][0] = clip[pos]
			samples[n][1] = clip[pos]
			n++
			pos++
		}
		return n, true
	})
	r := beep.Resample(4, beep.SampleRate(from), beep.SampleRate(to), src)

	out := make([]float64, 0, len(clip)*to/from+1)
	buf := make([][2]float64, 512)
	for {
		n, ok := r.Stream(buf)
		for _, s := range buf[:n] {
			out = append(out, s[0])
		}
		if !ok {
			break
		}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
