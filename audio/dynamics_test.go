package audio

import (
	"math"
	"testing"
)

func TestPolyphonyGain(t *testing.T) {
	tests := []struct {
		voices int
		comp   float64
		want   float64
	}{
		{0, 0.25, 1},
		{1, 0.25, 1},
		{5, 0.25, 0.5},
		{3, 0, 1},
	}
	for _, test := range tests {
		if got := polyphonyGain(test.voices, test.comp); math.Abs(got-test.want) > 1e-12 {
			t.Errorf("polyphonyGain(%v, %v): want %v, got %v", test.voices, test.comp, test.want, got)
		}
	}
}

func TestGainSmootherRamps(t *testing.T) {
	g := newGainSmoother(mixAttack, mixRelease)
	buf := []float64{1, 1, 1, 1}
	g.apply(buf, 0)

	if want, got := 1-mixAttack, g.gain; math.Abs(want-got) > 1e-12 {
		t.Errorf("gain after one buffer: want %v, got %v", want, got)
	}
	if want, got := g.gain, buf[3]; math.Abs(want-got) > 1e-12 {
		t.Errorf("last sample: want %v, got %v", want, got)
	}
	for n := 1; n < len(buf); n++ {
		if buf[n] >= buf[n-1] {
			t.Errorf("gain should ramp down across the buffer: %v", buf)
			break
		}
	}

	// rising gain moves at the release rate
	prev := g.gain
	g.apply([]float64{1}, 1)
	if want, got := prev+(1-prev)*mixRelease, g.gain; math.Abs(want-got) > 1e-12 {
		t.Errorf("rising gain: want %v, got %v", want, got)
	}
}

func TestPeakLimiter(t *testing.T) {
	l := newPeakLimiter(limiterTarget, limiterAttack, limiterRelease)
	amps := []float64{0.5, 3, 10, 0.9, 2, 0.1, 40, 1}
	for _, amp := range amps {
		buf := make([]float64, 256)
		for n := range buf {
			buf[n] = amp * math.Sin(float64(n)/10)
		}
		l.process(buf)
		for _, v := range buf {
			if math.Abs(v) > limiterTarget+1e-12 {
				t.Fatalf("amplitude %v: sample %v exceeds %v", amp, v, limiterTarget)
			}
		}
	}
}

func TestPeakLimiterPassesQuietSignal(t *testing.T) {
	l := newPeakLimiter(limiterTarget, limiterAttack, limiterRelease)
	buf := []float64{0.1, -0.5, 0.9}
	l.process(buf)
	if want, got := -0.5, buf[1]; want != got {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestToneFilterBypass(t *testing.T) {
	var f toneFilter
	f.calculateCoefficients(0, 0, 44100)
	buf := []float64{1, -1, 0.5}
	f.process(buf)
	if want, got := 0.5, buf[2]; want != got {
		t.Errorf("bypassed filter changed signal: want %v, got %v", want, got)
	}
}

func TestToneFilterRemovesDC(t *testing.T) {
	var f toneFilter
	f.calculateCoefficients(30, 0, 44100)
	buf := make([]float64, 44100)
	for n := range buf {
		buf[n] = 1
	}
	f.process(buf)
	if got := math.Abs(buf[len(buf)-1]); got > 1e-3 {
		t.Errorf("high-pass left DC offset %v", got)
	}
}
