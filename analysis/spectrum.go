// Package analysis measures rendered audio.
package analysis

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Magnitudes returns the magnitude spectrum of samples after a Hann window, from DC up
// to Nyquist. Bin i is at i*sampleRate/len(samples) Hz.
func Magnitudes(samples []float64) []float64 {
	if len(samples) == 0 {
		return nil
	}
	w := window.Hann(len(samples))
	x := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = s * w[i]
	}
	bins := fft.FFTReal(x)
	mags := make([]float64, len(bins)/2+1)
	for i := range mags {
		mags[i] = cmplx.Abs(bins[i]) / float64(len(x))
	}
	return mags
}

// DominantFrequency returns the frequency of the strongest spectral peak, refined by
// parabolic interpolation between neighbouring bins. DC is ignored.
func DominantFrequency(samples []float64, sampleRate float64) float64 {
	mags := Magnitudes(samples)
	if len(mags) < 3 {
		return 0
	}
	peak := 1
	for i := 2; i < len(mags); i++ {
		if mags[i] > mags[peak] {
			peak = i
		}
	}
	if mags[peak] == 0 {
		return 0
	}

	offset := 0.0
	if peak < len(mags)-1 {
		a, b, c := mags[peak-1], mags[peak], mags[peak+1]
		if d := a - 2*b + c; d != 0 {
			offset = 0.5 * (a - c) / d
		}
	}
	return (float64(peak) + offset) * sampleRate / float64(len(samples))
}

func Peak(samples []float64) float64 {
	var peak float64
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(s))
	}
	return peak
}

func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
