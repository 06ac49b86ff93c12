package audio

import "math"

// toneFilter is a one-pole high-pass followed by a one-pole low-pass. A cutoff of zero
// (or at or above Nyquist for the low-pass) bypasses that stage.
type toneFilter struct {
	hpAlpha float64
	lpAlpha float64
	hpOn    bool
	lpOn    bool

	// state
	hpPrevIn  float64
	hpPrevOut float64
	lpPrevOut float64
}

func (f *toneFilter) calculateCoefficients(highPassHz, lowPassHz, sampleRate float64) {
	dt := 1 / sampleRate

	f.hpOn = highPassHz > 0
	if f.hpOn {
		rc := 1 / (twoPi * highPassHz)
		f.hpAlpha = rc / (rc + dt)
	}

	f.lpOn = lowPassHz > 0 && lowPassHz < sampleRate/2
	if f.lpOn {
		rc := 1 / (twoPi * lowPassHz)
		f.lpAlpha = dt / (rc + dt)
	}
}

func (f *toneFilter) process(buf []float64) {
	if f.hpOn {
		a := f.hpAlpha
		for n, in := range buf {
			out := a * (f.hpPrevOut + in - f.hpPrevIn)
			f.hpPrevIn = in
			f.hpPrevOut = out
			buf[n] = out
		}
	}
	if f.lpOn {
		a := f.lpAlpha
		for n, in := range buf {
			f.lpPrevOut += a * (in - f.lpPrevOut)
			buf[n] = f.lpPrevOut
		}
	}
	// keep denormals out of the feedback path once the input goes silent
	if math.Abs(f.hpPrevOut) < 1e-30 {
		f.hpPrevOut = 0
	}
	if math.Abs(f.lpPrevOut) < 1e-30 {
		f.lpPrevOut = 0
	}
}

func (f *toneFilter) reset() {
	f.hpPrevIn, f.hpPrevOut, f.lpPrevOut = 0, 0, 0
}
