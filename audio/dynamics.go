package audio

import "math"

const (
	mixAttack  = 0.35
	mixRelease = 0.06

	limiterTarget  = 0.92
	limiterAttack  = 0.5
	limiterRelease = 0.05
)

// polyphonyGain is the mix gain that keeps n simultaneous voices at a similar loudness.
func polyphonyGain(n int, compensation float64) float64 {
	if n <= 1 {
		return 1
	}
	return 1 / (1 + compensation*float64(n-1))
}

// gainSmoother moves towards a target gain once per buffer, quickly downwards and
// slowly upwards, and ramps linearly across the buffer so there are no steps.
type gainSmoother struct {
	gain    float64
	attack  float64
	release float64
}

func newGainSmoother(attack, release float64) gainSmoother {
	return gainSmoother{gain: 1, attack: attack, release: release}
}

func (g *gainSmoother) apply(buf []float64, target float64) {
	prev := g.gain
	coef := g.release
	if target < g.gain {
		coef = g.attack
	}
	g.gain += (target - g.gain) * coef
	if len(buf) == 0 {
		return
	}
	step := (g.gain - prev) / float64(len(buf))
	for n := range buf {
		buf[n] *= prev + step*float64(n+1)
	}
}

// peakLimiter scales each buffer so its peak stays at or below target. The gain is
// smoothed, but the applied gain never exceeds what the current buffer needs.
type peakLimiter struct {
	target  float64
	attack  float64
	release float64
	gain    float64
}

func newPeakLimiter(target, attack, release float64) peakLimiter {
	return peakLimiter{target: target, attack: attack, release: release, gain: 1}
}

func (l *peakLimiter) process(buf []float64) {
	var peak float64
	for _, s := range buf {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	needed := 1.0
	if peak > l.target {
		needed = l.target / peak
	}
	coef := l.release
	if needed < l.gain {
		coef = l.attack
	}
	l.gain += (needed - l.gain) * coef

	g := math.Min(l.gain, needed)
	if g >= 1 {
		return
	}
	for n := range buf {
		buf[n] *= g
	}
}
