package audio

import "math"

const twoPi = 2 * math.Pi

// voice is the oscillator and envelope state of one sounding note.
type voice struct {
	note     int
	freq     float64
	velocity float64 // 0-1
	phase    float64 // seconds
	env      envelope
}

func (v *voice) active() bool { return v.env.stage != stageOff }

// render adds len(out) samples of this voice to out. env is scratch space of at least
// len(out) samples.
func (v *voice) render(out, env []float64, dt float64, p *InstrumentProfile, pedal bool) {
	env = env[:len(out)]
	v.env.render(env, dt, p, pedal)

	var weights [maxHarmonics]float64
	bright := brightness(v.freq)
	for n, h := range p.Harmonics {
		weights[n] = h.Amplitude * math.Pow(bright, math.Max(0, h.Multiplier-1))
	}
	amp := v.velocity * p.Gain * lowWeight(v.freq, p)

	t := v.phase
	for i := range out {
		if env[i] != 0 {
			var sample float64
			for n, h := range p.Harmonics {
				sample += weights[n] * math.Sin(twoPi*v.freq*h.Multiplier*t)
			}
			out[i] += sample * env[i] * amp
		}
		t += dt
	}
	v.phase = t
}

// brightness darkens the upper partials of low notes to avoid a buzzy bass.
func brightness(freq float64) float64 {
	return clamp(freq/1000, 0.30, 1.0)
}

func lowWeight(freq float64, p *InstrumentProfile) float64 {
	if p.LowBalanceHz <= 0 {
		return 1
	}
	return clamp(freq/p.LowBalanceHz, p.LowMinGain, 1.0)
}

func midiToFreq(note int) float64 {
	return math.Pow(2, float64(note-69)/12.0) * 440
}
