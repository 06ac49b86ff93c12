package audio

import "math"

type stage int

const (
	stageAttack stage = iota
	stageDecay
	stageSustain
	stagePedal
	stageRelease
	stageOff
)

func (s stage) String() string {
	switch s {
	case stageAttack:
		return "attack"
	case stageDecay:
		return "decay"
	case stageSustain:
		return "sustain"
	case stagePedal:
		return "pedal"
	case stageRelease:
		return "release"
	case stageOff:
		return "off"
	}
	return "unknown"
}

// envelope is a linear ADSR with an extra pedal stage. Stages only move forward:
// attack, decay, sustain, then pedal or release, then off.
type envelope struct {
	level    float64
	stage    stage
	released bool
	from     float64 // level the current pedal or release fade started at
}

// render writes the envelope for len(out) consecutive samples spaced dt apart. A single
// call may cross any number of stage boundaries; each stage contributes one linear segment.
func (e *envelope) render(out []float64, dt float64, p *InstrumentProfile, pedal bool) {
	i := 0
	for i < len(out) {
		switch e.stage {
		case stageAttack:
			if p.Attack <= 0 || e.level >= 1 {
				e.level = 1
				e.stage = stageDecay
				continue
			}
			i = e.ramp(out, i, dt/p.Attack, 1, stageDecay)
		case stageDecay:
			s := p.SustainLevel
			if p.Decay <= 0 || e.level <= s {
				e.level = s
				e.stage = stageSustain
				continue
			}
			i = e.ramp(out, i, -dt*(1-s)/p.Decay, s, stageSustain)
		case stageSustain:
			if e.released {
				if pedal {
					e.fade(stagePedal)
				} else {
					e.fade(stageRelease)
				}
				continue
			}
			e.level = p.SustainLevel
			for ; i < len(out); i++ {
				out[i] = e.level
			}
		case stagePedal:
			if p.PedalRelease <= 0 || e.level <= 0 {
				e.off()
				continue
			}
			i = e.ramp(out, i, e.fadeStep(dt, p.PedalRelease), 0, stageOff)
		case stageRelease:
			if p.Release <= 0 || e.level <= 0 {
				e.off()
				continue
			}
			i = e.ramp(out, i, e.fadeStep(dt, p.Release), 0, stageOff)
		default:
			e.off()
			for ; i < len(out); i++ {
				out[i] = 0
			}
		}
	}
}

// ramp moves the level by step per sample until it reaches target, writing from out[i].
// On reaching the target the stage becomes next. It returns the index of the first
// sample not written.
func (e *envelope) ramp(out []float64, i int, step, target float64, next stage) int {
	remaining := len(out) - i
	k := int(math.Ceil((target - e.level) / step))
	if k < 1 {
		k = 1
	}
	if k > remaining {
		for j := i; j < len(out); j++ {
			e.level = clamp(e.level+step, 0, 1)
			out[j] = e.level
		}
		return len(out)
	}
	for j := i; j < i+k-1; j++ {
		e.level = clamp(e.level+step, 0, 1)
		out[j] = e.level
	}
	e.level = target
	out[i+k-1] = target
	e.stage = next
	return i + k
}

func (e *envelope) off() {
	e.level = 0
	e.stage = stageOff
}

func (e *envelope) release(pedal bool) {
	e.released = true
	if pedal {
		e.fade(stagePedal)
	} else {
		e.fade(stageRelease)
	}
}

// fade enters the pedal or release stage. The fade reaches zero after the stage's full
// time whatever level it starts from.
func (e *envelope) fade(st stage) {
	e.stage = st
	e.from = e.level
}

func (e *envelope) fadeStep(dt, time float64) float64 {
	if e.from < e.level {
		e.from = e.level
	}
	return -dt * e.from / time
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
