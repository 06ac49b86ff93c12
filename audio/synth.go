package audio

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultSampleRate = 44100
	DefaultMaxVoices  = 88
	DefaultBlockSize  = 1024

	numNotes = 128
	numTails = 8

	// stealLevel caps the envelope of a stolen voice so it fades out from near silence.
	stealLevel = 0.05
)

// Synthesizer is the capability set the engine and the input layer depend on.
// Generate overwrites all of buf.
type Synthesizer interface {
	Generate(buf []float64)
	NoteOn(note, velocity int)
	NoteOff(note int)
	SustainOn()
	SustainOff()
}

type SynthOptions struct {
	SampleRate float64
	MaxVoices  int
	Instrument string // empty selects the registry default
	BlockSize  int    // largest buffer Generate is expected to be called with
	Seed       uint64 // phase randomisation seed, 0 seeds from the clock
	Logger     *logrus.Entry
}

// Synth is a polyphonic additive synthesizer. Note events and Generate may be called
// from different goroutines; both take the same short, allocation free lock.
type Synth struct {
	instruments Instruments
	sampleRate  float64
	dt          float64
	maxVoices   int
	log         *logrus.Entry

	mu        sync.Mutex
	profile   InstrumentProfile
	rng       *rand.Rand
	notes     [numNotes]voice
	playing   [numNotes]bool
	live      []int // note numbers of playing voices
	sustain   bool
	sustained [numNotes]bool
	tails     [numTails]voice // stolen voices fading out
	steals    int
	mix       gainSmoother
	limiter   peakLimiter
	filter    toneFilter
	env       []float64
}

var _ Synthesizer = (*Synth)(nil)

func NewSynth(instruments Instruments, opts SynthOptions) (*Synth, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.MaxVoices <= 0 {
		opts.MaxVoices = DefaultMaxVoices
	}
	if opts.MaxVoices > numNotes {
		opts.MaxVoices = numNotes
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}
	if opts.Instrument == "" {
		opts.Instrument = instruments.Default()
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("component", "synth")
	}
	profile, err := instruments.Lookup(opts.Instrument)
	if err != nil {
		return nil, err
	}
	s := &Synth{
		instruments: instruments,
		sampleRate:  opts.SampleRate,
		dt:          1 / opts.SampleRate,
		maxVoices:   opts.MaxVoices,
		log:         opts.Logger,
		profile:     profile,
		rng:         rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		live:        make([]int, 0, numNotes),
		mix:         newGainSmoother(mixAttack, mixRelease),
		limiter:     newPeakLimiter(limiterTarget, limiterAttack, limiterRelease),
		env:         make([]float64, opts.BlockSize),
	}
	for n := range s.notes {
		s.notes[n].env.stage = stageOff
	}
	for n := range s.tails {
		s.tails[n].env.stage = stageOff
	}
	s.filter.calculateCoefficients(profile.HighPassHz, profile.LowPassHz, s.sampleRate)
	return s, nil
}

// NoteOn starts note (0-127) at velocity (0-127). Notes outside the MIDI range are
// ignored. A note that is already sounding is re-triggered from its current level.
func (s *Synth) NoteOn(note, velocity int) {
	if note < 0 || note >= numNotes {
		return
	}
	if velocity < 0 {
		velocity = 0
	} else if velocity > 127 {
		velocity = 127
	}

	s.mu.Lock()
	stolen := -1
	v := &s.notes[note]
	if s.playing[note] {
		v.velocity = float64(velocity) / 127
		v.env.stage = stageAttack
		v.env.released = false
		s.sustained[note] = false
	} else {
		if len(s.live) >= s.maxVoices {
			stolen = s.steal()
		}
		freq := midiToFreq(note)
		*v = voice{
			note:     note,
			freq:     freq,
			velocity: float64(velocity) / 127,
			// random phase decorrelates voices struck together
			phase: s.rng.Float64() / freq,
			env:   envelope{stage: stageAttack},
		}
		s.playing[note] = true
		s.live = append(s.live, note)
	}
	s.mu.Unlock()

	if stolen >= 0 {
		s.log.WithFields(logrus.Fields{"stolen": stolen, "note": note}).Debug("voice limit reached")
	}
}

// steal moves the quietest voice into the tail pool and frees its slot. It returns the
// stolen note number. Must be called with s.mu held and at least one live voice.
func (s *Synth) steal() int {
	best := 0
	bestScore := math.Inf(1)
	for i, n := range s.live {
		v := &s.notes[n]
		if score := v.env.level * v.velocity; score < bestScore {
			best, bestScore = i, score
		}
	}
	note := s.live[best]
	v := s.notes[note]
	v.env.level = math.Min(v.env.level, stealLevel)
	v.env.released = true
	v.env.fade(stageRelease)

	s.tails[s.tailSlot()] = v
	s.sustained[note] = false
	s.playing[note] = false
	s.removeLive(best)
	s.steals++
	return note
}

func (s *Synth) tailSlot() int {
	slot := 0
	quietest := math.Inf(1)
	for n := range s.tails {
		t := &s.tails[n]
		if !t.active() {
			return n
		}
		if t.env.level < quietest {
			slot, quietest = n, t.env.level
		}
	}
	return slot
}

func (s *Synth) removeLive(i int) {
	last := len(s.live) - 1
	s.live[i] = s.live[last]
	s.live = s.live[:last]
}

// NoteOff releases note. While the sustain pedal is down the note decays slowly in the
// pedal stage until the pedal is lifted.
func (s *Synth) NoteOff(note int) {
	if note < 0 || note >= numNotes {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing[note] {
		return
	}
	v := &s.notes[note]
	if v.env.released {
		return
	}
	v.env.release(s.sustain)
	if s.sustain {
		s.sustained[note] = true
	}
}

func (s *Synth) SustainOn() {
	s.mu.Lock()
	s.sustain = true
	s.mu.Unlock()
}

// SustainOff lifts the pedal: every voice held by it moves into its normal release.
func (s *Synth) SustainOff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sustain = false
	for _, n := range s.live {
		if v := &s.notes[n]; v.env.stage == stagePedal {
			v.env.fade(stageRelease)
		}
	}
	for n := range s.sustained {
		s.sustained[n] = false
	}
}

// AllNotesOff releases every sounding note and lifts the pedal.
func (s *Synth) AllNotesOff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sustain = false
	for _, n := range s.live {
		s.notes[n].env.release(false)
		s.sustained[n] = false
	}
}

// Generate renders len(buf) samples. The output is gain compensated, limited and
// filtered but not clipped.
func (s *Synth) Generate(buf []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for n := range buf {
		buf[n] = 0
	}
	for start := 0; start < len(buf); start += len(s.env) {
		end := min(start+len(s.env), len(buf))
		s.generate(buf[start:end])
	}
}

func (s *Synth) generate(buf []float64) {
	voices := len(s.live)
	for i := 0; i < len(s.live); {
		n := s.live[i]
		v := &s.notes[n]
		v.render(buf, s.env, s.dt, &s.profile, s.sustain)
		if !v.active() {
			s.playing[n] = false
			s.sustained[n] = false
			s.removeLive(i)
			continue
		}
		i++
	}
	for n := range s.tails {
		if t := &s.tails[n]; t.active() {
			t.render(buf, s.env, s.dt, &s.profile, false)
		}
	}

	s.mix.apply(buf, polyphonyGain(voices, s.profile.PolyphonyCompensation))
	s.limiter.process(buf)
	s.filter.process(buf)
}

// ActiveNotes returns the number of voices in the note table.
func (s *Synth) ActiveNotes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Steals returns how many voices have been stolen since the synth was created.
func (s *Synth) Steals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steals
}

// SetInstrument switches to the named profile. Sounding voices keep their pitch and
// continue with the new envelope and timbre.
func (s *Synth) SetInstrument(name string) error {
	p, err := s.instruments.Lookup(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.profile = p
	s.filter.calculateCoefficients(p.HighPassHz, p.LowPassHz, s.sampleRate)
	s.mu.Unlock()
	return nil
}

func (s *Synth) Instrument() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Name
}

func (s *Synth) Instruments() Instruments { return s.instruments }

// voiceState reports the envelope of a playing note.
func (s *Synth) voiceState(note int) (level float64, st stage, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if note < 0 || note >= numNotes || !s.playing[note] {
		return 0, stageOff, false
	}
	v := &s.notes[note]
	return v.env.level, v.env.stage, true
}
