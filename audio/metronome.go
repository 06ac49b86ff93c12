package audio

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	MinBPM     = 20.0
	MaxBPM     = 300.0
	DefaultBPM = 120.0
)

// Beat is delivered to the OnBeat callback. Index counts from 1 within the cycle.
type Beat struct {
	Index  int
	Accent bool
	At     time.Time // scheduled time of the beat
}

// ClipQueuer receives the rendered click of every beat.
type ClipQueuer interface {
	QueueAuxClip(clip []float64) bool
}

type MetronomeOptions struct {
	SampleRate    float64
	BPM           float64
	BeatsPerCycle int
	Accent        int
	Clock         Clock
	Logger        *logrus.Entry
}

// Metronome emits beats on absolute deadlines. Each firing schedules a single timer for
// the next deadline, so late firings neither accumulate drift nor burst to catch up.
type Metronome struct {
	clock Clock
	out   ClipQueuer
	log   *logrus.Entry

	// emitMu is held while a beat is delivered, so Stop can wait for it
	emitMu sync.Mutex

	mu          sync.Mutex
	bpm         float64
	interval    time.Duration
	beats       int
	accent      int
	index       int
	running     bool
	next        time.Time
	timer       Timer
	gen         uint64 // invalidates timers that were replaced or stopped
	onBeat      func(Beat)
	accentClick []float64
	normalClick []float64
	countIn     int
	countEnding bool // the next deadline ends the count-in
	countDone   func()
	dropped     int
}

// NewMetronome creates a stopped metronome that queues its clicks to out, which may be nil.
func NewMetronome(out ClipQueuer, opts MetronomeOptions) *Metronome {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.BPM == 0 {
		opts.BPM = DefaultBPM
	}
	if opts.BeatsPerCycle == 0 {
		opts.BeatsPerCycle = 4
	}
	if opts.Accent == 0 {
		opts.Accent = 1
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("component", "metronome")
	}
	m := &Metronome{
		clock:       opts.Clock,
		out:         out,
		log:         opts.Logger,
		accentClick: renderClick(AccentClickHz, opts.SampleRate),
		normalClick: renderClick(NormalClickHz, opts.SampleRate),
	}
	m.setBPM(opts.BPM)
	m.setMeter(opts.BeatsPerCycle, opts.Accent)
	return m
}

// OnBeat sets the function called for every beat. It runs on the timer goroutine and
// must not call Start or Stop; use CountIn for a metronome that stops itself.
func (m *Metronome) OnBeat(fn func(Beat)) {
	m.mu.Lock()
	m.onBeat = fn
	m.mu.Unlock()
}

// SetClicks replaces the accent and normal clicks. A nil clip keeps the current one.
func (m *Metronome) SetClicks(accent, normal []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if accent != nil {
		m.accentClick = accent
	}
	if normal != nil {
		m.normalClick = normal
	}
}

// Start fires the first beat immediately.
func (m *Metronome) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.gen++
	gen := m.gen
	m.next = m.clock.Now()
	m.mu.Unlock()

	m.log.WithField("bpm", m.BPM()).Debug("metronome started")
	m.tick(gen)
}

// CountIn plays beats clicks from the top of the cycle, then stops and calls done at
// the time the following beat would have played.
func (m *Metronome) CountIn(beats int, done func()) {
	m.Stop()
	if beats <= 0 {
		if done != nil {
			done()
		}
		return
	}
	m.mu.Lock()
	m.countIn = beats
	m.countDone = done
	m.index = 0
	m.mu.Unlock()
	m.Start()
}

// Stop cancels the pending beat. No beat is delivered after Stop returns.
func (m *Metronome) Stop() {
	m.mu.Lock()
	wasRunning := m.running
	m.halt()
	m.countIn = 0
	m.countEnding = false
	m.countDone = nil
	m.mu.Unlock()

	// wait for a beat that is being delivered right now
	m.emitMu.Lock()
	m.emitMu.Unlock()

	if wasRunning {
		m.log.Debug("metronome stopped")
	}
}

// halt must be called with m.mu held.
func (m *Metronome) halt() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.running = false
	m.gen++
	m.next = time.Time{}
}

func (m *Metronome) tick(gen uint64) {
	m.emitMu.Lock()
	m.mu.Lock()
	if !m.running || gen != m.gen {
		m.mu.Unlock()
		m.emitMu.Unlock()
		return
	}
	if m.countEnding {
		done := m.countDone
		m.countEnding = false
		m.countDone = nil
		m.halt()
		m.mu.Unlock()
		m.emitMu.Unlock()
		if done != nil {
			done()
		}
		return
	}
	m.index = m.index%m.beats + 1
	beat := Beat{Index: m.index, Accent: m.index == m.accent, At: m.next}
	click := m.normalClick
	if beat.Accent {
		click = m.accentClick
	}

	if m.countIn > 0 {
		m.countIn--
		m.countEnding = m.countIn == 0
	}
	now := m.clock.Now()
	m.next = m.next.Add(m.interval)
	for !m.next.After(now) {
		m.next = m.next.Add(m.interval)
	}
	m.timer = m.clock.AfterFunc(m.next.Sub(now), func() { m.tick(gen) })
	onBeat := m.onBeat
	m.mu.Unlock()

	if m.out != nil && !m.out.QueueAuxClip(click) {
		m.mu.Lock()
		m.dropped++
		m.mu.Unlock()
	}
	if onBeat != nil {
		onBeat(beat)
	}
	m.emitMu.Unlock()
}

// SetBPM clamps bpm to 20-300. A running metronome plays its next beat one new interval
// from now.
func (m *Metronome) SetBPM(bpm float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setBPM(bpm)
	if !m.running {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.gen++
	gen := m.gen
	now := m.clock.Now()
	m.next = now.Add(m.interval)
	m.timer = m.clock.AfterFunc(m.interval, func() { m.tick(gen) })
}

func (m *Metronome) setBPM(bpm float64) {
	if bpm != bpm {
		bpm = DefaultBPM
	}
	m.bpm = clamp(bpm, MinBPM, MaxBPM)
	m.interval = time.Duration(60 / m.bpm * float64(time.Second))
}

// SetMeter sets the cycle length and the accented beat. Both are at least 1 and the
// accent is at most beats.
func (m *Metronome) SetMeter(beats, accent int) {
	m.mu.Lock()
	m.setMeter(beats, accent)
	m.mu.Unlock()
}

func (m *Metronome) setMeter(beats, accent int) {
	m.beats = max(beats, 1)
	m.accent = min(max(accent, 1), m.beats)
}

// ResetCounter makes the next beat the first of the cycle.
func (m *Metronome) ResetCounter() {
	m.mu.Lock()
	m.index = 0
	m.mu.Unlock()
}

func (m *Metronome) BPM() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bpm
}

func (m *Metronome) Meter() (beats, accent int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beats, m.accent
}

func (m *Metronome) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Dropped returns how many clicks were dropped because the clip queue was full.
func (m *Metronome) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}
