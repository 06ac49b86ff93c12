package audio

var piano = InstrumentProfile{
	Name:         "Piano",
	Attack:       0.005,
	Decay:        0.35,
	SustainLevel: 0.55,
	Release:      0.35,
	PedalRelease: 3.5,
	Gain:         0.32,
	Harmonics: []Harmonic{
		{1, 1.0},
		{2, 0.45},
		{3, 0.22},
		{4, 0.12},
		{5, 0.06},
		{6, 0.03},
	},
	PolyphonyCompensation: 0.22,
	LowBalanceHz:          220,
	LowMinGain:            0.55,
	HighPassHz:            30,
	LowPassHz:             9000,
}

var guitar = InstrumentProfile{
	Name:         "Guitar",
	Attack:       0.003,
	Decay:        0.6,
	SustainLevel: 0.25,
	Release:      0.2,
	PedalRelease: 2.0,
	Gain:         0.36,
	Harmonics: []Harmonic{
		{1, 1.0},
		{2, 0.6},
		{3, 0.35},
		{4, 0.22},
		{5, 0.12},
		{6, 0.08},
		{7, 0.04},
	},
	PolyphonyCompensation: 0.25,
	LowBalanceHz:          160,
	LowMinGain:            0.6,
	HighPassHz:            60,
	LowPassHz:             6500,
}

// DefaultInstruments returns a fresh registry with the built-in instruments.
// Piano is the default.
func DefaultInstruments() Instruments {
	reg, err := NewInstruments(piano, guitar)
	if err != nil {
		panic(err)
	}
	return reg
}
