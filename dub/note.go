package dub

import (
	"strconv"
	"strings"
)

var pitchClasses = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

var sharpNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// ParseNote converts a note name to a MIDI note number, with C4 as middle C (60).
// A name is a letter A-G, an optional # or b, and an octave from -1 to 9.
func ParseNote(s string) (int, bool) {
	if len(s) < 2 {
		return 0, false
	}
	pc, ok := pitchClasses[strings.ToLower(s[:1])[0]]
	if !ok {
		return 0, false
	}
	rest := s[1:]
	switch rest[0] {
	case '#':
		pc++
		rest = rest[1:]
	case 'b':
		pc--
		rest = rest[1:]
	}
	if rest == "" || (rest[0] == '+') {
		return 0, false
	}
	octave, err := strconv.Atoi(rest)
	if err != nil || octave < -1 || octave > 9 {
		return 0, false
	}
	n := (octave+1)*12 + pc
	if n < 0 || n > 127 {
		return 0, false
	}
	return n, true
}

// NoteName returns the sharp spelling of a MIDI note number, e.g. 61 is C#4.
func NoteName(n int) string {
	if n < 0 || n > 127 {
		return strconv.Itoa(n)
	}
	return sharpNames[n%12] + strconv.Itoa(n/12-1)
}
