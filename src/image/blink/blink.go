// Package blink holds the parts of the image program that do not touch
// hardware: LED patterns and button debouncing.
package blink

import "strconv"

// Pattern is a sequence of LED states of equal duration that repeats.
type Pattern []bool

var patterns = map[string]Pattern{
	"single": {true, false},
	"double": {true, false, true, false, false, false},
	"triple": {true, false, true, false, true, false, false, false},
}

// ParsePattern returns the named pattern, or the single blink for unknown
// names.
func ParsePattern(name string) Pattern {
	if p, ok := patterns[name]; ok {
		return p
	}
	return patterns["single"]
}

// Step returns how long each state of the pattern lasts for a blink period
// in milliseconds. The period is given as a string since it is set with
// -ldflags -X; invalid values use fallback.
func (p Pattern) Step(period string, fallback int) int {
	ms, err := strconv.Atoi(period)
	if err != nil || ms <= 0 {
		ms = fallback
	}
	step := ms / len(p)
	if step == 0 {
		step = 1
	}
	return step
}

// Debouncer turns noisy button samples into single press events.
type Debouncer struct {
	// Samples is how many consecutive pressed samples make a press.
	Samples int

	count int
	fired bool
}

// Update takes one sample and reports whether a new press was recognized.
// A press is reported once until the button is released.
func (d *Debouncer) Update(pressed bool) bool {
	if !pressed {
		d.count = 0
		d.fired = false
		return false
	}
	d.count++
	if d.count >= d.Samples && !d.fired {
		d.fired = true
		return true
	}
	return false
}
