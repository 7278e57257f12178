package orchestrator

import "sort"

// Band is one instruction that applies while remaining time is <= Max.
type Band struct {
	Max  int
	Text string
}

// Schedule picks the active instruction for a remaining time. Bands are
// kept sorted by Max ascending; a remaining time above every band gets
// Default.
type Schedule struct {
	bands   []Band
	Default string
}

func NewSchedule(def string, bands ...Band) Schedule {
	b := append([]Band(nil), bands...)
	sort.SliceStable(b, func(i, j int) bool { return b[i].Max < b[j].Max })
	return Schedule{bands: b, Default: def}
}

// DefaultSchedule is the head-movement script shown while recording.
func DefaultSchedule() Schedule {
	return NewSchedule("Look straight at the camera",
		Band{Max: 3, Text: "Make a neutral and then smiling expression"},
		Band{Max: 6, Text: "Look slightly up and down"},
		Band{Max: 12, Text: "Slowly turn your head left and right"},
	)
}

// Select returns the instruction of the smallest band whose Max is >=
// remaining.
func (s Schedule) Select(remaining int) string {
	for _, b := range s.bands {
		if remaining <= b.Max {
			return b.Text
		}
	}
	return s.Default
}

func (s Schedule) Bands() []Band { return append([]Band(nil), s.bands...) }

// Progress is elapsed/total clamped to [0, 1].
func Progress(elapsed, total int) float64 {
	if total <= 0 {
		return 1
	}
	f := float64(elapsed) / float64(total)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
