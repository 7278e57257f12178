package orchestrator

import "testing"

func TestScheduleBandsAreExhaustive(t *testing.T) {
	s := DefaultSchedule()
	bands := s.Bands()

	for remaining := 0; remaining <= 20; remaining++ {
		active := 0
		lower := -1
		for _, b := range bands {
			if remaining > lower && remaining <= b.Max {
				active++
			}
			lower = b.Max
		}
		if remaining > lower {
			active++ // default band
		}
		if active != 1 {
			t.Errorf("remaining=%d: %d active bands, want exactly 1", remaining, active)
		}
		if s.Select(remaining) == "" {
			t.Errorf("remaining=%d: empty instruction", remaining)
		}
	}
}

func TestScheduleEightSecondCountdown(t *testing.T) {
	s := DefaultSchedule()
	const (
		turn       = "Slowly turn your head left and right"
		upDown     = "Look slightly up and down"
		expression = "Make a neutral and then smiling expression"
	)
	want := map[int]string{
		8: turn, 7: turn,
		6: upDown, 5: upDown, 4: upDown,
		3: expression, 2: expression, 1: expression, 0: expression,
	}
	for remaining := 8; remaining >= 0; remaining-- {
		if got := s.Select(remaining); got != want[remaining] {
			t.Errorf("Select(%d) = %q, want %q", remaining, got, want[remaining])
		}
	}
	if got := s.Select(13); got != "Look straight at the camera" {
		t.Errorf("Select(13) = %q, want the default instruction", got)
	}
}

func TestNewScheduleSortsBands(t *testing.T) {
	s := NewSchedule("rest", Band{Max: 10, Text: "ten"}, Band{Max: 2, Text: "two"}, Band{Max: 5, Text: "five"})
	cases := map[int]string{0: "two", 2: "two", 3: "five", 5: "five", 6: "ten", 10: "ten", 11: "rest"}
	for remaining, want := range cases {
		if got := s.Select(remaining); got != want {
			t.Errorf("Select(%d) = %q, want %q", remaining, got, want)
		}
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	const total = 8
	prev := -1.0
	for elapsed := 0; elapsed <= total; elapsed++ {
		p := Progress(elapsed, total)
		if p < prev {
			t.Fatalf("Progress(%d) = %v decreased from %v", elapsed, p, prev)
		}
		prev = p
	}
	if Progress(total, total) != 1.0 {
		t.Errorf("Progress at remaining 0 = %v, want 1.0", Progress(total, total))
	}
	if Progress(0, total) != 0 {
		t.Errorf("Progress(0) = %v, want 0", Progress(0, total))
	}
	if Progress(12, total) != 1.0 {
		t.Errorf("Progress past total = %v, want clamped 1.0", Progress(12, total))
	}
}
