package flashcard

import (
	"fmt"
	"time"
)

// BaseIntervals defines the expanding review schedule in days. The n-th
// consecutive correct answer schedules the card BaseIntervals[n-1] days out.
var BaseIntervals = []int{1, 3, 7, 14, 30, 60}

// Schedule maps answer streaks to review intervals.
type Schedule struct {
	IntervalDays []int
}

// DefaultSchedule returns a schedule over BaseIntervals.
func DefaultSchedule() Schedule {
	return Schedule{IntervalDays: append([]int(nil), BaseIntervals...)}
}

// Validate rejects empty or non-increasing schedules.
func (s Schedule) Validate() error {
	if len(s.IntervalDays) == 0 {
		return fmt.Errorf("schedule needs at least one interval")
	}
	prev := 0
	for i, d := range s.IntervalDays {
		if d <= prev {
			return fmt.Errorf("interval %d (%d days) must be greater than %d", i, d, prev)
		}
		prev = d
	}
	return nil
}

// Interval returns the interval in days after consecutive correct answers,
// capped at the last entry. Zero or fewer maps to the first interval.
func (s Schedule) Interval(consecutive int) int {
	if consecutive < 1 {
		return s.IntervalDays[0]
	}
	if consecutive > len(s.IntervalDays) {
		return s.IntervalDays[len(s.IntervalDays)-1]
	}
	return s.IntervalDays[consecutive-1]
}

// Apply records an answer on st at now.
func (s Schedule) Apply(st *State, correct bool, now time.Time) {
	st.LastReviewed = now
	st.IsNew = false
	if correct {
		st.ConsecutiveCorrect++
	} else {
		st.ConsecutiveCorrect = 0
	}
	st.NextDue = now.AddDate(0, 0, s.Interval(st.ConsecutiveCorrect))
}
