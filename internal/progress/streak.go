package progress

import "time"

// NextStreak returns the streak after activity on day, given the previous
// activity day and streak. Days are DateLayout strings; an empty last means
// no prior activity.
//
//   - same day: unchanged
//   - next day: +1
//   - two or more days later: reset to 1
//   - earlier than last (clock skew): unchanged
func NextStreak(last, day string, current int) int {
	if last == "" {
		return 1
	}
	gap, ok := daysBetween(last, day)
	if !ok {
		return 1
	}
	switch {
	case gap == 0, gap < 0:
		return max(current, 1)
	case gap == 1:
		return current + 1
	default:
		return 1
	}
}

// daysBetween returns the number of calendar days from a to b.
func daysBetween(a, b string) (int, bool) {
	ta, err := time.Parse(DateLayout, a)
	if err != nil {
		return 0, false
	}
	tb, err := time.Parse(DateLayout, b)
	if err != nil {
		return 0, false
	}
	return int(tb.Sub(ta).Hours() / 24), true
}

// CalendarDay formats t as a day in loc.
func CalendarDay(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// nudgeProficiency moves cur a quarter of the way toward target, by at
// least one point. The first observation of a skill jumps to target.
func nudgeProficiency(cur int, seen bool, target int) int {
	target = clampPercent(target)
	if !seen {
		return target
	}
	delta := (target - cur) / 4
	if delta == 0 {
		switch {
		case target > cur:
			delta = 1
		case target < cur:
			delta = -1
		}
	}
	return clampPercent(cur + delta)
}

func clampPercent(v int) int {
	return min(max(v, 0), 100)
}
