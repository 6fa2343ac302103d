package recurrence

import (
	"errors"
	"time"
)

// MaxOccurrenceIterations bounds the day-by-day scans used by the weekly
// and monthly kinds. Mirrors the safety counter the teacher's cron ticker
// used to guard its own occurrence walk; tripping it means a rule's
// bitmask can never be satisfied.
const MaxOccurrenceIterations = 10000

// ErrTooManyIterations is returned when a weekly or monthly scan can't
// find a matching day within MaxOccurrenceIterations steps — in practice
// an AddRate bitmask with no bits in the valid range for its kind.
var ErrTooManyIterations = errors.New("recurrence: no matching day found, check add-rate bitmask")

// NextFire advances target to the next instant, strictly after now plus
// one minute, that satisfies rule. now plus one minute is the "guard"
// used throughout: it keeps a timer that fires at its own target time
// from immediately re-arming onto the same instant.
//
// KindNone returns target rounded to the minute but otherwise unchanged —
// the caller is responsible for noticing a one-shot event whose target has
// already passed.
func NextFire(target, now time.Time, rule Rule) (time.Time, error) {
	if err := rule.Validate(); err != nil {
		return time.Time{}, err
	}

	guard := now.Add(time.Minute)

	switch rule.Kind {
	case KindNone:
		return roundToMinute(target), nil

	case KindEveryNMinutes:
		return roundToMinute(advanceFixed(target, guard, time.Duration(rule.Rate)*time.Minute)), nil

	case KindEveryNHours:
		return roundToMinute(advanceFixed(target, guard, time.Duration(rule.Rate)*time.Hour)), nil

	case KindEveryNDays:
		return roundToMinute(advanceCalendar(target, guard, func(t time.Time) time.Time {
			return t.AddDate(0, 0, int(rule.Rate))
		})), nil

	case KindEveryNYears:
		return roundToMinute(advanceCalendar(target, guard, func(t time.Time) time.Time {
			return t.AddDate(int(rule.Rate), 0, 0)
		})), nil

	case KindEveryNWeeks:
		return nextWeekly(target, guard, rule.Rate, rule.AddRate)

	case KindEveryNMonths:
		return nextMonthly(target, guard, rule.Rate, rule.AddRate)

	default:
		return time.Time{}, errors.New("recurrence: unknown kind")
	}
}

// advanceFixed adds step to target until it is strictly after guard.
// Used for the two fixed-duration kinds, where a direct division avoids
// looping once per period.
func advanceFixed(target, guard time.Time, step time.Duration) time.Time {
	if step <= 0 || target.After(guard) {
		return target
	}
	behind := guard.Sub(target)
	periods := behind/step + 1
	return target.Add(time.Duration(periods) * step)
}

// advanceCalendar repeatedly applies step (a calendar-aware add, e.g.
// AddDate) until the result is strictly after guard. Calendar arithmetic
// isn't a fixed duration once DST and leap years are involved, so unlike
// advanceFixed this can't be solved by division; the loop is bounded by
// MaxOccurrenceIterations as a defensive backstop.
func advanceCalendar(target, guard time.Time, step func(time.Time) time.Time) time.Time {
	for i := 0; i < MaxOccurrenceIterations && !target.After(guard); i++ {
		target = step(target)
	}
	return target
}

// nextWeekly walks forward day by day looking for a day-of-week bit set
// in addRate. A full 7-day scan with no match means the week is
// exhausted: skip ahead 7*(rate-1) additional days (rate's week
// interval) and scan the next block, repeating until a match or the
// iteration cap trips.
func nextWeekly(target, guard time.Time, rate uint, addRate int32) (time.Time, error) {
	mask := addRate & 0x7F
	if target.After(guard) && bitSet(mask, int(target.Weekday())) {
		return roundToMinute(target), nil
	}

	iterations := 0
	for {
		for i := 0; i < 7; i++ {
			target = target.AddDate(0, 0, 1)
			iterations++
			if iterations > MaxOccurrenceIterations {
				return time.Time{}, ErrTooManyIterations
			}
			if bitSet(mask, int(target.Weekday())) && target.After(guard) {
				return roundToMinute(target), nil
			}
		}
		if rate > 1 {
			target = target.AddDate(0, 0, 7*int(rate-1))
		}
	}
}

// nextMonthly walks forward day by day within the current month looking
// for a day-of-month bit set in addRate (bits 1..31). When the month is
// exhausted without a match, it advances by rate months and resumes the
// scan from day 1 of the new month, preserving target's wall-clock time.
func nextMonthly(target, guard time.Time, rate uint, addRate int32) (time.Time, error) {
	hour, minute := target.Hour(), target.Minute()
	loc := target.Location()
	year, month := target.Year(), target.Month()
	day := target.Day()

	iterations := 0
	for {
		last := lastDayOfMonth(year, month)
		for d := day; d <= last; d++ {
			iterations++
			if iterations > MaxOccurrenceIterations {
				return time.Time{}, ErrTooManyIterations
			}
			if bitSet(addRate, d) {
				candidate := time.Date(year, month, d, hour, minute, 0, 0, loc)
				if candidate.After(guard) {
					return roundToMinute(candidate), nil
				}
			}
		}
		year, month = addMonths(year, month, int(rate))
		day = 1
	}
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return t.Year(), t.Month()
}

// roundToMinute rounds to the nearest minute: 30 seconds and over rounds
// up, under 30 rounds down. Every fire time in the system satisfies
// Second() == 0 and Nanosecond() == 0.
func roundToMinute(t time.Time) time.Time {
	t = t.Truncate(time.Second)
	if t.Second() >= 30 {
		t = t.Add(time.Duration(60-t.Second()) * time.Second)
	} else {
		t = t.Add(-time.Duration(t.Second()) * time.Second)
	}
	return t
}

// RoundToMinute exposes the rounding rule used throughout this package so
// callers constructing a target time from user input apply the exact same
// convention.
func RoundToMinute(t time.Time) time.Time {
	return roundToMinute(t)
}
