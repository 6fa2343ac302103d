package solar

import (
	"errors"
	"time"
)

// MaxAdvanceDays bounds the day-by-day search Resolve performs when
// allowPast is false and the computed instant keeps landing in the past
// (e.g. a polar location where a phenomenon pins to solar noon every
// day). Mirrors recurrence.MaxOccurrenceIterations.
const MaxAdvanceDays = 10000

var ErrNoFutureInstant = errors.New("solar: no future instant found within search bound")

// Resolve implements spec.md's SolarTime(kind, date, lat, lon, allowPast),
// with offset folded into the guard check per scenario 6: target(d) is the
// phenomenon plus offset, and it is that adjusted instant — not the raw
// phenomenon — that must clear now+one_minute before Resolve returns it.
//
//  1. If date's time-of-day is before 03:30 local, advance it to 03:10
//     local the same calendar day — a DST-transition safety heuristic so
//     the phenomenon is computed from a clock time unambiguously after
//     any spring-forward.
//  2. Compute the requested phenomenon for that date via provider, add
//     offset.
//  3. If allowPast is false and the result isn't strictly after
//     now+one_minute, advance one day and repeat from step 2.
func Resolve(provider Provider, kind Kind, date, now time.Time, lat, lon float64, offset time.Duration, allowPast bool) (time.Time, error) {
	d := applyDSTGuard(date)
	guard := now.Add(time.Minute)

	for i := 0; i < MaxAdvanceDays; i++ {
		times, err := provider.GetSolarTimes(d, lat, lon)
		if err != nil {
			return time.Time{}, err
		}
		instant := times.At(kind).Add(offset)
		if allowPast || instant.After(guard) {
			return instant, nil
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Time{}, ErrNoFutureInstant
}

func applyDSTGuard(date time.Time) time.Time {
	loc := date.Location()
	threshold := time.Date(date.Year(), date.Month(), date.Day(), 3, 30, 0, 0, loc)
	if date.Before(threshold) {
		return time.Date(date.Year(), date.Month(), date.Day(), 3, 10, 0, 0, loc)
	}
	return date
}
