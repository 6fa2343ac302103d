package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var weekdayAbbrev = [...]string{"Su", "Mo", "Tu", "We", "Th", "Fr", "Sa"}

// Describe renders the deterministic, human-readable recurrence summary
// spec.md calls recDescription. It depends only on the rule for every kind
// except EveryNYears, which also renders target's day and month — two
// events sharing a rule but anchored to different dates describe
// differently only in that one case.
func Describe(rule Rule, target time.Time) string {
	switch rule.Kind {
	case KindNone:
		return "One time event"
	case KindEveryNMinutes:
		return fmt.Sprintf("Every(%d)Minute", rule.Rate)
	case KindEveryNHours:
		return fmt.Sprintf("Every(%d)Hour", rule.Rate)
	case KindEveryNDays:
		return fmt.Sprintf("Every(%d)Day", rule.Rate)
	case KindEveryNYears:
		return fmt.Sprintf("Every(%d)Year (%02d/%02d)", rule.Rate, target.Day(), int(target.Month()))
	case KindEveryNWeeks:
		return fmt.Sprintf("Every(%d)Week (%s)", rule.Rate, describeWeekdays(rule.AddRate))
	case KindEveryNMonths:
		return fmt.Sprintf("Every(%d)Month (%s)", rule.Rate, describeMonthDays(rule.AddRate))
	default:
		return "One time event"
	}
}

func describeWeekdays(mask int32) string {
	var names []string
	for bit := 0; bit < 7; bit++ {
		if bitSet(mask, bit) {
			names = append(names, weekdayAbbrev[bit])
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return "-" + strings.Join(names, "-") + "-"
}

func describeMonthDays(mask int32) string {
	var parts []string
	for day := 1; day <= 31; day++ {
		if bitSet(mask, day) {
			parts = append(parts, strconv.Itoa(day)+".")
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return "-" + strings.Join(parts, "-") + "-"
}
