package progression

import (
	"fmt"
	"time"
)

// Period key layouts. All keys are UTC and chosen so that lexicographic
// order equals chronological order within a tier.
const (
	hourKeyLayout = "2006-01-02-15"
	dayKeyLayout  = "2006-01-02"
)

// HourKey returns the hourly bucket key for a timestamp.
func HourKey(t time.Time) string {
	return t.UTC().Format(hourKeyLayout)
}

// DayKey returns the calendar-date bucket key for a timestamp.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayKeyLayout)
}

// WeekKey returns the ISO-week bucket key for a timestamp, e.g. "2026-W05".
func WeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// BucketKey returns the period key a timestamp falls into for a summary tier.
func BucketKey(tier Tier, t time.Time) (string, error) {
	switch tier {
	case TierHourly:
		return HourKey(t), nil
	case TierDaily:
		return DayKey(t), nil
	case TierWeekly:
		return WeekKey(t), nil
	default:
		return "", fmt.Errorf("tier %q has no period key", tier)
	}
}

// BucketTime parses a period key back into the bucket's start time (UTC).
func BucketTime(tier Tier, key string) (time.Time, error) {
	switch tier {
	case TierHourly:
		return time.ParseInLocation(hourKeyLayout, key, time.UTC)
	case TierDaily:
		return time.ParseInLocation(dayKeyLayout, key, time.UTC)
	case TierWeekly:
		var year, week int
		if _, err := fmt.Sscanf(key, "%04d-W%02d", &year, &week); err != nil {
			return time.Time{}, fmt.Errorf("malformed week key %q: %w", key, err)
		}
		return isoWeekStart(year, week), nil
	default:
		return time.Time{}, fmt.Errorf("tier %q has no period key", tier)
	}
}

// NextTier returns the tier a source tier's rows are promoted into.
// The weekly tier has no successor; its rows are deleted outright.
func NextTier(source Tier) (Tier, bool) {
	switch source {
	case TierRaw:
		return TierHourly, true
	case TierHourly:
		return TierDaily, true
	case TierDaily:
		return TierWeekly, true
	default:
		return "", false
	}
}

// isoWeekStart returns the Monday 00:00 UTC of the given ISO week.
// Jan 4 is always in ISO week 1 of its year.
func isoWeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)
	return week1Monday.AddDate(0, 0, (week-1)*7)
}
