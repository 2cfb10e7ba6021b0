package core

import "time"

// AlertWindow is the look-ahead horizon for flagging upcoming renewals.
const AlertWindow = 7 * 24 * time.Hour

// LastDayOfMonth returns the number of days in the given month.
func LastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay maps a billing day onto a real day of the given month.
// Days past the month's end land on its last day; days below 1 land on the 1st.
func ClampDay(day, year int, month time.Month) int {
	if day < 1 {
		return 1
	}
	if last := LastDayOfMonth(year, month); day > last {
		return last
	}
	return day
}

// NextRenewal returns the next instant at which a subscription billed on day
// renews, relative to now.
//
// The candidate keeps now's clock time and location. A candidate equal to now
// is still due this month; only a strictly earlier one rolls to next month.
func NextRenewal(day int, now time.Time) time.Time {
	year, month, _ := now.Date()
	candidate := onDay(now, year, month, ClampDay(day, year, month))
	if !candidate.Before(now) {
		return candidate
	}

	month++
	if month > time.December {
		month = time.January
		year++
	}
	return onDay(now, year, month, ClampDay(day, year, month))
}

// IsAlert reports whether a renewal falls inside the alert window.
// The window end is inclusive.
func IsAlert(next, now time.Time) bool {
	return !next.After(now.Add(AlertWindow))
}

func onDay(ref time.Time, year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), ref.Location())
}
