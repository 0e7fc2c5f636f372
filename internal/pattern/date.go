package pattern

import "time"

// Date is a civil calendar date with no timezone attached.
type Date struct {
	Year  int
	Month int
	Day   int
}

// TimeOfDay is a civil wall-clock time.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%400 == 0 || year%100 != 0)
}

func daysInMonth(month, year int) int {
	switch {
	case month == 2 && isLeapYear(year):
		return 29
	case month == 2:
		return 28
	case month == 4 || month == 6 || month == 9 || month == 11:
		return 30
	default:
		return 31
	}
}

func dateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

func timeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// Compare orders dates chronologically: -1, 0 or +1.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return sign(d.Year - other.Year)
	case d.Month != other.Month:
		return sign(d.Month - other.Month)
	default:
		return sign(d.Day - other.Day)
	}
}

func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }
func (d Date) After(other Date) bool  { return d.Compare(other) > 0 }

func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return dateOf(t)
}

// daysBetween returns b - a in days.
func daysBetween(a, b Date) int {
	ta := time.Date(a.Year, time.Month(a.Month), a.Day, 0, 0, 0, 0, time.UTC)
	tb := time.Date(b.Year, time.Month(b.Month), b.Day, 0, 0, 0, 0, time.UTC)
	return int(tb.Sub(ta) / (24 * time.Hour))
}

// addMonths advances by whole calendar months, clamping the day to the
// target month's length (31 Jan + 1 month is 28/29 Feb, not 2/3 Mar).
func addMonths(d Date, months int) Date {
	total := d.Year*12 + (d.Month - 1) + months
	year, month := total/12, total%12+1
	day := d.Day
	if max := daysInMonth(month, year); day > max {
		day = max
	}
	return Date{Year: year, Month: month, Day: day}
}

func addYears(d Date, years int) Date {
	return addMonths(d, years*12)
}

// addDateInterval applies a calendar step: years and months with
// end-of-month clamping first, then weeks and days exactly.
func addDateInterval(d Date, iv DateInterval) Date {
	d = addMonths(d, iv.Years*12+iv.Months)
	return d.AddDays(iv.Weeks*7 + iv.Days)
}

// findNearestWeekday returns the first date >= d whose weekday is in the set.
func findNearestWeekday(d Date, set Weekdays) Date {
	for i := 0; i < 7; i++ {
		if set.Contains(d.Weekday()) {
			return d
		}
		d = d.AddDays(1)
	}
	return d
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60 && t.Second >= 0 && t.Second < 60
}

func (t TimeOfDay) DaySeconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

func timeOfDaySeconds(secs int) TimeOfDay {
	return TimeOfDay{Hour: secs / 3600, Minute: secs / 60 % 60, Second: secs % 60}
}

func (t TimeOfDay) Compare(other TimeOfDay) int {
	return sign(t.DaySeconds() - other.DaySeconds())
}

func (t TimeOfDay) Before(other TimeOfDay) bool { return t.Compare(other) < 0 }
func (t TimeOfDay) After(other TimeOfDay) bool  { return t.Compare(other) > 0 }

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// resolveLocal converts a civil date and time to an absolute instant in loc.
// A wall time erased by a spring-forward transition resolves to the first
// valid wall time after the gap; a wall time that occurs twice during a
// fall-back transition resolves to the earlier instant.
func resolveLocal(d Date, t TimeOfDay, loc *time.Location) time.Time {
	inst := time.Date(d.Year, time.Month(d.Month), d.Day, t.Hour, t.Minute, t.Second, 0, loc)
	if civilEqual(inst, d, t) {
		// The wall time exists; it may still be ambiguous. Transitions are
		// whole- or half-hour sized in practice, so probing both offsets is
		// enough to find the earlier one.
		for _, delta := range []time.Duration{-time.Hour, -30 * time.Minute} {
			if earlier := inst.Add(delta); civilEqual(earlier, d, t) {
				return earlier
			}
		}
		return inst
	}
	// Gap. Transitions are minute-aligned, so walk the civil time forward a
	// minute at a time until it maps back to itself.
	civil := time.Date(d.Year, time.Month(d.Month), d.Day, t.Hour, t.Minute, t.Second, 0, time.UTC)
	for i := 0; i < 26*60; i++ {
		civil = civil.Add(time.Minute)
		cd, ct := dateOf(civil), timeOfDayOf(civil)
		cand := time.Date(cd.Year, time.Month(cd.Month), cd.Day, ct.Hour, ct.Minute, ct.Second, 0, loc)
		if civilEqual(cand, cd, ct) {
			return cand
		}
	}
	return inst
}

func civilEqual(inst time.Time, d Date, t TimeOfDay) bool {
	return dateOf(inst) == d && timeOfDayOf(inst) == t
}
