package pattern

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrPastInstant is returned for a one-time reminder whose every date field
// was explicit and which lies in the past.
var ErrPastInstant = errors.New("the requested time is in the past")

// Five-field standard cron: no seconds field, no descriptors.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Normalize resolves a parse tree against a reference instant and timezone
// into a storable Pattern: date holes are filled rounding forward,
// countdowns are materialised, cron expressions validated.
func Normalize(tree *Tree, now time.Time, loc *time.Location) (*Pattern, error) {
	p := &Pattern{}
	if tree.Nag != nil {
		if tree.Nag.Years != 0 || tree.Nag.Months != 0 {
			return nil, fmt.Errorf("nag interval must not use calendar units")
		}
		d := tree.Nag.ClockDuration()
		if d <= 0 {
			return nil, fmt.Errorf("nag interval must be positive")
		}
		p.Nag = d
	}

	switch {
	case tree.CronExpr != "":
		if _, err := cronParser.Parse(tree.CronExpr); err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", tree.CronExpr, err)
		}
		p.Cron = &Cron{Expr: tree.CronExpr}

	case tree.Countdown != nil:
		p.Countdown = &Countdown{At: materialize(*tree.Countdown, now, loc)}

	case tree.Recurrence != nil:
		rec := tree.Recurrence
		if err := validateTimes(rec.Times); err != nil {
			return nil, err
		}
		nowLocal := now.In(loc)
		if len(rec.Dates) <= 1 && len(rec.Times) == 1 && rec.singular() {
			once, err := normalizeOnce(rec, nowLocal)
			if err != nil {
				return nil, err
			}
			p.Once = once
		} else {
			res, err := normalizeRecurrence(rec, nowLocal)
			if err != nil {
				return nil, err
			}
			p.Recurrence = res
		}

	default:
		return nil, fmt.Errorf("empty pattern tree")
	}
	return p, nil
}

// materialize turns a countdown into an absolute instant: calendar units
// advance civil time in loc, the clock part is an exact duration.
func materialize(iv Interval, now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	d := addMonths(dateOf(local), iv.Years*12+iv.Months)
	at := resolveLocal(d, timeOfDayOf(local), loc)
	return at.Add(iv.ClockDuration()).UTC()
}

func validateTimes(times []TimeNode) error {
	for _, tn := range times {
		switch {
		case tn.Point != nil:
			if !tn.Point.Valid() {
				return fmt.Errorf("invalid time %s", tn.Point)
			}
		case tn.Range != nil:
			r := tn.Range
			if r.From != nil && !r.From.Valid() {
				return fmt.Errorf("invalid time %s", r.From)
			}
			if r.Until != nil && !r.Until.Valid() {
				return fmt.Errorf("invalid time %s", r.Until)
			}
		}
	}
	return nil
}

// normalizeOnce fills absent date fields from the reference, then bumps the
// least-significant absent field forward until the instant is in the
// future. A fully explicit past instant is an error.
func normalizeOnce(rec *RecurrenceNode, nowLocal time.Time) (*Once, error) {
	var hd HoleyDate
	if len(rec.Dates) == 1 {
		hd = *rec.Dates[0].Point
	}
	t := *rec.Times[0].Point

	d, err := fillDate(hd, dateOf(nowLocal))
	if err != nil {
		return nil, err
	}
	nowDate, nowTime := dateOf(nowLocal), timeOfDayOf(nowLocal)
	for !civilAfter(d, t, nowDate, nowTime) {
		switch {
		case hd.Day == nil:
			d = d.AddDays(1)
		case hd.Month == nil:
			d = addMonths(d, 1)
		case hd.Year == nil:
			d = addYears(d, 1)
		default:
			return nil, ErrPastInstant
		}
	}
	return &Once{Date: d, Time: t}, nil
}

func civilAfter(d Date, t TimeOfDay, refDate Date, refTime TimeOfDay) bool {
	if c := d.Compare(refDate); c != 0 {
		return c > 0
	}
	return t.After(refTime)
}

// fillDate fills absent fields of a holey date from a lower bound and, when
// any field was absent, bumps the least-significant absent field until the
// date is not below the bound. Explicit fields are validated, absent days
// clamp to the month's length.
func fillDate(hd HoleyDate, lowerBound Date) (Date, error) {
	d := Date{Year: lowerBound.Year, Month: lowerBound.Month, Day: lowerBound.Day}
	if hd.Year != nil {
		d.Year = *hd.Year
	}
	if hd.Month != nil {
		if *hd.Month < 1 || *hd.Month > 12 {
			return Date{}, fmt.Errorf("invalid month %d", *hd.Month)
		}
		d.Month = *hd.Month
	}
	if hd.Day != nil {
		d.Day = *hd.Day
	}
	if max := daysInMonth(d.Month, d.Year); d.Day > max {
		if hd.Day != nil {
			return Date{}, fmt.Errorf("invalid date %02d.%02d", d.Day, d.Month)
		}
		d.Day = max
	}
	if d.Day < 1 {
		return Date{}, fmt.Errorf("invalid day %d", d.Day)
	}
	for d.Before(lowerBound) {
		switch {
		case hd.Day == nil:
			d = d.AddDays(1)
		case hd.Month == nil:
			d = addMonths(d, 1)
		case hd.Year == nil:
			d = addYears(d, 1)
		default:
			// Fully explicit dates may lie in the past; range bounds use
			// them as-is.
			return d, nil
		}
	}
	return d, nil
}

// normalizeRecurrence resolves every span's holey bounds into concrete
// dates. Bounds are chained: each resolved date becomes the lower bound for
// the next hole, so "1.11-8.11,1.12-8.12" keeps both spans in order and an
// until without a year lands in from's year or the next one.
func normalizeRecurrence(rec *RecurrenceNode, nowLocal time.Time) (*Recurrence, error) {
	res := &Recurrence{Times: rec.Times}
	lb := dateOf(nowLocal)

	nodes := rec.Dates
	if len(nodes) == 0 {
		// No date part: a single date resolved from the reference.
		nodes = []DateNode{{Point: &HoleyDate{}}}
	}
	for _, node := range nodes {
		switch {
		case node.Point != nil:
			d, err := fillDate(*node.Point, lb)
			if err != nil {
				return nil, err
			}
			res.Dates = append(res.Dates, DatePattern{Point: &d})
			lb = d
		case node.Range != nil:
			rng := node.Range
			from, err := fillDate(rng.From, lb)
			if err != nil {
				return nil, err
			}
			lb = from
			resolved := DateRange{From: from, Weekdays: rng.Weekdays}
			if rng.Until != nil {
				until, err := fillDate(*rng.Until, lb)
				if err != nil {
					return nil, err
				}
				resolved.Until = &until
				lb = until
			}
			if rng.Step != nil {
				if rng.Step.IsZero() {
					return nil, fmt.Errorf("date step must be positive")
				}
				step := *rng.Step
				resolved.Step = &step
			}
			res.Dates = append(res.Dates, DatePattern{Range: &resolved})
		}
	}
	return res, nil
}
