package pattern

import "time"

// Next returns the earliest instant strictly after `after` at which the
// pattern fires, in the user's timezone. The second return is false when no
// future occurrence exists. Pure: no I/O, no clock access.
func Next(p *Pattern, after time.Time, loc *time.Location) (time.Time, bool) {
	switch {
	case p.Once != nil:
		inst := resolveLocal(p.Once.Date, p.Once.Time, loc)
		if inst.After(after) {
			return inst, true
		}
		return time.Time{}, false

	case p.Countdown != nil:
		if p.Countdown.At.After(after) {
			return p.Countdown.At, true
		}
		return time.Time{}, false

	case p.Cron != nil:
		sched, err := cronParser.Parse(p.Cron.Expr)
		if err != nil {
			return time.Time{}, false
		}
		next := sched.Next(after.In(loc))
		if next.IsZero() {
			return time.Time{}, false
		}
		return next, true

	case p.Recurrence != nil:
		return nextRecurrence(p.Recurrence, after, loc)
	}
	return time.Time{}, false
}

// Occurrences returns a pull iterator over the pattern's firing instants
// after `after`, in ascending order.
func Occurrences(p *Pattern, after time.Time, loc *time.Location) func() (time.Time, bool) {
	cur := after
	return func() (time.Time, bool) {
		next, ok := Next(p, cur, loc)
		if ok {
			cur = next
		}
		return next, ok
	}
}

// nextRecurrence walks candidate dates in ascending order, merged across
// all date spans, and picks the earliest admissible time on each candidate
// until one lands strictly after the reference. Civil time throughout;
// conversion to an absolute instant happens once per candidate.
func nextRecurrence(rec *Recurrence, after time.Time, loc *time.Location) (time.Time, bool) {
	local := after.In(loc)
	afterDate, afterTime := dateOf(local), timeOfDayOf(local)

	lb := afterDate
	for {
		d, ok := rec.nextDate(lb)
		if !ok {
			return time.Time{}, false
		}
		var bound *TimeOfDay
		if d == afterDate {
			b := afterTime
			bound = &b
		}
		// Scan the candidate date's admissible times in ascending order. A
		// time can resolve at or before the reference inside a fall-back
		// overlap; that skips the one time, not the rest of the day.
		for attempt := 0; ; attempt++ {
			t, ok := rec.earliestTime(bound, afterTime)
			if !ok {
				if bound == nil && attempt == 0 {
					// Even an unconstrained day admits no time, so no later
					// date will either.
					return time.Time{}, false
				}
				break
			}
			if inst := resolveLocal(d, t, loc); inst.After(after) {
				return inst, true
			}
			b := t
			bound = &b
		}
		lb = d.AddDays(1)
	}
}

// nextDate returns the earliest date >= lb matched by any date pattern.
func (rec *Recurrence) nextDate(lb Date) (Date, bool) {
	var best Date
	found := false
	for _, dp := range rec.Dates {
		var cand Date
		ok := false
		switch {
		case dp.Point != nil:
			if !dp.Point.Before(lb) {
				cand, ok = *dp.Point, true
			}
		case dp.Range != nil:
			cand, ok = dp.Range.nextDate(lb)
		}
		if ok && (!found || cand.Before(best)) {
			best, found = cand, true
		}
	}
	return best, found
}

func (dr *DateRange) nextDate(lb Date) (Date, bool) {
	start := lb
	if dr.From.After(start) {
		start = dr.From
	}
	var cand Date
	if !dr.Weekdays.IsEmpty() {
		cand = findNearestWeekday(start, dr.Weekdays)
	} else {
		step := DateInterval{Days: 1}
		if dr.Step != nil {
			step = *dr.Step
		}
		cand = dr.From
		if cand.Before(start) {
			if step.Years == 0 && step.Months == 0 {
				days := step.Weeks*7 + step.Days
				n := (daysBetween(dr.From, start) + days - 1) / days
				cand = dr.From.AddDays(n * days)
			} else {
				// Calendar steps are not a fixed day count; walk.
				for cand.Before(start) {
					cand = addDateInterval(cand, step)
				}
			}
		}
	}
	if dr.Until != nil && cand.After(*dr.Until) {
		return Date{}, false
	}
	return cand, true
}

// earliestTime returns the earliest time admitted by any time pattern. A
// non-nil bound (same-day candidate) requires strictly later than the
// bound. With no time patterns a reminder keeps the reference's wall time.
func (rec *Recurrence) earliestTime(bound *TimeOfDay, def TimeOfDay) (TimeOfDay, bool) {
	if len(rec.Times) == 0 {
		if bound == nil {
			return def, true
		}
		return TimeOfDay{}, false
	}
	var best TimeOfDay
	found := false
	consider := func(t TimeOfDay) {
		if bound != nil && !t.After(*bound) {
			return
		}
		if !found || t.Before(best) {
			best, found = t, true
		}
	}
	for _, tn := range rec.Times {
		switch {
		case tn.Point != nil:
			consider(*tn.Point)
		case tn.Range != nil:
			r := tn.Range
			from := TimeOfDay{}
			if r.From != nil {
				from = *r.From
			}
			until := TimeOfDay{Hour: 23, Minute: 59, Second: 59}
			if r.Until != nil {
				until = *r.Until
			}
			if until.Before(from) {
				continue
			}
			if bound == nil || from.After(*bound) {
				consider(from)
				continue
			}
			if r.Step == nil {
				continue
			}
			step := r.Step.DaySeconds()
			if step <= 0 {
				continue
			}
			k := (bound.DaySeconds()-from.DaySeconds())/step + 1
			cand := timeOfDaySeconds(from.DaySeconds() + k*step)
			if !cand.After(until) {
				consider(cand)
			}
		}
	}
	return best, found
}
