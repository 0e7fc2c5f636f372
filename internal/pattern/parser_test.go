package pattern

import (
	"errors"
	"testing"
)

func intp(n int) *int { return &n }

func TestParseCountdown(t *testing.T) {
	cases := []struct {
		in   string
		want Interval
		desc string
	}{
		{"5m tea", Interval{Minutes: 5}, "tea"},
		{"1h2m3s stretch", Interval{Hours: 1, Minutes: 2, Seconds: 3}, "stretch"},
		{"1y2mo3w4d5h6m7s far away", Interval{Years: 1, Months: 2, Weeks: 3, Days: 4, Hours: 5, Minutes: 6, Seconds: 7}, "far away"},
		{"in 10s look at the oven", Interval{Seconds: 10}, "look at the oven"},
		{"after 2w vacation", Interval{Weeks: 2}, "vacation"},
	}
	for _, tc := range cases {
		tree, err := Parse(tc.in)
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.in, err)
			continue
		}
		if tree.Countdown == nil {
			t.Errorf("Parse(%q): not a countdown: %+v", tc.in, tree)
			continue
		}
		if *tree.Countdown != tc.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tc.in, *tree.Countdown, tc.want)
		}
		if tree.Description != tc.desc {
			t.Errorf("Parse(%q) description = %q, want %q", tc.in, tree.Description, tc.desc)
		}
	}
}

func TestParseCron(t *testing.T) {
	tree, err := Parse("cron 0 3 * * * backup")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tree.CronExpr != "0 3 * * *" {
		t.Errorf("expr = %q", tree.CronExpr)
	}
	if tree.Description != "backup" {
		t.Errorf("description = %q", tree.Description)
	}

	if _, err := Parse("cron 0 3 * *"); err == nil {
		t.Error("four-field cron accepted")
	}
	var perr *ParseError
	if _, err := Parse("cron 0 0 3 * * * backup"); !errors.As(err, &perr) {
		t.Error("six-field cron accepted")
	}
}

func TestParseTimeOnly(t *testing.T) {
	tree, err := Parse("8 wake up")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rec := tree.Recurrence
	if rec == nil || len(rec.Dates) != 0 || len(rec.Times) != 1 {
		t.Fatalf("unexpected shape: %+v", tree)
	}
	if got := rec.Times[0].Point; got == nil || *got != (TimeOfDay{Hour: 8}) {
		t.Errorf("time = %+v", got)
	}
	if tree.Description != "wake up" {
		t.Errorf("description = %q", tree.Description)
	}
}

func TestParseDateAndTime(t *testing.T) {
	cases := []struct {
		in       string
		wantDate HoleyDate
		wantTime TimeOfDay
	}{
		{"01.01 0:00 Happy New Year", HoleyDate{Day: intp(1), Month: intp(1)}, TimeOfDay{}},
		{"15 8 errand", HoleyDate{Day: intp(15)}, TimeOfDay{Hour: 8}},
		{"2.2.2008 12:31:01 precise", HoleyDate{Day: intp(2), Month: intp(2), Year: intp(2008)}, TimeOfDay{Hour: 12, Minute: 31, Second: 1}},
		{"2024/06/15 10:00 iso", HoleyDate{Year: intp(2024), Month: intp(6), Day: intp(15)}, TimeOfDay{Hour: 10}},
		{"on 15.06 at 9:30 decorated", HoleyDate{Day: intp(15), Month: intp(6)}, TimeOfDay{Hour: 9, Minute: 30}},
	}
	for _, tc := range cases {
		tree, err := Parse(tc.in)
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.in, err)
			continue
		}
		rec := tree.Recurrence
		if rec == nil || len(rec.Dates) != 1 || rec.Dates[0].Point == nil || len(rec.Times) != 1 || rec.Times[0].Point == nil {
			t.Errorf("Parse(%q): unexpected shape %+v", tc.in, tree)
			continue
		}
		if !holeyEqual(*rec.Dates[0].Point, tc.wantDate) {
			t.Errorf("Parse(%q) date = %+v", tc.in, *rec.Dates[0].Point)
		}
		if *rec.Times[0].Point != tc.wantTime {
			t.Errorf("Parse(%q) time = %+v, want %+v", tc.in, *rec.Times[0].Point, tc.wantTime)
		}
	}
}

func holeyEqual(a, b HoleyDate) bool {
	eq := func(x, y *int) bool {
		if (x == nil) != (y == nil) {
			return false
		}
		return x == nil || *x == *y
	}
	return eq(a.Year, b.Year) && eq(a.Month, b.Month) && eq(a.Day, b.Day)
}

func TestParseRecurring(t *testing.T) {
	tree, err := Parse("-/mon-fri 10-20/1h30m break")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rec := tree.Recurrence
	if rec == nil || len(rec.Dates) != 1 || rec.Dates[0].Range == nil {
		t.Fatalf("unexpected shape: %+v", tree)
	}
	rng := rec.Dates[0].Range
	if !rng.From.empty() || rng.Until != nil {
		t.Errorf("range bounds = %+v", rng)
	}
	if want := Monday | Tuesday | Wednesday | Thursday | Friday; rng.Weekdays != want {
		t.Errorf("weekdays = %07b, want %07b", rng.Weekdays, want)
	}
	if len(rec.Times) != 1 || rec.Times[0].Range == nil {
		t.Fatalf("times shape: %+v", rec.Times)
	}
	tr := rec.Times[0].Range
	if *tr.From != (TimeOfDay{Hour: 10}) || *tr.Until != (TimeOfDay{Hour: 20}) {
		t.Errorf("time range = %+v..%+v", tr.From, tr.Until)
	}
	if tr.Step == nil || *tr.Step != (TimeInterval{Hours: 1, Minutes: 30}) {
		t.Errorf("time step = %+v", tr.Step)
	}
	if tree.Description != "break" {
		t.Errorf("description = %q", tree.Description)
	}
}

func TestParseDateListAndSteps(t *testing.T) {
	tree, err := Parse("1.11-8.11/2d,01.01 10:00,18:30 season")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rec := tree.Recurrence
	if len(rec.Dates) != 2 || rec.Dates[0].Range == nil || rec.Dates[1].Point == nil {
		t.Fatalf("dates shape: %+v", rec.Dates)
	}
	if step := rec.Dates[0].Range.Step; step == nil || *step != (DateInterval{Days: 2}) {
		t.Errorf("date step = %+v", step)
	}
	if len(rec.Times) != 2 || rec.Times[0].Point == nil || rec.Times[1].Point == nil {
		t.Fatalf("times shape: %+v", rec.Times)
	}

	// A bare "m" in a date divisor means months.
	tree, err = Parse("1.1-/1m 12:00 monthly")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if step := tree.Recurrence.Dates[0].Range.Step; step == nil || *step != (DateInterval{Months: 1}) {
		t.Errorf("date step = %+v, want 1 month", step)
	}
}

func TestParseNagSuffix(t *testing.T) {
	cases := []struct {
		in   string
		want Interval
		desc string
	}{
		{"-/1d 10:00!15m meds", Interval{Minutes: 15}, "meds"},
		{"5m!1m tea", Interval{Minutes: 1}, "tea"},
		{"cron 0 9 * * 1-5!1h standup", Interval{Hours: 1}, "standup"},
		{"-/sat,sun!1d chores", Interval{Days: 1}, "chores"},
	}
	for _, tc := range cases {
		tree, err := Parse(tc.in)
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.in, err)
			continue
		}
		if tree.Nag == nil || *tree.Nag != tc.want {
			t.Errorf("Parse(%q) nag = %+v, want %+v", tc.in, tree.Nag, tc.want)
		}
		if tree.Description != tc.desc {
			t.Errorf("Parse(%q) description = %q, want %q", tc.in, tree.Description, tc.desc)
		}
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		in  string
		pos int
	}{
		{"", 0},
		{"remind me of nothing", 0},
		{"01.01 too late to explain", 6},
		{"10:00! nothing after bang", 6},
	}
	for _, tc := range cases {
		_, err := Parse(tc.in)
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("Parse(%q) err = %v, want ParseError", tc.in, err)
			continue
		}
		if perr.Pos != tc.pos {
			t.Errorf("Parse(%q) pos = %d, want %d", tc.in, perr.Pos, tc.pos)
		}
		if len(perr.Expected) == 0 {
			t.Errorf("Parse(%q): empty expected set", tc.in)
		}
	}
}
