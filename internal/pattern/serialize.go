package pattern

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Once is a normalised one-time reminder: a concrete local date and time.
type Once struct {
	Date Date      `json:"date"`
	Time TimeOfDay `json:"time"`
}

// Countdown is materialised to an absolute instant at creation.
type Countdown struct {
	At time.Time `json:"at"`
}

// Cron holds a validated five-field cron expression.
type Cron struct {
	Expr string `json:"expr"`
}

// DatePattern is one element of a recurrence's resolved date list.
type DatePattern struct {
	Point *Date      `json:"point,omitempty"`
	Range *DateRange `json:"range,omitempty"`
}

// DateRange is a resolved date span. Weekdays and Step are mutually
// exclusive; both empty means a one-day step.
type DateRange struct {
	From     Date          `json:"from"`
	Until    *Date         `json:"until,omitempty"`
	Weekdays Weekdays      `json:"wd,omitempty"`
	Step     *DateInterval `json:"step,omitempty"`
}

// Recurrence is the resolved form of a recurring reminder.
type Recurrence struct {
	Dates []DatePattern `json:"dates"`
	Times []TimeNode    `json:"times,omitempty"`
}

// Pattern is the normalised, storable schedule of a reminder. Exactly one
// of the four variant fields is set.
type Pattern struct {
	Once       *Once
	Recurrence *Recurrence
	Countdown  *Countdown
	Cron       *Cron
	Nag        time.Duration // zero means no nagging
}

const (
	KindOnce       = "once"
	KindRecurrence = "rec"
	KindCountdown  = "countdown"
	KindCron       = "cron"
)

func (p *Pattern) Kind() string {
	switch {
	case p.Once != nil:
		return KindOnce
	case p.Recurrence != nil:
		return KindRecurrence
	case p.Countdown != nil:
		return KindCountdown
	default:
		return KindCron
	}
}

// Recurs reports whether the pattern can fire more than once.
func (p *Pattern) Recurs() bool {
	return p.Recurrence != nil || p.Cron != nil
}

type patternJSON struct {
	Kind       string      `json:"kind"`
	Once       *Once       `json:"once,omitempty"`
	Recurrence *Recurrence `json:"rec,omitempty"`
	Countdown  *Countdown  `json:"countdown,omitempty"`
	Cron       *Cron       `json:"cron,omitempty"`
	NagSec     int64       `json:"nag_s,omitempty"`
}

func (p *Pattern) MarshalJSON() ([]byte, error) {
	return json.Marshal(patternJSON{
		Kind:       p.Kind(),
		Once:       p.Once,
		Recurrence: p.Recurrence,
		Countdown:  p.Countdown,
		Cron:       p.Cron,
		NagSec:     int64(p.Nag / time.Second),
	})
}

func (p *Pattern) UnmarshalJSON(data []byte) error {
	var raw patternJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Pattern{
		Once:       raw.Once,
		Recurrence: raw.Recurrence,
		Countdown:  raw.Countdown,
		Cron:       raw.Cron,
		Nag:        time.Duration(raw.NagSec) * time.Second,
	}
	if n := countSet(p.Once != nil, p.Recurrence != nil, p.Countdown != nil, p.Cron != nil); n != 1 {
		return fmt.Errorf("pattern %q: %d variants set, want 1", raw.Kind, n)
	}
	return nil
}

func countSet(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func (d Date) String() string {
	return fmt.Sprintf("%02d.%02d.%04d", d.Day, d.Month, d.Year)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if _, err := fmt.Sscanf(s, "%d-%d-%d", &d.Year, &d.Month, &d.Day); err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	return nil
}

func (t TimeOfDay) String() string {
	if t.Second != 0 {
		return fmt.Sprintf("%d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second))
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &t.Hour, &t.Minute, &t.Second); err != nil {
		return fmt.Errorf("invalid time %q: %w", s, err)
	}
	return nil
}

func (iv DateInterval) String() string {
	var sb strings.Builder
	writeUnit(&sb, iv.Years, "y")
	writeUnit(&sb, iv.Months, "mo")
	writeUnit(&sb, iv.Weeks, "w")
	writeUnit(&sb, iv.Days, "d")
	return sb.String()
}

func (iv TimeInterval) String() string {
	var sb strings.Builder
	writeUnit(&sb, iv.Hours, "h")
	writeUnit(&sb, iv.Minutes, "m")
	writeUnit(&sb, iv.Seconds, "s")
	return sb.String()
}

func writeUnit(sb *strings.Builder, n int, suffix string) {
	if n > 0 {
		fmt.Fprintf(sb, "%d%s", n, suffix)
	}
}

// FormatDuration renders a duration in the nag-suffix form: 1w2d3h4m5s.
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	var sb strings.Builder
	for _, unit := range []struct {
		suffix string
		secs   int64
	}{
		{"w", 7 * 24 * 60 * 60},
		{"d", 24 * 60 * 60},
		{"h", 60 * 60},
		{"m", 60},
		{"s", 1},
	} {
		if n := secs / unit.secs; n > 0 {
			fmt.Fprintf(&sb, "%d%s", n, unit.suffix)
			secs %= unit.secs
		}
	}
	if sb.Len() == 0 {
		return "0s"
	}
	return sb.String()
}

func (dp DatePattern) String() string {
	if dp.Point != nil {
		return dp.Point.String()
	}
	return dp.Range.String()
}

func (dr *DateRange) String() string {
	var sb strings.Builder
	sb.WriteString(dr.From.String())
	sb.WriteByte('-')
	if dr.Until != nil {
		sb.WriteString(dr.Until.String())
	}
	switch {
	case !dr.Weekdays.IsEmpty():
		sb.WriteByte('/')
		sb.WriteString(dr.Weekdays.String())
	case dr.Step != nil && !dr.Step.IsZero():
		sb.WriteByte('/')
		sb.WriteString(dr.Step.String())
	}
	return sb.String()
}

func (tn TimeNode) String() string {
	if tn.Point != nil {
		return tn.Point.String()
	}
	var sb strings.Builder
	if tn.Range.From != nil {
		sb.WriteString(tn.Range.From.String())
	}
	sb.WriteByte('-')
	if tn.Range.Until != nil {
		sb.WriteString(tn.Range.Until.String())
	}
	if tn.Range.Step != nil {
		sb.WriteByte('/')
		sb.WriteString(tn.Range.Step.String())
	}
	return sb.String()
}

// String renders the schedule part shown next to a reminder in lists. A
// one-time pattern renders empty; its instant is shown separately.
func (p *Pattern) String() string {
	switch {
	case p.Recurrence != nil:
		dates := make([]string, len(p.Recurrence.Dates))
		for i, d := range p.Recurrence.Dates {
			dates[i] = d.String()
		}
		s := strings.Join(dates, ",")
		if len(p.Recurrence.Times) > 0 {
			times := make([]string, len(p.Recurrence.Times))
			for i, t := range p.Recurrence.Times {
				times[i] = t.String()
			}
			s += " " + strings.Join(times, ",")
		}
		return s
	case p.Cron != nil:
		return "cron " + p.Cron.Expr
	default:
		return ""
	}
}
