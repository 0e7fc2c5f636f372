package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// ExportCalendar renders the user's active reminders as an iCalendar
// snapshot: one VEVENT per reminder at its next occurrence. Reminders with
// no next occurrence (a one-shot awaiting acknowledgement) are left out.
func (s *ReminderService) ExportCalendar(userID int64) (string, error) {
	reminders, err := s.List(userID)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//remindbot//reminders//EN")

	for _, r := range reminders {
		if r.NextFire == nil {
			continue
		}
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, fmt.Sprintf("reminder-%d@remindbot", r.ID))
		event.Props.SetDateTime(ical.PropDateTimeStamp, now)
		event.Props.SetDateTime(ical.PropDateTimeStart, r.NextFire.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, r.NextFire.UTC().Add(15*time.Minute))
		event.Props.SetText(ical.PropSummary, r.Description)
		if pat := r.Pattern.String(); pat != "" {
			event.Props.SetText(ical.PropDescription, pat)
		}
		cal.Children = append(cal.Children, event.Component)
	}

	var buf strings.Builder
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("encode calendar: %w", err)
	}
	return buf.String(), nil
}
