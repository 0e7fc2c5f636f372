package service

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/tazhate/remindbot/internal/domain"
	"github.com/tazhate/remindbot/internal/pattern"
	"github.com/tazhate/remindbot/internal/storage"
)

var (
	ErrNotFound = errors.New("reminder not found")
	// ErrNoFutureOccurrence means every date the pattern can produce lies
	// in the past (an exhausted bounded range).
	ErrNoFutureOccurrence = errors.New("the pattern has no future occurrence")
	// ErrStaleDelivery means the acknowledged delivery was superseded by a
	// newer nag or occurrence.
	ErrStaleDelivery = errors.New("delivery already superseded")
	ErrEmptyText     = errors.New("reminder text cannot be empty")
)

// Waker nudges the scheduler after any mutation that can move its wake-up
// target.
type Waker interface {
	Wake()
}

type ReminderService struct {
	storage   *storage.Storage
	defaultTZ *time.Location
	waker     Waker
	now       func() time.Time
}

func NewReminderService(s *storage.Storage, defaultTZ *time.Location) *ReminderService {
	return &ReminderService{
		storage:   s,
		defaultTZ: defaultTZ,
		now:       time.Now,
	}
}

func (s *ReminderService) SetWaker(w Waker) {
	s.waker = w
}

func (s *ReminderService) wake() {
	if s.waker != nil {
		s.waker.Wake()
	}
}

// Location returns the user's timezone, falling back to the configured
// default.
func (s *ReminderService) Location(userID int64) (string, *time.Location) {
	name, err := s.storage.GetUserTimezone(userID)
	if err == nil && name != "" {
		if loc, lerr := time.LoadLocation(name); lerr == nil {
			return name, loc
		}
	}
	return s.defaultTZ.String(), s.defaultTZ
}

// Create parses a raw reminder line, normalises it against the user's
// timezone and stores it with its first firing instant.
func (s *ReminderService) Create(userID int64, text string) (*domain.Reminder, error) {
	tree, err := pattern.Parse(text)
	if err != nil {
		return nil, err
	}
	if tree.Description == "" {
		return nil, ErrEmptyText
	}

	tzName, loc := s.Location(userID)
	now := s.now()
	pat, err := pattern.Normalize(tree, now, loc)
	if err != nil {
		return nil, err
	}

	next, ok := pattern.Next(pat, now, loc)
	if !ok {
		return nil, ErrNoFutureOccurrence
	}

	r := &domain.Reminder{
		UserID:      userID,
		Description: tree.Description,
		Timezone:    tzName,
		Pattern:     pat,
		IsActive:    true,
		NextFire:    &next,
		CreatedAt:   now,
	}
	if err := s.storage.CreateReminder(r); err != nil {
		return nil, fmt.Errorf("create reminder: %w", err)
	}
	s.wake()
	return r, nil
}

func (s *ReminderService) List(userID int64) ([]*domain.Reminder, error) {
	return s.storage.ListRemindersByUser(userID)
}

// owned loads a reminder and checks it belongs to the user.
func (s *ReminderService) owned(userID, reminderID int64) (*domain.Reminder, error) {
	r, err := s.storage.GetReminder(reminderID)
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	if r == nil || r.UserID != userID {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *ReminderService) Delete(userID, reminderID int64) error {
	if _, err := s.owned(userID, reminderID); err != nil {
		return err
	}
	if err := s.storage.DeleteReminder(reminderID); err != nil {
		return err
	}
	s.wake()
	return nil
}

func (s *ReminderService) Pause(userID, reminderID int64) error {
	if _, err := s.owned(userID, reminderID); err != nil {
		return err
	}
	if err := s.storage.SetPaused(reminderID, true); err != nil {
		return err
	}
	s.wake()
	return nil
}

// Resume unpauses a reminder. Recurring schedules restart from now rather
// than replaying everything missed while paused.
func (s *ReminderService) Resume(userID, reminderID int64) error {
	r, err := s.owned(userID, reminderID)
	if err != nil {
		return err
	}
	if r.Pattern.Recurs() {
		_, loc := s.Location(userID)
		if next, ok := pattern.Next(r.Pattern, s.now(), loc); ok {
			err = s.storage.SetNextFire(reminderID, &next)
		} else {
			err = s.storage.MarkInactive(reminderID)
		}
		if err != nil {
			return err
		}
	}
	if err := s.storage.SetPaused(reminderID, false); err != nil {
		return err
	}
	s.wake()
	return nil
}

// Acknowledge closes a nag cycle. The delivery id must match the pending
// one: a stale affordance from a superseded cycle is rejected.
func (s *ReminderService) Acknowledge(userID, reminderID int64, deliveryID string) error {
	r, err := s.owned(userID, reminderID)
	if err != nil {
		return err
	}
	if r.PendingSince == nil || r.PendingDeliveryID != deliveryID {
		return ErrStaleDelivery
	}
	if err := s.storage.SetPendingAck(reminderID, nil, ""); err != nil {
		return err
	}
	if r.NextFire == nil {
		// One-shot patterns are done once acknowledged.
		if err := s.storage.MarkInactive(reminderID); err != nil {
			return err
		}
	}
	s.wake()
	return nil
}

// SetTimezone validates and stores the user's IANA timezone.
func (s *ReminderService) SetTimezone(userID int64, name string) error {
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("unknown timezone %q", name)
	}
	return s.storage.SetUserTimezone(userID, name)
}

// FormatList renders reminders for chat display, HTML-escaped. The date is
// omitted for today's fires and the year for this year's, matching how the
// reminders were typed in.
func (s *ReminderService) FormatList(reminders []*domain.Reminder, loc *time.Location) string {
	if len(reminders) == 0 {
		return "No reminders yet. Send me something like <code>8:30 stand-up</code>."
	}

	now := s.now().In(loc)
	var sb strings.Builder
	for _, r := range reminders {
		if r.IsPaused {
			sb.WriteString("⏸ ")
		} else {
			sb.WriteString("🔔 ")
		}
		fmt.Fprintf(&sb, "#%d ", r.ID)
		if r.NextFire != nil {
			sb.WriteString(formatFireTime(r.NextFire.In(loc), now))
		} else {
			sb.WriteString("⏳")
		}
		fmt.Fprintf(&sb, " <b>%s</b>", html.EscapeString(r.Description))
		if pat := r.Pattern.String(); pat != "" {
			fmt.Fprintf(&sb, " [%s]", html.EscapeString(pat))
		}
		if r.Pattern.Nag > 0 {
			fmt.Fprintf(&sb, " [!%s]", pattern.FormatDuration(r.Pattern.Nag))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatFireTime(t, now time.Time) string {
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	if t.Year() == now.Year() {
		return t.Format("02.01 15:04")
	}
	return t.Format("02.01.2006 15:04")
}
