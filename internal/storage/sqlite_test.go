package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/tazhate/remindbot/internal/domain"
	"github.com/tazhate/remindbot/internal/pattern"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "remindbot.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testReminder(userID int64, nextFire time.Time) *domain.Reminder {
	return &domain.Reminder{
		UserID:      userID,
		Description: "water the plants",
		Timezone:    "Europe/Berlin",
		Pattern: &pattern.Pattern{
			Once: &pattern.Once{Date: pattern.Date{Year: 2024, Month: 6, Day: 15}, Time: pattern.TimeOfDay{Hour: 12}},
			Nag:  15 * time.Minute,
		},
		IsActive: true,
		NextFire: &nextFire,
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	fire := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

	r := testReminder(7, fire)
	if err := s.CreateReminder(r); err != nil {
		t.Fatal(err)
	}
	if r.ID == 0 {
		t.Fatal("id not assigned")
	}

	got, err := s.GetReminder(r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("reminder not found")
	}
	if got.UserID != 7 || got.Description != "water the plants" || got.Timezone != "Europe/Berlin" {
		t.Errorf("row mismatch: %+v", got)
	}
	if got.NextFire == nil || !got.NextFire.Equal(fire) {
		t.Errorf("next fire = %v, want %v", got.NextFire, fire)
	}
	if got.Pattern.Kind() != pattern.KindOnce || got.Pattern.Nag != 15*time.Minute {
		t.Errorf("pattern mismatch: %+v", got.Pattern)
	}

	if missing, err := s.GetReminder(999); err != nil || missing != nil {
		t.Errorf("missing reminder: %v, %v", missing, err)
	}
}

func TestLoadDueWindow(t *testing.T) {
	s := newTestStorage(t)
	base := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	early := testReminder(7, base.Add(-time.Minute))
	late := testReminder(7, base.Add(time.Hour))
	for _, r := range []*domain.Reminder{early, late} {
		if err := s.CreateReminder(r); err != nil {
			t.Fatal(err)
		}
	}

	// Awaiting acknowledgement: included regardless of next fire.
	nagging := testReminder(7, base.Add(2*time.Hour))
	if err := s.CreateReminder(nagging); err != nil {
		t.Fatal(err)
	}
	since := base.Add(-10 * time.Minute)
	if err := s.SetPendingAck(nagging.ID, &since, "d-1"); err != nil {
		t.Fatal(err)
	}

	// Paused rows stay out of the window.
	paused := testReminder(7, base.Add(-time.Hour))
	if err := s.CreateReminder(paused); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPaused(paused.ID, true); err != nil {
		t.Fatal(err)
	}

	due, err := s.LoadDueWindow(base)
	if err != nil {
		t.Fatal(err)
	}
	ids := map[int64]bool{}
	for _, r := range due {
		ids[r.ID] = true
	}
	if len(due) != 2 || !ids[early.ID] || !ids[nagging.ID] {
		t.Errorf("due window = %v", ids)
	}

	got, _ := s.GetReminder(nagging.ID)
	if got.PendingSince == nil || !got.PendingSince.Equal(since) || got.PendingDeliveryID != "d-1" {
		t.Errorf("pending ack not persisted: %+v", got)
	}
}

func TestStateTransitions(t *testing.T) {
	s := newTestStorage(t)
	base := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	r := testReminder(7, base)
	if err := s.CreateReminder(r); err != nil {
		t.Fatal(err)
	}

	next := base.Add(24 * time.Hour)
	if err := s.SetNextFire(r.ID, &next); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.GetReminder(r.ID); !got.NextFire.Equal(next) {
		t.Errorf("next fire = %v", got.NextFire)
	}

	if err := s.SetNextFire(r.ID, nil); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.GetReminder(r.ID); got.NextFire != nil {
		t.Errorf("next fire not cleared: %v", got.NextFire)
	}

	if err := s.MarkInactive(r.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetReminder(r.ID)
	if got.IsActive || got.PendingSince != nil {
		t.Errorf("not retired: %+v", got)
	}

	if err := s.DeleteReminder(r.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.GetReminder(r.ID); got != nil {
		t.Error("reminder survived delete")
	}
}

func TestListRemindersByUser(t *testing.T) {
	s := newTestStorage(t)
	base := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	mine := testReminder(7, base)
	other := testReminder(8, base)
	for _, r := range []*domain.Reminder{mine, other} {
		if err := s.CreateReminder(r); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListRemindersByUser(7)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != mine.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestUserTimezone(t *testing.T) {
	s := newTestStorage(t)

	if tz, err := s.GetUserTimezone(7); err != nil || tz != "" {
		t.Errorf("fresh user tz = %q, %v", tz, err)
	}
	if err := s.SetUserTimezone(7, "Europe/Berlin"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUserTimezone(7, "Asia/Tokyo"); err != nil {
		t.Fatal(err)
	}
	if tz, _ := s.GetUserTimezone(7); tz != "Asia/Tokyo" {
		t.Errorf("tz = %q", tz)
	}
}
