package service

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tazhate/remindbot/internal/pattern"
	"github.com/tazhate/remindbot/internal/storage"
)

type countingWaker struct{ n int }

func (w *countingWaker) Wake() { w.n++ }

func newTestService(t *testing.T, now time.Time) (*ReminderService, *storage.Storage, *countingWaker) {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "remindbot.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatal(err)
	}
	svc := NewReminderService(store, berlin)
	svc.now = func() time.Time { return now }
	waker := &countingWaker{}
	svc.SetWaker(waker)
	return svc, store, waker
}

func TestCreateStoresFirstFire(t *testing.T) {
	berlin, _ := time.LoadLocation("Europe/Berlin")
	now := time.Date(2024, 6, 15, 7, 0, 0, 0, berlin)
	svc, _, waker := newTestService(t, now)

	r, err := svc.Create(7, "8:30 stand-up")
	if err != nil {
		t.Fatal(err)
	}
	if r.Description != "stand-up" || r.Timezone != "Europe/Berlin" {
		t.Errorf("row mismatch: %+v", r)
	}
	if want := time.Date(2024, 6, 15, 8, 30, 0, 0, berlin); r.NextFire == nil || !r.NextFire.Equal(want) {
		t.Errorf("next fire = %v, want %v", r.NextFire, want)
	}
	if waker.n == 0 {
		t.Error("scheduler not woken")
	}

	list, err := svc.List(7)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v", list, err)
	}
}

func TestCreateUsesUserTimezone(t *testing.T) {
	berlin, _ := time.LoadLocation("Europe/Berlin")
	now := time.Date(2024, 6, 15, 7, 0, 0, 0, berlin)
	svc, _, _ := newTestService(t, now)

	if err := svc.SetTimezone(7, "Asia/Tokyo"); err != nil {
		t.Fatal(err)
	}
	tokyo, _ := time.LoadLocation("Asia/Tokyo")

	// 07:00 in Berlin is 14:00 in Tokyo, so 8:30 rolls to tomorrow there.
	r, err := svc.Create(7, "8:30 stand-up")
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 6, 16, 8, 30, 0, 0, tokyo); !r.NextFire.Equal(want) {
		t.Errorf("next fire = %v, want %v", r.NextFire.In(tokyo), want)
	}

	if err := svc.SetTimezone(7, "Not/AZone"); err == nil {
		t.Error("bogus timezone accepted")
	}
}

func TestCreateErrors(t *testing.T) {
	berlin, _ := time.LoadLocation("Europe/Berlin")
	now := time.Date(2024, 6, 15, 7, 0, 0, 0, berlin)
	svc, _, _ := newTestService(t, now)

	var perr *pattern.ParseError
	if _, err := svc.Create(7, "total nonsense"); !errors.As(err, &perr) {
		t.Errorf("err = %v, want ParseError", err)
	}
	if _, err := svc.Create(7, "14.06.2024 10:00 yesterday"); !errors.Is(err, pattern.ErrPastInstant) {
		t.Errorf("err = %v, want ErrPastInstant", err)
	}
	if _, err := svc.Create(7, "1.6.2024-5.6.2024/1d 10:00 over"); !errors.Is(err, ErrNoFutureOccurrence) {
		t.Errorf("err = %v, want ErrNoFutureOccurrence", err)
	}
	if _, err := svc.Create(7, "8:30"); !errors.Is(err, ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
}

func TestAcknowledge(t *testing.T) {
	berlin, _ := time.LoadLocation("Europe/Berlin")
	now := time.Date(2024, 6, 15, 7, 0, 0, 0, berlin)
	svc, store, _ := newTestService(t, now)

	r, err := svc.Create(7, "10:00!15m meds")
	if err != nil {
		t.Fatal(err)
	}

	// The scheduler has fired and parked the reminder in pending-ack.
	since := now.Add(3 * time.Hour)
	if err := store.SetNextFire(r.ID, nil); err != nil {
		t.Fatal(err)
	}
	if err := store.SetPendingAck(r.ID, &since, "d-1"); err != nil {
		t.Fatal(err)
	}

	if err := svc.Acknowledge(8, r.ID, "d-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign ack: %v", err)
	}
	if err := svc.Acknowledge(7, r.ID, "stale"); !errors.Is(err, ErrStaleDelivery) {
		t.Errorf("stale ack: %v", err)
	}
	if err := svc.Acknowledge(7, r.ID, "d-1"); err != nil {
		t.Fatal(err)
	}

	got, _ := store.GetReminder(r.ID)
	if got.PendingSince != nil {
		t.Errorf("pending not cleared: %+v", got)
	}
	// One-shot with nothing left to fire retires on acknowledgement.
	if got.IsActive {
		t.Errorf("acknowledged one-shot still active")
	}
}

func TestPauseResume(t *testing.T) {
	berlin, _ := time.LoadLocation("Europe/Berlin")
	now := time.Date(2024, 6, 15, 7, 0, 0, 0, berlin)
	svc, store, _ := newTestService(t, now)

	r, err := svc.Create(7, "-/1d 10:00 walk")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Pause(7, r.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.GetReminder(r.ID); !got.IsPaused {
		t.Error("not paused")
	}

	// While paused the clock moved a week; resume restarts from now.
	later := now.Add(7 * 24 * time.Hour)
	svc.now = func() time.Time { return later }
	if err := svc.Resume(7, r.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := store.GetReminder(r.ID)
	if got.IsPaused {
		t.Error("still paused")
	}
	if got.NextFire == nil || !got.NextFire.After(later) {
		t.Errorf("next fire = %v, want after %v", got.NextFire, later)
	}

	if err := svc.Delete(7, r.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(7, r.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: %v", err)
	}
}

func TestFormatList(t *testing.T) {
	berlin, _ := time.LoadLocation("Europe/Berlin")
	now := time.Date(2024, 6, 15, 7, 0, 0, 0, berlin)
	svc, _, _ := newTestService(t, now)

	if _, err := svc.Create(7, "8:30 stand-up <with brackets>"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(7, "-/1d 10:00!15m meds"); err != nil {
		t.Fatal(err)
	}

	list, err := svc.List(7)
	if err != nil {
		t.Fatal(err)
	}
	out := svc.FormatList(list, berlin)
	if !strings.Contains(out, "8:30") || !strings.Contains(out, "&lt;with brackets&gt;") {
		t.Errorf("list output: %q", out)
	}
	if !strings.Contains(out, "[!15m]") {
		t.Errorf("nag suffix missing: %q", out)
	}
}

func TestExportCalendar(t *testing.T) {
	berlin, _ := time.LoadLocation("Europe/Berlin")
	now := time.Date(2024, 6, 15, 7, 0, 0, 0, berlin)
	svc, _, _ := newTestService(t, now)

	if _, err := svc.Create(7, "8:30 stand-up"); err != nil {
		t.Fatal(err)
	}

	ics, err := svc.ExportCalendar(7)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"BEGIN:VCALENDAR", "BEGIN:VEVENT", "SUMMARY:stand-up"} {
		if !strings.Contains(ics, want) {
			t.Errorf("calendar missing %q:\n%s", want, ics)
		}
	}
}
