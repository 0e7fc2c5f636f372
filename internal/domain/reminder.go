package domain

import (
	"time"

	"github.com/tazhate/remindbot/internal/pattern"
)

// Reminder is one stored reminder row. The scheduler never caches these;
// rows are reloaded from the store on every pass over the due window.
type Reminder struct {
	ID          int64
	UserID      int64 // Telegram chat id of the owner
	Description string
	Timezone    string // IANA zone name
	Pattern     *pattern.Pattern
	IsActive    bool
	IsPaused    bool

	// NextFire is the next scheduled occurrence, UTC. Nil while a one-shot
	// pattern waits for acknowledgement or after it has fired.
	NextFire *time.Time

	// PendingSince is set while a delivery awaits acknowledgement; the next
	// nag re-fire is PendingSince + Pattern.Nag. PendingDeliveryID ties the
	// acknowledgement affordance back to the delivery that carried it.
	PendingSince      *time.Time
	PendingDeliveryID string

	CreatedAt time.Time
}

func (r *Reminder) Location() (*time.Location, error) {
	return time.LoadLocation(r.Timezone)
}

// DueAt returns the earlier of the next scheduled fire and the next nag
// re-fire. False when neither is set (an inactive or acknowledged row).
func (r *Reminder) DueAt() (time.Time, bool) {
	var due time.Time
	ok := false
	if r.NextFire != nil {
		due, ok = *r.NextFire, true
	}
	if r.PendingSince != nil && r.Pattern != nil && r.Pattern.Nag > 0 {
		if nag := r.PendingSince.Add(r.Pattern.Nag); !ok || nag.Before(due) {
			due, ok = nag, true
		}
	}
	return due, ok
}
