package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tazhate/remindbot/internal/domain"
	"github.com/tazhate/remindbot/internal/logger"
	"github.com/tazhate/remindbot/internal/pattern"
)

// Store is the narrow persistence contract the scheduler depends on. Every
// call is atomic, and a LoadDueWindow observes the scheduler's own
// preceding writes.
type Store interface {
	LoadDueWindow(until time.Time) ([]*domain.Reminder, error)
	SetNextFire(id int64, next *time.Time) error
	SetPendingAck(id int64, since *time.Time, deliveryID string) error
	MarkInactive(id int64) error
}

// AckToken makes a delivery acknowledgeable: the transport renders an
// affordance carrying both ids back through the update path.
type AckToken struct {
	ReminderID int64
	DeliveryID string
}

// Sender hands a notification to the messaging transport.
type Sender interface {
	Send(ctx context.Context, userID int64, text string, ack *AckToken) error
}

const (
	// maxSleep bounds how long the loop sleeps without re-reading the due
	// window, which bounds the latency of reminders inserted concurrently.
	maxSleep = 5 * time.Minute

	dispatchTimeout = 30 * time.Second
	retryInitial    = time.Second
	retryCap        = 5 * time.Minute
	retryAttempts   = 8

	// Pause between passes after a store error.
	storeRetryDelay = 5 * time.Second
)

// Scheduler is the single delivery coordinator: it keeps a wake-up horizon
// over all active reminders, dispatches due ones sequentially and advances
// or retires them. One instance, one goroutine.
type Scheduler struct {
	store     Store
	sender    Sender
	defaultTZ *time.Location
	wake      chan struct{}
	now       func() time.Time

	maxSleep        time.Duration
	dispatchTimeout time.Duration
	retryInitial    time.Duration
	retryCap        time.Duration
	retryAttempts   int
}

func New(store Store, defaultTZ *time.Location) *Scheduler {
	return &Scheduler{
		store:     store,
		defaultTZ: defaultTZ,
		wake:      make(chan struct{}, 1),
		now:       time.Now,

		maxSleep:        maxSleep,
		dispatchTimeout: dispatchTimeout,
		retryInitial:    retryInitial,
		retryCap:        retryCap,
		retryAttempts:   retryAttempts,
	}
}

func (s *Scheduler) SetSender(sender Sender) {
	s.sender = sender
}

// Wake nudges the loop to re-evaluate its sleep target. The signal is a
// single lossy slot: coalesced wake-ups trigger one re-evaluation.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Start runs the delivery loop until ctx is cancelled. Cancellation does
// not interrupt a dispatch attempt in flight: it runs to completion and a
// successful delivery is persisted before returning; a failed one is not
// retried and leaves the row unchanged.
func (s *Scheduler) Start(ctx context.Context) error {
	logger.Info("scheduler started", "max_sleep", s.maxSleep)
	for {
		if err := ctx.Err(); err != nil {
			logger.Info("scheduler stopped")
			return nil
		}

		horizon := s.now().Add(s.maxSleep)
		due, err := s.store.LoadDueWindow(horizon)
		if err != nil {
			logger.Error("load due window", "error", err)
			s.sleepUntil(ctx, s.now().Add(storeRetryDelay))
			continue
		}

		r, dueAt := earliest(due)
		if r == nil {
			s.sleepUntil(ctx, horizon)
			continue
		}
		if now := s.now(); dueAt.After(now) {
			target := dueAt
			if horizon.Before(target) {
				target = horizon
			}
			s.sleepUntil(ctx, target)
			continue
		}

		s.process(ctx, r)
	}
}

// sleepUntil suspends until the target instant, a wake-up signal or
// cancellation, whichever comes first.
func (s *Scheduler) sleepUntil(ctx context.Context, target time.Time) {
	d := target.Sub(s.now())
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-s.wake:
	case <-timer.C:
	}
}

func earliest(due []*domain.Reminder) (*domain.Reminder, time.Time) {
	var best *domain.Reminder
	var bestAt time.Time
	for _, r := range due {
		at, ok := r.DueAt()
		if !ok {
			continue
		}
		if best == nil || at.Before(bestAt) {
			best, bestAt = r, at
		}
	}
	return best, bestAt
}

// process delivers whichever of the reminder's two clocks is due: the
// occurrence clock (next_fire) or the nag clock (pending_since + nag). When
// both are due the occurrence wins; the new cycle supersedes the
// unacknowledged one.
func (s *Scheduler) process(ctx context.Context, r *domain.Reminder) {
	now := s.now()
	if r.NextFire != nil && !r.NextFire.After(now) {
		s.fireOccurrence(ctx, r, now)
		return
	}
	if r.PendingSince != nil && r.Pattern.Nag > 0 && !r.PendingSince.Add(r.Pattern.Nag).After(now) {
		s.fireNag(ctx, r, now)
	}
}

func (s *Scheduler) location(r *domain.Reminder) *time.Location {
	loc, err := r.Location()
	if err != nil {
		logger.Error("load reminder timezone", "reminder", r.ID, "tz", r.Timezone, "error", err)
		return s.defaultTZ
	}
	return loc
}

func (s *Scheduler) fireOccurrence(ctx context.Context, r *domain.Reminder, now time.Time) {
	var ack *AckToken
	if r.Pattern.Nag > 0 {
		ack = &AckToken{ReminderID: r.ID, DeliveryID: uuid.NewString()}
	}

	if err := s.dispatch(ctx, r, ack); err != nil {
		if ctx.Err() != nil {
			// Shutting down mid-dispatch: leave the row untouched so the
			// occurrence fires again on restart.
			return
		}
		// Retries exhausted. Advance anyway: one unreachable chat must not
		// stall the loop.
		logger.Error("dispatch failed, advancing", "reminder", r.ID, "error", err)
	}

	if r.Pattern.Recurs() {
		loc := s.location(r)
		if next, ok := pattern.Next(r.Pattern, *r.NextFire, loc); ok {
			s.persist(r.ID, s.store.SetNextFire(r.ID, &next))
		} else if ack == nil {
			s.persist(r.ID, s.store.MarkInactive(r.ID))
		} else {
			s.persist(r.ID, s.store.SetNextFire(r.ID, nil))
		}
	} else {
		if ack == nil {
			s.persist(r.ID, s.store.MarkInactive(r.ID))
			return
		}
		s.persist(r.ID, s.store.SetNextFire(r.ID, nil))
	}
	if ack != nil {
		s.persist(r.ID, s.store.SetPendingAck(r.ID, &now, ack.DeliveryID))
	}
}

func (s *Scheduler) fireNag(ctx context.Context, r *domain.Reminder, now time.Time) {
	ack := &AckToken{ReminderID: r.ID, DeliveryID: uuid.NewString()}
	if err := s.dispatch(ctx, r, ack); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("nag dispatch failed, advancing", "reminder", r.ID, "error", err)
	}
	s.persist(r.ID, s.store.SetPendingAck(r.ID, &now, ack.DeliveryID))
}

func (s *Scheduler) persist(id int64, err error) {
	if err != nil {
		logger.Error("persist reminder state", "reminder", id, "error", err)
	}
}

// dispatch sends with exponential backoff: 1s doubling to a 5m cap, eight
// attempts, 30s per attempt.
func (s *Scheduler) dispatch(ctx context.Context, r *domain.Reminder, ack *AckToken) error {
	delay := s.retryInitial
	var err error
	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
		err = s.sender.Send(attemptCtx, r.UserID, r.Description, ack)
		cancel()
		if err == nil {
			return nil
		}
		if attempt >= s.retryAttempts || ctx.Err() != nil {
			return err
		}
		logger.Warn("dispatch attempt failed", "reminder", r.ID, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		if delay *= 2; delay > s.retryCap {
			delay = s.retryCap
		}
	}
}
