// Package scheduler runs the periodic sweeps that release holds nobody acted
// on before their deadline.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/Domenick1991/ridehold/internal/repository"
	"github.com/Domenick1991/ridehold/internal/service/holds"
	"github.com/robfig/cron/v3"
)

const DefaultBatchSize = 25

// Holds is the part of the hold manager the sweeps drive.
type Holds interface {
	TimeoutBooking(ctx context.Context, bookingID string) (bool, *holds.RefundResult, error)
	RefundHold(ctx context.Context, bookingID string, reason domain.RefundReason) (*holds.RefundResult, error)
	Reconcile(ctx context.Context, limit int) (holds.ReconcileReport, error)
}

type Report struct {
	BookingsTimedOut int
	HoldsReleased    int
	Reconciled       int
	Failures         int
}

type Scheduler struct {
	cron *cron.Cron
	// job is the sweep wrapped in Recover and SkipIfStillRunning; cron ticks
	// and the startup run share it so they never overlap.
	job cron.Job
	wg  sync.WaitGroup

	runCtx context.Context
	cancel context.CancelFunc

	holds    Holds
	bookings repository.BookingRepository
	holdRepo repository.HoldRepository
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration
	batch    int
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

func WithBatchSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.batch = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func New(h Holds, store repository.Store, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		holds:    h,
		bookings: store.Bookings,
		holdRepo: store.Holds,
		logger:   slog.Default(),
		now:      time.Now,
		interval: interval,
		batch:    DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelInfo))
	s.cron = cron.New()
	s.job = cron.NewChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)).
		Then(cron.FuncJob(func() { s.RunOnce(s.runCtx) }))
	return s
}

// Start registers the sweep, runs it once right away and starts the cron loop.
// Sweeps run on a context detached from ctx: cancelling ctx does not abort a
// money movement halfway, Stop does the draining.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", s.interval)
	}
	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	if _, err := s.cron.AddJob("@every "+s.interval.String(), s.job); err != nil {
		s.cancel()
		return fmt.Errorf("schedule hold sweep: %w", err)
	}
	s.logger.Info("scheduled hold sweep", "interval", s.interval, "batch_size", s.batch)

	s.cron.Start()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.job.Run()
	}()
	return nil
}

// Stop prevents further ticks and returns a context that is done once every
// running sweep, the startup one included, has finished.
func (s *Scheduler) Stop() context.Context {
	cronDone := s.cron.Stop()
	ctx, done := context.WithCancel(context.Background())
	go func() {
		defer done()
		<-cronDone.Done()
		s.wg.Wait()
		if s.cancel != nil {
			s.cancel()
		}
	}()
	return ctx
}

// RunOnce performs one tick: overdue bookings first, then expired holds, then
// rows left inconsistent by a failed write.
func (s *Scheduler) RunOnce(ctx context.Context) Report {
	var report Report
	now := s.now()

	s.sweepDeadlines(ctx, now, &report)
	s.sweepExpiredHolds(ctx, now, &report)

	rec, err := s.holds.Reconcile(ctx, s.batch)
	if err != nil {
		report.Failures++
		s.logger.ErrorContext(ctx, "reconcile sweep failed", "error", err)
	}
	report.Reconciled = rec.Repaired
	report.Failures += rec.Failed

	if report != (Report{}) {
		s.logger.InfoContext(ctx, "hold sweep finished",
			"bookings_timed_out", report.BookingsTimedOut,
			"holds_released", report.HoldsReleased,
			"reconciled", report.Reconciled,
			"failures", report.Failures,
		)
	}
	return report
}

func (s *Scheduler) sweepDeadlines(ctx context.Context, now time.Time, report *Report) {
	bookings, err := s.bookings.ListPendingPastDeadline(ctx, now, s.batch)
	if err != nil {
		report.Failures++
		s.logger.ErrorContext(ctx, "list overdue bookings failed", "error", err)
		return
	}

	for _, b := range bookings {
		timedOut, res, err := s.holds.TimeoutBooking(ctx, b.ID)
		if timedOut {
			report.BookingsTimedOut++
		}
		switch {
		case err == nil && timedOut:
			if res != nil && !res.AlreadyProcessed {
				report.HoldsReleased++
			}
		case err == nil:
			// the driver or rider got there first
		case errors.Is(err, domain.ErrNotFound):
			// nothing was ever authorized
		default:
			report.Failures++
			s.logger.ErrorContext(ctx, "time out booking failed", "booking_id", b.ID, "error", err)
		}
	}
}

func (s *Scheduler) sweepExpiredHolds(ctx context.Context, now time.Time, report *Report) {
	expired, err := s.holdRepo.ListExpiredActive(ctx, now, s.batch)
	if err != nil {
		report.Failures++
		s.logger.ErrorContext(ctx, "list expired holds failed", "error", err)
		return
	}

	for _, h := range expired {
		reason := domain.RefundReasonTimeout
		if b, err := s.bookings.GetByID(ctx, h.BookingID); err == nil {
			if b.Status == domain.BookingStatusConfirmed || b.Status == domain.BookingStatusCompleted {
				// money was captured; the reconcile sweep settles the hold row
				continue
			}
			reason = reasonFor(b.Status)
		}

		res, err := s.holds.RefundHold(ctx, h.BookingID, reason)
		if err != nil {
			report.Failures++
			s.logger.ErrorContext(ctx, "release expired hold failed",
				"booking_id", h.BookingID,
				"hold_id", h.ID,
				"error", err,
			)
			continue
		}
		if !res.AlreadyProcessed {
			report.HoldsReleased++
		}
	}
}

// reasonFor infers why an expired hold is being released from what happened
// to its booking.
func reasonFor(status domain.BookingStatus) domain.RefundReason {
	switch status {
	case domain.BookingStatusCancelled:
		return domain.RefundReasonPassengerCancelled
	case domain.BookingStatusRejected:
		return domain.RefundReasonDriverRejected
	}
	return domain.RefundReasonTimeout
}
