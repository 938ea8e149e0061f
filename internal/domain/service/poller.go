package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/common/errorz"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/utils/location"
	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger/types"
)

// DefaultPollSchedule matches the one-minute timer of the hosting platform.
const DefaultPollSchedule = "@every 1m"

type pollUserStorage interface {
	GetAllIDs(ctx context.Context) ([]int64, error)
}

type pollEventStorage interface {
	// GetInWindow returns the user's events due in (from, to].
	GetInWindow(ctx context.Context, userID int64, from, to time.Time) ([]entity.Event, error)
	Get(ctx context.Context, userID int64, id string) (*entity.Event, error)
}

type pollNotificationStorage interface {
	GetByUser(ctx context.Context, userID int64, notificationType entity.NotificationType) ([]entity.Notification, error)
}

type reminderReconciler interface {
	Reconcile(ctx context.Context, userID int64, eventID string, prior, current *entity.Event) (ReminderPlan, error)
	Window() time.Duration
}

// PollReport summarizes one reconciliation pass.
type PollReport struct {
	StartedAt time.Time              `json:"started_at"`
	Duration  time.Duration          `json:"duration"`
	Users     int                    `json:"users"`
	Events    int                    `json:"events"`
	Swept     int                    `json:"swept"`
	Actions   map[ReminderAction]int `json:"actions"`
	Failures  int                    `json:"failures"`
}

func (r *PollReport) merge(other PollReport) {
	r.Users += other.Users
	r.Events += other.Events
	r.Swept += other.Swept
	r.Failures += other.Failures
	for action, n := range other.Actions {
		r.Actions[action] += n
	}
}

func newPollReport() PollReport {
	return PollReport{Actions: make(map[ReminderAction]int)}
}

// PollService periodically re-derives every user's reminders, independent of triggers.
type PollService struct {
	userStorage         pollUserStorage
	eventStorage        pollEventStorage
	notificationStorage pollNotificationStorage
	reminders           reminderReconciler

	logger  *types.Logger
	workers int
	now     func() time.Time
}

func NewPollService(
	logger *types.Logger,
	userStorage pollUserStorage,
	eventStorage pollEventStorage,
	notificationStorage pollNotificationStorage,
	reminders reminderReconciler,
	workers int,
) *PollService {
	if workers <= 0 {
		workers = 1
	}
	return &PollService{
		userStorage:         userStorage,
		eventStorage:        eventStorage,
		notificationStorage: notificationStorage,
		reminders:           reminders,
		logger:              logger,
		workers:             workers,
		now:                 time.Now,
	}
}

// SetClock replaces the time source.
func (s *PollService) SetClock(now func() time.Time) {
	s.now = now
}

// Start runs RunOnce on the given cron schedule until ctx is done.
func (s *PollService) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultPollSchedule
	}
	cronLog := cronLogger{s.logger}
	c := cron.New(
		cron.WithLocation(location.Location()),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("invalid poll schedule %q: %w", schedule, err)
	}

	s.logger.Infof("Starting reminder poll (schedule=%s, workers=%d)", schedule, s.workers)
	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		s.logger.Info("Reminder poll stopped")
	}()
	return nil
}

func (s *PollService) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Errorf("Reminder poll finished with %d failure(s): %v", report.Failures, err)
		return
	}
	s.logger.Debugf("Reminder poll finished (users=%d, events=%d, swept=%d, actions=%v, took=%s)",
		report.Users, report.Events, report.Swept, report.Actions, report.Duration)
}

// RunOnce reconciles the reminders of every user once.
//
// A failure for one user never stops the others; all failures are returned combined.
func (s *PollService) RunOnce(ctx context.Context) (PollReport, error) {
	report := newPollReport()
	startedAt := s.now()
	report.StartedAt = startedAt

	userIDs, err := s.userStorage.GetAllIDs(ctx)
	if err != nil {
		report.Failures++
		return report, fmt.Errorf("%w: list users: %w", errorz.ErrStoreUnavailable, err)
	}

	var (
		mu   sync.Mutex
		errs error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, userID := range userIDs {
		g.Go(func() error {
			userReport, errUser := s.reconcileUser(gctx, userID, startedAt)
			mu.Lock()
			defer mu.Unlock()
			report.merge(userReport)
			if errUser != nil {
				errs = multierr.Append(errs, fmt.Errorf("user %d: %w", userID, errUser))
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(startedAt)
	return report, errs
}

func (s *PollService) reconcileUser(ctx context.Context, userID int64, now time.Time) (PollReport, error) {
	report := newPollReport()
	report.Users = 1

	events, err := s.eventStorage.GetInWindow(ctx, userID, now, now.Add(s.reminders.Window()))
	if err != nil {
		report.Failures++
		return report, fmt.Errorf("%w: list events in window: %w", errorz.ErrStoreUnavailable, err)
	}

	var errs error
	seen := make(map[string]struct{}, len(events))
	for i := range events {
		if ctx.Err() != nil {
			return report, multierr.Append(errs, ctx.Err())
		}
		event := &events[i]
		seen[event.ID] = struct{}{}
		report.Events++

		plan, errReconcile := s.reminders.Reconcile(ctx, userID, event.ID, event, event)
		if errReconcile != nil {
			report.Failures++
			errs = multierr.Append(errs, errReconcile)
			continue
		}
		report.Actions[plan.Action]++
	}

	// Stored reminders whose event left the window (deleted, moved, or past) are
	// not found by the window query; re-check each against its event.
	reminders, err := s.notificationStorage.GetByUser(ctx, userID, entity.NotificationTypeCalendar)
	if err != nil {
		report.Failures++
		return report, multierr.Append(errs, fmt.Errorf("%w: list reminders: %w", errorz.ErrStoreUnavailable, err))
	}
	for _, reminder := range reminders {
		if _, ok := seen[reminder.EventID]; ok {
			continue
		}
		if ctx.Err() != nil {
			return report, multierr.Append(errs, ctx.Err())
		}
		seen[reminder.EventID] = struct{}{}
		report.Swept++

		event, errGet := s.eventStorage.Get(ctx, userID, reminder.EventID)
		if errGet != nil {
			if !errors.Is(errGet, errorz.ErrNotFound) {
				report.Failures++
				errs = multierr.Append(errs, fmt.Errorf("%w: get event %s: %w", errorz.ErrStoreUnavailable, reminder.EventID, errGet))
				continue
			}
			event = nil
		}

		plan, errReconcile := s.reminders.Reconcile(ctx, userID, reminder.EventID, event, event)
		if errReconcile != nil {
			report.Failures++
			errs = multierr.Append(errs, errReconcile)
			continue
		}
		report.Actions[plan.Action]++
	}

	return report, errs
}

// cronLogger adapts the zap logger to cron.Logger.
type cronLogger struct {
	logger *types.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
