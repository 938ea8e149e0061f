package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/common/errorz"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/utils/location"
	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger/types"
)

// DefaultReminderWindow is how far ahead of an event its reminder becomes due.
const DefaultReminderWindow = 24 * time.Hour

type ReminderAction string

const (
	ActionNone   ReminderAction = "none"
	ActionCreate ReminderAction = "create"
	ActionUpdate ReminderAction = "update"
	ActionDelete ReminderAction = "delete"
)

// ReminderPlan is the set of writes that brings the stored reminders of one event in line with the event.
type ReminderPlan struct {
	Action ReminderAction
	// Keep is the stored reminder that survives (update target), nil when there is none.
	Keep *entity.Notification
	// Surplus holds ids of duplicate reminders that must be removed.
	Surplus []string
}

// HasWrites reports whether applying the plan touches the store.
func (p ReminderPlan) HasWrites() bool {
	return p.Action != ActionNone || len(p.Surplus) > 0
}

// PlanReminder decides what the reminder slot of an event should look like.
//
// current == nil means the event is gone. existing are the reminders stored
// under the event's (user, event) key; if there are several, the oldest one is kept.
func PlanReminder(now time.Time, window time.Duration, current *entity.Event, existing []entity.Notification) ReminderPlan {
	if current == nil || !current.InWindow(now, window) {
		if len(existing) == 0 {
			return ReminderPlan{Action: ActionNone}
		}
		return ReminderPlan{Action: ActionDelete}
	}

	if len(existing) == 0 {
		return ReminderPlan{Action: ActionCreate}
	}

	sorted := make([]entity.Notification, len(existing))
	copy(sorted, existing)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	keep := sorted[0]
	plan := ReminderPlan{Action: ActionNone, Keep: &keep}
	for _, n := range sorted[1:] {
		plan.Surplus = append(plan.Surplus, n.ID)
	}
	if !keep.Matches(current) {
		plan.Action = ActionUpdate
	}
	return plan
}

// ReminderBody renders the text of a reminder for an event.
func ReminderBody(title string, date time.Time) string {
	return fmt.Sprintf("Upcoming event: %s at %s", title, date.In(location.Location()).Format("02.01.2006 15:04"))
}

type reminderNotificationStorage interface {
	GetByKey(ctx context.Context, key entity.NotificationKey) ([]entity.Notification, error)
	// Create inserts the notification unless its key is taken; created is false on conflict.
	Create(ctx context.Context, notification *entity.Notification) (created bool, err error)
	UpdateContent(ctx context.Context, notification *entity.Notification) error
	DeleteByKey(ctx context.Context, key entity.NotificationKey) (int64, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// ReminderService keeps the calendar reminder of every event in sync with the event.
// All entry points (document triggers, webhook, poll) go through Reconcile.
type ReminderService struct {
	notificationStorage reminderNotificationStorage
	logger              *types.Logger

	window time.Duration
	now    func() time.Time
}

func NewReminderService(logger *types.Logger, notificationStorage reminderNotificationStorage, window time.Duration) *ReminderService {
	if window <= 0 {
		window = DefaultReminderWindow
	}
	return &ReminderService{
		notificationStorage: notificationStorage,
		logger:              logger,
		window:              window,
		now:                 time.Now,
	}
}

// SetClock replaces the time source.
func (s *ReminderService) SetClock(now func() time.Time) {
	s.now = now
}

// Window returns the reminder window length.
func (s *ReminderService) Window() time.Duration {
	return s.window
}

// Reconcile makes the stored reminder for (userID, eventID) match the event.
//
// prior == nil means the event was just created, current == nil means it was deleted.
// Calling it repeatedly with the same input leaves the store unchanged after the first call.
func (s *ReminderService) Reconcile(ctx context.Context, userID int64, eventID string, prior, current *entity.Event) (ReminderPlan, error) {
	if eventID == "" {
		return ReminderPlan{}, fmt.Errorf("%w: empty event id (user_id=%d)", errorz.ErrInvalidChange, userID)
	}
	if current != nil && (current.ID != eventID || current.UserID != userID) {
		return ReminderPlan{}, fmt.Errorf("%w: snapshot (user_id=%d, event_id=%s) does not belong to (user_id=%d, event_id=%s)",
			errorz.ErrInvalidChange, current.UserID, current.ID, userID, eventID)
	}
	if prior != nil && current != nil && prior.Title != current.Title {
		s.logger.Debugf("Event title changed (user_id=%d, event_id=%s): %q -> %q", userID, eventID, prior.Title, current.Title)
	}

	key := entity.CalendarKey(userID, eventID)
	now := s.now()

	// A lost insert race is retried once: the second pass sees the winner's row.
	for attempt := 0; ; attempt++ {
		existing, err := s.notificationStorage.GetByKey(ctx, key)
		if err != nil {
			return ReminderPlan{}, storeErr("get reminders", key, err)
		}

		plan := PlanReminder(now, s.window, current, existing)
		if err = s.removeSurplus(ctx, key, plan.Surplus); err != nil {
			return plan, err
		}

		switch plan.Action {
		case ActionCreate:
			notification := newReminder(current, now)
			created, errCreate := s.notificationStorage.Create(ctx, notification)
			if errCreate != nil {
				return plan, storeErr("create reminder", key, errCreate)
			}
			if !created {
				if attempt == 0 {
					s.logger.Debugf("Reminder inserted concurrently, re-reading (user_id=%d, event_id=%s)", userID, eventID)
					continue
				}
				return ReminderPlan{Action: ActionNone}, nil
			}
			plan.Keep = notification
			s.logger.Infof("Created reminder (user_id=%d, event_id=%s, due=%s)", userID, eventID, current.Date.In(location.Location()))
		case ActionUpdate:
			updated := *plan.Keep
			updated.EventTitle = current.Title
			updated.EventDate = current.Date
			updated.Body = ReminderBody(current.Title, current.Date)
			if err = s.notificationStorage.UpdateContent(ctx, &updated); err != nil {
				return plan, storeErr("update reminder", key, err)
			}
			plan.Keep = &updated
			s.logger.Infof("Updated reminder (user_id=%d, event_id=%s, notification_id=%s)", userID, eventID, updated.ID)
		case ActionDelete:
			deleted, errDelete := s.notificationStorage.DeleteByKey(ctx, key)
			if errDelete != nil {
				return plan, storeErr("delete reminders", key, errDelete)
			}
			s.logger.Infof("Deleted %d reminder(s) (user_id=%d, event_id=%s)", deleted, userID, eventID)
		}

		return plan, nil
	}
}

func (s *ReminderService) removeSurplus(ctx context.Context, key entity.NotificationKey, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.logger.Warnf("%v: %d extra reminder(s) (user_id=%d, event_id=%s), removing", errorz.ErrDuplicateState, len(ids), key.UserID, key.EventID)
	if _, err := s.notificationStorage.DeleteByIDs(ctx, ids); err != nil {
		return storeErr("delete duplicate reminders", key, errors.Join(errorz.ErrDuplicateState, err))
	}
	return nil
}

func newReminder(event *entity.Event, now time.Time) *entity.Notification {
	return &entity.Notification{
		ID:         uuid.NewString(),
		UserID:     event.UserID,
		EventID:    event.ID,
		Type:       entity.NotificationTypeCalendar,
		Title:      entity.ReminderTitle,
		Body:       ReminderBody(event.Title, event.Date),
		EventTitle: event.Title,
		EventDate:  event.Date,
		IsRead:     false,
		CreatedAt:  now,
	}
}

func storeErr(op string, key entity.NotificationKey, err error) error {
	return fmt.Errorf("%w: %s (user_id=%d, event_id=%s): %w", errorz.ErrStoreUnavailable, op, key.UserID, key.EventID, err)
}
