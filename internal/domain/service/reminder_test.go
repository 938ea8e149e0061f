package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TaiJP119/vet-vetconnect-some/internal/adapters/database/memory"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/common/errorz"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/service"
	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger"
)

const (
	testUser  int64 = 42
	testEvent       = "8f14e45f-ceea-4e7a-9c1b-111111111111"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newReminderService(t *testing.T) (*service.ReminderService, *memory.NotificationStorage) {
	t.Helper()
	storage := memory.NewNotificationStorage()
	s := service.NewReminderService(logger.Nop(), storage, service.DefaultReminderWindow)
	s.SetClock(func() time.Time { return testNow })
	return s, storage
}

func event(title string, in time.Duration) *entity.Event {
	return &entity.Event{
		ID:     testEvent,
		UserID: testUser,
		Title:  title,
		Date:   testNow.Add(in),
	}
}

func TestReconcile_WindowBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		in      time.Duration
		created bool
	}{
		{"exactly 24h ahead", 24 * time.Hour, true},
		{"one second past the window", 24*time.Hour + time.Second, false},
		{"one hour ahead", time.Hour, true},
		{"due now", 0, false},
		{"already past", -time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, storage := newReminderService(t)
			e := event("Vet visit", tt.in)

			plan, err := s.Reconcile(context.Background(), testUser, testEvent, nil, e)
			require.NoError(t, err)

			if tt.created {
				assert.Equal(t, service.ActionCreate, plan.Action)
				require.Len(t, storage.All(), 1)
			} else {
				assert.Equal(t, service.ActionNone, plan.Action)
				assert.Empty(t, storage.All())
			}
		})
	}
}

func TestReconcile_OutOfWindowRemovesExisting(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
	}{
		{"already past", -time.Hour},
		{"due now", 0},
		{"one second past the window", 24*time.Hour + time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, storage := newReminderService(t)
			created, err := storage.Create(context.Background(), &entity.Notification{
				ID:         "a0b1c2d3-0000-4000-8000-000000000001",
				UserID:     testUser,
				EventID:    testEvent,
				Type:       entity.NotificationTypeCalendar,
				Title:      entity.ReminderTitle,
				EventTitle: "Vet visit",
				EventDate:  testNow.Add(time.Hour),
				CreatedAt:  testNow.Add(-time.Hour),
			})
			require.NoError(t, err)
			require.True(t, created)

			e := event("Vet visit", tt.in)
			plan, err := s.Reconcile(context.Background(), testUser, testEvent, e, e)
			require.NoError(t, err)
			assert.Equal(t, service.ActionDelete, plan.Action)
			assert.Empty(t, storage.All())
		})
	}
}

func TestReconcile_SubMicrosecondDateIsNoOp(t *testing.T) {
	s, _ := newReminderService(t)
	stored := event("Vet visit", 2*time.Hour)
	_, err := s.Reconcile(context.Background(), testUser, testEvent, nil, stored)
	require.NoError(t, err)

	snapshot := event("Vet visit", 2*time.Hour+789*time.Nanosecond)
	plan, err := s.Reconcile(context.Background(), testUser, testEvent, stored, snapshot)
	require.NoError(t, err)
	assert.Equal(t, service.ActionNone, plan.Action)
	assert.False(t, plan.HasWrites())
}

func TestReconcile_CreatesReminderContent(t *testing.T) {
	s, storage := newReminderService(t)
	e := event("Vet visit", 2*time.Hour)

	_, err := s.Reconcile(context.Background(), testUser, testEvent, nil, e)
	require.NoError(t, err)

	all := storage.All()
	require.Len(t, all, 1)
	n := all[0]
	assert.Equal(t, testUser, n.UserID)
	assert.Equal(t, testEvent, n.EventID)
	assert.Equal(t, entity.NotificationTypeCalendar, n.Type)
	assert.Equal(t, entity.ReminderTitle, n.Title)
	assert.Equal(t, service.ReminderBody("Vet visit", e.Date), n.Body)
	assert.Contains(t, n.Body, "Upcoming event: Vet visit at ")
	assert.False(t, n.IsRead)
	assert.True(t, n.EventDate.Equal(e.Date))
}

func TestReconcile_Idempotent(t *testing.T) {
	s, storage := newReminderService(t)
	e := event("Vet visit", 2*time.Hour)

	_, err := s.Reconcile(context.Background(), testUser, testEvent, nil, e)
	require.NoError(t, err)
	first := storage.All()

	for i := 0; i < 3; i++ {
		plan, errReconcile := s.Reconcile(context.Background(), testUser, testEvent, e, e)
		require.NoError(t, errReconcile)
		assert.False(t, plan.HasWrites())
	}
	assert.Equal(t, first, storage.All())
}

func TestReconcile_TitleEditUpdatesInPlace(t *testing.T) {
	s, storage := newReminderService(t)
	before := event("Vet visit", 2*time.Hour)
	_, err := s.Reconcile(context.Background(), testUser, testEvent, nil, before)
	require.NoError(t, err)
	id := storage.All()[0].ID

	after := event("Vaccination", 2*time.Hour)
	plan, err := s.Reconcile(context.Background(), testUser, testEvent, before, after)
	require.NoError(t, err)
	assert.Equal(t, service.ActionUpdate, plan.Action)

	all := storage.All()
	require.Len(t, all, 1)
	assert.Equal(t, id, all[0].ID)
	assert.Equal(t, "Vaccination", all[0].EventTitle)
	assert.Equal(t, service.ReminderBody("Vaccination", after.Date), all[0].Body)
}

func TestReconcile_DateEditUpdatesInPlace(t *testing.T) {
	s, storage := newReminderService(t)
	before := event("Vet visit", 2*time.Hour)
	_, err := s.Reconcile(context.Background(), testUser, testEvent, nil, before)
	require.NoError(t, err)

	after := event("Vet visit", 5*time.Hour)
	plan, err := s.Reconcile(context.Background(), testUser, testEvent, before, after)
	require.NoError(t, err)
	assert.Equal(t, service.ActionUpdate, plan.Action)

	all := storage.All()
	require.Len(t, all, 1)
	assert.True(t, all[0].EventDate.Equal(after.Date))
}

func TestReconcile_MovedOutOfWindowRemoves(t *testing.T) {
	s, storage := newReminderService(t)
	before := event("Vet visit", 2*time.Hour)
	_, err := s.Reconcile(context.Background(), testUser, testEvent, nil, before)
	require.NoError(t, err)

	after := event("Vet visit", 48*time.Hour)
	plan, err := s.Reconcile(context.Background(), testUser, testEvent, before, after)
	require.NoError(t, err)
	assert.Equal(t, service.ActionDelete, plan.Action)
	assert.Empty(t, storage.All())
}

func TestReconcile_Deletion(t *testing.T) {
	s, storage := newReminderService(t)
	e := event("Vet visit", 2*time.Hour)
	_, err := s.Reconcile(context.Background(), testUser, testEvent, nil, e)
	require.NoError(t, err)

	plan, err := s.Reconcile(context.Background(), testUser, testEvent, e, nil)
	require.NoError(t, err)
	assert.Equal(t, service.ActionDelete, plan.Action)
	assert.Empty(t, storage.All())

	// Deleting an event that never had a reminder is a no-op.
	plan, err = s.Reconcile(context.Background(), testUser, testEvent, e, nil)
	require.NoError(t, err)
	assert.Equal(t, service.ActionNone, plan.Action)
}

func TestReconcile_ConcurrentCallsLeaveOneReminder(t *testing.T) {
	s, storage := newReminderService(t)
	e := event("Vet visit", 2*time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Reconcile(context.Background(), testUser, testEvent, nil, e)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, storage.All(), 1)
}

func TestReconcile_RemovesDuplicates(t *testing.T) {
	s, storage := newReminderService(t)
	e := event("Vet visit", 2*time.Hour)

	for i, id := range []string{"n-b", "n-a", "n-c"} {
		storage.Insert(entity.Notification{
			ID:         id,
			UserID:     testUser,
			EventID:    testEvent,
			Type:       entity.NotificationTypeCalendar,
			Title:      entity.ReminderTitle,
			Body:       service.ReminderBody(e.Title, e.Date),
			EventTitle: e.Title,
			EventDate:  e.Date,
			CreatedAt:  testNow.Add(time.Duration(i) * time.Minute),
		})
	}
	// n-b was stored first.
	plan, err := s.Reconcile(context.Background(), testUser, testEvent, e, e)
	require.NoError(t, err)
	assert.Equal(t, service.ActionNone, plan.Action)
	assert.Len(t, plan.Surplus, 2)

	all := storage.All()
	require.Len(t, all, 1)
	assert.Equal(t, "n-b", all[0].ID)
}

func TestReconcile_InvalidInput(t *testing.T) {
	s, _ := newReminderService(t)

	_, err := s.Reconcile(context.Background(), testUser, "", nil, nil)
	assert.ErrorIs(t, err, errorz.ErrInvalidChange)

	_, err = s.Reconcile(context.Background(), testUser+1, testEvent, nil, event("Vet visit", time.Hour))
	assert.ErrorIs(t, err, errorz.ErrInvalidChange)
}

type failingNotificationStorage struct {
	*memory.NotificationStorage
}

func (failingNotificationStorage) GetByKey(context.Context, entity.NotificationKey) ([]entity.Notification, error) {
	return nil, errors.New("connection refused")
}

func TestReconcile_StoreUnavailable(t *testing.T) {
	s := service.NewReminderService(logger.Nop(), failingNotificationStorage{memory.NewNotificationStorage()}, 0)
	s.SetClock(func() time.Time { return testNow })

	_, err := s.Reconcile(context.Background(), testUser, testEvent, nil, event("Vet visit", time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, errorz.ErrStoreUnavailable)
	assert.Equal(t, service.DefaultReminderWindow, s.Window())
}

func TestPlanReminder(t *testing.T) {
	in := event("Vet visit", time.Hour)
	stored := entity.Notification{ID: "n1", EventTitle: in.Title, EventDate: in.Date, CreatedAt: testNow}
	stale := entity.Notification{ID: "n1", EventTitle: "Old title", EventDate: in.Date, CreatedAt: testNow}

	tests := []struct {
		name     string
		current  *entity.Event
		existing []entity.Notification
		action   service.ReminderAction
	}{
		{"gone without reminder", nil, nil, service.ActionNone},
		{"gone with reminder", nil, []entity.Notification{stored}, service.ActionDelete},
		{"in window without reminder", in, nil, service.ActionCreate},
		{"in window with matching reminder", in, []entity.Notification{stored}, service.ActionNone},
		{"in window with stale reminder", in, []entity.Notification{stale}, service.ActionUpdate},
		{"out of window with reminder", event("Vet visit", 30*time.Hour), []entity.Notification{stored}, service.ActionDelete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := service.PlanReminder(testNow, service.DefaultReminderWindow, tt.current, tt.existing)
			assert.Equal(t, tt.action, plan.Action)
			assert.Empty(t, plan.Surplus)
		})
	}
}
