package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"
)

// NotificationStorage is an in-memory notification store that enforces the
// same (user, event, type) uniqueness as the database index.
type NotificationStorage struct {
	mu    sync.RWMutex
	store map[string]entity.Notification
}

func NewNotificationStorage() *NotificationStorage {
	return &NotificationStorage{
		store: make(map[string]entity.Notification),
	}
}

func (m *NotificationStorage) Create(_ context.Context, notification *entity.Notification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[notification.ID]; ok {
		return false, nil
	}
	for _, n := range m.store {
		if n.Key() == notification.Key() {
			return false, nil
		}
	}
	m.store[notification.ID] = *notification
	return true, nil
}

// Insert stores a notification without the uniqueness check, for seeding legacy duplicates.
func (m *NotificationStorage) Insert(notification entity.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[notification.ID] = notification
}

func (m *NotificationStorage) GetByKey(_ context.Context, key entity.NotificationKey) ([]entity.Notification, error) {
	return m.filter(func(n entity.Notification) bool { return n.Key() == key }), nil
}

func (m *NotificationStorage) GetByUser(_ context.Context, userID int64, notificationType entity.NotificationType) ([]entity.Notification, error) {
	notifications := m.filter(func(n entity.Notification) bool {
		return n.UserID == userID && n.Type == notificationType
	})
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].EventDate.Before(notifications[j].EventDate)
	})
	return notifications, nil
}

// All returns every stored notification.
func (m *NotificationStorage) All() []entity.Notification {
	return m.filter(func(entity.Notification) bool { return true })
}

func (m *NotificationStorage) UpdateContent(_ context.Context, notification *entity.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.store[notification.ID]
	if !ok {
		return nil
	}
	stored.Body = notification.Body
	stored.EventTitle = notification.EventTitle
	stored.EventDate = notification.EventDate
	m.store[notification.ID] = stored
	return nil
}

func (m *NotificationStorage) DeleteByKey(_ context.Context, key entity.NotificationKey) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, n := range m.store {
		if n.Key() == key {
			delete(m.store, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *NotificationStorage) DeleteByIDs(_ context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for _, id := range ids {
		if _, ok := m.store[id]; ok {
			delete(m.store, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *NotificationStorage) MarkRead(_ context.Context, userID int64, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var updated int64
	for _, id := range ids {
		n, ok := m.store[id]
		if !ok || n.UserID != userID {
			continue
		}
		n.IsRead = true
		m.store[id] = n
		updated++
	}
	return updated, nil
}

func (m *NotificationStorage) filter(match func(entity.Notification) bool) []entity.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var notifications []entity.Notification
	for _, n := range m.store {
		if match(n) {
			notifications = append(notifications, n)
		}
	}
	sort.Slice(notifications, func(i, j int) bool {
		if !notifications[i].CreatedAt.Equal(notifications[j].CreatedAt) {
			return notifications[i].CreatedAt.Before(notifications[j].CreatedAt)
		}
		return notifications[i].ID < notifications[j].ID
	})
	return notifications
}
