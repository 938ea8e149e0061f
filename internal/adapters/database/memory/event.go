package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/common/errorz"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"
)

type EventStorage struct {
	mu    sync.RWMutex
	store map[string]entity.Event
}

func NewEventStorage() *EventStorage {
	return &EventStorage{
		store: make(map[string]entity.Event),
	}
}

// Put creates or replaces an event.
func (m *EventStorage) Put(event entity.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[event.ID] = event
}

func (m *EventStorage) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, id)
}

func (m *EventStorage) Get(_ context.Context, userID int64, id string) (*entity.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	event, ok := m.store[id]
	if !ok || event.UserID != userID {
		return nil, fmt.Errorf("event %s: %w", id, errorz.ErrNotFound)
	}
	return &event, nil
}

func (m *EventStorage) GetInWindow(_ context.Context, userID int64, from, to time.Time) ([]entity.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []entity.Event
	for _, event := range m.store {
		if event.UserID == userID && event.Date.After(from) && !event.Date.After(to) {
			events = append(events, event)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})
	return events, nil
}
