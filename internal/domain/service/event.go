package service

import (
	"context"
	"time"

	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"
)

type EventStorage interface {
	Get(ctx context.Context, userID int64, id string) (*entity.Event, error)
	GetInWindow(ctx context.Context, userID int64, from, to time.Time) ([]entity.Event, error)
}

type EventService struct {
	eventStorage EventStorage
}

func NewEventService(storage EventStorage) *EventService {
	return &EventService{
		eventStorage: storage,
	}
}

// Get returns the user's event or an error wrapping errorz.ErrNotFound.
func (s *EventService) Get(ctx context.Context, userID int64, id string) (*entity.Event, error) {
	return s.eventStorage.Get(ctx, userID, id)
}

// Upcoming returns the user's events due within the next window.
func (s *EventService) Upcoming(ctx context.Context, userID int64, window time.Duration) ([]entity.Event, error) {
	now := time.Now()
	return s.eventStorage.GetInWindow(ctx, userID, now, now.Add(window))
}
