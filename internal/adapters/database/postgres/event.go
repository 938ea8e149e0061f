package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/common/errorz"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"
)

type EventStorage struct {
	db *gorm.DB
}

func NewEventStorage(db *gorm.DB) *EventStorage {
	return &EventStorage{
		db: db,
	}
}

// Create is a function that creates a new event in the database.
func (s *EventStorage) Create(ctx context.Context, event *entity.Event) (*entity.Event, error) {
	event.Date = event.Date.UTC()
	err := s.db.WithContext(ctx).Create(event).Error
	return event, err
}

// Get is a function that gets a user's event from the database by id.
func (s *EventStorage) Get(ctx context.Context, userID int64, id string) (*entity.Event, error) {
	var event entity.Event
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("event %s: %w", id, errorz.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// GetInWindow returns the user's events with from < date <= to, earliest first.
func (s *EventStorage) GetInWindow(ctx context.Context, userID int64, from, to time.Time) ([]entity.Event, error) {
	var events []entity.Event
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date > ? AND date <= ?", userID, from.UTC(), to.UTC()).
		Order("date").
		Find(&events).Error
	return events, err
}

// Delete is a function that deletes a user's event from the database.
func (s *EventStorage) Delete(ctx context.Context, userID int64, id string) error {
	return s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&entity.Event{}).Error
}
