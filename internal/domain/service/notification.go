package service

import (
	"context"

	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"
)

type NotificationStorage interface {
	GetByUser(ctx context.Context, userID int64, notificationType entity.NotificationType) ([]entity.Notification, error)
	MarkRead(ctx context.Context, userID int64, ids []string) (int64, error)
}

type NotificationService struct {
	storage NotificationStorage
}

func NewNotificationService(storage NotificationStorage) *NotificationService {
	return &NotificationService{
		storage: storage,
	}
}

// Reminders returns the user's calendar reminders, oldest event first.
func (s *NotificationService) Reminders(ctx context.Context, userID int64) ([]entity.Notification, error) {
	return s.storage.GetByUser(ctx, userID, entity.NotificationTypeCalendar)
}

// MarkRead flags the given notifications of the user as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID int64, notifications []entity.Notification) error {
	ids := make([]string, 0, len(notifications))
	for _, n := range notifications {
		if !n.IsRead {
			ids = append(ids, n.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := s.storage.MarkRead(ctx, userID, ids)
	return err
}
