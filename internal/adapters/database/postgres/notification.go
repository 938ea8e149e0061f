package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"
)

type NotificationStorage struct {
	db *gorm.DB
}

func NewNotificationStorage(db *gorm.DB) *NotificationStorage {
	return &NotificationStorage{
		db: db,
	}
}

// Create inserts the notification unless another one already holds its (user, event, type) key.
// created is false when the insert hit the unique index.
func (s *NotificationStorage) Create(ctx context.Context, notification *entity.Notification) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(notification)
	return res.RowsAffected > 0, res.Error
}

// GetByKey returns the notifications stored under a reminder key, oldest first.
func (s *NotificationStorage) GetByKey(ctx context.Context, key entity.NotificationKey) ([]entity.Notification, error) {
	var notifications []entity.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND event_id = ? AND type = ?", key.UserID, key.EventID, key.Type).
		Order("created_at, id").
		Find(&notifications).Error
	return notifications, err
}

// GetByUser returns the user's notifications of a type ordered by event date.
func (s *NotificationStorage) GetByUser(ctx context.Context, userID int64, notificationType entity.NotificationType) ([]entity.Notification, error) {
	var notifications []entity.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, notificationType).
		Order("event_date, id").
		Find(&notifications).Error
	return notifications, err
}

// UpdateContent rewrites the event-derived fields of a notification in place.
func (s *NotificationStorage) UpdateContent(ctx context.Context, notification *entity.Notification) error {
	return s.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("id = ?", notification.ID).
		Updates(map[string]interface{}{
			"body":        notification.Body,
			"event_title": notification.EventTitle,
			"event_date":  notification.EventDate,
		}).Error
}

func (s *NotificationStorage) DeleteByKey(ctx context.Context, key entity.NotificationKey) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND event_id = ? AND type = ?", key.UserID, key.EventID, key.Type).
		Delete(&entity.Notification{})
	return res.RowsAffected, res.Error
}

func (s *NotificationStorage) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&entity.Notification{})
	return res.RowsAffected, res.Error
}

func (s *NotificationStorage) MarkRead(ctx context.Context, userID int64, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}
