package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/common/errorz"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"
)

type UserStorage struct {
	db *gorm.DB
}

func NewUserStorage(db *gorm.DB) *UserStorage {
	return &UserStorage{
		db: db,
	}
}

// Upsert creates the user or refreshes its profile. An empty device token keeps the stored one.
func (s *UserStorage) Upsert(ctx context.Context, user *entity.User) (*entity.User, error) {
	columns := []string{"first_name", "username", "updated_at"}
	if user.DeviceToken != "" {
		columns = append(columns, "device_token")
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(user).Error
	return user, err
}

// Get is a function that gets a user from the database by id.
func (s *UserStorage) Get(ctx context.Context, id int64) (*entity.User, error) {
	var user entity.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, errorz.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetAllIDs returns the ids of all users.
func (s *UserStorage) GetAllIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&entity.User{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}

// Count is a function that gets the count of users from the database.
func (s *UserStorage) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&entity.User{}).Count(&count).Error
	return count, err
}
