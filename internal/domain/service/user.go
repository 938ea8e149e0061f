package service

import (
	"context"

	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"
)

type UserStorage interface {
	Upsert(ctx context.Context, user *entity.User) (*entity.User, error)
	Get(ctx context.Context, id int64) (*entity.User, error)
	GetAllIDs(ctx context.Context) ([]int64, error)
	Count(ctx context.Context) (int64, error)
}

type UserService struct {
	userStorage UserStorage
}

func NewUserService(userStorage UserStorage) *UserService {
	return &UserService{
		userStorage: userStorage,
	}
}

// Register creates or refreshes a user and binds the device token used for pushes.
func (s *UserService) Register(ctx context.Context, id int64, firstName, username, deviceToken string) (*entity.User, error) {
	return s.userStorage.Upsert(ctx, &entity.User{
		ID:          id,
		FirstName:   firstName,
		Username:    username,
		DeviceToken: deviceToken,
	})
}

func (s *UserService) Get(ctx context.Context, id int64) (*entity.User, error) {
	return s.userStorage.Get(ctx, id)
}

func (s *UserService) Count(ctx context.Context) (int64, error) {
	return s.userStorage.Count(ctx)
}
