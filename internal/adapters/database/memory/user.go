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

type UserStorage struct {
	mu    sync.RWMutex
	store map[int64]entity.User
}

func NewUserStorage() *UserStorage {
	return &UserStorage{
		store: make(map[int64]entity.User),
	}
}

func (m *UserStorage) Upsert(_ context.Context, user *entity.User) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	stored, ok := m.store[user.ID]
	if !ok {
		stored = entity.User{ID: user.ID, CreatedAt: now}
	}
	stored.FirstName = user.FirstName
	stored.Username = user.Username
	if user.Email != "" {
		stored.Email = user.Email
	}
	if user.DeviceToken != "" {
		stored.DeviceToken = user.DeviceToken
	}
	stored.UpdatedAt = now
	m.store[user.ID] = stored
	result := stored
	return &result, nil
}

func (m *UserStorage) Get(_ context.Context, id int64) (*entity.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.store[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, errorz.ErrNotFound)
	}
	return &user, nil
}

func (m *UserStorage) GetAllIDs(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.store))
	for id := range m.store {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *UserStorage) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.store)), nil
}
