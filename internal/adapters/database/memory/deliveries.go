package memory

import (
	"context"
	"sync"
	"time"
)

// DeliveryStorage is an in-memory delivery guard.
type DeliveryStorage struct {
	mu     sync.Mutex
	claims map[string]time.Time
	now    func() time.Time
}

func NewDeliveryStorage() *DeliveryStorage {
	return &DeliveryStorage{
		claims: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (m *DeliveryStorage) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if expires, ok := m.claims[key]; ok && now.Before(expires) {
		return false, nil
	}
	m.claims[key] = now.Add(ttl)
	return true, nil
}
