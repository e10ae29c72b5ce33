package repository

import (
	"context"
	"sync"
	"time"

	"hms-notification-service/internal/domain"
)

// SubscriptionRepository stores per-user notification preferences. Get never
// reports a missing user: it creates and stores the default subscription.
type SubscriptionRepository interface {
	Get(ctx context.Context, userID string) (domain.NotificationSubscription, error)
	Update(ctx context.Context, userID string, patch domain.SubscriptionPatch) (domain.NotificationSubscription, error)
	Count(ctx context.Context) (int, error)
}

// Clearer is implemented by process-local stores that are wiped on shutdown.
type Clearer interface {
	Clear(ctx context.Context) error
}

type MemorySubscriptionRepository struct {
	mu   sync.RWMutex
	subs map[string]domain.NotificationSubscription
	now  func() time.Time
}

func NewMemorySubscriptionRepository() *MemorySubscriptionRepository {
	return &MemorySubscriptionRepository{
		subs: make(map[string]domain.NotificationSubscription),
		now:  time.Now,
	}
}

func (m *MemorySubscriptionRepository) Get(_ context.Context, userID string) (domain.NotificationSubscription, error) {
	m.mu.RLock()
	sub, ok := m.subs[userID]
	m.mu.RUnlock()
	if ok {
		return sub.Clone(), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subs[userID]; ok {
		return sub.Clone(), nil
	}
	sub = domain.DefaultSubscription(userID)
	sub.UpdatedAt = m.now()
	m.subs[userID] = sub
	return sub.Clone(), nil
}

func (m *MemorySubscriptionRepository) Update(_ context.Context, userID string, patch domain.SubscriptionPatch) (domain.NotificationSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[userID]
	if !ok {
		sub = domain.DefaultSubscription(userID)
	}
	sub = patch.Apply(sub, m.now())
	sub.UserID = userID
	m.subs[userID] = sub
	return sub.Clone(), nil
}

func (m *MemorySubscriptionRepository) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs), nil
}

func (m *MemorySubscriptionRepository) Clear(_ context.Context) error {
	m.mu.Lock()
	m.subs = make(map[string]domain.NotificationSubscription)
	m.mu.Unlock()
	return nil
}
