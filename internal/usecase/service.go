package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hms-notification-service/internal/domain"
	"hms-notification-service/internal/queue"
	"hms-notification-service/internal/repository"
	"hms-notification-service/pkg/id"
	"hms-notification-service/pkg/notifier/ws"

	"go.uber.org/zap"
)

// Fallback delivers a notification over a secondary channel.
type Fallback interface {
	Deliver(ctx context.Context, channel, userID string, msg domain.NotificationMessage) error
}

type EventEmitter interface {
	Emit(ev domain.Event)
}

// Deps wires a NotificationService. Registry, Subscriptions and Queue are
// required; every other collaborator is optional.
type Deps struct {
	Registry      *ws.Registry
	Subscriptions repository.SubscriptionRepository
	Queue         *queue.OfflineQueue

	Store     repository.NotificationStore
	Directory repository.Directory
	Fallback  Fallback
	Events    EventEmitter

	Logger            *zap.Logger
	Now               func() time.Time
	NewID             func() string
	InactivityTimeout time.Duration
}

// NotificationService is the dispatcher and the single owner of the
// registry, subscription store and offline queue.
type NotificationService struct {
	registry  *ws.Registry
	subs      repository.SubscriptionRepository
	queue     *queue.OfflineQueue
	store     repository.NotificationStore
	directory repository.Directory
	fallback  Fallback
	events    EventEmitter
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string

	inactivityTimeout time.Duration

	closed       atomic.Bool
	shutdownOnce sync.Once
}

func NewNotificationService(d Deps) *NotificationService {
	s := &NotificationService{
		registry:          d.Registry,
		subs:              d.Subscriptions,
		queue:             d.Queue,
		store:             d.Store,
		directory:         d.Directory,
		fallback:          d.Fallback,
		events:            d.Events,
		logger:            d.Logger,
		now:               d.Now,
		newID:             d.NewID,
		inactivityTimeout: d.InactivityTimeout,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return id.GenerateULID("ntf") }
	}
	if s.inactivityTimeout <= 0 {
		s.inactivityTimeout = 5 * time.Minute
	}
	return s
}

func (s *NotificationService) emit(ev domain.Event) {
	if s.events == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	s.events.Emit(ev)
}
