package usecase

import (
	"context"
	"time"

	"hms-notification-service/internal/domain"
	"hms-notification-service/internal/repository"

	"go.uber.org/zap"
)

func (s *NotificationService) GetConnectedClientsCount() int {
	return s.registry.Count()
}

func (s *NotificationService) GetConnectedUserIDs() []string {
	return s.registry.UserIDs()
}

// GetStatistics has no side effects.
func (s *NotificationService) GetStatistics(ctx context.Context) domain.Statistics {
	subs, err := s.subs.Count(ctx)
	if err != nil {
		s.logger.Warn("subscription count failed", zap.Error(err))
	}
	return domain.Statistics{
		ConnectedClients: s.registry.Count(),
		ConnectedUsers:   s.registry.UserCount(),
		QueuedMessages:   s.queue.Total(),
		Subscriptions:    subs,
	}
}

// ReapInactive closes every connection idle for longer than the inactivity
// timeout and returns how many were removed.
func (s *NotificationService) ReapInactive(now time.Time) int {
	n := 0
	for _, c := range s.registry.Snapshot() {
		idle := now.Sub(c.LastSeen())
		if idle <= s.inactivityTimeout {
			continue
		}
		if s.registry.Unregister(c.ID) {
			n++
			s.logger.Info("reaped inactive connection",
				zap.String("client_id", c.ID),
				zap.String("user_id", c.UserID),
				zap.Duration("idle", idle))
		}
	}
	return n
}

// GCExpiredQueue drops expired offline entries.
func (s *NotificationService) GCExpiredQueue(now time.Time) int {
	n := s.queue.GCExpired(now)
	if n > 0 {
		s.emit(domain.Event{Type: domain.EventQueueExpired, At: now, Count: n})
	}
	return n
}

// Shutdown closes every live connection and clears the in-memory stores.
// Later calls are no-ops; dispatch and connect fail with ErrShuttingDown
// afterwards.
func (s *NotificationService) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.closed.Store(true)

		closed := s.registry.CloseAll()
		queued := s.queue.Total()
		s.queue.Clear()

		if c, ok := s.subs.(repository.Clearer); ok {
			if cerr := c.Clear(ctx); cerr != nil {
				err = cerr
			}
		}
		if c, ok := s.store.(repository.Clearer); ok {
			if cerr := c.Clear(ctx); cerr != nil && err == nil {
				err = cerr
			}
		}

		s.logger.Info("notification service stopped",
			zap.Int("connections_closed", closed),
			zap.Int("queued_dropped", queued))
	})
	return err
}
