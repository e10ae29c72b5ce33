package usecase

import (
	"context"
	"errors"

	"hms-notification-service/internal/domain"
	"hms-notification-service/internal/xerrors"
	"hms-notification-service/pkg/notifier/ws"

	"go.uber.org/zap"
)

// Connect greets an authenticated socket with connection_established,
// registers it and flushes the user's offline backlog. The client only
// becomes visible to dispatch once the greeting is on the wire.
func (s *NotificationService) Connect(ctx context.Context, userID string, socket ws.Socket, meta domain.ClientMetadata) (*ws.Client, error) {
	if s.closed.Load() {
		return nil, xerrors.ErrShuttingDown
	}

	c := s.registry.Admit(ctx, userID, socket, meta)
	err := c.Send(domain.OutboundFrame{
		Type: domain.FrameConnectionEstablished,
		Payload: domain.ConnectionEstablished{
			ClientID:      c.ID,
			ServerTime:    s.now(),
			Subscriptions: c.Subscription(),
		},
	})
	if err != nil {
		_ = socket.Close()
		return nil, err
	}

	s.registry.Attach(c)
	// Shutdown may have run CloseAll between the check above and Attach.
	if s.closed.Load() {
		s.registry.Unregister(c.ID)
		return nil, xerrors.ErrShuttingDown
	}
	s.emit(domain.Event{
		Type:     domain.EventClientConnected,
		ClientID: c.ID,
		UserID:   userID,
		Data:     map[string]any{"platform": string(meta.Platform)},
	})

	if err := s.flushBacklog(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Disconnect is called when the transport read loop ends.
func (s *NotificationService) Disconnect(clientID string) {
	s.registry.Unregister(clientID)
}

// flushBacklog delivers queued messages oldest first, skipping expired ones.
// Entries that cannot be encoded are dropped. If the socket breaks midway the
// undelivered remainder goes back on the queue, the client is unregistered
// and the write error is returned.
func (s *NotificationService) flushBacklog(c *ws.Client) error {
	backlog := s.queue.DrainAndClear(c.UserID)
	if len(backlog) == 0 {
		return nil
	}

	now := s.now()
	delivered, expired, dropped := 0, 0, 0
	var flushErr error
	for i, msg := range backlog {
		if msg.Expired(now) {
			expired++
			continue
		}
		err := c.Send(domain.NotificationFrame(msg))
		if errors.Is(err, ws.ErrUnencodable) {
			dropped++
			s.logger.Error("dropping unencodable queued notification",
				zap.String("user_id", c.UserID),
				zap.String("notification_id", msg.ID),
				zap.Error(err))
			continue
		}
		if err != nil {
			for _, rest := range backlog[i:] {
				if !rest.Expired(now) {
					s.queue.Enqueue(c.UserID, rest)
				}
			}
			s.logger.Warn("backlog flush interrupted",
				zap.String("client_id", c.ID),
				zap.String("user_id", c.UserID),
				zap.Int("delivered", delivered),
				zap.Error(err))
			s.registry.Unregister(c.ID)
			flushErr = err
			break
		}
		delivered++
		s.emit(domain.Event{
			Type:           domain.EventNotificationSent,
			ClientID:       c.ID,
			UserID:         c.UserID,
			NotificationID: msg.ID,
			Channel:        domain.ChannelWebSocket,
			Count:          1,
		})
	}

	if expired > 0 {
		s.emit(domain.Event{Type: domain.EventQueueExpired, UserID: c.UserID, Count: expired})
	}
	s.logger.Info("offline backlog flushed",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.UserID),
		zap.Int("delivered", delivered),
		zap.Int("expired", expired),
		zap.Int("dropped", dropped))
	return flushErr
}
