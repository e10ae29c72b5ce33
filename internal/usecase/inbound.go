package usecase

import (
	"context"

	"hms-notification-service/internal/domain"

	"go.uber.org/zap"
)

// HandleInbound processes one client frame. Malformed and unknown frames are
// dropped; nothing here closes the connection except a failed pong write.
func (s *NotificationService) HandleInbound(ctx context.Context, clientID string, raw []byte) {
	c, ok := s.registry.Get(clientID)
	if !ok {
		return
	}
	s.registry.Touch(clientID)

	frame, err := domain.DecodeInboundFrame(raw)
	if err != nil {
		s.logger.Debug("dropping malformed frame",
			zap.String("client_id", clientID),
			zap.Error(err))
		return
	}

	switch frame.Type {
	case domain.FramePing:
		if err := c.Send(domain.PongFrame()); err != nil {
			s.logger.Warn("pong write failed", zap.String("client_id", clientID), zap.Error(err))
			s.registry.Unregister(clientID)
		}

	case domain.FrameAcknowledge:
		s.recordStatus(ctx, c.UserID, frame.NotificationID, domain.EventNotificationAcknowledged)

	case domain.FrameMarkAsRead:
		s.recordStatus(ctx, c.UserID, frame.NotificationID, domain.EventNotificationRead)

	case domain.FrameUpdateSubscription:
		if frame.Subscription == nil {
			s.logger.Debug("update_subscription without subscription", zap.String("client_id", clientID))
			return
		}
		sub, err := s.subs.Update(ctx, c.UserID, *frame.Subscription)
		if err != nil {
			s.logger.Warn("subscription update failed",
				zap.String("user_id", c.UserID), zap.Error(err))
			return
		}
		s.registry.RefreshSubscription(c.UserID, sub)
		s.emit(domain.Event{Type: domain.EventSubscriptionUpdated, ClientID: clientID, UserID: c.UserID})

	default:
		s.logger.Debug("ignoring unknown frame type",
			zap.String("client_id", clientID),
			zap.String("type", frame.Type))
	}
}

func (s *NotificationService) recordStatus(ctx context.Context, userID, notificationID string, ev domain.EventType) {
	if notificationID == "" {
		s.logger.Debug("status frame without notificationId", zap.String("user_id", userID))
		return
	}
	if s.store != nil {
		var err error
		at := s.now()
		if ev == domain.EventNotificationAcknowledged {
			err = s.store.Acknowledge(ctx, notificationID, userID, at)
		} else {
			err = s.store.MarkRead(ctx, notificationID, userID, at)
		}
		if err != nil {
			s.logger.Warn("notification status update failed",
				zap.String("notification_id", notificationID),
				zap.String("user_id", userID),
				zap.String("event", string(ev)),
				zap.Error(err))
		}
	}
	s.emit(domain.Event{Type: ev, UserID: userID, NotificationID: notificationID})
}
