package usecase

import (
	"context"
	"errors"
	"fmt"

	"hms-notification-service/internal/domain"
	"hms-notification-service/internal/xerrors"
	"hms-notification-service/pkg/notifier/ws"

	"go.uber.org/zap"
)

// SendNotification accepts one notification, pushes it to every matching live
// connection of its recipient and, when none took it, queues it and tries the
// user's fallback channels. Only validation and shutdown errors are returned.
func (s *NotificationService) SendNotification(ctx context.Context, in domain.NotificationInput) (string, error) {
	if s.closed.Load() {
		return "", xerrors.ErrShuttingDown
	}
	if err := in.Validate(); err != nil {
		return "", err
	}
	msg := in.Build(s.newID(), s.now())
	s.dispatch(ctx, msg)
	return msg.ID, nil
}

// BroadcastNotification sends tmpl once per resolved recipient. Each recipient
// gets an independent message id.
func (s *NotificationService) BroadcastNotification(ctx context.Context, tmpl domain.NotificationInput, criteria domain.BroadcastCriteria) ([]string, error) {
	if s.closed.Load() {
		return nil, xerrors.ErrShuttingDown
	}
	if err := tmpl.ValidateTemplate(); err != nil {
		return nil, err
	}
	if criteria.Empty() {
		return nil, fmt.Errorf("%w: broadcast needs userIds, department, role or all", xerrors.ErrInvalidInput)
	}
	if tmpl.Department == "" {
		tmpl.Department = criteria.Department
	}

	recipients := s.resolveRecipients(ctx, criteria)
	ids := make([]string, 0, len(recipients))
	for _, uid := range recipients {
		in := tmpl
		in.UserID = uid
		msgID, err := s.SendNotification(ctx, in)
		if err != nil {
			return ids, err
		}
		ids = append(ids, msgID)
	}

	s.logger.Info("broadcast dispatched",
		zap.String("type", tmpl.Type),
		zap.Int("recipients", len(ids)))
	return ids, nil
}

func (s *NotificationService) dispatch(ctx context.Context, msg domain.NotificationMessage) {
	if s.store != nil {
		if err := s.store.Save(ctx, msg); err != nil {
			s.logger.Warn("notification store save failed",
				zap.String("notification_id", msg.ID),
				zap.Error(err))
		}
	}

	if s.deliverToUser(msg) > 0 {
		return
	}

	evicted := s.queue.Enqueue(msg.UserID, msg)
	s.emit(domain.Event{Type: domain.EventNotificationQueued, UserID: msg.UserID, NotificationID: msg.ID})
	if evicted > 0 {
		s.emit(domain.Event{Type: domain.EventQueueEvicted, UserID: msg.UserID, Count: evicted})
	}

	s.runFallback(ctx, msg)
}

// deliverToUser pushes msg to each connection of its recipient whose
// subscription matches and returns how many accepted it. A failed write is
// treated as that connection going away; an encoding failure is not.
func (s *NotificationService) deliverToUser(msg domain.NotificationMessage) int {
	now := s.now()
	frame := domain.NotificationFrame(msg)
	delivered := 0

	for c := range s.registry.ForEachConnectionOf(msg.UserID) {
		if !Matches(c.Subscription(), msg, now) {
			continue
		}
		err := c.Send(frame)
		if errors.Is(err, ws.ErrUnencodable) {
			s.logger.Error("notification not encodable",
				zap.String("notification_id", msg.ID),
				zap.Error(err))
			return delivered
		}
		if err != nil {
			s.logger.Warn("live delivery failed, dropping connection",
				zap.String("client_id", c.ID),
				zap.String("user_id", msg.UserID),
				zap.String("notification_id", msg.ID),
				zap.Error(err))
			s.registry.Unregister(c.ID)
			continue
		}
		delivered++
	}

	if delivered > 0 {
		s.emit(domain.Event{
			Type:           domain.EventNotificationSent,
			UserID:         msg.UserID,
			NotificationID: msg.ID,
			Channel:        domain.ChannelWebSocket,
			Count:          delivered,
		})
	}
	return delivered
}

func (s *NotificationService) runFallback(ctx context.Context, msg domain.NotificationMessage) {
	if s.fallback == nil {
		return
	}
	sub, err := s.subs.Get(ctx, msg.UserID)
	if err != nil {
		s.logger.Warn("subscription lookup failed, skipping fallback",
			zap.String("user_id", msg.UserID), zap.Error(err))
		return
	}

	for _, ch := range sub.Channels {
		if ch == domain.ChannelWebSocket || !channelAllowed(sub.Preferences, ch) {
			continue
		}
		s.emit(domain.Event{Type: domain.EventFallbackAttempted, UserID: msg.UserID, NotificationID: msg.ID, Channel: ch})
		if err := s.fallback.Deliver(ctx, ch, msg.UserID, msg); err != nil {
			s.logger.Warn("fallback delivery failed",
				zap.String("channel", ch),
				zap.String("user_id", msg.UserID),
				zap.String("notification_id", msg.ID),
				zap.Error(err))
			s.emit(domain.Event{
				Type:           domain.EventFallbackFailed,
				UserID:         msg.UserID,
				NotificationID: msg.ID,
				Channel:        ch,
				Error:          err.Error(),
			})
		}
	}
}

func channelAllowed(p domain.Preferences, channel string) bool {
	switch channel {
	case domain.ChannelEmail:
		return p.EnableEmail
	case domain.ChannelSMS:
		return p.EnableSMS
	case domain.ChannelPush:
		return true
	}
	return false
}

// resolveRecipients turns criteria into user ids. Explicit ids win, then
// all, then the directory. Without a working directory department and role
// scopes fall back to every connected user.
func (s *NotificationService) resolveRecipients(ctx context.Context, c domain.BroadcastCriteria) []string {
	switch {
	case len(c.UserIDs) > 0:
		return uniqueNonEmpty(c.UserIDs)
	case c.All:
		return s.registry.UserIDs()
	}

	if s.directory == nil {
		return s.registry.UserIDs()
	}

	var (
		byDept, byRole []string
		err            error
	)
	if c.Department != "" {
		if byDept, err = s.directory.UsersInDepartment(ctx, c.Department); err != nil {
			return s.directoryFallback(c, err)
		}
	}
	if c.Role != "" {
		if byRole, err = s.directory.UsersWithRole(ctx, c.Role); err != nil {
			return s.directoryFallback(c, err)
		}
	}

	switch {
	case c.Department != "" && c.Role != "":
		return intersect(byDept, byRole)
	case c.Department != "":
		return uniqueNonEmpty(byDept)
	default:
		return uniqueNonEmpty(byRole)
	}
}

func (s *NotificationService) directoryFallback(c domain.BroadcastCriteria, err error) []string {
	s.logger.Warn("directory lookup failed, broadcasting to connected users",
		zap.String("department", c.Department),
		zap.String("role", c.Role),
		zap.Error(err))
	return s.registry.UserIDs()
}

func uniqueNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func intersect(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, v := range b {
		inB[v] = struct{}{}
	}
	var out []string
	for _, v := range uniqueNonEmpty(a) {
		if _, ok := inB[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
