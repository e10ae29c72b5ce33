package events

import (
	"hms-notification-service/internal/domain"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogObserver writes every event as a structured log line. Failures are
// logged at warn, everything else at debug.
func LogObserver(logger *zap.Logger) Observer {
	return ObserverFunc(func(ev domain.Event) {
		level := zapcore.DebugLevel
		if ev.Type == domain.EventFallbackFailed || ev.Type == domain.EventQueueEvicted {
			level = zapcore.WarnLevel
		}
		ce := logger.Check(level, "notification event")
		if ce == nil {
			return
		}
		fields := []zap.Field{zap.String("event", string(ev.Type))}
		if ev.ClientID != "" {
			fields = append(fields, zap.String("client_id", ev.ClientID))
		}
		if ev.UserID != "" {
			fields = append(fields, zap.String("user_id", ev.UserID))
		}
		if ev.NotificationID != "" {
			fields = append(fields, zap.String("notification_id", ev.NotificationID))
		}
		if ev.Channel != "" {
			fields = append(fields, zap.String("channel", ev.Channel))
		}
		if ev.Count != 0 {
			fields = append(fields, zap.Int("count", ev.Count))
		}
		if ev.Error != "" {
			fields = append(fields, zap.String("error", ev.Error))
		}
		ce.Write(fields...)
	})
}
