package domain

import "time"

type EventType string

const (
	EventClientConnected          EventType = "client_connected"
	EventClientDisconnected       EventType = "client_disconnected"
	EventNotificationSent         EventType = "notification_sent"
	EventNotificationQueued       EventType = "notification_queued"
	EventNotificationAcknowledged EventType = "notification_acknowledged"
	EventNotificationRead         EventType = "notification_read"
	EventSubscriptionUpdated      EventType = "subscription_updated"
	EventFallbackAttempted        EventType = "fallback_attempted"
	EventFallbackFailed           EventType = "fallback_failed"
	EventQueueEvicted             EventType = "queue_evicted"
	EventQueueExpired             EventType = "queue_expired"
)

// Event is a lifecycle signal for observability collaborators.
type Event struct {
	Type           EventType      `json:"type"`
	At             time.Time      `json:"at"`
	ClientID       string         `json:"clientId,omitempty"`
	UserID         string         `json:"userId,omitempty"`
	NotificationID string         `json:"notificationId,omitempty"`
	Channel        string         `json:"channel,omitempty"`
	Count          int            `json:"count,omitempty"`
	Error          string         `json:"error,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}
