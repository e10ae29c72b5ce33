package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"hms-notification-service/internal/xerrors"
)

// Priority of a notification.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Well-known notification types. The vocabulary is open: callers may send
// any non-empty type string.
const (
	TypeCriticalResult      = "critical_result"
	TypeEmergencyAlert      = "emergency_alert"
	TypeVitalSignAlert      = "vital_sign_alert"
	TypeAppointmentReminder = "appointment_reminder"
	TypeMedicationReminder  = "medication_reminder"
	TypeLabResult           = "lab_result"
	TypeSystem              = "system"
)

// Delivery channels. The live channel is implicit in every subscription.
const (
	ChannelWebSocket = "websocket"
	ChannelEmail     = "email"
	ChannelSMS       = "sms"
	ChannelPush      = "push"
)

// NotificationMessage is an accepted notification. ID and CreatedAt are
// assigned by the dispatcher and never by callers.
type NotificationMessage struct {
	ID                     string         `json:"id"`
	Type                   string         `json:"type"`
	Priority               Priority       `json:"priority"`
	Title                  string         `json:"title"`
	Message                string         `json:"message"`
	Data                   map[string]any `json:"data,omitempty"`
	UserID                 string         `json:"userId,omitempty"`
	Department             string         `json:"department,omitempty"`
	RequiresAcknowledgment bool           `json:"requiresAcknowledgment"`
	ExpiresAt              *time.Time     `json:"expiresAt,omitempty"`
	CreatedAt              time.Time      `json:"createdAt"`
}

// Expired reports whether the message must no longer be delivered.
func (m NotificationMessage) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}

// NotificationInput is what callers hand to the dispatcher.
type NotificationInput struct {
	Type                   string         `json:"type"`
	Priority               Priority       `json:"priority,omitempty"`
	Title                  string         `json:"title"`
	Message                string         `json:"message"`
	Data                   map[string]any `json:"data,omitempty"`
	UserID                 string         `json:"userId,omitempty"`
	Department             string         `json:"department,omitempty"`
	RequiresAcknowledgment bool           `json:"requiresAcknowledgment,omitempty"`
	ExpiresAt              *time.Time     `json:"expiresAt,omitempty"`
}

// ValidateTemplate checks the fields every notification needs regardless of
// recipient.
func (in NotificationInput) ValidateTemplate() error {
	if strings.TrimSpace(in.Type) == "" {
		return fmt.Errorf("%w: %w", xerrors.ErrInvalidInput, xerrors.ErrMissingType)
	}
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: %w", xerrors.ErrInvalidInput, xerrors.ErrMissingTitle)
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return fmt.Errorf("%w: %w %q", xerrors.ErrInvalidInput, xerrors.ErrUnknownPriority, in.Priority)
	}
	// data travels inside every outbound frame and queue entry
	if len(in.Data) > 0 {
		if _, err := json.Marshal(in.Data); err != nil {
			return fmt.Errorf("%w: %w: %v", xerrors.ErrInvalidInput, xerrors.ErrUnencodableData, err)
		}
	}
	return nil
}

// Validate checks a single-recipient notification.
func (in NotificationInput) Validate() error {
	if err := in.ValidateTemplate(); err != nil {
		return err
	}
	if strings.TrimSpace(in.UserID) == "" {
		return fmt.Errorf("%w: %w", xerrors.ErrInvalidInput, xerrors.ErrMissingRecipient)
	}
	return nil
}

// Build turns a validated input into a message with the given identity.
func (in NotificationInput) Build(id string, createdAt time.Time) NotificationMessage {
	priority := in.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	var data map[string]any
	if len(in.Data) > 0 {
		data = make(map[string]any, len(in.Data))
		for k, v := range in.Data {
			data[k] = v
		}
	}
	var expires *time.Time
	if in.ExpiresAt != nil {
		t := *in.ExpiresAt
		expires = &t
	}
	return NotificationMessage{
		ID:                     id,
		Type:                   in.Type,
		Priority:               priority,
		Title:                  in.Title,
		Message:                in.Message,
		Data:                   data,
		UserID:                 in.UserID,
		Department:             in.Department,
		RequiresAcknowledgment: in.RequiresAcknowledgment,
		ExpiresAt:              expires,
		CreatedAt:              createdAt,
	}
}

// BroadcastCriteria selects the recipients of a broadcast. Explicit UserIDs
// win over every other field.
type BroadcastCriteria struct {
	UserIDs    []string `json:"userIds,omitempty"`
	Department string   `json:"department,omitempty"`
	Role       string   `json:"role,omitempty"`
	All        bool     `json:"all,omitempty"`
}

func (c BroadcastCriteria) Empty() bool {
	return len(c.UserIDs) == 0 && c.Department == "" && c.Role == "" && !c.All
}

// Contact holds the addresses used by fallback channels.
type Contact struct {
	UserID       string   `json:"userId"`
	Email        string   `json:"email,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	DeviceTokens []string `json:"deviceTokens,omitempty"`
}

// Statistics is a point-in-time view of the service's in-memory state.
type Statistics struct {
	ConnectedClients int `json:"connectedClients"`
	ConnectedUsers   int `json:"connectedUsers"`
	QueuedMessages   int `json:"queuedMessages"`
	Subscriptions    int `json:"subscriptions"`
}
