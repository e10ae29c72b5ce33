package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// Inbound frame types.
const (
	FramePing               = "ping"
	FrameAcknowledge        = "acknowledge_notification"
	FrameMarkAsRead         = "mark_as_read"
	FrameUpdateSubscription = "update_subscription"
)

// Outbound frame types.
const (
	FrameConnectionEstablished = "connection_established"
	FramePong                  = "pong"
	FrameNotification          = "notification"
)

var ErrMalformedFrame = errors.New("malformed frame")

// OutboundFrame is every server -> client message.
type OutboundFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type ConnectionEstablished struct {
	ClientID      string                   `json:"clientId"`
	ServerTime    time.Time                `json:"serverTime"`
	Subscriptions NotificationSubscription `json:"subscriptions"`
}

func NotificationFrame(msg NotificationMessage) OutboundFrame {
	return OutboundFrame{Type: FrameNotification, Payload: msg}
}

func PongFrame() OutboundFrame {
	return OutboundFrame{Type: FramePong}
}

// InboundFrame is every client -> server message.
type InboundFrame struct {
	Type           string             `json:"type"`
	NotificationID string             `json:"notificationId,omitempty"`
	Subscription   *SubscriptionPatch `json:"subscription,omitempty"`
}

// DecodeInboundFrame parses one frame. Non-JSON payloads and frames without a
// type are malformed.
func DecodeInboundFrame(raw []byte) (InboundFrame, error) {
	var f InboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return InboundFrame{}, errors.Join(ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return InboundFrame{}, ErrMalformedFrame
	}
	return f, nil
}
