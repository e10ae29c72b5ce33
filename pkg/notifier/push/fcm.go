package push

import (
	"context"
	"fmt"

	"hms-notification-service/internal/domain"
	"hms-notification-service/pkg/notifier"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

type multicastClient interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMSender sends push notifications to every device token of a user.
type FCMSender struct {
	client multicastClient
	logger *zap.Logger
}

func NewFCMSender(ctx context.Context, credentialsFile string, logger *zap.Logger) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("fcm client: %w", err)
	}
	logger.Info("firebase messaging connected")
	return &FCMSender{client: client, logger: logger}, nil
}

func (f *FCMSender) Channel() string { return domain.ChannelPush }

func (f *FCMSender) Send(ctx context.Context, d notifier.Delivery) error {
	if len(d.Contact.DeviceTokens) == 0 {
		return notifier.ErrNoRecipient
	}

	androidPriority, apnsPriority := "normal", "5"
	if d.Message.Priority == domain.PriorityHigh || d.Message.Priority == domain.PriorityCritical {
		androidPriority, apnsPriority = "high", "10"
	}

	resp, err := f.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: d.Contact.DeviceTokens,
		Notification: &messaging.Notification{
			Title: d.Subject,
			Body:  d.Body,
		},
		Data: map[string]string{
			"notificationId": d.Message.ID,
			"type":           d.Message.Type,
			"priority":       string(d.Message.Priority),
		},
		Android: &messaging.AndroidConfig{Priority: androidPriority},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": apnsPriority},
		},
	})
	if err != nil {
		return fmt.Errorf("fcm multicast: %w", err)
	}

	for i, r := range resp.Responses {
		if r.Error != nil {
			f.logger.Debug("push token rejected",
				zap.String("notification_id", d.Message.ID),
				zap.Int("token_index", i),
				zap.Bool("unregistered", messaging.IsUnregistered(r.Error)),
				zap.Error(r.Error))
		}
	}
	if resp.SuccessCount == 0 {
		return fmt.Errorf("fcm: all %d tokens failed", resp.FailureCount)
	}
	return nil
}
