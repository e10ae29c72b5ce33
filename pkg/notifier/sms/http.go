package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hms-notification-service/internal/domain"
	"hms-notification-service/pkg/notifier"

	"go.uber.org/zap"
)

// HTTPSender posts form-encoded messages to an SMS gateway.
type HTTPSender struct {
	apiURL   string
	apiKey   string
	senderID string
	client   *http.Client
	logger   *zap.Logger
}

func NewHTTPSender(apiURL, apiKey, senderID string, logger *zap.Logger) *HTTPSender {
	return &HTTPSender{
		apiURL:   apiURL,
		apiKey:   apiKey,
		senderID: senderID,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

func (s *HTTPSender) Channel() string { return domain.ChannelSMS }

func (s *HTTPSender) Send(ctx context.Context, d notifier.Delivery) error {
	if d.Contact.Phone == "" {
		return notifier.ErrNoRecipient
	}
	start := time.Now()

	form := url.Values{}
	form.Set("senderid", s.senderID)
	form.Set("msgType", "text")
	form.Set("msg", d.Body)
	form.Set("mobile", d.Contact.Phone)
	form.Set("output", "json")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if s.apiKey != "" {
		httpReq.Header.Set("apikey", s.apiKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("sms gateway rejected message",
			zap.String("notification_id", d.Message.ID),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("response", string(body)))
		return fmt.Errorf("sms api error: status %d: %s", resp.StatusCode, string(body))
	}

	s.logger.Debug("sms sent",
		zap.String("notification_id", d.Message.ID),
		zap.Duration("duration", time.Since(start)))
	return nil
}
