package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hms-notification-service/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrChannelUnavailable = errors.New("fallback channel not configured")
	ErrNoRecipient        = errors.New("no recipient address for channel")
)

// Delivery is one rendered fallback message addressed to one user.
type Delivery struct {
	Channel string
	Contact domain.Contact
	Subject string
	Body    string
	Message domain.NotificationMessage
}

// Sender delivers over a single provider channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, d Delivery) error
}

type ContactLookup interface {
	Contact(ctx context.Context, userID string) (domain.Contact, error)
}

type Renderer interface {
	Render(channel, messageType string, data any) (string, error)
}

type Options struct {
	Senders   []Sender
	Contacts  ContactLookup
	Templates Renderer
	// RatePerSec caps provider calls per channel. Zero disables limiting.
	RatePerSec float64
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Notifier is the channel fallback used when live delivery did not happen.
type Notifier struct {
	senders   map[string]Sender
	limiters  map[string]*rate.Limiter
	contacts  ContactLookup
	templates Renderer
	timeout   time.Duration
	logger    *zap.Logger
}

func NewNotifier(opts Options) *Notifier {
	n := &Notifier{
		senders:   make(map[string]Sender, len(opts.Senders)),
		limiters:  make(map[string]*rate.Limiter, len(opts.Senders)),
		contacts:  opts.Contacts,
		templates: opts.Templates,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}
	if n.timeout <= 0 {
		n.timeout = 15 * time.Second
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	for _, s := range opts.Senders {
		n.senders[s.Channel()] = s
		if opts.RatePerSec > 0 {
			burst := int(opts.RatePerSec)
			if burst < 1 {
				burst = 1
			}
			n.limiters[s.Channel()] = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
		}
	}
	return n
}

// Channels lists the configured channels.
func (n *Notifier) Channels() []string {
	out := make([]string, 0, len(n.senders))
	for ch := range n.senders {
		out = append(out, ch)
	}
	return out
}

// Deliver sends msg to userID over channel.
func (n *Notifier) Deliver(ctx context.Context, channel, userID string, msg domain.NotificationMessage) error {
	sender, ok := n.senders[channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrChannelUnavailable, channel)
	}
	if n.contacts == nil {
		return fmt.Errorf("%w: %s (no directory)", ErrNoRecipient, channel)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	contact, err := n.contacts.Contact(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup contact %s: %w", userID, err)
	}
	if !hasAddress(channel, contact) {
		return fmt.Errorf("%w: %s for %s", ErrNoRecipient, channel, userID)
	}

	if lim := n.limiters[channel]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return fmt.Errorf("%s rate limit: %w", channel, err)
		}
	}

	d := Delivery{
		Channel: channel,
		Contact: contact,
		Subject: msg.Title,
		Body:    n.render(channel, msg),
		Message: msg,
	}
	return sender.Send(ctx, d)
}

func (n *Notifier) render(channel string, msg domain.NotificationMessage) string {
	if n.templates == nil {
		return msg.Message
	}
	body, err := n.templates.Render(channel, msg.Type, templateData(msg))
	if err != nil {
		n.logger.Debug("template render failed, using message text",
			zap.String("channel", channel),
			zap.String("type", msg.Type),
			zap.Error(err))
		return msg.Message
	}
	return body
}

func templateData(msg domain.NotificationMessage) map[string]any {
	data := msg.Data
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		"ID":                     msg.ID,
		"Type":                   msg.Type,
		"Priority":               string(msg.Priority),
		"Title":                  msg.Title,
		"Message":                msg.Message,
		"Department":             msg.Department,
		"RequiresAcknowledgment": msg.RequiresAcknowledgment,
		"CreatedAt":              msg.CreatedAt,
		"Data":                   data,
	}
}

func hasAddress(channel string, c domain.Contact) bool {
	switch channel {
	case domain.ChannelEmail:
		return c.Email != ""
	case domain.ChannelSMS:
		return c.Phone != ""
	case domain.ChannelPush:
		return len(c.DeviceTokens) > 0
	}
	return true
}
