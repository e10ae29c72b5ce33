package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"hms-notification-service/internal/domain"
	"hms-notification-service/pkg/notifier"
)

type SMTPSender struct {
	smtpHost string
	smtpPort string
	username string
	password string
}

func NewSMTPSender(host, port, user, pass string) *SMTPSender {
	return &SMTPSender{
		smtpHost: host,
		smtpPort: port,
		username: user,
		password: pass,
	}
}

func (e *SMTPSender) Channel() string { return domain.ChannelEmail }

func (e *SMTPSender) Send(ctx context.Context, d notifier.Delivery) error {
	to := d.Contact.Email
	if to == "" {
		return notifier.ErrNoRecipient
	}
	msg := buildMessage(e.username, to, d.Subject, d.Body)

	client, err := e.dial(ctx)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", e.username, e.password, e.smtpHost)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(e.username); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// dial uses implicit TLS on 465 and STARTTLS everywhere else.
func (e *SMTPSender) dial(ctx context.Context) (*smtp.Client, error) {
	serverAddr := net.JoinHostPort(e.smtpHost, e.smtpPort)
	tlsConfig := &tls.Config{ServerName: e.smtpHost}
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	if e.smtpPort == "465" {
		conn, err := (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", serverAddr)
		if err != nil {
			return nil, err
		}
		setDeadline(ctx, conn)
		return smtp.NewClient(conn, e.smtpHost)
	}

	conn, err := dialer.DialContext(ctx, "tcp", serverAddr)
	if err != nil {
		return nil, err
	}
	setDeadline(ctx, conn)
	client, err := smtp.NewClient(conn, e.smtpHost)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := client.StartTLS(tlsConfig); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func setDeadline(ctx context.Context, conn net.Conn) {
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte(
		fmt.Sprintf("From: %s\r\n", from) +
			fmt.Sprintf("To: %s\r\n", to) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)
}
