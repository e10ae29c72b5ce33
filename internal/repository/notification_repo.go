package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"hms-notification-service/internal/domain"
	"hms-notification-service/internal/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationStore persists accepted notifications and their ack/read status.
type NotificationStore interface {
	Save(ctx context.Context, msg domain.NotificationMessage) error
	Acknowledge(ctx context.Context, notificationID, userID string, at time.Time) error
	MarkRead(ctx context.Context, notificationID, userID string, at time.Time) error
}

// StoredNotification is a notification plus the status fields this service
// writes on behalf of clients.
type StoredNotification struct {
	domain.NotificationMessage
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
}

type MemoryNotificationStore struct {
	mu    sync.RWMutex
	items map[string]*StoredNotification
}

func NewMemoryNotificationStore() *MemoryNotificationStore {
	return &MemoryNotificationStore{items: make(map[string]*StoredNotification)}
}

func (m *MemoryNotificationStore) Save(_ context.Context, msg domain.NotificationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[msg.ID] = &StoredNotification{NotificationMessage: msg}
	return nil
}

func (m *MemoryNotificationStore) Acknowledge(_ context.Context, notificationID, userID string, at time.Time) error {
	return m.update(notificationID, userID, func(n *StoredNotification) { n.AcknowledgedAt = &at })
}

func (m *MemoryNotificationStore) MarkRead(_ context.Context, notificationID, userID string, at time.Time) error {
	return m.update(notificationID, userID, func(n *StoredNotification) { n.ReadAt = &at })
}

func (m *MemoryNotificationStore) update(notificationID, userID string, fn func(*StoredNotification)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[notificationID]
	if !ok || n.UserID != userID {
		return xerrors.ErrNotFound
	}
	fn(n)
	return nil
}

// Get returns a copy of a stored notification.
func (m *MemoryNotificationStore) Get(notificationID string) (StoredNotification, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.items[notificationID]
	if !ok {
		return StoredNotification{}, false
	}
	return *n, true
}

func (m *MemoryNotificationStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.items = make(map[string]*StoredNotification)
	m.mu.Unlock()
	return nil
}

type pgNotificationStore struct {
	db *pgxpool.Pool
}

// NewPgNotificationStore persists into realtime_notifications:
//
//	id text primary key, user_id text, type text, priority text, title text,
//	message text, data jsonb, department text, requires_ack boolean,
//	expires_at timestamptz, created_at timestamptz,
//	acknowledged_at timestamptz, read_at timestamptz
func NewPgNotificationStore(db *pgxpool.Pool) NotificationStore {
	return &pgNotificationStore{db: db}
}

func (p *pgNotificationStore) Save(ctx context.Context, msg domain.NotificationMessage) error {
	data, err := json.Marshal(msg.Data)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO realtime_notifications (
			id, user_id, type, priority, title, message, data,
			department, requires_ack, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = p.db.Exec(ctx, query,
		msg.ID,
		msg.UserID,
		msg.Type,
		string(msg.Priority),
		msg.Title,
		msg.Message,
		data,
		msg.Department,
		msg.RequiresAcknowledgment,
		msg.ExpiresAt,
		msg.CreatedAt,
	)
	return err
}

func (p *pgNotificationStore) Acknowledge(ctx context.Context, notificationID, userID string, at time.Time) error {
	query := `
		UPDATE realtime_notifications
		SET acknowledged_at = $3
		WHERE id = $1
		  AND user_id = $2
		  AND acknowledged_at IS NULL
	`
	return p.execOne(ctx, query, notificationID, userID, at)
}

func (p *pgNotificationStore) MarkRead(ctx context.Context, notificationID, userID string, at time.Time) error {
	query := `
		UPDATE realtime_notifications
		SET read_at = $3
		WHERE id = $1
		  AND user_id = $2
		  AND read_at IS NULL
	`
	return p.execOne(ctx, query, notificationID, userID, at)
}

func (p *pgNotificationStore) execOne(ctx context.Context, query string, args ...any) error {
	ct, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return xerrors.ErrNotFound
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
