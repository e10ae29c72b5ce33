package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"hms-notification-service/internal/domain"
	"hms-notification-service/internal/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory resolves staff membership and contact addresses.
type Directory interface {
	UsersInDepartment(ctx context.Context, department string) ([]string, error)
	UsersWithRole(ctx context.Context, role string) ([]string, error)
	Contact(ctx context.Context, userID string) (domain.Contact, error)
}

// DirectoryEntry is one staff member known to MemoryDirectory.
type DirectoryEntry struct {
	Contact    domain.Contact
	Department string
	Role       string
}

type MemoryDirectory struct {
	mu      sync.RWMutex
	entries map[string]DirectoryEntry
}

func NewMemoryDirectory(entries ...DirectoryEntry) *MemoryDirectory {
	d := &MemoryDirectory{entries: make(map[string]DirectoryEntry)}
	for _, e := range entries {
		d.Put(e)
	}
	return d
}

func (d *MemoryDirectory) Put(e DirectoryEntry) {
	d.mu.Lock()
	d.entries[e.Contact.UserID] = e
	d.mu.Unlock()
}

func (d *MemoryDirectory) UsersInDepartment(_ context.Context, department string) ([]string, error) {
	return d.filter(func(e DirectoryEntry) bool { return e.Department == department }), nil
}

func (d *MemoryDirectory) UsersWithRole(_ context.Context, role string) ([]string, error) {
	return d.filter(func(e DirectoryEntry) bool { return e.Role == role }), nil
}

func (d *MemoryDirectory) Contact(_ context.Context, userID string) (domain.Contact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[userID]
	if !ok {
		return domain.Contact{}, xerrors.ErrNotFound
	}
	return e.Contact, nil
}

func (d *MemoryDirectory) filter(keep func(DirectoryEntry) bool) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []string
	for uid, e := range d.entries {
		if keep(e) {
			out = append(out, uid)
		}
	}
	sort.Strings(out)
	return out
}

type pgDirectory struct {
	db *pgxpool.Pool
}

// NewPgDirectory reads the staff_directory table:
//
//	user_id text primary key, department text, role text,
//	email text, phone text, device_tokens text[]
func NewPgDirectory(db *pgxpool.Pool) Directory {
	return &pgDirectory{db: db}
}

func (p *pgDirectory) UsersInDepartment(ctx context.Context, department string) ([]string, error) {
	return p.userIDs(ctx, `SELECT user_id FROM staff_directory WHERE department = $1 ORDER BY user_id`, department)
}

func (p *pgDirectory) UsersWithRole(ctx context.Context, role string) ([]string, error) {
	return p.userIDs(ctx, `SELECT user_id FROM staff_directory WHERE role = $1 ORDER BY user_id`, role)
}

func (p *pgDirectory) userIDs(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := p.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (p *pgDirectory) Contact(ctx context.Context, userID string) (domain.Contact, error) {
	query := `
		SELECT user_id, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(device_tokens, '{}')
		FROM staff_directory
		WHERE user_id = $1
	`
	var c domain.Contact
	err := p.db.QueryRow(ctx, query, userID).Scan(&c.UserID, &c.Email, &c.Phone, &c.DeviceTokens)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Contact{}, xerrors.ErrNotFound
		}
		return domain.Contact{}, err
	}
	return c, nil
}
