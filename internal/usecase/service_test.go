package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hms-notification-service/internal/domain"
	"hms-notification-service/internal/queue"
	"hms-notification-service/internal/repository"
	"hms-notification-service/pkg/notifier/ws"
	"hms-notification-service/pkg/notifier/ws/wstest"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Emit(ev domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) of(t domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fallbackCall struct {
	Channel string
	UserID  string
	MsgID   string
}

type fakeFallback struct {
	mu    sync.Mutex
	calls []fallbackCall
	errs  map[string]error
}

func (f *fakeFallback) Deliver(_ context.Context, channel, userID string, msg domain.NotificationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fallbackCall{Channel: channel, UserID: userID, MsgID: msg.ID})
	return f.errs[channel]
}

func (f *fakeFallback) Calls() []fallbackCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fallbackCall(nil), f.calls...)
}

type failingStore struct{}

func (failingStore) Save(context.Context, domain.NotificationMessage) error { return errors.New("db down") }
func (failingStore) Acknowledge(context.Context, string, string, time.Time) error {
	return errors.New("db down")
}
func (failingStore) MarkRead(context.Context, string, string, time.Time) error {
	return errors.New("db down")
}

type failingDirectory struct{}

func (failingDirectory) UsersInDepartment(context.Context, string) ([]string, error) {
	return nil, errors.New("directory unavailable")
}
func (failingDirectory) UsersWithRole(context.Context, string) ([]string, error) {
	return nil, errors.New("directory unavailable")
}
func (failingDirectory) Contact(context.Context, string) (domain.Contact, error) {
	return domain.Contact{}, errors.New("directory unavailable")
}

type harness struct {
	svc      *NotificationService
	registry *ws.Registry
	subs     *repository.MemorySubscriptionRepository
	queue    *queue.OfflineQueue
	store    *repository.MemoryNotificationStore
	fallback *fakeFallback
	events   *recorder
	clock    *clock
}

type option func(*Deps)

func withDirectory(d repository.Directory) option {
	return func(deps *Deps) { deps.Directory = d }
}

func withStore(s repository.NotificationStore) option {
	return func(deps *Deps) { deps.Store = s }
}

func withQueueCap(n int) option {
	return func(deps *Deps) { deps.Queue = queue.New(n) }
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	h := &harness{
		subs:     repository.NewMemorySubscriptionRepository(),
		store:    repository.NewMemoryNotificationStore(),
		fallback: &fakeFallback{errs: map[string]error{}},
		events:   &recorder{},
		clock:    newClock(),
	}
	h.registry = ws.NewRegistry(ws.RegistryOptions{
		Subscriptions:     h.subs,
		Events:            h.events,
		Logger:            zap.NewNop(),
		HeartbeatInterval: time.Hour,
		Now:               h.clock.Now,
	})
	deps := Deps{
		Registry:          h.registry,
		Subscriptions:     h.subs,
		Queue:             queue.New(queue.DefaultCap),
		Store:             h.store,
		Fallback:          h.fallback,
		Events:            h.events,
		Logger:            zap.NewNop(),
		Now:               h.clock.Now,
		InactivityTimeout: 5 * time.Minute,
	}
	for _, o := range opts {
		o(&deps)
	}
	h.queue = deps.Queue
	h.svc = NewNotificationService(deps)
	t.Cleanup(func() { h.registry.CloseAll() })
	return h
}

func (h *harness) connect(t *testing.T, userID string) (*ws.Client, *wstest.Socket) {
	t.Helper()
	sock := wstest.NewSocket()
	c, err := h.svc.Connect(context.Background(), userID, sock, domain.NewClientMetadata("Mozilla/5.0 (iPhone)"))
	require.NoError(t, err)
	return c, sock
}

func (h *harness) inbound(c *ws.Client, raw string) {
	h.svc.HandleInbound(context.Background(), c.ID, []byte(raw))
}

func notifications(s *wstest.Socket) []map[string]any {
	return s.FramesOfType(domain.FrameNotification)
}

func payload(frame map[string]any) map[string]any {
	p, _ := frame["payload"].(map[string]any)
	return p
}

func input(userID string) domain.NotificationInput {
	return domain.NotificationInput{
		Type:    domain.TypeLabResult,
		Title:   "Lab result ready",
		Message: "CBC panel available",
		UserID:  userID,
	}
}
