package ws

import (
	"context"
	"iter"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"hms-notification-service/internal/domain"
	"hms-notification-service/pkg/id"

	"go.uber.org/zap"
)

// SubscriptionLoader returns a user's subscription, creating the default one
// on first access.
type SubscriptionLoader interface {
	Get(ctx context.Context, userID string) (domain.NotificationSubscription, error)
}

// EventSink receives lifecycle events.
type EventSink interface {
	Emit(ev domain.Event)
}

// Client is one live connection.
type Client struct {
	ID          string
	UserID      string
	Metadata    domain.ClientMetadata
	ConnectedAt time.Time

	socket   Socket
	lastSeen atomic.Int64

	mu           sync.RWMutex
	subscription domain.NotificationSubscription

	stop     chan struct{}
	stopOnce sync.Once
}

// Send pushes one JSON frame to the connection.
func (c *Client) Send(frame any) error {
	return c.socket.WriteJSON(frame)
}

func (c *Client) Subscription() domain.NotificationSubscription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscription.Clone()
}

func (c *Client) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

func (c *Client) IsOpen() bool {
	return c.socket.IsOpen()
}

func (c *Client) touch(t time.Time) {
	c.lastSeen.Store(t.UnixNano())
}

func (c *Client) setSubscription(s domain.NotificationSubscription) {
	c.mu.Lock()
	c.subscription = s.Clone()
	c.mu.Unlock()
}

func (c *Client) stopHeartbeat() {
	c.stopOnce.Do(func() { close(c.stop) })
}

type RegistryOptions struct {
	Subscriptions     SubscriptionLoader
	Events            EventSink
	Logger            *zap.Logger
	HeartbeatInterval time.Duration
	Now               func() time.Time
}

// Registry owns every live connection and is the only writer of Client state.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	byUser  map[string]map[string]*Client

	subs      SubscriptionLoader
	events    EventSink
	logger    *zap.Logger
	heartbeat time.Duration
	now       func() time.Time
}

func NewRegistry(opts RegistryOptions) *Registry {
	r := &Registry{
		clients:   make(map[string]*Client),
		byUser:    make(map[string]map[string]*Client),
		subs:      opts.Subscriptions,
		events:    opts.Events,
		logger:    opts.Logger,
		heartbeat: opts.HeartbeatInterval,
		now:       opts.Now,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.heartbeat <= 0 {
		r.heartbeat = 30 * time.Second
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Register admits a connection for userID and starts its heartbeat.
func (r *Registry) Register(ctx context.Context, userID string, socket Socket, meta domain.ClientMetadata) *Client {
	c := r.Admit(ctx, userID, socket, meta)
	r.Attach(c)
	return c
}

// Admit builds a Client with its subscription snapshot loaded. The client is
// not visible to lookups or dispatch until Attach.
func (r *Registry) Admit(ctx context.Context, userID string, socket Socket, meta domain.ClientMetadata) *Client {
	sub := domain.DefaultSubscription(userID)
	if r.subs != nil {
		loaded, err := r.subs.Get(ctx, userID)
		if err != nil {
			r.logger.Warn("subscription load failed, using default",
				zap.String("user_id", userID), zap.Error(err))
		} else {
			sub = loaded
		}
	}

	now := r.now()
	c := &Client{
		ID:           id.GenerateUUID(),
		UserID:       userID,
		Metadata:     meta,
		ConnectedAt:  now,
		socket:       socket,
		subscription: sub.Clone(),
		stop:         make(chan struct{}),
	}
	c.touch(now)
	return c
}

// Attach indexes an admitted client and starts its heartbeat.
func (r *Registry) Attach(c *Client) {
	r.mu.Lock()
	r.clients[c.ID] = c
	if _, ok := r.byUser[c.UserID]; !ok {
		r.byUser[c.UserID] = make(map[string]*Client)
	}
	r.byUser[c.UserID][c.ID] = c
	total := len(r.byUser[c.UserID])
	r.mu.Unlock()

	go r.runHeartbeat(c)

	r.logger.Info("WS connected",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.UserID),
		zap.String("platform", string(c.Metadata.Platform)),
		zap.Int("user_connections", total))
}

func (r *Registry) Get(clientID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[clientID]
	return c, ok
}

// ForEachConnectionOf yields the user's connections as registered when the
// sequence starts. The sequence is single-use.
func (r *Registry) ForEachConnectionOf(userID string) iter.Seq[*Client] {
	var used atomic.Bool
	return func(yield func(*Client) bool) {
		if used.Swap(true) {
			return
		}
		r.mu.RLock()
		conns := make([]*Client, 0, len(r.byUser[userID]))
		for _, c := range r.byUser[userID] {
			conns = append(conns, c)
		}
		r.mu.RUnlock()

		for _, c := range conns {
			if !yield(c) {
				return
			}
		}
	}
}

// Unregister stops the heartbeat, closes the socket and drops the record.
// It reports whether the client was registered.
func (r *Registry) Unregister(clientID string) bool {
	r.mu.Lock()
	c, ok := r.clients[clientID]
	if ok {
		delete(r.clients, clientID)
		if conns, found := r.byUser[c.UserID]; found {
			delete(conns, clientID)
			if len(conns) == 0 {
				delete(r.byUser, c.UserID)
			}
		}
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	c.stopHeartbeat()
	_ = c.socket.Close()

	r.logger.Info("WS disconnected",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.UserID))
	if r.events != nil {
		r.events.Emit(domain.Event{
			Type:     domain.EventClientDisconnected,
			At:       r.now(),
			ClientID: c.ID,
			UserID:   c.UserID,
		})
	}
	return true
}

// Touch marks inbound activity on a connection.
func (r *Registry) Touch(clientID string) {
	if c, ok := r.Get(clientID); ok {
		c.touch(r.now())
	}
}

// RefreshSubscription replaces the snapshot on every connection of userID.
func (r *Registry) RefreshSubscription(userID string, sub domain.NotificationSubscription) {
	for c := range r.ForEachConnectionOf(userID) {
		c.setSubscription(sub)
	}
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// UserIDs returns the connected users, sorted.
func (r *Registry) UserIDs() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.byUser))
	for uid := range r.byUser {
		out = append(out, uid)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Snapshot copies the current client list for sweeps.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// CloseAll force-closes and unregisters every connection.
func (r *Registry) CloseAll() int {
	n := 0
	for _, c := range r.Snapshot() {
		if r.Unregister(c.ID) {
			n++
		}
	}
	return n
}

func (r *Registry) runHeartbeat(c *Client) {
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.socket.IsOpen() {
				return
			}
			if err := c.socket.Ping(); err != nil {
				r.logger.Warn("heartbeat ping failed",
					zap.String("client_id", c.ID),
					zap.String("user_id", c.UserID),
					zap.Error(err))
				r.Unregister(c.ID)
				return
			}
			c.touch(r.now())
		}
	}
}
