package usecase

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"hms-notification-service/internal/domain"
	"hms-notification-service/internal/xerrors"
	"hms-notification-service/pkg/notifier/ws/wstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectGreetsThenFlushesBacklog(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	soon := h.clock.Now().Add(time.Minute)
	expiring := input("u1")
	expiring.Title = "expiring"
	expiring.ExpiresAt = &soon
	expiredID, err := h.svc.SendNotification(ctx, expiring)
	require.NoError(t, err)
	keptID, err := h.svc.SendNotification(ctx, input("u1"))
	require.NoError(t, err)

	h.clock.Advance(2 * time.Minute)
	c, sock := h.connect(t, "u1")

	frames := sock.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, domain.FrameConnectionEstablished, frames[0]["type"])
	est := payload(frames[0])
	assert.Equal(t, c.ID, est["clientId"])
	assert.NotEmpty(t, est["serverTime"])
	subs := est["subscriptions"].(map[string]any)
	assert.Equal(t, "u1", subs["userId"])
	assert.Equal(t, []any{domain.ChannelWebSocket}, subs["channels"])

	assert.Equal(t, domain.FrameNotification, frames[1]["type"])
	assert.Equal(t, keptID, payload(frames[1])["id"])
	assert.NotEqual(t, expiredID, payload(frames[1])["id"])

	assert.Zero(t, h.queue.Len("u1"))
	assert.Len(t, h.events.of(domain.EventQueueExpired), 1)
	assert.Len(t, h.events.of(domain.EventClientConnected), 1)
}

func TestConnectFailsWhenGreetingCannotBeWritten(t *testing.T) {
	h := newHarness(t)
	sock := wstest.NewSocket()
	sock.Fail()

	_, err := h.svc.Connect(context.Background(), "u1", sock, domain.ClientMetadata{})
	require.Error(t, err)
	assert.Zero(t, h.registry.Count())
	assert.True(t, sock.Closed())
	assert.Empty(t, h.events.of(domain.EventClientConnected))
}

// hookSocket runs hook once, just before the first frame is written.
type hookSocket struct {
	*wstest.Socket
	once sync.Once
	hook func()
}

func (s *hookSocket) WriteJSON(v any) error {
	s.once.Do(s.hook)
	return s.Socket.WriteJSON(v)
}

func TestGreetingPrecedesNotificationsSentDuringConnect(t *testing.T) {
	h := newHarness(t)
	var sendErr error
	sock := &hookSocket{Socket: wstest.NewSocket()}
	sock.hook = func() {
		_, sendErr = h.svc.SendNotification(context.Background(), input("u1"))
	}

	_, err := h.svc.Connect(context.Background(), "u1", sock, domain.ClientMetadata{})
	require.NoError(t, err)
	require.NoError(t, sendErr)

	frames := sock.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, domain.FrameConnectionEstablished, frames[0]["type"])
	assert.Equal(t, domain.FrameNotification, frames[1]["type"])
	assert.Zero(t, h.queue.Len("u1"))
}

func TestConnectRacingShutdownIsRejected(t *testing.T) {
	h := newHarness(t)
	sock := &hookSocket{Socket: wstest.NewSocket()}
	sock.hook = func() { require.NoError(t, h.svc.Shutdown(context.Background())) }

	_, err := h.svc.Connect(context.Background(), "u1", sock, domain.ClientMetadata{})
	require.ErrorIs(t, err, xerrors.ErrShuttingDown)
	assert.Zero(t, h.registry.Count())
	assert.True(t, sock.Closed())
}

func TestConnectReportsBrokenBacklogFlush(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.SendNotification(context.Background(), input("u1"))
	require.NoError(t, err)

	sock := &failAfterGreeting{Socket: wstest.NewSocket()}

	_, err = h.svc.Connect(context.Background(), "u1", sock, domain.ClientMetadata{})
	require.ErrorIs(t, err, wstest.ErrBroken)
	assert.Zero(t, h.registry.Count())
	assert.Equal(t, 1, h.queue.Len("u1"), "undelivered backlog is kept")
}

// failAfterGreeting breaks the socket once the greeting is out.
type failAfterGreeting struct {
	*wstest.Socket
	writes int
}

func (s *failAfterGreeting) WriteJSON(v any) error {
	s.writes++
	if s.writes == 2 {
		s.Fail()
	}
	return s.Socket.WriteJSON(v)
}

func TestUnencodableAlertLeavesNoStateAndUserStaysReachable(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.VitalSignAlert(context.Background(), "patient-7", "heart_rate", math.Inf(1), "nurse-1")
	require.ErrorIs(t, err, xerrors.ErrInvalidInput)
	assert.Zero(t, h.queue.Total())
	assert.Empty(t, h.events.of(domain.EventNotificationQueued))

	for range 3 {
		h.connect(t, "nurse-1")
	}
	assert.Equal(t, 3, h.registry.Count())
}

func TestGCExpiredQueueRemovesBeforeDelivery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	past := h.clock.Now().Add(-time.Second)
	in := input("u1")
	in.ExpiresAt = &past
	_, err := h.svc.SendNotification(ctx, in)
	require.NoError(t, err)
	_, err = h.svc.SendNotification(ctx, input("u1"))
	require.NoError(t, err)

	assert.Equal(t, 1, h.svc.GCExpiredQueue(h.clock.Now()))
	assert.Equal(t, 1, h.queue.Len("u1"))
	ev := h.events.of(domain.EventQueueExpired)
	require.Len(t, ev, 1)
	assert.Equal(t, 1, ev[0].Count)

	_, sock := h.connect(t, "u1")
	assert.Len(t, notifications(sock), 1)

	assert.Zero(t, h.svc.GCExpiredQueue(h.clock.Now()))
}

func TestReapInactiveClosesIdleConnections(t *testing.T) {
	h := newHarness(t)
	idle, idleSock := h.connect(t, "u1")
	chatty, chattySock := h.connect(t, "u2")

	h.clock.Advance(4 * time.Minute)
	h.inbound(chatty, `{"type":"ping"}`)
	h.clock.Advance(2 * time.Minute)

	assert.Equal(t, 1, h.svc.ReapInactive(h.clock.Now()))

	_, ok := h.registry.Get(idle.ID)
	assert.False(t, ok)
	assert.True(t, idleSock.Closed())
	_, ok = h.registry.Get(chatty.ID)
	assert.True(t, ok)
	assert.False(t, chattySock.Closed())

	disconnected := h.events.of(domain.EventClientDisconnected)
	require.Len(t, disconnected, 1)
	assert.Equal(t, idle.ID, disconnected[0].ClientID)
}

func TestReapAtThresholdKeepsConnection(t *testing.T) {
	h := newHarness(t)
	h.connect(t, "u1")
	h.clock.Advance(5 * time.Minute)
	assert.Zero(t, h.svc.ReapInactive(h.clock.Now()))
	assert.Equal(t, 1, h.registry.Count())
}

func TestDisconnectUnregisters(t *testing.T) {
	h := newHarness(t)
	c, sock := h.connect(t, "u1")
	h.svc.Disconnect(c.ID)
	assert.Zero(t, h.svc.GetConnectedClientsCount())
	assert.True(t, sock.Closed())
	assert.Empty(t, h.svc.GetConnectedUserIDs())
}
