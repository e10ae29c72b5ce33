package usecase

import (
	"context"
	"testing"
	"time"

	"hms-notification-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboundPingRepliesPongAndTouches(t *testing.T) {
	h := newHarness(t)
	c, sock := h.connect(t, "u1")

	h.clock.Advance(time.Minute)
	h.inbound(c, `{"type":"ping"}`)

	assert.Len(t, sock.FramesOfType(domain.FramePong), 1)
	assert.True(t, c.LastSeen().Equal(h.clock.Now()))
}

func TestInboundAcknowledgeAndRead(t *testing.T) {
	h := newHarness(t)
	c, _ := h.connect(t, "u1")
	id, err := h.svc.SendNotification(context.Background(), input("u1"))
	require.NoError(t, err)

	h.clock.Advance(time.Second)
	h.inbound(c, `{"type":"acknowledge_notification","notificationId":"`+id+`"}`)
	h.clock.Advance(time.Second)
	h.inbound(c, `{"type":"mark_as_read","notificationId":"`+id+`"}`)

	stored, _ := h.store.Get(id)
	require.NotNil(t, stored.AcknowledgedAt)
	require.NotNil(t, stored.ReadAt)
	assert.True(t, stored.ReadAt.After(*stored.AcknowledgedAt))

	acks := h.events.of(domain.EventNotificationAcknowledged)
	require.Len(t, acks, 1)
	assert.Equal(t, id, acks[0].NotificationID)
	assert.Len(t, h.events.of(domain.EventNotificationRead), 1)
}

func TestInboundAcknowledgeSurvivesStoreFailure(t *testing.T) {
	h := newHarness(t, withStore(failingStore{}))
	c, _ := h.connect(t, "u1")

	h.inbound(c, `{"type":"acknowledge_notification","notificationId":"ntf_missing"}`)
	assert.Len(t, h.events.of(domain.EventNotificationAcknowledged), 1)

	_, ok := h.registry.Get(c.ID)
	assert.True(t, ok)
}

func TestInboundUpdateSubscriptionRefreshesEveryConnection(t *testing.T) {
	h := newHarness(t)
	c1, _ := h.connect(t, "u1")
	c2, _ := h.connect(t, "u1")

	h.inbound(c1, `{"type":"update_subscription","subscription":{"types":["critical_result"],"department":"ICU"}}`)

	for _, c := range []string{c1.ID, c2.ID} {
		client, ok := h.registry.Get(c)
		require.True(t, ok)
		sub := client.Subscription()
		assert.Equal(t, []string{domain.TypeCriticalResult}, sub.Types)
		assert.Equal(t, "ICU", sub.Department)
	}
	stored, _ := h.subs.Get(context.Background(), "u1")
	assert.Equal(t, "ICU", stored.Department)
	assert.Len(t, h.events.of(domain.EventSubscriptionUpdated), 1)
}

func TestInboundExplicitlyEmptiedTypesBlocksEverything(t *testing.T) {
	h := newHarness(t)
	c, sock := h.connect(t, "u1")
	h.inbound(c, `{"type":"update_subscription","subscription":{"types":[]}}`)

	_, err := h.svc.SendNotification(context.Background(), input("u1"))
	require.NoError(t, err)
	assert.Empty(t, notifications(sock))
	assert.Equal(t, 1, h.queue.Len("u1"))
}

func TestInboundIgnoresMalformedAndUnknownFrames(t *testing.T) {
	h := newHarness(t)
	c, sock := h.connect(t, "u1")
	before := len(sock.Frames())

	for _, raw := range []string{
		`not json`,
		`{}`,
		`{"type":""}`,
		`{"type":"subscribe_to_everything"}`,
		`{"type":"acknowledge_notification"}`,
		`{"type":"update_subscription"}`,
	} {
		h.inbound(c, raw)
	}

	assert.Len(t, sock.Frames(), before)
	assert.False(t, sock.Closed())
	_, ok := h.registry.Get(c.ID)
	assert.True(t, ok)
	assert.Empty(t, h.events.of(domain.EventNotificationAcknowledged))
	assert.Empty(t, h.events.of(domain.EventSubscriptionUpdated))
}

func TestInboundFromUnknownClientIsIgnored(t *testing.T) {
	h := newHarness(t)
	assert.NotPanics(t, func() {
		h.svc.HandleInbound(context.Background(), "nope", []byte(`{"type":"ping"}`))
	})
}
