package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"hms-notification-service/internal/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectPlatform(t *testing.T) {
	cases := map[string]Platform{
		"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)":            PlatformTablet,
		"Mozilla/5.0 (Linux; Android 14; SM-X710) Tablet":          PlatformTablet,
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)":   PlatformMobile,
		"Mozilla/5.0 (Linux; Android 14; Pixel 8) Mobile Safari":   PlatformMobile,
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/126.0.0": PlatformDesktop,
		"": PlatformDesktop,
	}
	for ua, want := range cases {
		assert.Equal(t, want, DetectPlatform(ua), ua)
	}
}

func TestSubscriptionPatchApply(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	base := DefaultSubscription("u1")

	types := []string{TypeLabResult, TypeLabResult, TypeCriticalResult}
	dept := "ICU"
	got := SubscriptionPatch{Types: &types, Department: &dept}.Apply(base, now)

	assert.Equal(t, []string{TypeLabResult, TypeCriticalResult}, got.Types)
	assert.False(t, got.AllTypes)
	assert.Equal(t, "ICU", got.Department)
	assert.Equal(t, []string{ChannelWebSocket}, got.Channels, "untouched fields survive")
	assert.True(t, got.Preferences.EnableEmail)
	assert.Equal(t, now, got.UpdatedAt)

	assert.True(t, base.AllTypes, "the input is not mutated")
	assert.Empty(t, base.Types)
}

func TestSubscriptionCloneIsDeep(t *testing.T) {
	s := DefaultSubscription("u1")
	s.Preferences.QuietHours = &QuietHours{Start: "22:00", End: "23:00"}
	c := s.Clone()

	c.Channels[0] = ChannelSMS
	c.Preferences.QuietHours.Start = "00:00"
	assert.Equal(t, ChannelWebSocket, s.Channels[0])
	assert.Equal(t, "22:00", s.Preferences.QuietHours.Start)
}

func TestDecodeInboundFrame(t *testing.T) {
	f, err := DecodeInboundFrame([]byte(`{"type":"mark_as_read","notificationId":"ntf_1"}`))
	require.NoError(t, err)
	assert.Equal(t, FrameMarkAsRead, f.Type)
	assert.Equal(t, "ntf_1", f.NotificationID)

	f, err = DecodeInboundFrame([]byte(`{"type":"update_subscription","subscription":{"channels":["sms"]}}`))
	require.NoError(t, err)
	require.NotNil(t, f.Subscription)
	require.NotNil(t, f.Subscription.Channels)
	assert.Nil(t, f.Subscription.Types)

	for _, raw := range []string{`nope`, `{}`, `{"type":""}`, `[1,2]`} {
		_, err := DecodeInboundFrame([]byte(raw))
		assert.True(t, errors.Is(err, ErrMalformedFrame), raw)
	}
}

func TestNotificationInputValidate(t *testing.T) {
	valid := NotificationInput{Type: TypeSystem, Title: "Drill", UserID: "u1"}
	require.NoError(t, valid.Validate())

	cases := map[string]struct {
		mutate func(*NotificationInput)
		want   error
	}{
		"missing type":     {func(in *NotificationInput) { in.Type = " " }, xerrors.ErrMissingType},
		"missing title":    {func(in *NotificationInput) { in.Title = "" }, xerrors.ErrMissingTitle},
		"unknown priority": {func(in *NotificationInput) { in.Priority = "urgent" }, xerrors.ErrUnknownPriority},
		"missing user":     {func(in *NotificationInput) { in.UserID = "" }, xerrors.ErrMissingRecipient},
		"infinite value":   {func(in *NotificationInput) { in.Data = map[string]any{"value": math.Inf(1)} }, xerrors.ErrUnencodableData},
		"channel in data":  {func(in *NotificationInput) { in.Data = map[string]any{"c": make(chan int)} }, xerrors.ErrUnencodableData},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			err := in.Validate()
			assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	tmpl := valid
	tmpl.UserID = ""
	assert.NoError(t, tmpl.ValidateTemplate())
}

func TestBuildCopiesAndDefaults(t *testing.T) {
	exp := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	created := exp.Add(-time.Hour)
	inputExp := exp
	in := NotificationInput{Type: TypeSystem, Title: "t", Data: map[string]any{"k": "v"}, ExpiresAt: &inputExp}

	msg := in.Build("ntf_1", created)
	assert.Equal(t, PriorityNormal, msg.Priority)
	assert.Equal(t, "ntf_1", msg.ID)
	assert.Equal(t, created, msg.CreatedAt)

	in.Data["k"] = "changed"
	*in.ExpiresAt = exp.Add(time.Hour)
	assert.Equal(t, "v", msg.Data["k"])
	assert.Equal(t, exp, *msg.ExpiresAt)

	assert.False(t, msg.Expired(exp.Add(-time.Nanosecond)))
	assert.True(t, msg.Expired(exp))
	assert.False(t, NotificationMessage{}.Expired(exp))
}
