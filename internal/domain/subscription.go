package domain

import (
	"slices"
	"time"
)

type QuietHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Preferences struct {
	EnableSound bool        `json:"enableSound"`
	EnableEmail bool        `json:"enableEmail"`
	EnableSMS   bool        `json:"enableSMS"`
	QuietHours  *QuietHours `json:"quietHours,omitempty"`
}

// NotificationSubscription is a user's delivery preferences.
//
// AllTypes marks the system default "every type" selection. An empty Types
// list only means "no restriction" while AllTypes is set; once a user sends an
// explicit types list, an empty list suppresses everything.
type NotificationSubscription struct {
	UserID      string      `json:"userId"`
	Types       []string    `json:"types"`
	AllTypes    bool        `json:"allTypes"`
	Channels    []string    `json:"channels"`
	Department  string      `json:"department,omitempty"`
	Preferences Preferences `json:"preferences"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// DefaultSubscription is what a user gets before any explicit update: all
// types, live channel only.
func DefaultSubscription(userID string) NotificationSubscription {
	return NotificationSubscription{
		UserID:   userID,
		Types:    []string{},
		AllTypes: true,
		Channels: []string{ChannelWebSocket},
		Preferences: Preferences{
			EnableSound: true,
			EnableEmail: true,
			EnableSMS:   false,
		},
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s NotificationSubscription) Clone() NotificationSubscription {
	out := s
	out.Types = slices.Clone(s.Types)
	out.Channels = slices.Clone(s.Channels)
	if s.Preferences.QuietHours != nil {
		q := *s.Preferences.QuietHours
		out.Preferences.QuietHours = &q
	}
	return out
}

// HasChannel reports whether channel is listed.
func (s NotificationSubscription) HasChannel(channel string) bool {
	return slices.Contains(s.Channels, channel)
}

// SubscriptionPatch is a partial subscription sent by a client. Nil fields are
// left untouched; Preferences replaces the stored preferences wholesale.
type SubscriptionPatch struct {
	Types       *[]string    `json:"types,omitempty"`
	AllTypes    *bool        `json:"allTypes,omitempty"`
	Channels    *[]string    `json:"channels,omitempty"`
	Department  *string      `json:"department,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// Apply shallow-merges p into s and returns the result.
func (p SubscriptionPatch) Apply(s NotificationSubscription, now time.Time) NotificationSubscription {
	out := s.Clone()
	if p.Types != nil {
		out.Types = dedupe(*p.Types)
		out.AllTypes = false
	}
	if p.AllTypes != nil {
		out.AllTypes = *p.AllTypes
	}
	if p.Channels != nil {
		out.Channels = dedupe(*p.Channels)
	}
	if p.Department != nil {
		out.Department = *p.Department
	}
	if p.Preferences != nil {
		prefs := *p.Preferences
		if prefs.QuietHours != nil {
			q := *prefs.QuietHours
			prefs.QuietHours = &q
		}
		out.Preferences = prefs
	}
	out.UpdatedAt = now
	return out
}

// dedupe keeps first occurrences, preserving order.
func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
