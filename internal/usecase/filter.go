package usecase

import (
	"slices"
	"time"

	"hms-notification-service/internal/domain"
)

// Matches reports whether msg may be pushed live to a connection holding sub.
//
// An empty Types list means "everything" only while AllTypes is set; an
// explicitly emptied list matches nothing.
func Matches(sub domain.NotificationSubscription, msg domain.NotificationMessage, now time.Time) bool {
	if len(sub.Types) > 0 {
		if !slices.Contains(sub.Types, msg.Type) {
			return false
		}
	} else if !sub.AllTypes {
		return false
	}

	if msg.Department != "" && sub.Department != "" && msg.Department != sub.Department {
		return false
	}

	return !InQuietHours(sub.Preferences.QuietHours, now)
}

// InQuietHours compares HH:MM wall-clock strings in now's location. The
// window is [start, end) and does not wrap past midnight.
func InQuietHours(q *domain.QuietHours, now time.Time) bool {
	if q == nil || q.Start == "" || q.End == "" {
		return false
	}
	cur := now.Format("15:04")
	return cur >= q.Start && cur < q.End
}
