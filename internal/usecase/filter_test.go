package usecase

import (
	"testing"
	"time"

	"hms-notification-service/internal/domain"

	"github.com/stretchr/testify/assert"
)

func at(hhmm string) time.Time {
	t, _ := time.Parse("15:04", hhmm)
	return time.Date(2026, 3, 10, t.Hour(), t.Minute(), 0, 0, time.UTC)
}

func TestMatches(t *testing.T) {
	def := domain.DefaultSubscription("u1")

	explicit := def.Clone()
	explicit.Types = []string{domain.TypeCriticalResult}
	explicit.AllTypes = false

	emptied := def.Clone()
	emptied.Types = []string{}
	emptied.AllTypes = false

	icu := def.Clone()
	icu.Department = "ICU"

	quiet := def.Clone()
	quiet.Preferences.QuietHours = &domain.QuietHours{Start: "12:00", End: "13:00"}

	lab := domain.NotificationMessage{Type: domain.TypeLabResult}
	critical := domain.NotificationMessage{Type: domain.TypeCriticalResult}
	icuMsg := domain.NotificationMessage{Type: domain.TypeEmergencyAlert, Department: "ICU"}
	erMsg := domain.NotificationMessage{Type: domain.TypeEmergencyAlert, Department: "ER"}

	cases := []struct {
		name string
		sub  domain.NotificationSubscription
		msg  domain.NotificationMessage
		now  time.Time
		want bool
	}{
		{"default matches every type", def, lab, at("10:00"), true},
		{"explicit list member", explicit, critical, at("10:00"), true},
		{"explicit list non-member", explicit, lab, at("10:00"), false},
		{"explicitly emptied list matches nothing", emptied, critical, at("10:00"), false},
		{"same department", icu, icuMsg, at("10:00"), true},
		{"cross department suppressed", icu, erMsg, at("10:00"), false},
		{"unscoped subscription gets any department", def, erMsg, at("10:00"), true},
		{"unscoped message reaches scoped subscription", icu, lab, at("10:00"), true},
		{"before quiet hours", quiet, lab, at("11:59"), true},
		{"quiet hours start inclusive", quiet, lab, at("12:00"), false},
		{"inside quiet hours", quiet, critical, at("12:30"), false},
		{"quiet hours end exclusive", quiet, lab, at("13:00"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Matches(tc.sub, tc.msg, tc.now))
		})
	}
}

func TestInQuietHoursDoesNotWrapMidnight(t *testing.T) {
	overnight := &domain.QuietHours{Start: "22:00", End: "06:00"}
	assert.False(t, InQuietHours(overnight, at("23:00")))
	assert.False(t, InQuietHours(overnight, at("03:00")))

	assert.False(t, InQuietHours(nil, at("03:00")))
	assert.False(t, InQuietHours(&domain.QuietHours{Start: "01:00"}, at("03:00")))
}
