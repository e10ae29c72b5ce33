package domain

import "strings"

type Platform string

const (
	PlatformMobile  Platform = "mobile"
	PlatformTablet  Platform = "tablet"
	PlatformDesktop Platform = "desktop"
)

// ClientMetadata is derived once at connect time and never changes.
type ClientMetadata struct {
	UserAgent string   `json:"userAgent"`
	Platform  Platform `json:"platform"`
}

func NewClientMetadata(userAgent string) ClientMetadata {
	return ClientMetadata{UserAgent: userAgent, Platform: DetectPlatform(userAgent)}
}

// DetectPlatform classifies a User-Agent header. Tablets are checked first
// because iPad and Android tablet agents also carry mobile markers.
func DetectPlatform(userAgent string) Platform {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad"), strings.Contains(ua, "tablet"):
		return PlatformTablet
	case strings.Contains(ua, "mobi"), strings.Contains(ua, "android"), strings.Contains(ua, "iphone"):
		return PlatformMobile
	default:
		return PlatformDesktop
	}
}
