package device

import "strings"

// UnknownLabel is returned when no platform or browser signal matches.
const UnknownLabel = "Unknown Device"

// Label derives a coarse device/browser label from a user agent string.
// Pure function of its input; always returns a label.
func Label(userAgent string) string {
	ua := strings.ToLower(userAgent)

	platform := platformFamily(ua)
	browser := browserFamily(ua)

	switch {
	case platform == "" && browser == "":
		return UnknownLabel
	case platform == "":
		return UnknownLabel + " - " + browser
	case browser == "":
		return platform
	}
	return platform + " - " + browser
}

func platformFamily(ua string) string {
	switch {
	case strings.Contains(ua, "iphone"):
		return "iPhone"
	case strings.Contains(ua, "ipad"):
		return "iPad"
	case strings.Contains(ua, "android"):
		return "Android Phone"
	case strings.Contains(ua, "windows"):
		return "Windows PC"
	case strings.Contains(ua, "mac os") || strings.Contains(ua, "macintosh"):
		return "Mac"
	case strings.Contains(ua, "linux"):
		return "Linux PC"
	}
	return ""
}

func browserFamily(ua string) string {
	// Order matters: Edge and Opera UAs also contain "chrome", and almost
	// everything contains "safari".
	switch {
	case strings.Contains(ua, "edg/") || strings.Contains(ua, "edge"):
		return "Edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "safari"):
		return "Safari"
	}
	return ""
}
