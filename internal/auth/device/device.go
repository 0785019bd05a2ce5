package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// Info is the parsed view of a client's User-Agent recorded alongside a session.
type Info struct {
	Browser     string
	OS          string
	Platform    string
	Mobile      bool
	Bot         bool
	DisplayName string
}

// Describe parses a User-Agent header into the attributes shown in session listings.
func Describe(userAgent string) Info {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return Info{DisplayName: unknownDevice}
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	info := Info{
		Browser:  strings.TrimSpace(browser),
		OS:       strings.TrimSpace(ua.OS()),
		Platform: strings.TrimSpace(ua.Platform()),
		Mobile:   ua.Mobile(),
		Bot:      ua.Bot(),
	}
	info.DisplayName = displayName(info)
	return info
}

// DisplayName returns "Browser on OS" (e.g. "Chrome on Intel Mac OS X 10_15_7").
// Mobile clients are labelled with their platform, e.g. "Safari on iPhone".
func DisplayName(userAgent string) string {
	return Describe(userAgent).DisplayName
}

func displayName(info Info) string {
	browser := info.Browser
	if browser == "" {
		browser = "Unknown Browser"
	}
	if info.Mobile && info.Platform != "" {
		return browser + " on " + info.Platform
	}
	os := info.OS
	if os == "" {
		os = "Unknown OS"
	}
	return browser + " on " + os
}
