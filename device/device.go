package device

import (
	"context"
	"strings"

	"github.com/MrEthical07/goSession/session"
	"github.com/mssola/useragent"
)

// Device types reported in session metadata.
const (
	TypeDesktop = "desktop"
	TypeMobile  = "mobile"
	TypeTablet  = "tablet"
	TypeBot     = "bot"
)

// Parse describes the client behind a User-Agent string. An empty string
// yields nil.
func Parse(userAgent string) *session.Device {
	if strings.TrimSpace(userAgent) == "" {
		return nil
	}
	ua := useragent.New(userAgent)

	browser, version := ua.Browser()
	if version != "" {
		browser += " " + version
	}
	osInfo := ua.OSInfo()
	os := osInfo.Name
	if osInfo.Version != "" {
		os += " " + osInfo.Version
	}

	kind := TypeDesktop
	switch {
	case ua.Bot():
		kind = TypeBot
	case isTablet(userAgent):
		kind = TypeTablet
	case ua.Mobile():
		kind = TypeMobile
	}

	return &session.Device{Browser: browser, OS: os, Type: kind}
}

func isTablet(ua string) bool {
	lower := strings.ToLower(ua)
	return strings.Contains(lower, "ipad") ||
		(strings.Contains(lower, "android") && !strings.Contains(lower, "mobile")) ||
		strings.Contains(lower, "tablet")
}

// Locator resolves an IP address to a city and country. GeoIP implements it.
type Locator interface {
	Locate(ip string) (city, country string, err error)
}

// Detector combines User-Agent parsing with optional geo lookup.
type Detector struct {
	geo Locator
}

// NewDetector returns a detector. geo may be nil to skip location lookup.
func NewDetector(geo Locator) *Detector {
	return &Detector{geo: geo}
}

// Detect never fails: a missing User-Agent or a failed lookup just leaves
// the corresponding fields empty. It returns nil when nothing is known.
func (d *Detector) Detect(_ context.Context, ip, userAgent string) *session.Device {
	dev := Parse(userAgent)
	if d == nil || d.geo == nil || ip == "" {
		return dev
	}
	city, country, err := d.geo.Locate(ip)
	if err != nil || (city == "" && country == "") {
		return dev
	}
	if dev == nil {
		dev = &session.Device{}
	}
	dev.City, dev.Country = city, country
	return dev
}
