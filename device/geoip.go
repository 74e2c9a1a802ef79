package device

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

var (
	ErrGeoIPNotConfigured = errors.New("geoip database not configured")
	ErrInvalidIP          = errors.New("invalid ip address")
)

// GeoIP looks up locations in a MaxMind GeoLite2/GeoIP2 City database.
type GeoIP struct {
	db *geoip2.Reader
}

// OpenGeoIP opens the database at path. The caller must Close it.
func OpenGeoIP(path string) (*GeoIP, error) {
	if path == "" {
		return nil, ErrGeoIPNotConfigured
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &GeoIP{db: db}, nil
}

// Locate returns English city and country names for ip, falling back to
// any available language.
func (g *GeoIP) Locate(ip string) (string, string, error) {
	if g == nil || g.db == nil {
		return "", "", ErrGeoIPNotConfigured
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	record, err := g.db.City(parsed)
	if err != nil {
		return "", "", fmt.Errorf("geoip: lookup: %w", err)
	}
	return pickName(record.City.Names), pickName(record.Country.Names), nil
}

func pickName(names map[string]string) string {
	if name, ok := names["en"]; ok {
		return name
	}
	for _, name := range names {
		return name
	}
	return ""
}

func (g *GeoIP) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}
