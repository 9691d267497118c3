package geo

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Provider resolves a client IP to a location label for work-item
// enrichment. Implementations return an empty label when the IP cannot
// be located; the aggregation layer defaults empty locations to
// "Unknown".
type Provider interface {
	Locate(ip string) (string, error)
	Close() error
}

// MaxMindProvider implements Provider using a MaxMind GeoLite2 database.
type MaxMindProvider struct {
	reader *geoip2.Reader
}

// NewMaxMindProvider opens the GeoLite2 database at dbPath.
func NewMaxMindProvider(dbPath string) (*MaxMindProvider, error) {
	reader, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	return &MaxMindProvider{reader: reader}, nil
}

// Locate returns a "City, Country" label for an IP address. The city
// part is omitted when the database has no city record.
func (m *MaxMindProvider) Locate(ip string) (string, error) {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return "", fmt.Errorf("invalid IP address: %s", ip)
	}

	record, err := m.reader.City(parsedIP)
	if err != nil {
		return "", err
	}

	country := record.Country.Names["en"]
	city := record.City.Names["en"]

	switch {
	case city != "" && country != "":
		return city + ", " + country, nil
	case country != "":
		return country, nil
	default:
		return "", nil
	}
}

// Close closes the GeoIP database.
func (m *MaxMindProvider) Close() error {
	if m.reader != nil {
		return m.reader.Close()
	}
	return nil
}

// ClientIP extracts the originating client IP from proxy headers,
// falling back to the remote address.
func ClientIP(remoteAddr, forwardedFor, realIP string) string {
	if forwardedFor != "" {
		parts := strings.Split(forwardedFor, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
