// Package geo enriches device info with GeoLite2 lookups on the client IP.
package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// Info is the subset of GeoIP data attached to device info.
type Info struct {
	Country     string
	CountryCode string
	Region      string
	City        string
	Timezone    string
}

// Provider resolves IPs against a MaxMind GeoLite2 database.
type Provider struct {
	reader *maxminddb.Reader
}

// NewProvider opens the GeoLite2 database at the given path.
func NewProvider(dbPath string) (*Provider, error) {
	reader, err := maxminddb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	return &Provider{reader: reader}, nil
}

// Lookup returns geo information for an IP address.
func (p *Provider) Lookup(ip string) (*Info, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("invalid IP address: %s", ip)
	}

	var record struct {
		Country struct {
			ISOCode string            `maxminddb:"iso_code"`
			Names   map[string]string `maxminddb:"names"`
		} `maxminddb:"country"`
		Subdivisions []struct {
			Names map[string]string `maxminddb:"names"`
		} `maxminddb:"subdivisions"`
		City struct {
			Names map[string]string `maxminddb:"names"`
		} `maxminddb:"city"`
		Location struct {
			TimeZone string `maxminddb:"time_zone"`
		} `maxminddb:"location"`
	}
	if err := p.reader.Lookup(parsed, &record); err != nil {
		return nil, err
	}

	info := &Info{
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.ISOCode,
		City:        record.City.Names["en"],
		Timezone:    record.Location.TimeZone,
	}
	if len(record.Subdivisions) > 0 {
		info.Region = record.Subdivisions[0].Names["en"]
	}
	return info, nil
}

// Close closes the GeoIP database.
func (p *Provider) Close() error {
	if p.reader != nil {
		return p.reader.Close()
	}
	return nil
}
