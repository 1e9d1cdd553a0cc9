//
//  internal/requestinfo/requestinfo.go
//
//  Lightweight per-request metadata: user-agent fingerprint and IP
//  geolocation, collected once and attached to the request context for
//  the access log.  The structs are inert; they are safe to log or
//  JSON-encode.
//
//  Dependencies
//  • github.com/avct/uasurfer          (UA parsing)
//  • github.com/oschwald/geoip2-golang (MaxMind lookup)
//

package requestinfo

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/avct/uasurfer"
	"github.com/oschwald/geoip2-golang"
)

// UA holds the parsed user-agent properties the access log records.
type UA struct {
	Raw     string
	Browser string // "Chrome", "Firefox", "Safari", …
	OS      string // "macOS", "Windows", "Android", …
	Device  string // "Desktop", "Phone", "Tablet", …
	IsBot   bool
}

// Geo holds best-effort IP geolocation hints; empty when the database
// has no match or is not loaded.
type Geo struct {
	IP         net.IP
	CountryISO string
}

// RequestInfo is stored on the request context by Enrich.
type RequestInfo struct {
	UA        UA
	Geo       Geo
	Timestamp time.Time
}

// geoReader is a singleton MaxMind handle, safe for concurrent reads.
// Nil when geolocation is disabled.
var geoReader *geoip2.Reader

// InitGeo opens the GeoLite2-City database.  Call from main() before the
// server starts; an empty path leaves geolocation disabled.
func InitGeo(dbPath string) error {
	if dbPath == "" {
		return nil
	}
	r, err := geoip2.Open(dbPath)
	if err != nil {
		return err
	}
	geoReader = r
	return nil
}

type ctxKey struct{}

// FromContext returns the pointer stored by Enrich, or nil.
func FromContext(ctx context.Context) *RequestInfo {
	v, _ := ctx.Value(ctxKey{}).(*RequestInfo)
	return v
}

//
//  internal helpers
//

func parseUA(uaHeader string) UA {
	u := uasurfer.Parse(uaHeader)

	osName := strings.TrimPrefix(u.OS.Name.String(), "OS")
	if osName == "MacOSX" {
		osName = "macOS"
	}

	return UA{
		Raw:     uaHeader,
		Browser: strings.TrimPrefix(u.Browser.Name.String(), "Browser"),
		OS:      osName,
		Device:  deviceTypeToString(u.DeviceType),
		IsBot:   u.IsBot(),
	}
}

func deviceTypeToString(dt uasurfer.DeviceType) string {
	switch dt {
	case uasurfer.DeviceComputer:
		return "Desktop"
	case uasurfer.DevicePhone:
		return "Phone"
	case uasurfer.DeviceTablet:
		return "Tablet"
	case uasurfer.DeviceConsole:
		return "Console"
	case uasurfer.DeviceWearable:
		return "Wearable"
	case uasurfer.DeviceTV:
		return "TV"
	default:
		return "Unknown"
	}
}

func lookupGeo(ip net.IP) Geo {
	if geoReader == nil || ip == nil {
		return Geo{IP: ip}
	}
	rec, err := geoReader.Country(ip)
	if err != nil {
		return Geo{IP: ip}
	}
	return Geo{IP: ip, CountryISO: rec.Country.IsoCode}
}
