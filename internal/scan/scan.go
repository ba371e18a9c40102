// Package scan observes the local network and reports the hardware
// addresses of currently present devices.
//
// Two backends are provided: an ARP-table scanner that works on any
// host attached to the LAN, and an nl80211 station scanner for hosts
// that are themselves the wireless access point. Both are stateless
// between calls; each Scan is an independent snapshot.
package scan

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// Station is a device observed on the network during one scan.
type Station struct {
	// MAC is the hardware address in canonical lowercase colon form.
	MAC string
	// IP is the station's IPv4 address when the backend knows it
	// (ARP scanner). Empty otherwise.
	IP string
}

// Scanner produces a snapshot of the devices currently present on the
// local network. Implementations must be safe for repeated calls from
// a single goroutine and should return promptly.
type Scanner interface {
	Scan(ctx context.Context) ([]Station, error)
}

// NormalizeMAC parses a hardware address in any common textual form
// (aa:bb:cc:dd:ee:ff, AA-BB-CC-DD-EE-FF, aabb.ccdd.eeff, bare 12-digit
// hex) and returns it in canonical lowercase colon-separated form.
func NormalizeMAC(s string) (string, error) {
	s = strings.TrimSpace(s)

	// Insert colons into bare hex so net.ParseMAC accepts it.
	if len(s) == 12 && !strings.ContainsAny(s, ":-.") {
		var b strings.Builder
		for i := 0; i < 12; i += 2 {
			if i > 0 {
				b.WriteByte(':')
			}
			b.WriteString(s[i : i+2])
		}
		s = b.String()
	}

	hw, err := net.ParseMAC(s)
	if err != nil {
		return "", fmt.Errorf("invalid MAC address %q: %w", s, err)
	}
	if len(hw) != 6 {
		return "", fmt.Errorf("invalid MAC address %q: want 48-bit address", s)
	}
	return hw.String(), nil
}

// AddressSet converts a scan result into the set of observed hardware
// addresses consumed by the presence controller.
func AddressSet(stations []Station) map[string]struct{} {
	set := make(map[string]struct{}, len(stations))
	for _, st := range stations {
		set[st.MAC] = struct{}{}
	}
	return set
}
