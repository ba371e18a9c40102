//go:build linux

package scan

import (
	"context"
	"fmt"

	"github.com/mdlayher/wifi"
	"go.uber.org/zap"
)

// WifiScanner observes associated wireless stations via nl80211. It is
// only useful on hosts that are themselves the access point; stations
// are whatever the radio currently has associated.
type WifiScanner struct {
	iface  string
	logger *zap.Logger
}

// Compile-time interface guard.
var _ Scanner = (*WifiScanner)(nil)

// NewWifiScanner creates an nl80211 station scanner. An empty iface
// queries every wireless interface on the host.
func NewWifiScanner(iface string, logger *zap.Logger) (*WifiScanner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WifiScanner{iface: iface, logger: logger}, nil
}

// Scan opens a fresh nl80211 connection, collects station info from the
// matching interface(s), and closes the connection.
func (s *WifiScanner) Scan(_ context.Context) ([]Station, error) {
	client, err := wifi.New()
	if err != nil {
		return nil, fmt.Errorf("open nl80211: %w", err)
	}
	defer client.Close()

	ifis, err := client.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list wireless interfaces: %w", err)
	}

	var stations []Station
	matched := false
	for _, ifi := range ifis {
		if ifi.Name == "" {
			continue // PHY-only entry
		}
		if s.iface != "" && ifi.Name != s.iface {
			continue
		}
		matched = true

		infos, err := client.StationInfo(ifi)
		if err != nil {
			return nil, fmt.Errorf("station info for %s: %w", ifi.Name, err)
		}
		s.logger.Debug("queried wireless interface",
			zap.String("interface", ifi.Name),
			zap.Int("stations", len(infos)))
		for _, info := range infos {
			stations = append(stations, Station{MAC: info.HardwareAddr.String()})
		}
	}

	if !matched {
		if s.iface != "" {
			return nil, fmt.Errorf("wireless interface %q not found", s.iface)
		}
		return nil, fmt.Errorf("no wireless interfaces found")
	}
	return stations, nil
}
