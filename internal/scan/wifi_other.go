//go:build !linux

package scan

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// WifiScanner is unavailable off Linux; nl80211 is a Linux interface.
type WifiScanner struct{}

// NewWifiScanner always fails on non-Linux platforms. Use the ARP
// scanner instead.
func NewWifiScanner(_ string, _ *zap.Logger) (*WifiScanner, error) {
	return nil, fmt.Errorf("wifi scanner requires Linux nl80211 support")
}

// Scan is never reachable; NewWifiScanner refuses to construct.
func (s *WifiScanner) Scan(_ context.Context) ([]Station, error) {
	return nil, fmt.Errorf("wifi scanner requires Linux nl80211 support")
}
