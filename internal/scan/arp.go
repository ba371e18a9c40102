package scan

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
)

const defaultWarmupTimeout = 2 * time.Second

// ARPScannerConfig configures an ARPScanner.
type ARPScannerConfig struct {
	// WarmupAddr is an optional address to ping before reading the
	// ARP table, typically the LAN broadcast address. Idle stations
	// answer the probe and reappear in the table before the read.
	// Empty skips the warm-up.
	WarmupAddr string

	// WarmupTimeout bounds the warm-up probe. Defaults to 2s.
	WarmupTimeout time.Duration

	Logger *zap.Logger
}

// ARPScanner reads the operating system's ARP table to observe which
// devices are currently present on the local network.
type ARPScanner struct {
	warmupAddr    string
	warmupTimeout time.Duration
	logger        *zap.Logger

	// readTable is swapped in tests to avoid touching the host.
	readTable func(ctx context.Context) (string, error)
}

// Compile-time interface guard.
var _ Scanner = (*ARPScanner)(nil)

// NewARPScanner creates an ARP-table scanner.
func NewARPScanner(cfg ARPScannerConfig) *ARPScanner {
	if cfg.WarmupTimeout <= 0 {
		cfg.WarmupTimeout = defaultWarmupTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &ARPScanner{
		warmupAddr:    cfg.WarmupAddr,
		warmupTimeout: cfg.WarmupTimeout,
		logger:        cfg.Logger,
		readTable:     readSystemARPTable,
	}
}

// Scan returns the stations currently listed in the ARP table.
func (s *ARPScanner) Scan(ctx context.Context) ([]Station, error) {
	if s.warmupAddr != "" {
		s.warmup(ctx)
	}

	raw, err := s.readTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("read arp table: %w", err)
	}
	return ParseARPTable(raw, runtime.GOOS), nil
}

// warmup sends a single ping to refresh ARP entries for stations that
// have been idle. Failures are expected (broadcast pings are often
// unanswered or unprivileged) and never abort the scan.
func (s *ARPScanner) warmup(ctx context.Context) {
	pinger, err := probing.NewPinger(s.warmupAddr)
	if err != nil {
		s.logger.Debug("arp warm-up skipped", zap.String("addr", s.warmupAddr), zap.Error(err))
		return
	}
	pinger.Count = 1
	pinger.Timeout = s.warmupTimeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	if err := pinger.RunWithContext(ctx); err != nil {
		s.logger.Debug("arp warm-up probe failed", zap.String("addr", s.warmupAddr), zap.Error(err))
	}
}

// readSystemARPTable returns the host's ARP table in its native text
// form: /proc/net/arp on Linux, `arp -a` output elsewhere.
func readSystemARPTable(ctx context.Context) (string, error) {
	if runtime.GOOS == "linux" {
		data, err := os.ReadFile("/proc/net/arp")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	out, err := exec.CommandContext(ctx, "arp", "-a").Output()
	if err != nil {
		return "", fmt.Errorf("arp -a: %w", err)
	}
	return string(out), nil
}

// ParseARPTable parses platform-specific ARP table output into
// stations. Incomplete entries and the broadcast address are skipped.
// Unknown platforms yield an empty result.
func ParseARPTable(output, platform string) []Station {
	switch platform {
	case "linux":
		return parseLinuxARP(output)
	case "windows":
		return parseWindowsARP(output)
	case "darwin":
		return parseDarwinARP(output)
	default:
		return nil
	}
}

// parseLinuxARP parses /proc/net/arp. Format:
//
//	IP address  HW type  Flags  HW address  Mask  Device
//
// Flags 0x0 marks an incomplete entry.
func parseLinuxARP(output string) []Station {
	var stations []Station
	for i, line := range strings.Split(output, "\n") {
		if i == 0 {
			continue // header
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		if fields[2] == "0x0" {
			continue
		}
		stations = appendStation(stations, fields[0], fields[3])
	}
	return stations
}

// parseWindowsARP parses `arp -a` output with dash-separated MACs.
func parseWindowsARP(output string) []Station {
	var stations []Station
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if !strings.Contains(fields[1], "-") {
			continue
		}
		stations = appendStation(stations, fields[0], fields[1])
	}
	return stations
}

// parseDarwinARP parses `arp -a` output of the form:
//
//	? (192.168.1.1) at aa:bb:cc:dd:ee:ff on en0 ifscope [ethernet]
func parseDarwinARP(output string) []Station {
	var stations []Station
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[2] != "at" {
			continue
		}
		ip := strings.Trim(fields[1], "()")
		stations = appendStation(stations, ip, fields[3])
	}
	return stations
}

// appendStation normalizes and filters one parsed entry. Unparseable
// addresses, the broadcast address, and all-zero entries are dropped.
func appendStation(stations []Station, ip, rawMAC string) []Station {
	mac, err := NormalizeMAC(rawMAC)
	if err != nil {
		return stations
	}
	if mac == "ff:ff:ff:ff:ff:ff" || mac == "00:00:00:00:00:00" {
		return stations
	}
	return append(stations, Station{MAC: mac, IP: ip})
}
