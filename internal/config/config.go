// Package config loads and validates the absenced configuration.
//
// Configuration is environment-first (ABSENCED_* plus the conventional
// MQTT_* names) with an optional YAML file layered underneath. All
// required values are validated at startup; the process never enters
// the watch loop with a partial configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/gntouts/absenced/internal/scan"
)

// Scanner backend names accepted for the "scanner" key.
const (
	ScannerARP  = "arp"
	ScannerWifi = "wifi"
)

// DefaultHTTPAddr is the status server listen address when none is
// configured. An explicitly empty http_addr disables the server.
const DefaultHTTPAddr = ":8420"

// MQTT holds the messaging broker endpoint parameters.
type MQTT struct {
	Broker   string
	Port     int
	Topic    string
	ClientID string
}

// Config is the full absenced configuration, immutable after Load.
type Config struct {
	// Triggers are the MAC addresses whose presence defeats the
	// absence condition. Stored in canonical lowercase colon form.
	Triggers []string

	// Delay is the observation cycle period in seconds.
	Delay int

	// Retries is the consecutive-absence threshold. The notification
	// fires on the cycle where the absence count first exceeds it.
	Retries int

	// Scanner selects the observation backend: "arp" or "wifi".
	Scanner string

	// ARPWarmupAddr is an optional address (typically the LAN
	// broadcast) pinged before each ARP table read so idle stations
	// reappear. Empty skips the warm-up.
	ARPWarmupAddr string

	// WifiInterface is the nl80211 interface for the wifi scanner.
	// Empty means "the only wireless interface on the host".
	WifiInterface string

	// HTTPAddr is the status server listen address. Empty disables it.
	HTTPAddr string

	MQTT MQTT
}

// envBindings maps config keys to the environment variables that feed
// them. The MQTT_* names follow the common convention used by other
// broker clients so deployments can share one env block.
var envBindings = map[string]string{
	"triggers":        "ABSENCED_TRIGGERS",
	"delay":           "ABSENCED_DELAY",
	"retries":         "ABSENCED_RETRIES",
	"scanner":         "ABSENCED_SCANNER",
	"arp_warmup_addr": "ABSENCED_ARP_WARMUP",
	"wifi_interface":  "ABSENCED_WIFI_INTERFACE",
	"http_addr":       "ABSENCED_HTTP_ADDR",
	"mqtt.broker":     "MQTT_BROKER",
	"mqtt.port":       "MQTT_PORT",
	"mqtt.topic":      "MQTT_TOPIC",
	"mqtt.client_id":  "MQTT_CLIENT",
}

// Load reads configuration from the environment and the optional YAML
// file at path (empty path skips the file), then validates it.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	// An explicitly empty env var is meaningful here (empty
	// ABSENCED_HTTP_ADDR disables the status server).
	v.AllowEmptyEnv(true)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	v.SetDefault("scanner", ScannerARP)
	if !v.IsSet("http_addr") {
		v.SetDefault("http_addr", DefaultHTTPAddr)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
	}

	return fromViper(v)
}

// fromViper builds and validates a Config from an already-populated
// viper instance. Explicit getters are used rather than Unmarshal,
// which does not see values that exist only as bound env vars.
func fromViper(v *viper.Viper) (*Config, error) {
	triggers, err := parseTriggers(v.Get("triggers"))
	if err != nil {
		return nil, err
	}

	cfg := Config{
		Triggers:      triggers,
		Delay:         v.GetInt("delay"),
		Retries:       v.GetInt("retries"),
		Scanner:       v.GetString("scanner"),
		ARPWarmupAddr: v.GetString("arp_warmup_addr"),
		WifiInterface: v.GetString("wifi_interface"),
		HTTPAddr:      v.GetString("http_addr"),
		MQTT: MQTT{
			Broker:   v.GetString("mqtt.broker"),
			Port:     v.GetInt("mqtt.port"),
			Topic:    v.GetString("mqtt.topic"),
			ClientID: v.GetString("mqtt.client_id"),
		},
	}

	if err := cfg.validate(v); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parseTriggers accepts either a comma-separated string (environment
// form) or a list (YAML form) and returns canonical MAC addresses.
func parseTriggers(raw any) ([]string, error) {
	var items []string
	switch val := raw.(type) {
	case nil:
		return nil, fmt.Errorf("triggers: required, set ABSENCED_TRIGGERS")
	case string:
		items = strings.Split(val, ",")
	case []string:
		items = val
	case []any:
		for _, e := range val {
			items = append(items, fmt.Sprint(e))
		}
	default:
		return nil, fmt.Errorf("triggers: unsupported type %T", raw)
	}

	var macs []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		mac, err := scan.NormalizeMAC(item)
		if err != nil {
			return nil, fmt.Errorf("triggers: %w", err)
		}
		macs = append(macs, mac)
	}
	if len(macs) == 0 {
		return nil, fmt.Errorf("triggers: at least one MAC address is required")
	}
	return macs, nil
}

func (c *Config) validate(v *viper.Viper) error {
	if !v.IsSet("delay") {
		return fmt.Errorf("delay: required, set ABSENCED_DELAY")
	}
	if c.Delay <= 0 {
		return fmt.Errorf("delay: must be a positive number of seconds, got %d", c.Delay)
	}
	if !v.IsSet("retries") {
		return fmt.Errorf("retries: required, set ABSENCED_RETRIES")
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries: must be non-negative, got %d", c.Retries)
	}
	if c.Scanner != ScannerARP && c.Scanner != ScannerWifi {
		return fmt.Errorf("scanner: must be %q or %q, got %q", ScannerARP, ScannerWifi, c.Scanner)
	}
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker: required, set MQTT_BROKER")
	}
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		return fmt.Errorf("mqtt.port: must be in 1-65535, got %d", c.MQTT.Port)
	}
	if c.MQTT.Topic == "" {
		return fmt.Errorf("mqtt.topic: required, set MQTT_TOPIC")
	}
	if c.MQTT.ClientID == "" {
		return fmt.Errorf("mqtt.client_id: required, set MQTT_CLIENT")
	}
	return nil
}
