// Package config manages gdp-router daemon configuration using koanf/v2.
//
// Supports YAML files and environment variable overrides.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dantte-lp/gdp-router/internal/aead"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete gdp-router configuration for one node.
type Config struct {
	// Role selects which pipeline this node runs: "switch" or "rib".
	Role string `koanf:"role"`

	// GDPIndex identifies this node's position in the static routes file
	// (the node's own name is the GDPIndex-th route entry).
	GDPIndex uint8 `koanf:"gdp_index"`

	// UseDefaultRoute is loaded from use_default_route. The switch pipeline
	// does not read it: a forwarding-table miss is always answered with a
	// Nack and a RIB query, whatever its value.
	UseDefaultRoute bool `koanf:"use_default_route"`

	// RoutesFile is the path to the static routes YAML file (spec §6).
	RoutesFile string `koanf:"routes_file"`

	AEAD    AEADConfig    `koanf:"aead"`
	Ports   PortsConfig   `koanf:"ports"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// AEADConfig holds the hex-encoded key and nonce for the GDP wrapper's
// AES-256-GCM layer. Empty values fall back to aead.NewDefault's fixed
// key/nonce (spec §9: "preserved as the default, overridable via config").
type AEADConfig struct {
	// KeyHex is the 32-byte AEAD key, hex-encoded (64 hex characters).
	KeyHex string `koanf:"key_hex"`

	// NonceHex is the 12-byte AEAD nonce, hex-encoded (24 hex characters).
	NonceHex string `koanf:"nonce_hex"`
}

// Cipher constructs the aead.Cipher this config describes: the fixed
// default when both fields are empty, or a cipher built from the
// configured key/nonce otherwise.
func (c AEADConfig) Cipher() (*aead.Cipher, error) {
	if c.KeyHex == "" && c.NonceHex == "" {
		return aead.NewDefault()
	}

	key, err := hex.DecodeString(c.KeyHex)
	if err != nil {
		return nil, fmt.Errorf("aead.key_hex: %w", err)
	}
	nonce, err := hex.DecodeString(c.NonceHex)
	if err != nil {
		return nil, fmt.Errorf("aead.nonce_hex: %w", err)
	}
	return aead.NewCipher(key, nonce)
}

// PortsConfig names the network interfaces this node attaches its port
// queues to (spec §6: "two named ports eth1/eth2").
type PortsConfig struct {
	// Switch is the interface a switch-role node forwards GDP traffic on.
	Switch string `koanf:"switch"`

	// RIB is the interface a RIB-role node answers RibGet queries on.
	RIB string `koanf:"rib"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults. The
// AEAD key/nonce are left empty, which resolves to the fixed default
// cipher (spec §9).
func DefaultConfig() *Config {
	return &Config{
		Role:            "switch",
		UseDefaultRoute: false,
		RoutesFile:      "routes.yaml",
		Ports: PortsConfig{
			Switch: "eth1",
			RIB:    "eth2",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for gdp-router configuration.
// Variables are named GDP_<section>_<key>, e.g., GDP_PORTS_SWITCH.
const envPrefix = "GDP_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (GDP_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms GDP_PORTS_SWITCH -> ports.switch.
// Strips the GDP_ prefix, lowercases, and replaces the first _ with a .
// (role/gdp_index/routes_file/use_default_route have no nested section and
// keep their remaining underscores).
func envKeyMapper(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if i := strings.Index(s, "_"); i >= 0 {
		for _, section := range []string{"aead", "ports", "log", "metrics"} {
			if s[:i] == section {
				return section + "." + s[i+1:]
			}
		}
	}
	return s
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"role":              defaults.Role,
		"gdp_index":         defaults.GDPIndex,
		"use_default_route": defaults.UseDefaultRoute,
		"routes_file":       defaults.RoutesFile,
		"ports.switch":      defaults.Ports.Switch,
		"ports.rib":         defaults.Ports.RIB,
		"log.level":         defaults.Log.Level,
		"log.format":        defaults.Log.Format,
		"metrics.addr":      defaults.Metrics.Addr,
		"metrics.path":      defaults.Metrics.Path,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrInvalidRole indicates role is neither "switch" nor "rib".
	ErrInvalidRole = errors.New("role must be switch or rib")

	// ErrEmptyRoutesFile indicates routes_file is empty.
	ErrEmptyRoutesFile = errors.New("routes_file must not be empty")

	// ErrEmptySwitchPort indicates a switch-role node has no switch port configured.
	ErrEmptySwitchPort = errors.New("ports.switch must not be empty for role switch")

	// ErrEmptyRIBPort indicates a rib-role node has no RIB port configured.
	ErrEmptyRIBPort = errors.New("ports.rib must not be empty for role rib")

	// ErrInvalidAEADKeyLen indicates aead.key_hex decodes to the wrong length.
	ErrInvalidAEADKeyLen = errors.New("aead.key_hex must decode to 32 bytes")

	// ErrInvalidAEADNonceLen indicates aead.nonce_hex decodes to the wrong length.
	ErrInvalidAEADNonceLen = errors.New("aead.nonce_hex must decode to 12 bytes")
)

// ValidRoles lists the recognized role strings.
var ValidRoles = map[string]bool{
	"switch": true,
	"rib":    true,
}

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if !ValidRoles[cfg.Role] {
		return fmt.Errorf("role %q: %w", cfg.Role, ErrInvalidRole)
	}
	if cfg.RoutesFile == "" {
		return ErrEmptyRoutesFile
	}
	if cfg.Role == "switch" && cfg.Ports.Switch == "" {
		return ErrEmptySwitchPort
	}
	if cfg.Role == "rib" && cfg.Ports.RIB == "" {
		return ErrEmptyRIBPort
	}
	if err := validateAEAD(cfg.AEAD); err != nil {
		return err
	}
	return nil
}

func validateAEAD(a AEADConfig) error {
	if a.KeyHex == "" && a.NonceHex == "" {
		return nil
	}
	key, err := hex.DecodeString(a.KeyHex)
	if err != nil {
		return fmt.Errorf("aead.key_hex: %w", err)
	}
	if len(key) != aead.KeySize {
		return fmt.Errorf("aead.key_hex decodes to %d bytes: %w", len(key), ErrInvalidAEADKeyLen)
	}
	nonce, err := hex.DecodeString(a.NonceHex)
	if err != nil {
		return fmt.Errorf("aead.nonce_hex: %w", err)
	}
	if len(nonce) != aead.NonceSize {
		return fmt.Errorf("aead.nonce_hex decodes to %d bytes: %w", len(nonce), ErrInvalidAEADNonceLen)
	}
	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
