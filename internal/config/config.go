// Package config holds the stealth-lock configuration: which PAM service
// profiles to try and in what order, how the fallback probe runs, and how
// the unlock agent listens and signs tokens.
package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Environment variable names
const (
	EnvDevMode      = "STEALTHLOCK_DEV"           // Set to "1" for development mode
	EnvConfigDir    = "STEALTHLOCK_CONFIG_DIR"    // Override config directory
	EnvProfiles     = "STEALTHLOCK_PROFILES"      // Comma-separated PAM service profiles
	EnvProbeMode    = "STEALTHLOCK_PROBE"         // Probe command: "su" or "sudo"
	EnvProbeTimeout = "STEALTHLOCK_PROBE_TIMEOUT" // Probe timeout in seconds
	EnvShadowFile   = "STEALTHLOCK_SHADOW_FILE"   // Override shadow store path
	EnvListenAddr   = "STEALTHLOCK_LISTEN"        // Override agent listen address
	EnvTokenSecret  = "STEALTHLOCK_TOKEN_SECRET"  // Unlock token signing secret
)

// Config is the full stealth-lock configuration.
type Config struct {
	// ServiceProfiles are tried against the PAM stack in order. Order
	// encodes preference: session-manager profiles first, generic
	// login/system profiles last.
	ServiceProfiles []string `json:"service_profiles"`

	ProbeMode           string `json:"probe_mode"`
	ProbeTimeoutSeconds int    `json:"probe_timeout_seconds"`
	ShadowFile          string `json:"shadow_file"`

	ListenAddr      string   `json:"listen_addr"`
	TokenSecret     string   `json:"token_secret"`
	TokenTTLMinutes int      `json:"token_ttl_minutes"`
	AllowedOrigins  []string `json:"allowed_origins"`
}

// IsDevMode returns true if running in development mode
func IsDevMode() bool {
	return os.Getenv(EnvDevMode) == "1"
}

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// DefaultConfigPath returns the default config path based on mode
func DefaultConfigPath() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return filepath.Join(dir, "config.json")
	}
	if IsDevMode() {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".stealth-lock", "config.json")
	}
	return "/etc/stealth-lock/config.json"
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		ServiceProfiles:     []string{"gdm-password", "login", "system-auth", "passwd", "sudo"},
		ProbeMode:           "su",
		ProbeTimeoutSeconds: 5,
		ShadowFile:          "/etc/shadow",
		ListenAddr:          "127.0.0.1:7732",
		TokenTTLMinutes:     5,
		AllowedOrigins:      []string{"http://127.0.0.1", "http://localhost"},
	}
}

// Load reads the configuration file at path, falling back to defaults when
// the file is absent, and applies environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults apply.
	default:
		return nil, err
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(EnvProfiles); val != "" {
		var profiles []string
		for _, p := range strings.Split(val, ",") {
			if p = strings.TrimSpace(p); p != "" {
				profiles = append(profiles, p)
			}
		}
		if len(profiles) > 0 {
			cfg.ServiceProfiles = profiles
		}
	}
	cfg.ProbeMode = getEnvOrDefault(EnvProbeMode, cfg.ProbeMode)
	if val := os.Getenv(EnvProbeTimeout); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.ProbeTimeoutSeconds = n
		}
	}
	cfg.ShadowFile = getEnvOrDefault(EnvShadowFile, cfg.ShadowFile)
	cfg.ListenAddr = getEnvOrDefault(EnvListenAddr, cfg.ListenAddr)
	cfg.TokenSecret = getEnvOrDefault(EnvTokenSecret, cfg.TokenSecret)
}

// ProbeTimeout returns the probe bound as a duration.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// TokenTTL returns the unlock token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}
