// Package config provides configuration management for drivectl.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. DRIVECTL_API_KEY.
const EnvPrefix = "DRIVECTL"

// Default gateway endpoints.
const (
	DefaultDriveURL   = "https://gateway.internxt.com/drive"
	DefaultNetworkURL = "https://gateway.internxt.com/network"
)

// Proxy modes accepted by proxy_mode.
const (
	ProxyModeNone   = "no-proxy"
	ProxyModeSystem = "system"
	ProxyModeBasic  = "basic"
	ProxyModeNTLM   = "ntlm"
)

// Validation errors
var (
	ErrMissingBaseURL      = errors.New("drive_url is required")
	ErrMissingNetworkURL   = errors.New("network_url is required")
	ErrInvalidBaseURL      = errors.New("drive_url and network_url must be absolute http(s) URLs")
	ErrInvalidProxyMode    = errors.New("proxy_mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost    = errors.New("proxy_host is required for basic and ntlm proxy modes")
	ErrInvalidRetryBudget  = errors.New("max_rate_limit_retries must be between 0 and 10")
	ErrInvalidNetworkRetry = errors.New("network_retries must be between 0 and 10")
	ErrInvalidLogFormat    = errors.New("log_format must be cli or json")
)

// Config holds everything drivectl reads from file, environment and flags.
type Config struct {
	// API settings
	DriveURL   string `mapstructure:"drive_url" yaml:"drive_url"`
	NetworkURL string `mapstructure:"network_url" yaml:"network_url"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key,omitempty"`

	// Proxy settings
	ProxyMode     string `mapstructure:"proxy_mode" yaml:"proxy_mode"` // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string `mapstructure:"proxy_host" yaml:"proxy_host,omitempty"`
	ProxyPort     int    `mapstructure:"proxy_port" yaml:"proxy_port,omitempty"`
	ProxyUser     string `mapstructure:"proxy_user" yaml:"proxy_user,omitempty"`
	ProxyPassword string `mapstructure:"proxy_password" yaml:"-"` // env or prompt only, never written
	NoProxy       string `mapstructure:"no_proxy" yaml:"no_proxy,omitempty"`
	ProxyWarmup   bool   `mapstructure:"proxy_warmup" yaml:"proxy_warmup,omitempty"`

	// Logging
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat     string `mapstructure:"log_format" yaml:"log_format"` // "cli" or "json"
	LogFile       string `mapstructure:"log_file" yaml:"log_file,omitempty"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`

	// Rate limiting and retries
	MaxRateLimitRetries int  `mapstructure:"max_rate_limit_retries" yaml:"max_rate_limit_retries"`
	NetworkRetries      int  `mapstructure:"network_retries" yaml:"network_retries"`
	DisableHTTP2        bool `mapstructure:"disable_http2" yaml:"disable_http2,omitempty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		DriveURL:            DefaultDriveURL,
		NetworkURL:          DefaultNetworkURL,
		ProxyMode:           ProxyModeNone,
		LogLevel:            "info",
		LogFormat:           "cli",
		LogMaxSizeMB:        10,
		LogMaxBackups:       3,
		MaxRateLimitRetries: 3,
		NetworkRetries:      2,
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("drive_url", d.DriveURL)
	v.SetDefault("network_url", d.NetworkURL)
	v.SetDefault("api_key", "")
	v.SetDefault("proxy_mode", d.ProxyMode)
	v.SetDefault("proxy_host", "")
	v.SetDefault("proxy_port", 0)
	v.SetDefault("proxy_user", "")
	v.SetDefault("proxy_password", "")
	v.SetDefault("no_proxy", "")
	v.SetDefault("proxy_warmup", false)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", d.LogMaxSizeMB)
	v.SetDefault("log_max_backups", d.LogMaxBackups)
	v.SetDefault("max_rate_limit_retries", d.MaxRateLimitRetries)
	v.SetDefault("network_retries", d.NetworkRetries)
	v.SetDefault("disable_http2", false)
}

// Load reads configuration with this precedence (highest first):
// DRIVECTL_* environment variables, the YAML file at path, defaults.
// A .env file in the working directory is loaded into the environment first
// without overriding variables that are already set. A missing config file is
// not an error.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML to path with owner-only permissions. The proxy
// password is never written.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	if out.APIKey != "" {
		out.APIKey = maskSecret(out.APIKey)
	}
	return &out
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "…" + s[len(s)-4:]
}

// FlagOverrides carries command-line values. Zero values mean "not set".
type FlagOverrides struct {
	APIKey     string
	DriveURL   string
	NetworkURL string
	ProxyMode  string
	ProxyHost  string
	ProxyPort  int
	LogLevel   string
	LogFormat  string
}

// MergeWithFlags applies command-line overrides on top of the loaded config.
// A proxy from HTTPS_PROXY fills in an unset proxy host.
func (c *Config) MergeWithFlags(f FlagOverrides) {
	if envProxy := os.Getenv("HTTPS_PROXY"); envProxy != "" && c.ProxyHost == "" {
		c.parseProxyURL(envProxy)
	}

	if f.APIKey != "" {
		c.APIKey = f.APIKey
	}
	if f.DriveURL != "" {
		c.DriveURL = f.DriveURL
	}
	if f.NetworkURL != "" {
		c.NetworkURL = f.NetworkURL
	}
	if f.ProxyMode != "" {
		c.ProxyMode = f.ProxyMode
	}
	if f.ProxyHost != "" {
		c.ProxyHost = f.ProxyHost
	}
	if f.ProxyPort > 0 {
		c.ProxyPort = f.ProxyPort
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
	if f.LogFormat != "" {
		c.LogFormat = f.LogFormat
	}

	c.DriveURL = ensureScheme(c.DriveURL)
	c.NetworkURL = ensureScheme(c.NetworkURL)
}

func ensureScheme(u string) string {
	if u != "" && !strings.HasPrefix(u, "http") {
		return "https://" + u
	}
	return u
}

// parseProxyURL fills proxy host and port from an http://host:port value.
func (c *Config) parseProxyURL(proxyURL string) {
	u, err := url.Parse(proxyURL)
	if err != nil || u.Host == "" {
		u, err = url.Parse("http://" + proxyURL)
		if err != nil {
			return
		}
	}
	c.ProxyHost = u.Hostname()
	if port, err := strconv.Atoi(u.Port()); err == nil {
		c.ProxyPort = port
	}
	if c.ProxyHost != "" && (c.ProxyMode == ProxyModeNone || c.ProxyMode == "") {
		c.ProxyMode = ProxyModeSystem
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.DriveURL == "" {
		return ErrMissingBaseURL
	}
	if c.NetworkURL == "" {
		return ErrMissingNetworkURL
	}
	for _, raw := range []string{c.DriveURL, c.NetworkURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: %q", ErrInvalidBaseURL, raw)
		}
	}

	switch strings.ToLower(c.ProxyMode) {
	case "", ProxyModeNone, ProxyModeSystem:
	case ProxyModeBasic, ProxyModeNTLM:
		if c.ProxyHost == "" {
			return ErrMissingProxyHost
		}
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidProxyMode, c.ProxyMode)
	}

	if c.MaxRateLimitRetries < 0 || c.MaxRateLimitRetries > 10 {
		return ErrInvalidRetryBudget
	}
	if c.NetworkRetries < 0 || c.NetworkRetries > 10 {
		return ErrInvalidNetworkRetry
	}
	if c.LogFormat != "cli" && c.LogFormat != "json" {
		return ErrInvalidLogFormat
	}
	return nil
}

// NeedsProxyPassword reports whether an authenticating proxy is configured
// with a user but no password.
func (c *Config) NeedsProxyPassword() bool {
	mode := strings.ToLower(c.ProxyMode)
	if mode != ProxyModeBasic && mode != ProxyModeNTLM {
		return false
	}
	return c.ProxyUser != "" && c.ProxyPassword == ""
}
