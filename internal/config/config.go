// Package config loads the qsec configuration file (JSON, or YAML by
// extension) and applies QSEC_* environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"qsec/internal/utils"
)

// DefaultFile is used when no path is given.
const DefaultFile = "qsec.config"

const (
	envPort           = "QSEC_PORT"
	envUseTLS         = "QSEC_USE_TLS"
	envTLSCert        = "QSEC_TLS_CERT"
	envTLSKey         = "QSEC_TLS_KEY"
	envJWTSecret      = "QSEC_JWT_SECRET"
	envAPIURL         = "QSEC_API_URL"
	envPollIntervalMS = "QSEC_POLL_INTERVAL_MS"
)

// Defaults.
const (
	DefaultPort             = 8000
	DefaultAPIURL           = "http://localhost:8000/api"
	DefaultPollIntervalMS   = 1500
	DefaultRequestTimeoutMS = 5000
	DefaultScanTimeoutMS    = 500
	DefaultMaxScanPorts     = 1024
	DefaultScanWorkers      = 64
	DefaultMaxQubits        = 10
	DefaultHistorySize      = 100
	DefaultRateLimitPerMin  = 600
	defaultJWTSecret        = "change-me-in-production"
)

// Config holds settings for both the API server and the polling agent.
type Config struct {
	File string `json:"-" yaml:"-"`

	Paths *utils.Paths `json:"paths" yaml:"paths"`
	Port  int          `json:"port" yaml:"port"`

	TLSEnabled  bool   `json:"tls_enabled" yaml:"tls_enabled"`
	TLSCertPath string `json:"tls_cert" yaml:"tls_cert"`
	TLSKeyPath  string `json:"tls_key" yaml:"tls_key"`

	AuthEnabled       bool   `json:"auth_enabled" yaml:"auth_enabled"`
	AdminUser         string `json:"admin_user" yaml:"admin_user"`
	AdminPasswordHash string `json:"admin_password_hash" yaml:"admin_password_hash"`
	JWTSecret         string `json:"jwt_secret" yaml:"jwt_secret"`

	AllowIFrame     bool `json:"allow_iframe" yaml:"allow_iframe"`
	RateLimitPerMin int  `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	VerboseHTTP     bool `json:"verbose_http" yaml:"verbose_http"`
	AutoPortForward bool `json:"auto_port_forward" yaml:"auto_port_forward"`

	SyntheticLogs  bool   `json:"synthetic_logs" yaml:"synthetic_logs"`
	HistorySize    int    `json:"history_size" yaml:"history_size"`
	ScanTimeoutMS  int    `json:"scan_timeout_ms" yaml:"scan_timeout_ms"`
	MaxScanPorts   int    `json:"max_scan_ports" yaml:"max_scan_ports"`
	ScanWorkers    int    `json:"scan_workers" yaml:"scan_workers"`
	MaxQubits      int    `json:"max_qubits" yaml:"max_qubits"`
	DiscordWebhook string `json:"discord_webhook" yaml:"discord_webhook"`

	APIURL            string `json:"api_url" yaml:"api_url"`
	APIToken          string `json:"api_token" yaml:"api_token"`
	PollIntervalMS    int    `json:"poll_interval_ms" yaml:"poll_interval_ms"`
	RequestTimeoutMS  int    `json:"request_timeout_ms" yaml:"request_timeout_ms"`
	DedupeRemediation bool   `json:"dedupe_remediation" yaml:"dedupe_remediation"`
}

// Default returns a Config populated with built-in defaults rooted at rootPath.
func Default(rootPath string) *Config {
	return &Config{
		Paths:            utils.NewPaths(rootPath),
		Port:             DefaultPort,
		AdminUser:        "admin",
		JWTSecret:        defaultJWTSecret,
		RateLimitPerMin:  DefaultRateLimitPerMin,
		SyntheticLogs:    true,
		HistorySize:      DefaultHistorySize,
		ScanTimeoutMS:    DefaultScanTimeoutMS,
		MaxScanPorts:     DefaultMaxScanPorts,
		ScanWorkers:      DefaultScanWorkers,
		MaxQubits:        DefaultMaxQubits,
		APIURL:           DefaultAPIURL,
		PollIntervalMS:   DefaultPollIntervalMS,
		RequestTimeoutMS: DefaultRequestTimeoutMS,
	}
}

// Load reads path (DefaultFile when empty), bootstrapping a default file when
// it does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultFile
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("unable to determine working directory: %w", err)
	}
	cfg := Default(cwd)
	cfg.File = path

	if !fileExists(path) {
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("unable to create default configuration at %s: %w", path, err)
		}
	} else if err := cfg.load(); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

// Save writes the configuration back to its file.
func (c *Config) Save() error {
	if strings.TrimSpace(c.File) == "" {
		return errors.New("config path cannot be empty")
	}
	if dir := filepath.Dir(c.File); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to ensure config directory: %w", err)
		}
	}
	var (
		data []byte
		err  error
	)
	if isYAML(c.File) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := os.WriteFile(c.File, data, 0o600); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	return nil
}

// PollInterval returns the agent poll cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// RequestTimeout returns the per-request HTTP timeout used by the agent.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// ScanTimeout returns the per-port dial timeout.
func (c *Config) ScanTimeout() time.Duration {
	return time.Duration(c.ScanTimeoutMS) * time.Millisecond
}

// TLSFiles returns the certificate and key paths, resolving relative ones
// against the root path.
func (c *Config) TLSFiles() (certFile, keyFile string, err error) {
	if c.TLSCertPath == "" || c.TLSKeyPath == "" {
		return "", "", errors.New("tls_cert and tls_key are required when TLS is enabled")
	}
	if certFile, err = c.Paths.Resolve(c.TLSCertPath); err != nil {
		return "", "", fmt.Errorf("tls_cert: %w", err)
	}
	if keyFile, err = c.Paths.Resolve(c.TLSKeyPath); err != nil {
		return "", "", fmt.Errorf("tls_key: %w", err)
	}
	return certFile, keyFile, nil
}

// UsingDefaultSecret reports whether the JWT secret was never changed.
func (c *Config) UsingDefaultSecret() bool {
	return c.JWTSecret == defaultJWTSecret
}

func (c *Config) load() error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("configuration file not found: %w", err)
	}
	temp := Default(c.Paths.RootPath)
	if isYAML(c.File) {
		err = yaml.Unmarshal(data, temp)
	} else {
		err = json.Unmarshal(data, temp)
	}
	if err != nil {
		return fmt.Errorf("error parsing configuration: %w", err)
	}
	temp.File = c.File
	if temp.Paths == nil || strings.TrimSpace(temp.Paths.RootPath) == "" {
		temp.Paths = c.Paths
	}
	*c = *temp
	return nil
}

func (c *Config) applyEnv() {
	if v, ok := envInt(envPort); ok {
		c.Port = v
	}
	if v, ok := envBool(envUseTLS); ok {
		c.TLSEnabled = v
	}
	if v := strings.TrimSpace(os.Getenv(envTLSCert)); v != "" {
		c.TLSCertPath = v
	}
	if v := strings.TrimSpace(os.Getenv(envTLSKey)); v != "" {
		c.TLSKeyPath = v
	}
	if v := strings.TrimSpace(os.Getenv(envJWTSecret)); v != "" {
		c.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(envAPIURL)); v != "" {
		c.APIURL = v
	}
	if v, ok := envInt(envPollIntervalMS); ok {
		c.PollIntervalMS = v
	}
}

// normalize trims strings and replaces out-of-range values with defaults.
func (c *Config) normalize() {
	c.TLSCertPath = strings.TrimSpace(c.TLSCertPath)
	c.TLSKeyPath = strings.TrimSpace(c.TLSKeyPath)
	c.AdminUser = strings.TrimSpace(c.AdminUser)
	c.AdminPasswordHash = strings.TrimSpace(c.AdminPasswordHash)
	c.JWTSecret = strings.TrimSpace(c.JWTSecret)
	c.DiscordWebhook = strings.TrimSpace(c.DiscordWebhook)
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	c.APIToken = strings.TrimSpace(c.APIToken)

	if c.Port < 1 || c.Port > 65535 {
		c.Port = DefaultPort
	}
	if c.AdminUser == "" {
		c.AdminUser = "admin"
	}
	if c.JWTSecret == "" {
		c.JWTSecret = defaultJWTSecret
	}
	if c.RateLimitPerMin <= 0 {
		c.RateLimitPerMin = DefaultRateLimitPerMin
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.ScanTimeoutMS <= 0 {
		c.ScanTimeoutMS = DefaultScanTimeoutMS
	}
	if c.MaxScanPorts <= 0 {
		c.MaxScanPorts = DefaultMaxScanPorts
	}
	if c.ScanWorkers <= 0 {
		c.ScanWorkers = DefaultScanWorkers
	}
	if c.MaxQubits <= 0 {
		c.MaxQubits = DefaultMaxQubits
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.PollIntervalMS <= 0 {
		c.PollIntervalMS = DefaultPollIntervalMS
	}
	if c.RequestTimeoutMS <= 0 {
		c.RequestTimeoutMS = DefaultRequestTimeoutMS
	}
}

func envBool(key string) (bool, bool) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return false, false
	}
	return parsed, true
}

func envInt(key string) (int, bool) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
