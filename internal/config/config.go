// internal/config/config.go
//
// This package handles configuration and the .rosteradmin directory structure.
// The first run in a directory creates .rosteradmin/ with a commented config
// file; environment variables and .env files override it.

package config

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// Dir is the name of the directory we create in each working directory
	Dir = ".rosteradmin"

	// EnvPrefix namespaces every environment override.
	EnvPrefix = "ROSTERADMIN_"

	defaultBaseURL         = "http://127.0.0.1:5000"
	defaultSandboxAddr     = "127.0.0.1:5000"
	defaultToastDwell      = 5000 * time.Millisecond
	defaultToastReveal     = 10 * time.Millisecond
	defaultToastTransition = 300 * time.Millisecond
)

const defaultConfigYAML = `# rosteradmin configuration
version: 1

backend:
  # Root URL of the admin backend. All API paths are resolved against it.
  base_url: http://127.0.0.1:5000
  # 0 disables the client timeout; a hung request keeps its control busy.
  request_timeout: 0s

auth:
  # Username used for POST /login at startup. The password is only read from
  # ROSTERADMIN_PASSWORD (or .env).
  username: ""

ui:
  toast_dwell: 5s
  toast_reveal: 10ms
  toast_transition: 300ms

sandbox:
  addr: 127.0.0.1:5000
  # Empty keeps the sandbox roster in memory.
  database: ""
`

// BackendConfig points the client at the admin API.
type BackendConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// AuthConfig carries the optional startup login.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"-"`
}

// UIConfig tunes toast timing.
type UIConfig struct {
	ToastDwell      time.Duration `yaml:"toast_dwell"`
	ToastReveal     time.Duration `yaml:"toast_reveal"`
	ToastTransition time.Duration `yaml:"toast_transition"`
}

// SandboxConfig configures the local admin backend.
type SandboxConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
}

// FileConfig models .rosteradmin/config.yaml.
type FileConfig struct {
	Version int           `yaml:"version"`
	Backend BackendConfig `yaml:"backend"`
	Auth    AuthConfig    `yaml:"auth"`
	UI      UIConfig      `yaml:"ui"`
	Sandbox SandboxConfig `yaml:"sandbox"`
}

// envOverrides lists every variable that can replace a file value.
type envOverrides struct {
	BaseURL        string `env:"BASE_URL"`
	RequestTimeout *time.Duration `env:"REQUEST_TIMEOUT"`
	Username       string `env:"USERNAME"`
	Password       string `env:"PASSWORD"`
	SandboxAddr    string `env:"SANDBOX_ADDR"`
	SandboxDB      string `env:"SANDBOX_DATABASE"`
}

// Config holds the runtime configuration for rosteradmin.
type Config struct {
	// ProjectDir is the directory where the user ran `rosteradmin` from
	ProjectDir string

	// StateDir is ProjectDir/.rosteradmin
	StateDir string

	File FileConfig
}

// InitDir creates the .rosteradmin directory structure in the given directory.
//
// Structure created:
// .rosteradmin/
// ├── config.yaml
// └── logs/       <- diagnostics.log
func InitDir(projectDir string) error {
	stateDir := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(filepath.Join(stateDir, "logs"), 0o755); err != nil {
		return errors.Wrap(err, "config: create state dir")
	}
	return ensureConfigFile(filepath.Join(stateDir, "config.yaml"))
}

// Load reads .env files, the config file and environment overrides, in that
// order of increasing precedence.
func Load(projectDir string) (*Config, error) {
	if err := loadDotEnv(projectDir); err != nil {
		return nil, err
	}
	cfg := &Config{
		ProjectDir: projectDir,
		StateDir:   filepath.Join(projectDir, Dir),
		File:       defaultFileConfig(),
	}
	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.File.normalize()
	if err := cfg.File.validate(); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// DiagnosticsLogPath is where transport failures and request traces land.
func (c *Config) DiagnosticsLogPath() string {
	return filepath.Join(c.LogsDir(), "diagnostics.log")
}

// ConfigPath returns the on-disk location for the config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// BaseURL returns the backend root.
func (c *Config) BaseURL() string {
	return c.File.Backend.BaseURL
}

// SetBaseURL overrides the backend root, typically from a command-line flag.
func (c *Config) SetBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if err := validateBaseURL(raw); err != nil {
		return errors.Wrap(err, "config")
	}
	c.File.Backend.BaseURL = strings.TrimRight(raw, "/")
	return nil
}

// HasCredentials reports whether a startup login can be attempted.
func (c *Config) HasCredentials() bool {
	return c.File.Auth.Username != "" && c.File.Auth.Password != ""
}

func loadDotEnv(projectDir string) error {
	var existing []string
	for _, name := range []string{".env", ".env.local"} {
		path := filepath.Join(projectDir, name)
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return errors.Wrap(err, "config: load .env")
	}
	return nil
}

func (c *Config) loadFile() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.Wrapf(err, "config: read %s", path)
	}
	parsed := defaultFileConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return errors.Wrapf(err, "config: parse %s", path)
	}
	c.File = parsed
	return nil
}

func (c *Config) applyEnv() error {
	var ovr envOverrides
	if err := env.ParseWithOptions(&ovr, env.Options{Prefix: EnvPrefix}); err != nil {
		return errors.Wrap(err, "config: parse env")
	}
	if v := strings.TrimSpace(ovr.BaseURL); v != "" {
		c.File.Backend.BaseURL = v
	}
	if ovr.RequestTimeout != nil {
		c.File.Backend.RequestTimeout = *ovr.RequestTimeout
	}
	if v := strings.TrimSpace(ovr.Username); v != "" {
		c.File.Auth.Username = v
	}
	if ovr.Password != "" {
		c.File.Auth.Password = ovr.Password
	}
	if v := strings.TrimSpace(ovr.SandboxAddr); v != "" {
		c.File.Sandbox.Addr = v
	}
	if v := strings.TrimSpace(ovr.SandboxDB); v != "" {
		c.File.Sandbox.Database = v
	}
	return nil
}

func defaultFileConfig() FileConfig {
	return FileConfig{
		Version: 1,
		Backend: BackendConfig{BaseURL: defaultBaseURL},
		UI: UIConfig{
			ToastDwell:      defaultToastDwell,
			ToastReveal:     defaultToastReveal,
			ToastTransition: defaultToastTransition,
		},
		Sandbox: SandboxConfig{Addr: defaultSandboxAddr},
	}
}

func (fc *FileConfig) normalize() {
	if fc.Version == 0 {
		fc.Version = 1
	}
	fc.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(fc.Backend.BaseURL), "/")
	if fc.Backend.BaseURL == "" {
		fc.Backend.BaseURL = defaultBaseURL
	}
	fc.Auth.Username = strings.TrimSpace(fc.Auth.Username)
	if fc.UI.ToastDwell <= 0 {
		fc.UI.ToastDwell = defaultToastDwell
	}
	if fc.UI.ToastReveal <= 0 {
		fc.UI.ToastReveal = defaultToastReveal
	}
	if fc.UI.ToastTransition <= 0 {
		fc.UI.ToastTransition = defaultToastTransition
	}
	fc.Sandbox.Addr = strings.TrimSpace(fc.Sandbox.Addr)
	if fc.Sandbox.Addr == "" {
		fc.Sandbox.Addr = defaultSandboxAddr
	}
	fc.Sandbox.Database = strings.TrimSpace(fc.Sandbox.Database)
}

func (fc *FileConfig) validate() error {
	if fc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if err := validateBaseURL(fc.Backend.BaseURL); err != nil {
		return err
	}
	if fc.Backend.RequestTimeout < 0 {
		return fmt.Errorf("backend.request_timeout must not be negative")
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url %q must be an absolute http(s) URL", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.base_url %q must use http or https", raw)
	}
	return nil
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
