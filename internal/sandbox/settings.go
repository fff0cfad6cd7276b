package sandbox

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/rosteradmin/internal/config"
)

// DefaultMaxBodyBytes caps JSON bodies and roster uploads.
const DefaultMaxBodyBytes int64 = 10 << 20

// Settings holds the listener, storage and limit knobs of the sandbox.
type Settings struct {
	Host         string
	Port         int
	Database     string // empty keeps the roster in memory
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func defaultSettings() Settings {
	return Settings{
		Host:         "127.0.0.1",
		Port:         5000,
		MaxBodyBytes: DefaultMaxBodyBytes,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  time.Minute,
	}
}

// SettingsFromConfig reads sandbox.addr and sandbox.database from cfg.
// An unparsable address keeps the default listener.
func SettingsFromConfig(cfg *config.Config) Settings {
	out := defaultSettings()
	if cfg == nil {
		return out
	}
	if host, port, ok := splitAddr(cfg.File.Sandbox.Addr); ok {
		out.Host, out.Port = host, port
	}
	out.Database = strings.TrimSpace(cfg.File.Sandbox.Database)
	return out
}

func splitAddr(addr string) (string, int, bool) {
	host, rawPort, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "", 0, false
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, false
	}
	return host, port, true
}

// withDefaults fills zero values. Port 0 is kept: it asks for an ephemeral port.
func (s Settings) withDefaults() Settings {
	def := defaultSettings()
	if strings.TrimSpace(s.Host) == "" {
		s.Host = def.Host
	}
	if s.Port < 0 || s.Port > 65535 {
		s.Port = def.Port
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = def.MaxBodyBytes
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = def.ReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = def.WriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = def.IdleTimeout
	}
	return s
}

// Address is the host:port the server binds.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
