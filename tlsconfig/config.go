// SPDX-License-Identifier: Apache-2.0

// Package tlsconfig is the Config capability: a typed wrapper, not a file
// format parser. Every relative filesystem path is resolved to absolute at
// construction time (Open Question #3), so a worker reading a CA bundle or
// client certificate later never depends on the process's working
// directory at the time it happens to run.
package tlsconfig

import (
	"path/filepath"
	"time"

	"github.com/tlsmate-go/tlsmate/clientprofile"
	"github.com/tlsmate-go/tlsmate/tlserr"
)

// Config is every option a scan or a single connection needs, validated and
// path-resolved once up front.
type Config struct {
	Host string
	Port int

	Profile *clientprofile.ClientProfile

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	CACertFile     string // absolute path, empty if unset
	ClientCertFile string
	ClientKeyFile  string

	RecordingFile string // absolute path to a recorder trace, empty if not recording/replaying
	Replay        bool

	ProgressEnabled bool
	LogLevel        string
	LogFile         string // absolute path, empty for stderr only
}

// Option mutates a Config under construction, the explicit-typed-setter
// idiom this engine uses in place of a kwargs-style options map (design
// note: "**kwargs-style option spray -> explicit typed setters").
type Option func(*Config) error

// New builds a Config for host:port from opts, applied in order. Defaults:
// Interoperability profile, 10s connect timeout, 5s read timeout.
func New(host string, port int, opts ...Option) (*Config, error) {
	c := &Config{
		Host:           host,
		Port:           port,
		Profile:        clientprofile.Interoperability(),
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    5 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WithProfile selects a non-default ClientProfile.
func WithProfile(p *clientprofile.ClientProfile) Option {
	return func(c *Config) error {
		if p == nil {
			return &tlserr.ConfigError{Option: "profile", Msg: "profile must not be nil"}
		}
		c.Profile = p
		return nil
	}
}

// WithTimeouts overrides the connect/read timeouts.
func WithTimeouts(connect, read time.Duration) Option {
	return func(c *Config) error {
		if connect <= 0 || read <= 0 {
			return &tlserr.ConfigError{Option: "timeouts", Msg: "timeouts must be positive"}
		}
		c.ConnectTimeout, c.ReadTimeout = connect, read
		return nil
	}
}

// WithCACertFile sets the CA bundle path, resolved to absolute immediately.
func WithCACertFile(path string) Option {
	return func(c *Config) error {
		abs, err := resolvePath(path)
		if err != nil {
			return &tlserr.ConfigError{Option: "ca_cert_file", Msg: err.Error()}
		}
		c.CACertFile = abs
		return nil
	}
}

// WithClientCertificate sets the client certificate and key paths, both
// resolved to absolute immediately.
func WithClientCertificate(certPath, keyPath string) Option {
	return func(c *Config) error {
		absCert, err := resolvePath(certPath)
		if err != nil {
			return &tlserr.ConfigError{Option: "client_cert_file", Msg: err.Error()}
		}
		absKey, err := resolvePath(keyPath)
		if err != nil {
			return &tlserr.ConfigError{Option: "client_key_file", Msg: err.Error()}
		}
		c.ClientCertFile, c.ClientKeyFile = absCert, absKey
		return nil
	}
}

// WithRecording enables tracing to path (resolved to absolute), or, if
// replay is true, replaying from it instead of dialing a live server.
func WithRecording(path string, replay bool) Option {
	return func(c *Config) error {
		abs, err := resolvePath(path)
		if err != nil {
			return &tlserr.ConfigError{Option: "recording_file", Msg: err.Error()}
		}
		c.RecordingFile, c.Replay = abs, replay
		return nil
	}
}

// WithLogging sets the log level and, optionally, a log file path (resolved
// to absolute; empty keeps logging on stderr only).
func WithLogging(level, file string) Option {
	return func(c *Config) error {
		c.LogLevel = level
		if file == "" {
			return nil
		}
		abs, err := resolvePath(file)
		if err != nil {
			return &tlserr.ConfigError{Option: "log_file", Msg: err.Error()}
		}
		c.LogFile = abs
		return nil
	}
}

// WithProgress toggles the terminal progress reporter.
func WithProgress(enabled bool) Option {
	return func(c *Config) error {
		c.ProgressEnabled = enabled
		return nil
	}
}

func resolvePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return filepath.Abs(path)
}
