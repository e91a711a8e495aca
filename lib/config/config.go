// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/ipcdemo/lib/securecode"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "IPCDEMO_CONFIG"

// Config is the complete ipcdemo configuration.
type Config struct {
	Broker BrokerConfig `yaml:"broker" json:"broker"`
	Code   CodeConfig   `yaml:"code" json:"code"`
	Sender SenderConfig `yaml:"sender" json:"sender"`
	Inbox  InboxConfig  `yaml:"inbox" json:"inbox"`
}

// BrokerConfig configures the listening side.
type BrokerConfig struct {
	// Host is the listen address. Default: 127.0.0.1. The shared code
	// is weak authentication, so anything but loopback is a deliberate
	// exposure.
	Host string `yaml:"host" json:"host"`

	// Port is the listen port. Default: 32000. Zero picks a free port.
	Port int `yaml:"port" json:"port"`

	// ReadTimeout bounds how long a connection may take to deliver its
	// line. Default: 30s.
	ReadTimeout Duration `yaml:"read_timeout" json:"read_timeout"`

	// MaxLineBytes caps the message line. Default: 1 MiB.
	MaxLineBytes int `yaml:"max_line_bytes" json:"max_line_bytes"`

	// Registry bounds the connection history.
	Registry RegistryConfig `yaml:"registry" json:"registry"`

	// MetricsListen, if set, serves Prometheus metrics at /metrics on
	// this address.
	MetricsListen string `yaml:"metrics_listen" json:"metrics_listen"`
}

// RegistryConfig bounds the connection history. The zero value keeps
// every endpoint for the broker's lifetime, which grows without limit
// under many short-lived clients.
type RegistryConfig struct {
	// MaxEntries evicts the oldest endpoints beyond this count.
	MaxEntries int `yaml:"max_entries" json:"max_entries"`

	// TTL evicts endpoints first seen longer ago than this.
	TTL Duration `yaml:"ttl" json:"ttl"`
}

// CodeConfig configures the rotating secure code. Both ends must agree.
type CodeConfig struct {
	// Scheme is "code6" (default) or "code4".
	Scheme string `yaml:"scheme" json:"scheme"`

	// Window is the code6 rotation window. Default: 1h.
	Window Duration `yaml:"window" json:"window"`

	// SecretFile holds the shared secret, plaintext or age-sealed.
	SecretFile string `yaml:"secret_file" json:"secret_file"`

	// SecretIdentity is an age identity file. When set, SecretFile is
	// decrypted with it.
	SecretIdentity string `yaml:"secret_identity" json:"secret_identity"`

	// WatchSecret reloads SecretFile when it changes.
	WatchSecret bool `yaml:"watch_secret" json:"watch_secret"`
}

// SenderConfig configures the publishing side.
type SenderConfig struct {
	// Host and Port address the broker. Defaults: 127.0.0.1:32000.
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`

	// Name is the Sender field of outgoing messages. Default: the
	// host name.
	Name string `yaml:"name" json:"name"`

	// DialTimeout bounds connection setup. Default: 5s.
	DialTimeout Duration `yaml:"dial_timeout" json:"dial_timeout"`

	// BreakerThreshold is how many failures of one class are
	// tolerated; the next one trips the breaker. Default: 3.
	BreakerThreshold int `yaml:"breaker_threshold" json:"breaker_threshold"`

	// ExitGrace is how long the stress client waits between tripping
	// and exiting. Default: 2s.
	ExitGrace Duration `yaml:"exit_grace" json:"exit_grace"`
}

// InboxConfig configures the subscriber's view.
type InboxConfig struct {
	// MaxMessages caps each tab. Default: 50.
	MaxMessages int `yaml:"max_messages" json:"max_messages"`

	// DecayAfter resets a tab's activity score after this much quiet.
	// Default: 30s.
	DecayAfter Duration `yaml:"decay_after" json:"decay_after"`

	// AllowSenders, when non-empty, drops messages from any other
	// sender.
	AllowSenders []string `yaml:"allow_senders" json:"allow_senders"`

	// LogFile saves accepted messages at exit and reloads them at
	// start. Empty disables it. A .zst or .lz4 extension compresses.
	LogFile string `yaml:"log_file" json:"log_file"`

	// LogMaxAge is the oldest message reloaded. Default: 48h.
	LogMaxAge Duration `yaml:"log_max_age" json:"log_max_age"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Host:         "127.0.0.1",
			Port:         32000,
			ReadTimeout:  Duration(30 * time.Second),
			MaxLineBytes: 1 << 20,
		},
		Code: CodeConfig{
			Scheme: securecode.NameSixDigit,
			Window: Duration(securecode.DefaultWindow),
		},
		Sender: SenderConfig{
			Host:             "127.0.0.1",
			Port:             32000,
			DialTimeout:      Duration(5 * time.Second),
			BreakerThreshold: 3,
			ExitGrace:        Duration(2 * time.Second),
		},
		Inbox: InboxConfig{
			MaxMessages: 50,
			DecayAfter:  Duration(30 * time.Second),
			LogMaxAge:   Duration(48 * time.Hour),
		},
	}
}

// Load reads the file named by IPCDEMO_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of an ipcdemo config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// Resolve loads flagPath if set, else the IPCDEMO_CONFIG file if set,
// else returns Default.
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return LoadFile(flagPath)
	}
	if os.Getenv(EnvironmentVariable) != "" {
		return Load()
	}
	cfg := Default()
	cfg.expandVariables()
	return cfg, nil
}

// LoadFile reads path over Default. Keys absent from the file keep
// their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	case ".json", ".jsonc":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config: %s: unrecognized extension (want .yaml, .yml, .json, or .jsonc)", path)
	}

	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.Code.SecretFile = expandVars(c.Code.SecretFile)
	c.Code.SecretIdentity = expandVars(c.Code.SecretIdentity)
	c.Inbox.LogFile = expandVars(c.Inbox.LogFile)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces ${VAR} and ${VAR:-default} from the environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Broker.Host == "" {
		errs = append(errs, errors.New("broker.host is required"))
	}
	if c.Broker.Port < 0 || c.Broker.Port > 65535 {
		errs = append(errs, fmt.Errorf("broker.port %d out of range", c.Broker.Port))
	}
	if c.Broker.ReadTimeout <= 0 {
		errs = append(errs, errors.New("broker.read_timeout must be positive"))
	}
	if c.Broker.MaxLineBytes < 64 {
		errs = append(errs, fmt.Errorf("broker.max_line_bytes %d is below the 64-byte minimum", c.Broker.MaxLineBytes))
	}
	if c.Broker.Registry.MaxEntries < 0 {
		errs = append(errs, errors.New("broker.registry.max_entries must not be negative"))
	}
	if c.Broker.Registry.TTL < 0 {
		errs = append(errs, errors.New("broker.registry.ttl must not be negative"))
	}

	if _, err := securecode.ParseScheme(c.Code.Scheme, c.Code.Window.Std()); err != nil {
		errs = append(errs, fmt.Errorf("code: %w", err))
	}
	if c.Code.Window < 0 {
		errs = append(errs, errors.New("code.window must not be negative"))
	}
	if c.Code.SecretIdentity != "" && c.Code.SecretFile == "" {
		errs = append(errs, errors.New("code.secret_identity requires code.secret_file"))
	}

	if c.Sender.Host == "" {
		errs = append(errs, errors.New("sender.host is required"))
	}
	if c.Sender.Port < 1 || c.Sender.Port > 65535 {
		errs = append(errs, fmt.Errorf("sender.port %d out of range", c.Sender.Port))
	}
	if c.Sender.DialTimeout <= 0 {
		errs = append(errs, errors.New("sender.dial_timeout must be positive"))
	}
	if c.Sender.BreakerThreshold < 1 {
		errs = append(errs, errors.New("sender.breaker_threshold must be at least 1"))
	}
	if c.Sender.ExitGrace < 0 {
		errs = append(errs, errors.New("sender.exit_grace must not be negative"))
	}

	if c.Inbox.MaxMessages < 1 {
		errs = append(errs, errors.New("inbox.max_messages must be at least 1"))
	}
	if c.Inbox.DecayAfter <= 0 {
		errs = append(errs, errors.New("inbox.decay_after must be positive"))
	}
	if c.Inbox.LogMaxAge <= 0 {
		errs = append(errs, errors.New("inbox.log_max_age must be positive"))
	}

	return errors.Join(errs...)
}
