// Package config handles configuration management for radmin.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. RADMIN_CLIENT_URL.
const EnvPrefix = "RADMIN"

// Config holds all configuration for the application.
type Config struct {
	Client     ClientConfig     `mapstructure:"client" yaml:"client"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard" yaml:"dashboard"`
	MockServer MockServerConfig `mapstructure:"mock_server" yaml:"mock_server"`
}

// ClientConfig holds realtime client configuration.
type ClientConfig struct {
	URL                  string `mapstructure:"url" yaml:"url"`
	ReconnectBaseMS      int    `mapstructure:"reconnect_base_ms" yaml:"reconnect_base_ms"`
	MaxReconnectAttempts int    `mapstructure:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`
	PingIntervalMS       int    `mapstructure:"ping_interval_ms" yaml:"ping_interval_ms"`
	PongTimeoutMS        int    `mapstructure:"pong_timeout_ms" yaml:"pong_timeout_ms"`
	HandshakeTimeoutMS   int    `mapstructure:"handshake_timeout_ms" yaml:"handshake_timeout_ms"`
	WriteTimeoutMS       int    `mapstructure:"write_timeout_ms" yaml:"write_timeout_ms"`
	MaxQueueSize         int    `mapstructure:"max_queue_size" yaml:"max_queue_size"` // 0 means unbounded
}

// ReconnectBase returns the base reconnect delay.
func (c ClientConfig) ReconnectBase() time.Duration {
	return time.Duration(c.ReconnectBaseMS) * time.Millisecond
}

// PingInterval returns the heartbeat interval.
func (c ClientConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalMS) * time.Millisecond
}

// PongTimeout returns the heartbeat reply deadline.
func (c ClientConfig) PongTimeout() time.Duration {
	return time.Duration(c.PongTimeoutMS) * time.Millisecond
}

// HandshakeTimeout returns the dial handshake timeout.
func (c ClientConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutMS) * time.Millisecond
}

// WriteTimeout returns the per-write deadline.
func (c ClientConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMS) * time.Millisecond
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DashboardConfig holds admin console configuration.
type DashboardConfig struct {
	APIURL       string `mapstructure:"api_url" yaml:"api_url"`
	SenderID     string `mapstructure:"sender_id" yaml:"sender_id"`
	SnapshotPath string `mapstructure:"snapshot_path" yaml:"snapshot_path"` // empty disables the snapshot
}

// MockServerConfig holds mock backend configuration.
type MockServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`

	// AllowedOrigins lists browser origins accepted on the admin socket,
	// exact or "*.example.com". Empty allows loopback origins on a loopback
	// bind and everything otherwise.
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	cfg, _, err := load(configPath)
	return cfg, err
}

// Watch loads configuration like Load and then calls onChange with the
// reloaded configuration whenever the config file changes. Invalid edits
// are logged and skipped. It returns the path of the file being watched,
// or "" when no config file was found.
func Watch(configPath string, onChange func(*Config)) (*Config, string, error) {
	cfg, v, err := load(configPath)
	if err != nil {
		return nil, "", err
	}

	used := v.ConfigFileUsed()
	if used == "" {
		return cfg, "", nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name).Msg("ignoring invalid config change")
			return
		}
		log.Info().Str("file", e.Name).Msg("config reloaded")
		onChange(next)
	})
	v.WatchConfig()

	return cfg, used, nil
}

func load(configPath string) (*Config, *viper.Viper, error) {
	v := viper.New()

	// Set config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default search paths
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.radmin")
		v.AddConfigPath("/etc/radmin")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - not an error if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := postProcess(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key of Defaults with viper so that
// environment overrides apply to keys absent from the file.
func setDefaults(v *viper.Viper) {
	d := Defaults()

	v.SetDefault("client.url", d.Client.URL)
	v.SetDefault("client.reconnect_base_ms", d.Client.ReconnectBaseMS)
	v.SetDefault("client.max_reconnect_attempts", d.Client.MaxReconnectAttempts)
	v.SetDefault("client.ping_interval_ms", d.Client.PingIntervalMS)
	v.SetDefault("client.pong_timeout_ms", d.Client.PongTimeoutMS)
	v.SetDefault("client.handshake_timeout_ms", d.Client.HandshakeTimeoutMS)
	v.SetDefault("client.write_timeout_ms", d.Client.WriteTimeoutMS)
	v.SetDefault("client.max_queue_size", d.Client.MaxQueueSize)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("dashboard.api_url", d.Dashboard.APIURL)
	v.SetDefault("dashboard.sender_id", d.Dashboard.SenderID)
	v.SetDefault("dashboard.snapshot_path", d.Dashboard.SnapshotPath)

	v.SetDefault("mock_server.host", d.MockServer.Host)
	v.SetDefault("mock_server.port", d.MockServer.Port)
	v.SetDefault("mock_server.allowed_origins", d.MockServer.AllowedOrigins)
}

// postProcess applies post-processing to configuration.
func postProcess(cfg *Config) error {
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	cfg.Dashboard.APIURL = strings.TrimRight(cfg.Dashboard.APIURL, "/")

	if cfg.Dashboard.SnapshotPath != "" {
		path, err := expandHome(cfg.Dashboard.SnapshotPath)
		if err != nil {
			return fmt.Errorf("failed to resolve dashboard.snapshot_path: %w", err)
		}
		cfg.Dashboard.SnapshotPath = path
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ToYAML renders cfg as YAML.
func ToYAML(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// WriteFile writes cfg as YAML to path, creating parent directories.
func WriteFile(path string, cfg *Config) error {
	data, err := ToYAML(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	header := []byte("# radmin configuration\n# Environment overrides use the " + EnvPrefix + "_ prefix, e.g. " + EnvPrefix + "_CLIENT_URL.\n\n")
	return os.WriteFile(path, append(header, data...), 0644)
}

// GetConfigDir returns the user config directory for radmin.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".radmin"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
