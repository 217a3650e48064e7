package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// Validate validates the configuration.
func Validate(cfg *Config) error {
	if err := validateClient(&cfg.Client); err != nil {
		return err
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}

	if err := validateDashboard(&cfg.Dashboard); err != nil {
		return err
	}

	if err := validateMockServer(&cfg.MockServer); err != nil {
		return err
	}

	return nil
}

func validateClient(cfg *ClientConfig) error {
	if cfg.URL == "" {
		return fmt.Errorf("client.url cannot be empty")
	}
	if err := validateURL(cfg.URL, "client.url", []string{"ws", "wss"}); err != nil {
		return err
	}
	if cfg.ReconnectBaseMS < 1 {
		return fmt.Errorf("client.reconnect_base_ms must be at least 1")
	}
	if cfg.ReconnectBaseMS > 30000 {
		return fmt.Errorf("client.reconnect_base_ms cannot exceed 30000")
	}
	if cfg.MaxReconnectAttempts < 0 {
		return fmt.Errorf("client.max_reconnect_attempts cannot be negative")
	}
	if cfg.PingIntervalMS < 100 {
		return fmt.Errorf("client.ping_interval_ms must be at least 100")
	}
	if cfg.PongTimeoutMS < 100 {
		return fmt.Errorf("client.pong_timeout_ms must be at least 100")
	}
	if cfg.PongTimeoutMS >= cfg.PingIntervalMS {
		return fmt.Errorf("client.pong_timeout_ms must be less than client.ping_interval_ms")
	}
	if cfg.HandshakeTimeoutMS < 1 {
		return fmt.Errorf("client.handshake_timeout_ms must be at least 1")
	}
	if cfg.WriteTimeoutMS < 1 {
		return fmt.Errorf("client.write_timeout_ms must be at least 1")
	}
	if cfg.MaxQueueSize < 0 {
		return fmt.Errorf("client.max_queue_size cannot be negative")
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	if _, err := zerolog.ParseLevel(cfg.Level); err != nil || cfg.Level == "" {
		return fmt.Errorf("logging.level is not a valid level: %q", cfg.Level)
	}
	switch cfg.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json")
	}
	return nil
}

func validateDashboard(cfg *DashboardConfig) error {
	if cfg.APIURL != "" {
		if err := validateURL(cfg.APIURL, "dashboard.api_url", []string{"http", "https"}); err != nil {
			return err
		}
	}
	if strings.TrimSpace(cfg.SenderID) == "" {
		return fmt.Errorf("dashboard.sender_id cannot be empty")
	}
	return nil
}

func validateMockServer(cfg *MockServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("mock_server.port must be between 1 and 65535")
	}
	if cfg.Host == "" {
		return fmt.Errorf("mock_server.host cannot be empty")
	}
	for _, origin := range cfg.AllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("mock_server.allowed_origins cannot contain empty entries")
		}
	}
	return nil
}

// validateURL validates that a URL is well-formed and uses an allowed scheme.
func validateURL(rawURL, fieldName string, allowedSchemes []string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", fieldName, err)
	}

	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", fieldName)
	}

	for _, scheme := range allowedSchemes {
		if strings.EqualFold(parsed.Scheme, scheme) {
			return nil
		}
	}
	return fmt.Errorf("%s must use one of these schemes: %s", fieldName, strings.Join(allowedSchemes, ", "))
}
