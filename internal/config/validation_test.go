package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults valid", func(*Config) {}, ""},
		{"empty url", func(c *Config) { c.Client.URL = "" }, "client.url cannot be empty"},
		{"http url", func(c *Config) { c.Client.URL = "http://host/ws" }, "client.url must use one of these schemes"},
		{"url without host", func(c *Config) { c.Client.URL = "ws:///path" }, "client.url must include a host"},
		{"wss allowed", func(c *Config) { c.Client.URL = "wss://host/ws" }, ""},
		{"zero base delay", func(c *Config) { c.Client.ReconnectBaseMS = 0 }, "reconnect_base_ms must be at least 1"},
		{"huge base delay", func(c *Config) { c.Client.ReconnectBaseMS = 60000 }, "reconnect_base_ms cannot exceed"},
		{"negative attempts", func(c *Config) { c.Client.MaxReconnectAttempts = -1 }, "max_reconnect_attempts cannot be negative"},
		{"zero attempts allowed", func(c *Config) { c.Client.MaxReconnectAttempts = 0 }, ""},
		{"tiny ping", func(c *Config) { c.Client.PingIntervalMS = 10 }, "ping_interval_ms must be at least 100"},
		{"pong not below ping", func(c *Config) {
			c.Client.PingIntervalMS = 1000
			c.Client.PongTimeoutMS = 1000
		}, "must be less than client.ping_interval_ms"},
		{"negative queue", func(c *Config) { c.Client.MaxQueueSize = -5 }, "max_queue_size cannot be negative"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"empty level", func(c *Config) { c.Logging.Level = "" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad api url", func(c *Config) { c.Dashboard.APIURL = "ftp://host" }, "dashboard.api_url"},
		{"empty api url allowed", func(c *Config) { c.Dashboard.APIURL = "" }, ""},
		{"blank sender", func(c *Config) { c.Dashboard.SenderID = "  " }, "dashboard.sender_id"},
		{"port too high", func(c *Config) { c.MockServer.Port = 70000 }, "mock_server.port"},
		{"empty host", func(c *Config) { c.MockServer.Host = "" }, "mock_server.host"},
		{"empty origin", func(c *Config) { c.MockServer.AllowedOrigins = []string{"https://a.example", " "} }, "mock_server.allowed_origins"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
