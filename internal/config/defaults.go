package config

// Defaults returns the built-in configuration. It is the single source of
// default values for viper, `config init` and tests.
func Defaults() *Config {
	return &Config{
		Client: ClientConfig{
			URL:                  "ws://127.0.0.1:8080/ws/admin",
			ReconnectBaseMS:      1000,
			MaxReconnectAttempts: 10,
			PingIntervalMS:       30000,
			PongTimeoutMS:        5000,
			HandshakeTimeoutMS:   10000,
			WriteTimeoutMS:       15000,
			MaxQueueSize:         0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Dashboard: DashboardConfig{
			APIURL:       "http://127.0.0.1:8080",
			SenderID:     "admin-session-123",
			SnapshotPath: "~/.radmin/snapshot.db",
		},
		MockServer: MockServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
	}
}
