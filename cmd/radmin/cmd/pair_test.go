package cmd

import (
	"strings"
	"testing"

	"github.com/brianly1003/radmin/internal/config"
)

func TestSocketPath(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"ws://127.0.0.1:8080/ws/admin", "/ws/admin"},
		{"wss://bot.example.com/admin", "/admin"},
		{"wss://bot.example.com", ""},
		{"://bad", ""},
	}

	for _, tt := range tests {
		if got := socketPath(tt.url); got != tt.want {
			t.Errorf("socketPath(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestNewPairingGenerator(t *testing.T) {
	cfg := config.Defaults()

	info := newPairingGenerator(cfg, "", "sess-1").GetPairingInfo()
	if info.WebSocket != cfg.Client.URL || info.HTTP != cfg.Dashboard.APIURL {
		t.Fatalf("config URLs not used: %+v", info)
	}
	if info.SenderID != cfg.Dashboard.SenderID || info.SessionID != "sess-1" {
		t.Fatalf("unexpected ids: %+v", info)
	}

	info = newPairingGenerator(cfg, "https://abc.devtunnels.ms/", "sess-2").GetPairingInfo()
	if info.HTTP != "https://abc.devtunnels.ms" {
		t.Errorf("HTTP = %q", info.HTTP)
	}
	if info.WebSocket != "wss://abc.devtunnels.ms/ws/admin" {
		t.Errorf("WebSocket = %q", info.WebSocket)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	got := truncate(strings.Repeat("x", 20), 10)
	if len(got) != 10 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncate long = %q", got)
	}
}
