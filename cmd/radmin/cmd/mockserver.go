package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brianly1003/radmin/internal/hub"
	"github.com/brianly1003/radmin/internal/mockserver"
)

const mockShutdownTimeout = 5 * time.Second

var (
	mockHost string
	mockPort int
)

// mockServerCmd runs a local stand-in for the chatbot backend.
var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run a local mock of the chatbot backend",
	Long: `Serve the conversations API and the admin WebSocket with seeded
data so the console can be tried without a real backend.

Admin messages sent to the mock are appended to the conversation and
broadcast to every connected console.

Examples:
  radmin mock-server
  radmin mock-server --port 9090`,
	RunE: runMockServer,
}

func init() {
	rootCmd.AddCommand(mockServerCmd)

	mockServerCmd.Flags().StringVar(&mockHost, "host", "", "bind address (overrides mock_server.host)")
	mockServerCmd.Flags().IntVar(&mockPort, "port", 0, "listen port (overrides mock_server.port)")
}

func runMockServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg)

	host := cfg.MockServer.Host
	if mockHost != "" {
		host = mockHost
	}
	port := cfg.MockServer.Port
	if mockPort != 0 {
		port = mockPort
	}

	h := hub.New()
	if err := h.Start(); err != nil {
		return fmt.Errorf("failed to start event hub: %w", err)
	}
	defer func() { _ = h.Stop() }()

	srv := mockserver.NewServer(host, port, h, mockserver.WithAllowedOrigins(cfg.MockServer.AllowedOrigins...))
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start mock server: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Mock backend listening on http://%s\n", srv.Addr())
	fmt.Fprintf(cmd.OutOrStdout(), "Admin socket: ws://%s%s\n", srv.Addr(), mockserver.AdminPath)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), mockShutdownTimeout)
	defer cancel()
	return srv.Stop(ctx)
}
