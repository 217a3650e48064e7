package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/brianly1003/radmin/internal/app"
	"github.com/brianly1003/radmin/internal/config"
)

var (
	watchURL        string
	watchAPIURL     string
	watchNoSnapshot bool
)

// watchCmd runs the interactive console.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the live admin console",
	Long: `Connect to the backend and print conversation and status updates as
they arrive.

Type "<conversationID> <text>" and press enter to reply to a user. Replies
typed while the connection is down are queued and sent on reconnect.

Editing the config file while the console runs reloads the log level.

Examples:
  radmin watch
  radmin watch --url wss://bot.example.com/ws/admin --api-url https://bot.example.com
  radmin watch --no-snapshot`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchURL, "url", "", "WebSocket URL of the admin endpoint (overrides client.url)")
	watchCmd.Flags().StringVar(&watchAPIURL, "api-url", "", "base URL of the conversations API (overrides dashboard.api_url)")
	watchCmd.Flags().BoolVar(&watchNoSnapshot, "no-snapshot", false, "do not restore or save the local snapshot")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, used, err := config.Watch(cfgFile, func(next *config.Config) {
		level := logLevel(next)
		zerolog.SetGlobalLevel(level)
		log.Info().Str("level", level.String()).Msg("log level applied")
	})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if watchURL != "" {
		cfg.Client.URL = watchURL
	}
	if watchAPIURL != "" {
		cfg.Dashboard.APIURL = watchAPIURL
	}
	if watchNoSnapshot {
		cfg.Dashboard.SnapshotPath = ""
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(cfg)
	if used != "" {
		log.Debug().Str("file", used).Msg("watching config file")
	}

	feedLevel := slog.LevelInfo
	if verbose {
		feedLevel = slog.LevelDebug
	}
	color := term.IsTerminal(int(os.Stdout.Fd()))
	application := app.New(cfg, version, app.WithFeed(app.NewFeedLogger(os.Stdout, color, feedLevel)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := application.Start(ctx, os.Stdin); err != nil {
		return fmt.Errorf("application error: %w", err)
	}
	return nil
}
