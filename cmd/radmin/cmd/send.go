package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brianly1003/radmin/internal/app"
	"github.com/brianly1003/radmin/internal/dashboard"
	"github.com/brianly1003/radmin/internal/realtime"
)

var (
	sendTimeout  time.Duration
	sendSenderID string
)

// sendCmd delivers a single admin message and exits.
var sendCmd = &cobra.Command{
	Use:   "send <conversationID> <text...>",
	Short: "Send one admin message",
	Long: `Connect, deliver one admin message into a conversation and exit.

The message is queued before the connection opens and written as soon as
it does. Reconnects follow the configured backoff until --timeout expires.

Examples:
  radmin send conv-1001 "Your appointment is confirmed."
  radmin send conv-1001 We will call you back --timeout 1m`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 30*time.Second, "give up after this long")
	sendCmd.Flags().StringVar(&sendSenderID, "sender", "", "sender id (overrides dashboard.sender_id)")
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg)

	senderID := cfg.Dashboard.SenderID
	if sendSenderID != "" {
		senderID = sendSenderID
	}

	conversationID := args[0]
	payload, err := dashboard.NewAdminMessage(conversationID, strings.Join(args[1:], " "), senderID)
	if err != nil {
		return err
	}

	opts := append(app.ClientOptions(cfg.Client), realtime.WithDialer(app.DialerFor(cfg.Client)))
	client := realtime.New(opts...)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := app.Deliver(ctx, client, cfg.Client.URL, payload); err != nil {
		return err
	}

	log.Info().Str("conversation", conversationID).Msg("admin message sent")
	fmt.Fprintf(cmd.OutOrStdout(), "Sent to %s\n", conversationID)
	return nil
}
