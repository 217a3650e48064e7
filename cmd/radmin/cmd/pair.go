package cmd

import (
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/brianly1003/radmin/internal/config"
	"github.com/brianly1003/radmin/internal/pairing"
)

const pairPNGSize = 256

var (
	pairJSON        bool
	pairURL         bool
	pairPNG         string
	pairExternalURL string
)

// pairCmd displays the QR code another admin device scans to join.
var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Display QR code for pairing another admin device",
	Long: `Display a QR code holding the backend URLs and sender id so another
admin device can connect to the same backend.

Examples:
  radmin pair                                  # QR code in the terminal
  radmin pair --json                           # pairing info as JSON
  radmin pair --url                            # URLs only
  radmin pair --png pair.png                   # write a PNG
  radmin pair --external-url https://x.ngrok.app`,
	RunE: runPair,
}

func init() {
	rootCmd.AddCommand(pairCmd)

	pairCmd.Flags().BoolVar(&pairJSON, "json", false, "output pairing info as JSON")
	pairCmd.Flags().BoolVar(&pairURL, "url", false, "output connection URLs only")
	pairCmd.Flags().StringVar(&pairPNG, "png", "", "write the QR code as PNG to this file")
	pairCmd.Flags().StringVar(&pairExternalURL, "external-url", "", "public base URL, e.g. a tunnel; derives both URLs")
}

func runPair(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	gen := newPairingGenerator(cfg, pairExternalURL, uuid.New().String())
	out := cmd.OutOrStdout()

	switch {
	case pairJSON:
		data, err := gen.GenerateJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, data)
		return nil
	case pairURL:
		return outputURL(out, gen.GetPairingInfo())
	case pairPNG != "":
		png, err := gen.GeneratePNG(pairPNGSize)
		if err != nil {
			return fmt.Errorf("failed to generate QR code: %w", err)
		}
		if err := os.WriteFile(pairPNG, png, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", pairPNG, err)
		}
		fmt.Fprintf(out, "Wrote %s\n", pairPNG)
		return nil
	}

	printPairingBox(out, gen.GetPairingInfo())
	return gen.WriteTerminal(out)
}

func newPairingGenerator(cfg *config.Config, externalURL, sessionID string) *pairing.QRGenerator {
	gen := pairing.NewQRGenerator(cfg.Client.URL, cfg.Dashboard.APIURL, cfg.Dashboard.SenderID, sessionID)
	if externalURL != "" {
		gen.SetExternalURL(externalURL, socketPath(cfg.Client.URL))
	}
	return gen
}

// socketPath returns the path component of a WebSocket URL.
func socketPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Path
}

func outputURL(w io.Writer, info *pairing.PairingInfo) error {
	fmt.Fprintf(w, "WebSocket: %s\n", info.WebSocket)
	fmt.Fprintf(w, "HTTP:      %s\n", info.HTTP)
	return nil
}

func printPairingBox(w io.Writer, info *pairing.PairingInfo) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                     radmin Pairing                         ║")
	fmt.Fprintln(w, "╠════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  WebSocket: %-47s ║\n", truncate(info.WebSocket, 47))
	fmt.Fprintf(w, "║  HTTP:      %-47s ║\n", truncate(info.HTTP, 47))
	fmt.Fprintf(w, "║  Sender:    %-47s ║\n", truncate(info.SenderID, 47))
	fmt.Fprintf(w, "║  Session:   %-47s ║\n", truncate(info.SessionID, 47))
	fmt.Fprintln(w, "╚════════════════════════════════════════════════════════════╝")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
