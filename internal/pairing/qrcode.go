// Package pairing renders the console's connection details as a QR code so
// another admin device can join the same backend.
package pairing

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/skip2/go-qrcode"
)

// PairingInfo contains the information encoded in the QR code.
type PairingInfo struct {
	WebSocket string `json:"ws"`
	HTTP      string `json:"http"`
	SenderID  string `json:"sender"`
	SessionID string `json:"session"`
}

// QRGenerator generates QR codes for admin pairing.
type QRGenerator struct {
	wsURL     string
	httpURL   string
	senderID  string
	sessionID string
}

// NewQRGenerator creates a new QR code generator.
func NewQRGenerator(wsURL, httpURL, senderID, sessionID string) *QRGenerator {
	return &QRGenerator{
		wsURL:     wsURL,
		httpURL:   strings.TrimRight(httpURL, "/"),
		senderID:  senderID,
		sessionID: sessionID,
	}
}

// SetExternalURL points both URLs at a public base URL, e.g. a tunnel.
// The WebSocket URL keeps the path of the configured one.
func (g *QRGenerator) SetExternalURL(baseURL, wsPath string) {
	g.httpURL, g.wsURL = DeriveURLs(baseURL, wsPath)
}

// GetPairingInfo returns the pairing information.
func (g *QRGenerator) GetPairingInfo() *PairingInfo {
	return &PairingInfo{
		WebSocket: g.wsURL,
		HTTP:      g.httpURL,
		SenderID:  g.senderID,
		SessionID: g.sessionID,
	}
}

// GenerateJSON returns the pairing info as JSON.
func (g *QRGenerator) GenerateJSON() (string, error) {
	data, err := json.Marshal(g.GetPairingInfo())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GenerateTerminal generates a QR code for terminal display.
func (g *QRGenerator) GenerateTerminal() (string, error) {
	jsonData, err := g.GenerateJSON()
	if err != nil {
		return "", err
	}

	qr, err := qrcode.New(jsonData, qrcode.Medium)
	if err != nil {
		return "", err
	}
	return qr.ToSmallString(false), nil
}

// GeneratePNG generates a PNG image of the QR code.
func (g *QRGenerator) GeneratePNG(size int) ([]byte, error) {
	jsonData, err := g.GenerateJSON()
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(jsonData, qrcode.Medium, size)
}

// WriteTerminal writes the QR code to w with an indent and a caption.
func (g *QRGenerator) WriteTerminal(w io.Writer) error {
	qrStr, err := g.GenerateTerminal()
	if err != nil {
		return fmt.Errorf("generate QR code: %w", err)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Scan to join this admin console:")
	fmt.Fprintln(w)
	for _, line := range strings.Split(qrStr, "\n") {
		if line != "" {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	fmt.Fprintln(w)
	return nil
}

// DeriveURLs derives the HTTP and WebSocket URLs from one base URL.
//
//	https://abc.devtunnels.ms/ -> https://abc.devtunnels.ms, wss://abc.devtunnels.ms/ws/admin
func DeriveURLs(baseURL, wsPath string) (httpURL, wsURL string) {
	httpURL = strings.TrimRight(baseURL, "/")

	wsURL = httpURL
	if strings.HasPrefix(wsURL, "https://") {
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	} else if strings.HasPrefix(wsURL, "http://") {
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	if wsPath != "" && !strings.HasPrefix(wsPath, "/") {
		wsPath = "/" + wsPath
	}
	return httpURL, wsURL + wsPath
}
