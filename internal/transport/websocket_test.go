package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newEchoServer echoes text frames back and sends a binary frame first.
func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		_ = ws.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == "bye" {
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestWebSocketDialer_EchoRoundTrip(t *testing.T) {
	server := newEchoServer(t)
	defer server.Close()

	conn, err := NewWebSocketDialer().Dial(context.Background(), wsURL(server))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if conn.ID() == "" {
		t.Error("ID() should not be empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := conn.Write(ctx, []byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// The binary frame sent on connect must be skipped.
	got, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Read() = %q, want %q", got, "hello")
	}
}

func TestWebSocketConn_CleanCloseIsEOF(t *testing.T) {
	server := newEchoServer(t)
	defer server.Close()

	conn, err := NewWebSocketDialer().Dial(context.Background(), wsURL(server))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := conn.Write(ctx, []byte("bye")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	_, err = conn.Read(ctx)
	if !errors.Is(err, io.EOF) {
		t.Errorf("Read() error = %v, want io.EOF", err)
	}
}

func TestWebSocketConn_CloseIsIdempotent(t *testing.T) {
	server := newEchoServer(t)
	defer server.Close()

	conn, err := NewWebSocketDialer().Dial(context.Background(), wsURL(server))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	if err := conn.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	select {
	case <-conn.Done():
	default:
		t.Error("Done() should be closed after Close()")
	}

	if err := conn.Write(context.Background(), []byte("x")); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("Write() after Close error = %v, want ErrTransportClosed", err)
	}
	if _, err := conn.Read(context.Background()); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("Read() after Close error = %v, want ErrTransportClosed", err)
	}
}

func TestWebSocketDialer_Refused(t *testing.T) {
	server := newEchoServer(t)
	url := wsURL(server)
	server.Close()

	d := NewWebSocketDialer()
	d.HandshakeTimeout = time.Second

	if _, err := d.Dial(context.Background(), url); err == nil {
		t.Fatal("Dial() to closed server should fail")
	}
}
