package avatarclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockHost is a minimal stand-in for the avatar host's WebSocket API. It
// answers a fixed set of message types the way the real host would for an
// already-authenticated or freshly-authenticating session.
type mockHost struct {
	authenticated bool
	upgrader      websocket.Upgrader
}

func newMockHost(preAuthenticated bool) *httptest.Server {
	h := &mockHost{authenticated: preAuthenticated}
	return httptest.NewServer(http.HandlerFunc(h.serve))
}

func (h *mockHost) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var msg envelope
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		resp := envelope{
			APIName:     apiName,
			APIVersion:  apiVersion,
			RequestID:   msg.RequestID,
			MessageType: msg.MessageType + "Response",
		}

		switch msg.MessageType {
		case "APIStateRequest":
			resp.Data = mustMarshal(map[string]any{
				"active":                      true,
				"currentSessionAuthenticated": h.authenticated,
			})
		case "AuthenticationTokenRequest":
			resp.Data = mustMarshal(map[string]any{"authenticationToken": "tok-123"})
		case "AuthenticationRequest":
			var body struct {
				AuthenticationToken string `json:"authenticationToken"`
			}
			_ = json.Unmarshal(msg.Data, &body)
			ok := body.AuthenticationToken == "tok-123"
			h.authenticated = ok
			resp.Data = mustMarshal(map[string]any{"authenticated": ok})
		case "FaceFoundRequest":
			resp.Data = mustMarshal(map[string]any{"found": true})
		case "HotkeyTriggerRequest":
			resp.Data = mustMarshal(map[string]any{})
		default:
			resp.MessageType = "APIError"
			resp.Data = mustMarshal(apiErrorData{ErrorID: 50, Message: "unhandled in test"})
		}

		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectAndAuthenticate_FreshToken(t *testing.T) {
	srv := newMockHost(false)
	defer srv.Close()

	c := New(wsURL(srv), "test-plugin", "test-dev")
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token, ok, err := c.ConnectAndAuthenticate(ctx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected authentication to succeed")
	}
	if token != "tok-123" {
		t.Fatalf("expected token tok-123, got %q", token)
	}
	if c.Token() != token {
		t.Fatalf("Token() = %q, want %q", c.Token(), token)
	}
}

func TestConnectAndAuthenticate_AlreadyAuthenticated(t *testing.T) {
	srv := newMockHost(true)
	defer srv.Close()

	c := New(wsURL(srv), "test-plugin", "test-dev")
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, ok, err := c.ConnectAndAuthenticate(ctx, "stale-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected authentication to short-circuit as already-authenticated")
	}
}

func TestTypedOperation_RoundTrip(t *testing.T) {
	srv := newMockHost(true)
	defer srv.Close()

	c := New(wsURL(srv), "test-plugin", "test-dev")
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, _, err := c.ConnectAndAuthenticate(ctx, "tok-123"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	found, err := c.IsFaceFound(ctx)
	if err != nil {
		t.Fatalf("IsFaceFound: %v", err)
	}
	if !found {
		t.Fatal("expected found=true from mock host")
	}

	if err := c.TriggerHotkey(ctx, "hk1", ""); err != nil {
		t.Fatalf("TriggerHotkey: %v", err)
	}
}

func TestRequest_HostErrorSurfacesAsApiError(t *testing.T) {
	srv := newMockHost(true)
	defer srv.Close()

	c := New(wsURL(srv), "test-plugin", "test-dev")
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, _, err := c.ConnectAndAuthenticate(ctx, "tok-123"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	_, err := c.Statistics(ctx)
	if err == nil {
		t.Fatal("expected an error for an unhandled message type")
	}
	apiErr, ok := err.(interface{ Error() string })
	if !ok || !strings.Contains(apiErr.Error(), "api error 50") {
		t.Fatalf("expected ApiError carrying id 50, got %v", err)
	}
}

func TestDisconnect_FailsPendingCalls(t *testing.T) {
	// A server that upgrades but never responds, forcing the client's
	// pending call to hang until Disconnect tears down the socket.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Read and discard without ever answering.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := New(wsURL(srv), "test-plugin", "test-dev")
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Statistics(context.Background())
		errCh <- err
	}()

	// Give the request time to land before yanking the connection.
	time.Sleep(50 * time.Millisecond)
	c.Disconnect()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected pending call to fail after Disconnect")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending call was not failed after Disconnect")
	}
}
