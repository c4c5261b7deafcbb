// Package avatarclient is a client for the avatar host's JSON-over-WebSocket
// "public API": a fixed vendor protocol for parameter injection, expression
// activation, hotkey triggering, and event subscription. It owns request/
// response correlation by request id and token acquisition and reuse. It
// does not reconnect by itself: when the socket closes, the client is
// marked disconnected and keeps its token for a later ConnectAndAuthenticate.
package avatarclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nekro-live/animctl/internal/errs"
	"github.com/nekro-live/animctl/internal/log"
)

const (
	apiName       = "VTubeStudioPublicAPI"
	apiVersion    = "1.0"
	requestTimeout = 30 * time.Second

	// connectionClosedType marks the envelope failAllPending hands to every
	// outstanding call; it never appears on the wire.
	connectionClosedType = "animctl.ConnectionClosed"
)

// EventHandler receives a decoded event payload. Handlers run on their own
// goroutine and must not block; a slow handler only delays its own delivery,
// never the receive loop.
type EventHandler func(data json.RawMessage)

// envelope is the wire shape shared by every request and response. Fields
// are ordered to match what the host sends; requestID correlates a response
// back to the pending call that sent it.
type envelope struct {
	APIName     string          `json:"apiName"`
	APIVersion  string          `json:"apiVersion"`
	RequestID   string          `json:"requestID,omitempty"`
	MessageType string          `json:"messageType"`
	Data        json.RawMessage `json:"data,omitempty"`
}

type apiErrorData struct {
	ErrorID int    `json:"errorID"`
	Message string `json:"message"`
}

type pendingCall struct {
	messageType string
	done        chan envelope
}

// Client is a single stateful connection to the avatar host. It is safe for
// concurrent use by multiple goroutines.
type Client struct {
	endpoint        string
	pluginName      string
	pluginDeveloper string
	pluginIcon      string

	logger *slog.Logger

	connMu    sync.Mutex
	conn      *websocket.Conn
	connected bool
	token     string

	pendingMu sync.Mutex
	pending   map[string]*pendingCall

	handlersMu sync.Mutex
	handlers   map[string][]EventHandler

	cancel context.CancelFunc
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithPluginIcon sets the base64-encoded icon advertised during token
// requests. Optional; the host accepts an empty icon.
func WithPluginIcon(icon string) Option {
	return func(c *Client) { c.pluginIcon = icon }
}

// WithLogger overrides the default package logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client bound to endpoint (e.g. "ws://localhost:8001") under
// the given plugin identity. It does not connect.
func New(endpoint, pluginName, pluginDeveloper string, opts ...Option) *Client {
	c := &Client{
		endpoint:        endpoint,
		pluginName:      pluginName,
		pluginDeveloper: pluginDeveloper,
		logger:          log.L().With("component", "avatarclient"),
		pending:         make(map[string]*pendingCall),
		handlers:        make(map[string][]EventHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens the WebSocket and starts the background receive loop. It
// does not authenticate.
func (c *Client) Connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.endpoint, nil)
	if err != nil {
		return &errs.ConnectionError{Target: c.endpoint, Err: err}
	}

	runCtx, runCancel := context.WithCancel(context.Background())

	c.connMu.Lock()
	c.conn = conn
	c.connected = true
	c.cancel = runCancel
	c.connMu.Unlock()

	go c.receiveLoop(runCtx, conn)

	c.logger.Info("connected to avatar host", "endpoint", c.endpoint)
	return nil
}

// Disconnect closes the socket and fails every pending call with
// ErrConnectionClosed. The authentication token is preserved for reuse on a
// subsequent Connect.
func (c *Client) Disconnect() {
	c.connMu.Lock()
	conn := c.conn
	cancel := c.cancel
	c.conn = nil
	c.connected = false
	c.connMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
}

// IsConnected reports whether the socket is currently open.
func (c *Client) IsConnected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.connected
}

// Token returns the last authentication token obtained, or "" if none.
func (c *Client) Token() string {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.token
}

// ConnectAndAuthenticate dials the host, checks whether this session is
// already authenticated, and otherwise performs the token-request +
// authenticate handshake. token, if non-empty, is tried first and reused on
// success; a fresh token is requested only when it is empty or rejected.
// Returns the token now in effect and whether authentication succeeded.
func (c *Client) ConnectAndAuthenticate(ctx context.Context, token string) (string, bool, error) {
	if err := c.Connect(ctx); err != nil {
		return "", false, err
	}

	state, err := c.APIState(ctx)
	if err != nil {
		c.Disconnect()
		return "", false, err
	}
	if state.CurrentSessionAuthenticated {
		c.connMu.Lock()
		c.token = token
		c.connMu.Unlock()
		return token, true, nil
	}

	if token == "" {
		token, err = c.requestToken(ctx)
		if err != nil {
			c.Disconnect()
			return "", false, err
		}
	}

	ok, err := c.authenticate(ctx, token)
	if err != nil {
		c.Disconnect()
		return "", false, err
	}
	if !ok {
		// Token rejected; request a fresh one and try exactly once more.
		token, err = c.requestToken(ctx)
		if err != nil {
			c.Disconnect()
			return "", false, err
		}
		ok, err = c.authenticate(ctx, token)
		if err != nil {
			c.Disconnect()
			return "", false, err
		}
	}

	if !ok {
		c.Disconnect()
		return "", false, &errs.AuthenticationError{Reason: "host rejected authentication token"}
	}

	c.connMu.Lock()
	c.token = token
	c.connMu.Unlock()
	return token, true, nil
}

func (c *Client) requestToken(ctx context.Context) (string, error) {
	var resp struct {
		AuthenticationToken string `json:"authenticationToken"`
	}
	if err := c.request(ctx, "AuthenticationTokenRequest", map[string]any{
		"pluginName":      c.pluginName,
		"pluginDeveloper": c.pluginDeveloper,
		"pluginIcon":      c.pluginIcon,
	}, &resp); err != nil {
		return "", err
	}
	if resp.AuthenticationToken == "" {
		return "", &errs.AuthenticationError{Reason: "host returned an empty token"}
	}
	return resp.AuthenticationToken, nil
}

func (c *Client) authenticate(ctx context.Context, token string) (bool, error) {
	var resp struct {
		Authenticated bool   `json:"authenticated"`
		Reason        string `json:"reason"`
	}
	if err := c.request(ctx, "AuthenticationRequest", map[string]any{
		"pluginName":          c.pluginName,
		"pluginDeveloper":     c.pluginDeveloper,
		"authenticationToken": token,
		"pluginIcon":          c.pluginIcon,
	}, &resp); err != nil {
		return false, err
	}
	return resp.Authenticated, nil
}

// request sends messageType with data marshalled as the request body,
// decodes the response's data field into out, and surfaces host-side
// errors as *errs.ApiError.
func (c *Client) request(ctx context.Context, messageType string, data any, out any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return &errs.ResponseError{Reason: "encoding request", Err: err}
	}

	resp, err := c.sendRaw(ctx, messageType, raw)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return &errs.ResponseError{Reason: fmt.Sprintf("decoding %s response", messageType), Err: err}
	}
	return nil
}

func (c *Client) sendRaw(ctx context.Context, messageType string, data json.RawMessage) (envelope, error) {
	c.connMu.Lock()
	conn := c.conn
	connected := c.connected
	c.connMu.Unlock()

	if !connected || conn == nil {
		return envelope{}, &errs.ConnectionError{Target: c.endpoint, Err: errs.ErrConnectionClosed}
	}

	requestID := uuid.NewString()
	call := &pendingCall{messageType: messageType, done: make(chan envelope, 1)}

	c.pendingMu.Lock()
	c.pending[requestID] = call
	c.pendingMu.Unlock()

	msg := envelope{
		APIName:     apiName,
		APIVersion:  apiVersion,
		RequestID:   requestID,
		MessageType: messageType,
		Data:        data,
	}

	c.connMu.Lock()
	writeErr := conn.WriteJSON(msg)
	c.connMu.Unlock()

	if writeErr != nil {
		c.pendingMu.Lock()
		delete(c.pending, requestID)
		c.pendingMu.Unlock()
		return envelope{}, &errs.ResponseError{Reason: "sending request", Err: writeErr}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	select {
	case resp := <-call.done:
		if resp.MessageType == connectionClosedType {
			return envelope{}, &errs.ConnectionError{Target: c.endpoint, Err: errs.ErrConnectionClosed}
		}
		if resp.MessageType == "APIError" {
			var ed apiErrorData
			_ = json.Unmarshal(resp.Data, &ed)
			return envelope{}, &errs.ApiError{ID: ed.ErrorID, Message: ed.Message}
		}
		return resp, nil
	case <-timeoutCtx.Done():
		c.pendingMu.Lock()
		delete(c.pending, requestID)
		c.pendingMu.Unlock()
		return envelope{}, &errs.ResponseError{Reason: fmt.Sprintf("%s timed out", messageType), Err: errs.ErrRequestTimeout}
	}
}

// receiveLoop reads frames until the socket closes or runCtx is cancelled.
// Every pending call still outstanding when it exits is failed with
// ErrConnectionClosed so no caller blocks forever on a dead socket.
func (c *Client) receiveLoop(runCtx context.Context, conn *websocket.Conn) {
	defer c.failAllPending()

	for {
		select {
		case <-runCtx.Done():
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("avatar host connection closed unexpectedly", "error", err)
			}
			c.connMu.Lock()
			c.connected = false
			c.connMu.Unlock()
			return
		}

		var msg envelope
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("dropping unparseable frame", "error", err)
			continue
		}

		if msg.RequestID != "" {
			c.pendingMu.Lock()
			call, ok := c.pending[msg.RequestID]
			if ok {
				delete(c.pending, msg.RequestID)
			}
			c.pendingMu.Unlock()
			if ok {
				call.done <- msg
				continue
			}
		}

		c.handlersMu.Lock()
		hs := append([]EventHandler(nil), c.handlers[msg.MessageType]...)
		c.handlersMu.Unlock()
		if len(hs) == 0 {
			c.logger.Debug("dropping unsolicited frame", "messageType", msg.MessageType)
			continue
		}
		for _, h := range hs {
			go h(msg.Data)
		}
	}
}

func (c *Client) failAllPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, call := range c.pending {
		call.done <- envelope{MessageType: connectionClosedType}
		delete(c.pending, id)
	}
}

func mustMarshal(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// SubscribeEvent subscribes to event_name and routes future deliveries of
// that type to handler. config, if non-nil, is passed through as the
// event's subscription config.
func (c *Client) SubscribeEvent(ctx context.Context, eventName string, config map[string]any, handler EventHandler) error {
	c.handlersMu.Lock()
	c.handlers[eventName] = append(c.handlers[eventName], handler)
	c.handlersMu.Unlock()

	body := map[string]any{"eventName": eventName, "subscribe": true}
	if config != nil {
		body["config"] = config
	}
	return c.request(ctx, "EventSubscriptionRequest", body, nil)
}

// UnsubscribeEvent cancels a subscription. eventName == "" unsubscribes from
// every event type.
func (c *Client) UnsubscribeEvent(ctx context.Context, eventName string) error {
	body := map[string]any{"subscribe": false}
	if eventName != "" {
		body["eventName"] = eventName
		c.handlersMu.Lock()
		delete(c.handlers, eventName)
		c.handlersMu.Unlock()
	} else {
		c.handlersMu.Lock()
		c.handlers = make(map[string][]EventHandler)
		c.handlersMu.Unlock()
	}
	return c.request(ctx, "EventSubscriptionRequest", body, nil)
}
