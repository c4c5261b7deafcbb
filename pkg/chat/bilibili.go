package chat

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gorilla/websocket"

	"github.com/nekro-live/animctl/internal/log"
)

// The danmaku websocket's binary frame protocol: a 16-byte header
// (total length, header length, protocol version, operation, sequence)
// followed by a body whose shape depends on protocol version and
// operation. Grounded on the wire behavior BilibiliLiveClient's
// aiohttp/bilibili-api transport hides behind Python's higher-level event
// callbacks.
const (
	danmakuWSEndpoint = "wss://broadcastlv.chat.bilibili.com/sub"

	opHeartbeat      = 2
	opHeartbeatReply = 3
	opMessage        = 5
	opAuth           = 7
	opAuthReply      = 8

	headerLength = 16

	protoVersionJSON   = 0
	protoVersionZlib   = 2
	protoVersionBrotli = 3

	heartbeatInterval = 30 * time.Second
)

// RefreshFunc re-authenticates using a stale credential, returning a fresh
// one, or an error if the session has truly expired and a QR login is
// required instead.
type RefreshFunc func(ctx context.Context, stale Credentials) (Credentials, error)

// BilibiliSource connects to one room's danmaku websocket and decodes its
// binary-framed protocol into RawEvents. Grounded on
// clients/live/bilibili/live.py's BilibiliLiveClient: cached-credential
// auth with refresh-if-expiring, QR fallback, and a persistent connection
// that the owning Bridge reconnects on failure.
type BilibiliSource struct {
	RoomID int64

	Store   CredentialStore
	Refresh RefreshFunc
	QR      *QRLogin
	// QRLoginURL builds the login URL passed to QR.Display; required only
	// when Store holds no usable credential.
	QRLoginURL func() string

	logger *slog.Logger
}

// NewBilibiliSource creates a BilibiliSource for roomID, backed by store
// for credential caching.
func NewBilibiliSource(roomID int64, store CredentialStore) *BilibiliSource {
	return &BilibiliSource{
		RoomID: roomID,
		Store:  store,
		logger: log.L().With("component", "chat_bilibili"),
	}
}

// Run implements Source: authenticates (refreshing or falling back to QR
// login as needed), opens the danmaku websocket, and decodes frames into
// events until the connection drops or ctx is cancelled.
func (s *BilibiliSource) Run(ctx context.Context, events chan<- RawEvent) error {
	creds, err := s.authenticate(ctx)
	if err != nil {
		return fmt.Errorf("chat: bilibili authentication failed: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, danmakuWSEndpoint, nil)
	if err != nil {
		return fmt.Errorf("chat: dialing danmaku websocket: %w", err)
	}
	defer conn.Close()

	if err := s.sendAuth(conn, creds); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.heartbeatLoop(runCtx, conn)

	for {
		if ctx.Err() != nil {
			return nil
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("chat: danmaku websocket closed: %w", err)
		}
		if err := s.decodeFrame(raw, events); err != nil {
			s.logger.Warn("dropping undecodable danmaku frame", "error", err)
		}
	}
}

// authenticate loads the cached credential, refreshing it if it's expiring
// and falling all the way back to an interactive QR login if refresh
// isn't possible or fails. Any credential change is persisted immediately.
func (s *BilibiliSource) authenticate(ctx context.Context) (Credentials, error) {
	creds, loadErr := LoadCredentials(s.Store)
	if loadErr == nil {
		refreshed, err := validOrRefresh(ctx, creds, s.refreshOrFail)
		if err == nil {
			if refreshed != creds {
				_ = SaveCredentials(s.Store, refreshed)
			}
			return refreshed, nil
		}
		loadErr = err
	}

	if s.QR == nil || s.QRLoginURL == nil {
		return Credentials{}, fmt.Errorf("no cached credentials and no QR login configured: %w", loadErr)
	}
	creds, err := s.QR.Run(ctx, s.QRLoginURL())
	if err != nil {
		return Credentials{}, err
	}
	_ = SaveCredentials(s.Store, creds)
	return creds, nil
}

func (s *BilibiliSource) refreshOrFail(ctx context.Context, stale Credentials) (Credentials, error) {
	if s.Refresh == nil {
		return Credentials{}, fmt.Errorf("credential expiring and no refresh function configured")
	}
	return s.Refresh(ctx, stale)
}

type authPacket struct {
	UID      int64  `json:"uid"`
	RoomID   int64  `json:"roomid"`
	ProtoVer int    `json:"protover"`
	Platform string `json:"platform"`
	Type     int    `json:"type"`
	Key      string `json:"key"`
}

func (s *BilibiliSource) sendAuth(conn *websocket.Conn, creds Credentials) error {
	body, err := json.Marshal(authPacket{
		UID:      creds.UID,
		RoomID:   s.RoomID,
		ProtoVer: protoVersionBrotli,
		Platform: "web",
		Type:     2,
		Key:      creds.SESSDATA,
	})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, encodeFrame(opAuth, protoVersionJSON, body))
}

func (s *BilibiliSource) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := encodeFrame(opHeartbeat, protoVersionJSON, []byte("{}"))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				s.logger.Warn("sending heartbeat failed", "error", err)
				return
			}
		}
	}
}

func encodeFrame(op, protoVer int, body []byte) []byte {
	total := headerLength + len(body)
	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf[0:4], uint32(total))
	binary.BigEndian.PutUint16(buf[4:6], uint16(headerLength))
	binary.BigEndian.PutUint16(buf[6:8], uint16(protoVer))
	binary.BigEndian.PutUint32(buf[8:12], uint32(op))
	binary.BigEndian.PutUint32(buf[12:16], 1)
	copy(buf[headerLength:], body)
	return buf
}

// decodeFrame unpacks every frame packed into raw (more than one only
// when a compressed payload bundles several), recursing into zlib/brotli
// bodies and emitting a RawEvent per recognized command.
func (s *BilibiliSource) decodeFrame(raw []byte, events chan<- RawEvent) error {
	for len(raw) >= headerLength {
		total := int(binary.BigEndian.Uint32(raw[0:4]))
		hdrLen := int(binary.BigEndian.Uint16(raw[4:6]))
		protoVer := binary.BigEndian.Uint16(raw[6:8])
		op := binary.BigEndian.Uint32(raw[8:12])

		if total > len(raw) || hdrLen > total || hdrLen < headerLength {
			return fmt.Errorf("malformed frame header")
		}
		body := raw[hdrLen:total]

		if op == opMessage {
			switch protoVer {
			case protoVersionZlib:
				inflated, err := inflateZlib(body)
				if err != nil {
					return err
				}
				if err := s.decodeFrame(inflated, events); err != nil {
					return err
				}
			case protoVersionBrotli:
				inflated, err := inflateBrotli(body)
				if err != nil {
					return err
				}
				if err := s.decodeFrame(inflated, events); err != nil {
					return err
				}
			default:
				s.dispatchCommand(body, events)
			}
		}

		raw = raw[total:]
	}
	return nil
}

func inflateZlib(body []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func inflateBrotli(body []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
}

type commandEnvelope struct {
	Cmd  string          `json:"cmd"`
	Data json.RawMessage `json:"data"`
}

// dispatchCommand decodes one JSON command payload and, if it's a kind
// this bridge cares about, emits the corresponding RawEvent.
func (s *BilibiliSource) dispatchCommand(body []byte, events chan<- RawEvent) {
	var env commandEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		s.logger.Warn("dropping unparseable command", "error", err)
		return
	}

	var ev RawEvent
	var ok bool
	switch env.Cmd {
	case "DANMU_MSG":
		ev, ok = s.parseDanmaku(body)
	case "INTERACT_WORD":
		ev, ok = s.parseInteract(env.Data)
	case "SUPER_CHAT_MESSAGE":
		ev, ok = s.parseSuperChat(env.Data)
	case "SEND_GIFT":
		ev, ok = s.parseGift(env.Data)
	default:
		return
	}
	if ok {
		events <- ev
	}
}

// parseDanmaku extracts text and sender from DANMU_MSG's top-level "info"
// array: info[1] is the message text, info[2] is [uid, username, ...].
func (s *BilibiliSource) parseDanmaku(raw []byte) (RawEvent, bool) {
	var msg struct {
		Info []json.RawMessage `json:"info"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || len(msg.Info) < 3 {
		return RawEvent{}, false
	}
	var text string
	if err := json.Unmarshal(msg.Info[1], &text); err != nil {
		return RawEvent{}, false
	}
	var sender []json.RawMessage
	if err := json.Unmarshal(msg.Info[2], &sender); err != nil || len(sender) < 2 {
		return RawEvent{}, false
	}
	var uid int64
	var username string
	_ = json.Unmarshal(sender[0], &uid)
	_ = json.Unmarshal(sender[1], &username)

	return RawEvent{
		Kind:      EventDanmaku,
		Room:      fmt.Sprintf("%d", s.RoomID),
		UID:       fmt.Sprintf("%d", uid),
		Username:  username,
		Text:      text,
		Timestamp: time.Now().Unix(),
	}, true
}

func (s *BilibiliSource) parseInteract(data json.RawMessage) (RawEvent, bool) {
	var d struct {
		UID       int64  `json:"uid"`
		UName     string `json:"uname"`
		MsgType   int    `json:"msg_type"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return RawEvent{}, false
	}
	text := d.UName + " entered the room"
	if d.MsgType == 2 {
		text = d.UName + " followed"
	}
	return RawEvent{
		Kind:      EventInteract,
		Room:      fmt.Sprintf("%d", s.RoomID),
		UID:       fmt.Sprintf("%d", d.UID),
		Username:  d.UName,
		Text:      text,
		Timestamp: d.Timestamp,
	}, true
}

func (s *BilibiliSource) parseSuperChat(data json.RawMessage) (RawEvent, bool) {
	var d struct {
		UID      int64 `json:"uid"`
		UserInfo struct {
			UName string `json:"uname"`
		} `json:"user_info"`
		Message   string `json:"message"`
		StartTime int64  `json:"start_time"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return RawEvent{}, false
	}
	return RawEvent{
		Kind:      EventSuperChat,
		Room:      fmt.Sprintf("%d", s.RoomID),
		UID:       fmt.Sprintf("%d", d.UID),
		Username:  d.UserInfo.UName,
		Text:      d.Message,
		Timestamp: d.StartTime,
	}, true
}

func (s *BilibiliSource) parseGift(data json.RawMessage) (RawEvent, bool) {
	var d struct {
		UID       int64  `json:"uid"`
		UName     string `json:"uname"`
		GiftName  string `json:"giftName"`
		Num       int    `json:"num"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return RawEvent{}, false
	}
	return RawEvent{
		Kind:      EventGift,
		Room:      fmt.Sprintf("%d", s.RoomID),
		UID:       fmt.Sprintf("%d", d.UID),
		Username:  d.UName,
		Text:      fmt.Sprintf("sent %dx %s", d.Num, d.GiftName),
		Timestamp: d.Timestamp,
	}, true
}

var _ Source = (*BilibiliSource)(nil)
