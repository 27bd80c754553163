package onebot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/edgard/bymbot/internal/config"
)

const (
	handshakeTimeout     = 10 * time.Second
	defaultAPITimeout    = 8 * time.Second
	minReconnectInterval = time.Second
	dedupSize            = 1024
)

// ErrNotConnected is returned by Call while the websocket is down.
var ErrNotConnected = errors.New("onebot websocket not connected")

// APIError is a failed OneBot action.
type APIError struct {
	Action  string
	RetCode int64
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("onebot %s failed: retcode=%d %s", e.Action, e.RetCode, e.Message)
}

// Handler receives group message events. It runs on its own goroutine.
type Handler func(ctx context.Context, evt *Event)

type apiRequest struct {
	Action string `json:"action"`
	Params any    `json:"params"`
	Echo   string `json:"echo"`
}

// Client is a OneBot v11 forward websocket client.
type Client struct {
	cfg    config.OneBotConfig
	log    *slog.Logger
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn

	writeMu sync.Mutex
	echo    atomic.Uint64
	selfID  atomic.Int64

	waitMu  sync.Mutex
	waiters map[string]chan gjson.Result

	dedupMu   sync.Mutex
	dedup     map[string]struct{}
	dedupRing []string
	dedupIdx  int
}

// NewClient creates a client for cfg.WSURL. It does not connect until Run.
func NewClient(cfg config.OneBotConfig, logger *slog.Logger) (*Client, error) {
	if cfg.WSURL == "" {
		return nil, errors.New("onebot ws_url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:       cfg,
		log:       logger.With("component", "onebot_client"),
		dialer:    &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment},
		waiters:   make(map[string]chan gjson.Result),
		dedup:     make(map[string]struct{}, dedupSize),
		dedupRing: make([]string, dedupSize),
	}, nil
}

// SelfID returns the bot's QQ number once an event or get_login_info has
// revealed it, or 0.
func (c *Client) SelfID() int64 {
	return c.selfID.Load()
}

// Run connects and dispatches events until ctx is cancelled, reconnecting
// after cfg.ReconnectInterval. With a zero interval the first disconnect is
// returned as an error.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	interval := c.cfg.ReconnectInterval
	if interval > 0 && interval < minReconnectInterval {
		interval = minReconnectInterval
	}

	for {
		err := c.connect(ctx)
		if err == nil {
			err = c.readLoop(ctx, handler)
		}
		if ctx.Err() != nil {
			return nil
		}
		if interval == 0 {
			return fmt.Errorf("onebot connection lost: %w", err)
		}
		c.log.WarnContext(ctx, "OneBot connection lost, reconnecting", "error", err, "interval", interval)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (c *Client) connect(ctx context.Context) error {
	header := http.Header{}
	if c.cfg.AccessToken != "" {
		header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.WSURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.cfg.WSURL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.log.InfoContext(ctx, "OneBot websocket connected", "url", c.cfg.WSURL)
	return nil
}

func (c *Client) readLoop(ctx context.Context, handler Handler) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if !gjson.ValidBytes(payload) {
			c.log.WarnContext(ctx, "Discarding invalid OneBot payload", "length", len(payload))
			continue
		}

		root := gjson.ParseBytes(payload)
		if echo := root.Get("echo"); echo.Exists() && !root.Get("post_type").Exists() {
			c.resolve(echo.String(), root)
			continue
		}
		if id := root.Get("self_id").Int(); id != 0 {
			c.selfID.Store(id)
		}

		switch root.Get("post_type").String() {
		case "message":
			evt := ParseEvent(payload)
			if !evt.IsGroupMessage() {
				continue
			}
			if c.isDuplicate(evt.GroupID, evt.MessageID) {
				c.log.DebugContext(ctx, "Duplicate message, skipping", "message_id", evt.MessageID)
				continue
			}
			go handler(ctx, evt)
		case "meta_event":
			if root.Get("meta_event_type").String() == "lifecycle" {
				c.log.InfoContext(ctx, "OneBot lifecycle event", "sub_type", root.Get("sub_type").String(), "self_id", c.SelfID())
			}
		}
	}
}

// Call performs action and returns its data field. It fails on timeout, on a
// dropped connection, and when the implementation reports a non-ok status.
func (c *Client) Call(ctx context.Context, action string, params any) (gjson.Result, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return gjson.Result{}, ErrNotConnected
	}
	if params == nil {
		params = map[string]any{}
	}

	echo := action + "_" + strconv.FormatUint(c.echo.Add(1), 10)
	waiter := make(chan gjson.Result, 1)
	c.waitMu.Lock()
	c.waiters[echo] = waiter
	c.waitMu.Unlock()
	defer func() {
		c.waitMu.Lock()
		delete(c.waiters, echo)
		c.waitMu.Unlock()
	}()

	payload, err := json.Marshal(apiRequest{Action: action, Params: params, Echo: echo})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to marshal %s request: %w", action, err)
	}
	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to write %s request: %w", action, err)
	}

	timeout := c.cfg.APITimeout
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-waiter:
		status := resp.Get("status").String()
		retcode := resp.Get("retcode").Int()
		if status == "failed" || retcode != 0 {
			msg := resp.Get("wording").String()
			if msg == "" {
				msg = resp.Get("message").String()
			}
			return gjson.Result{}, &APIError{Action: action, RetCode: retcode, Message: msg}
		}
		return resp.Get("data"), nil
	case <-timer.C:
		return gjson.Result{}, fmt.Errorf("onebot %s timed out after %s", action, timeout)
	case <-ctx.Done():
		return gjson.Result{}, ctx.Err()
	}
}

func (c *Client) resolve(echo string, resp gjson.Result) {
	c.waitMu.Lock()
	waiter := c.waiters[echo]
	c.waitMu.Unlock()
	if waiter == nil {
		return
	}
	select {
	case waiter <- resp:
	default:
	}
}

func (c *Client) isDuplicate(groupID int64, messageID string) bool {
	if messageID == "" || messageID == "0" {
		return false
	}
	key := strconv.FormatInt(groupID, 10) + ":" + messageID

	c.dedupMu.Lock()
	defer c.dedupMu.Unlock()
	if _, ok := c.dedup[key]; ok {
		return true
	}
	if old := c.dedupRing[c.dedupIdx]; old != "" {
		delete(c.dedup, old)
	}
	c.dedupRing[c.dedupIdx] = key
	c.dedup[key] = struct{}{}
	c.dedupIdx = (c.dedupIdx + 1) % len(c.dedupRing)
	return false
}
