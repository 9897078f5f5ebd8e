package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// Client follows a hub and reconnects whenever the connection goes away.
type Client struct {
	url     string
	backoff time.Duration
	dialer  *websocket.Dialer
	log     *slog.Logger
}

func NewClient(url string, backoff time.Duration, logger *slog.Logger) *Client {
	if backoff <= 0 {
		backoff = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:     url,
		backoff: backoff,
		dialer:  websocket.DefaultDialer,
		log:     logger,
	}
}

// Run delivers every event to handle until ctx is done.
func (c *Client) Run(ctx context.Context, handle func(Event)) error {
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Debug("Dial failed", "url", c.url, "err", err)
			if !c.wait(ctx) {
				return nil
			}
			continue
		}
		c.log.Info("Connected to events", "url", c.url)

		err = c.read(ctx, conn, handle)
		if ctx.Err() != nil {
			return nil
		}
		if isClosed(err) {
			c.log.Warn("Trying to reconnect on", "url", c.url)
		} else {
			c.log.Error("Failed to read", "err", err)
		}
		if !c.wait(ctx) {
			return nil
		}
	}
}

func (c *Client) read(ctx context.Context, conn *websocket.Conn, handle func(Event)) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			c.log.Warn("Failed to parse", "msg", string(msg), "err", err)
			continue
		}
		handle(ev)
	}
}

func (c *Client) wait(ctx context.Context) bool {
	t := time.NewTimer(c.backoff)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure)
}
