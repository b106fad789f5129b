package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Client is one browser subscribed to changes of some calendars. A client
// without subscriptions receives changes of every calendar.
type Client struct {
	hub       *Hub
	conn      *ws.Conn
	send      chan []byte
	calendars map[string]bool
}

// NewClient subscribes conn to the given calendar aliases.
func NewClient(hub *Hub, conn *ws.Conn, calendars []string) *Client {
	c := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	for _, alias := range calendars {
		if alias == "" {
			continue
		}
		if c.calendars == nil {
			c.calendars = make(map[string]bool)
		}
		c.calendars[alias] = true
	}
	return c
}

// Wants reports whether a change of the calendar alias is sent to c. Changes
// that name no calendar go to every client.
func (c *Client) Wants(alias string) bool {
	return alias == "" || c.calendars == nil || c.calendars[alias]
}

// Serve registers c with its hub and pumps messages until ctx ends or the
// browser goes away.
func (c *Client) Serve(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.deliver(ctx)
	// Browsers only listen; reading drives pings and notices the close.
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

func (c *Client) deliver(ctx context.Context) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			c.conn.Close(ws.StatusNormalClosure, "")
			return
		case <-ping.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case msg, open := <-c.send:
			if !open {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		}
	}
}
