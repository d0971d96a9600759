package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/certdesk/certdesk/backend-go/internal/command"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	// asset.ingest carries the image inline, base64 in JSON
	maxMsgSize = 16 << 20
)

// Client is one connected editing session. All editor work happens on the
// goroutine running Run.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	dispatcher *command.Dispatcher
	log        *slog.Logger

	send    chan []byte
	inbox   chan command.Message
	results chan command.Message

	quit       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
	closeCode  websocket.StatusCode
	closeWhy   string
	lastActive atomic.Int64

	SessionID string
	UserID    string
}

func NewClient(hub *Hub, dispatcher *command.Dispatcher, sessionID, userID string) *Client {
	c := &Client{
		hub:        hub,
		dispatcher: dispatcher,
		log:        slog.With("session", sessionID, "user", userID),
		send:       make(chan []byte, 256),
		inbox:      make(chan command.Message, 64),
		results:    make(chan command.Message, 8),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		closeCode:  websocket.StatusNormalClosure,
		SessionID:  sessionID,
		UserID:     userID,
	}
	c.touch()
	return c
}

// Run pumps the connection and drives the event loop until the peer goes
// away, the context ends, or Close is called. The editor is disposed on
// return.
func (c *Client) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		c.Close(websocket.StatusNormalClosure, "")
		c.conn.Close(c.closeCode, c.closeWhy)
		cancel()
		c.dispatcher.Editor().Dispose()
		c.hub.unregister(c)
		close(c.done)
		c.log.Info("session closed", "reason", c.closeWhy)
	}()

	c.conn.SetReadLimit(maxMsgSize)
	go c.writePump(ctx)
	go c.readPump(ctx)

	c.Send(command.Welcome(c.SessionID))
	c.log.Info("session opened")

	for {
		select {
		case msg := <-c.inbox:
			c.handle(ctx, msg)
		case msg := <-c.results:
			c.handle(ctx, msg)
		case <-c.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) handle(ctx context.Context, msg command.Message) {
	reply := c.dispatcher.Handle(msg)
	for _, out := range reply.Messages {
		out.SessionID = c.SessionID
		c.Send(out)
	}
	if reply.Job == nil {
		return
	}
	go func(job command.Job) {
		res := job(ctx)
		select {
		case c.results <- res:
		case <-c.quit:
		}
	}(reply.Job)
}

func (c *Client) readPump(ctx context.Context) {
	defer c.Close(websocket.StatusNormalClosure, "")

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return
			}
			c.log.Debug("read error", "error", err)
			return
		}
		c.touch()

		var msg command.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("invalid message", "error", err)
			c.Send(command.ErrorMessage(0, fmt.Errorf("%w: %v", command.ErrBadPayload, err)))
			continue
		}

		select {
		case c.inbox <- msg:
		case <-c.quit:
			return
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.log.Debug("write error", "error", err)
				c.Close(websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}

		case <-c.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Send queues msg for the peer. A full buffer drops the message.
func (c *Client) Send(msg command.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("marshal message", "error", err)
		return
	}

	select {
	case c.send <- data:
	default:
		c.log.Warn("client send buffer full, dropping message", "type", msg.Type)
	}
}

// Close ends the session. Only the first call's status is sent.
func (c *Client) Close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode, c.closeWhy = code, reason
		close(c.quit)
	})
}

// Done is closed once Run has returned and the editor is disposed.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

func (c *Client) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, c.lastActive.Load()))
}
