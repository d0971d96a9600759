package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/robfig/cron/v3"
)

var ErrSessionActive = errors.New("session already has a connection")

const stopWait = 5 * time.Second

// Hub tracks live sessions, one connection each, and reaps idle ones.
type Hub struct {
	mu          sync.Mutex
	sessions    map[string]*Client
	idleTimeout time.Duration
	cron        *cron.Cron
}

func NewHub(idleTimeout time.Duration) *Hub {
	return &Hub{
		sessions:    make(map[string]*Client),
		idleTimeout: idleTimeout,
		cron:        cron.New(),
	}
}

// Start schedules the idle reaper.
func (h *Hub) Start(schedule string) error {
	if _, err := h.cron.AddFunc(schedule, func() { h.Reap(time.Now()) }); err != nil {
		return fmt.Errorf("schedule reaper: %w", err)
	}
	h.cron.Start()
	return nil
}

// Stop halts the reaper, then closes every session and waits for each
// editor to be disposed.
func (h *Hub) Stop() {
	<-h.cron.Stop().Done()

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.sessions))
	for _, c := range h.sessions {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close(websocket.StatusGoingAway, "server shutting down")
	}
	deadline := time.After(stopWait)
	for _, c := range clients {
		select {
		case <-c.Done():
		case <-deadline:
			slog.Warn("sessions still open at shutdown", "remaining", h.Len())
			return
		}
	}
}

// Register claims the session id for c.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[c.SessionID]; ok {
		return ErrSessionActive
	}
	h.sessions[c.SessionID] = c
	return nil
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[c.SessionID] == c {
		delete(h.sessions, c.SessionID)
	}
}

// Reap closes sessions idle longer than the timeout and reports how many.
func (h *Hub) Reap(now time.Time) int {
	h.mu.Lock()
	var idle []*Client
	for _, c := range h.sessions {
		if c.idleSince(now) > h.idleTimeout {
			idle = append(idle, c)
		}
	}
	h.mu.Unlock()

	for _, c := range idle {
		c.Close(websocket.StatusGoingAway, "idle timeout")
	}
	if len(idle) > 0 {
		slog.Info("reaped idle sessions", "count", len(idle))
	}
	return len(idle)
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
