// Package livefeed streams map surface commands to browsers over websockets.
package livefeed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Hamza-Xoho/digital-surveyor/internal/mapsurface"
)

// OpSnapshot is the first message every subscriber receives.
const OpSnapshot = "snapshot"

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// SnapshotSource yields the live surface, if one is mounted.
type SnapshotSource interface {
	Surface() (*mapsurface.Surface, bool)
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans surface commands out to every connected browser. It implements
// mapsurface.Sink; Publish never blocks, and a subscriber whose buffer is full is
// dropped.
type Hub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	source  SnapshotSource
	clients map[*client]struct{}
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[*client]struct{}{},
	}
}

// Attach sets where late joiners get their initial state from.
func (h *Hub) Attach(source SnapshotSource) {
	h.mu.Lock()
	h.source = source
	h.mu.Unlock()
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Publish(cmd mapsurface.Command) {
	data, err := json.Marshal(cmd)
	if err != nil {
		h.log.Error().Err(err).Str("op", cmd.Op).Msg("encode surface command failed")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("slow map subscriber dropped")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ServeHTTP upgrades the connection, sends the current snapshot and then streams
// commands. A command racing the snapshot may arrive twice; every command is
// idempotent on the browser side.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	source := h.source
	h.mu.Unlock()

	first := mapsurface.Command{Op: OpSnapshot}
	if source != nil {
		if s, ok := source.Surface(); ok {
			snap := s.Snapshot()
			first.SurfaceID = snap.SurfaceID
			first.Snapshot = &snap
		}
	}
	data, err := json.Marshal(first)
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = conn.WriteMessage(websocket.TextMessage, data)
	}
	if err != nil {
		h.log.Warn().Err(err).Msg("ws snapshot write failed")
		h.remove(c)
		_ = conn.Close()
		return
	}

	h.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("map subscriber connected")
	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(1 << 10)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
