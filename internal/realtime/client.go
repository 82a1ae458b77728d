// Package realtime: client.go serves one WebSocket connection per subscriber.
// The read pump only handles pongs; the write pump owns every write.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"fitplay.app/gametime/internal/common"
	"fitplay.app/gametime/internal/features/ledger"
)

const (
	writeWait  = 10 * time.Second // per write
	pongWait   = 60 * time.Second // silence after which the peer is gone
	pingPeriod = 50 * time.Second // must stay below pongWait
)

// Client is one connected subscriber.
type Client struct {
	conn *websocket.Conn
	send chan []byte // buffered; while full the hub skips updates
}

// BalanceSource returns the current balance sent right after connecting.
type BalanceSource interface {
	GetBalance(ctx context.Context, userID string) (*ledger.Balance, error)
}

// Handler upgrades /ws/children/{childID}/balance requests.
type Handler struct {
	hub      *Hub
	balances BalanceSource
	upgrader websocket.Upgrader
}

// NewHandler creates the WebSocket handler. An empty origin list or "*" allows any origin.
func NewHandler(hub *Hub, balances BalanceSource, allowedOrigins []string) *Handler {
	return &Handler{
		hub:      hub,
		balances: balances,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
					return true
				}
				return slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// ServeBalance streams balance updates of the child in the path.
func (h *Handler) ServeBalance(w http.ResponseWriter, r *http.Request) {
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	current, err := h.balances.GetBalance(r.Context(), childID)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).WithField("child_id", childID).Debug("WebSocket upgrade failed")
		return
	}
	client := &Client{
		conn: conn,
		send: make(chan []byte, 16),
	}
	// The first frame is the current balance, later ones are pushes from the hub
	if payload, err := json.Marshal(current); err == nil {
		client.send <- payload
	}
	h.hub.Register(childID, client)
	go client.writePump(h.hub, childID)
	client.readPump(h.hub, childID)
}

// readPump keeps the read deadline fresh and notices disconnects.
// Incoming messages are ignored.
func (c *Client) readPump(hub *Hub, userID string) {
	defer func() {
		hub.Unregister(userID, c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump sends queued frames and pings until the channel closes or a write fails.
func (c *Client) writePump(hub *Hub, userID string) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		hub.Unregister(userID, c)
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
