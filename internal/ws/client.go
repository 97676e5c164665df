package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tableside-pos/api/internal/auth"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/session"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the session token is checked before upgrading
	},
}

// TokenResolver turns a session token into claims. Satisfied by *session.Manager.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*auth.Claims, error)
}

// Client represents a single WebSocket connection
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	branchID uuid.UUID
	send     chan []byte
	log      *logger.Logger
}

// ReadPump pumps messages from the WebSocket connection to the hub.
// Tablets never send anything; the loop only detects disconnects.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ctx := c.log.WithBranchID(context.Background(), c.branchID.String())
				c.log.Error(ctx, "websocket read failed", err)
			}
			break
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS handles WebSocket requests from tablets.
// Endpoint: WS /ws/orders?token=JWT
//
// The room is always the branch in the session; staff cannot listen to
// another branch's orders.
func ServeWS(hub *Hub, resolver TokenResolver, w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := resolver.Resolve(r.Context(), tokenStr)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrInvalidToken), errors.Is(err, session.ErrRevoked):
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	default:
		hub.log.Error(r.Context(), "websocket session lookup failed", err)
		http.Error(w, "unable to verify session", http.StatusServiceUnavailable)
		return
	}

	if !claims.HasBranch() {
		http.Error(w, "no branch assigned", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Error(r.Context(), "websocket upgrade failed", err)
		return
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		branchID: claims.BranchID,
		send:     make(chan []byte, 256),
		log:      hub.log,
	}
	if !hub.join(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
