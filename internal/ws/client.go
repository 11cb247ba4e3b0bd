package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Guests only answer pings; anything larger than a control frame is
	// refused.
	maxMessageSize = 125

	// MaxConnsPerGuest bounds the open tabs of one guest. A new connection
	// beyond it replaces the oldest one.
	MaxConnsPerGuest = 5

	closeReplaced = "replaced by a newer connection"
	closeShutdown = "server shutting down"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  256,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origins are filtered by the CORS layer
	},
}

// Client is one guest connection. It receives the guest's order events and
// never sends anything but control frames.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	guestID     string
	connectedAt time.Time
	send        chan []byte

	// Set by the hub before send is closed.
	closeCode int
	closeText string
}

// ReadPump keeps the pong deadline fresh and reports the disconnect to the
// hub. Data frames from the guest end the connection.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Info("guest stream closed", zap.String("guest_id", c.guestID), zap.Error(err))
			}
			return
		}
		c.hub.logger.Warn("guest sent data on order stream", zap.String("guest_id", c.guestID))
		return
	}
}

// WritePump sends each event as its own text frame so every frame is one
// JSON document, and pings the guest between events.
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
				code, text := c.closeCode, c.closeText
				if code == 0 {
					code = websocket.CloseNormalClosure
				}
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Info("guest stream write failed", zap.String("guest_id", c.guestID), zap.Error(err))
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

// ServeWS subscribes a guest to its order updates.
// Endpoint: WS /ws/orders?guest_id=...
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	guestID := r.URL.Query().Get("guest_id")
	if guestID == "" {
		guestID = r.Header.Get("X-Guest-ID")
	}
	if guestID == "" {
		http.Error(w, "missing guest_id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:         hub,
		conn:        conn,
		guestID:     guestID,
		connectedAt: time.Now(),
		send:        make(chan []byte, 64),
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, closeShutdown))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
