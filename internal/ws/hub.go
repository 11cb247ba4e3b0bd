package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// guestEvent routes an event to one guest's room
type guestEvent struct {
	GuestID string
	Event   Event
}

// Hub maintains the set of active clients and broadcasts order updates to
// the room of the guest they belong to.
type Hub struct {
	// Registered clients by guest ID
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *guestEvent
	done       chan struct{}

	logger *zap.Logger

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *guestEvent, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run is the hub's main loop. It returns when ctx is cancelled, after
// closing every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.add(client)
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.logger.Error("marshal ws event", zap.String("type", event.Event.Type), zap.Error(err))
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.GuestID] {
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop it rather than block the hub.
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// add must be called with mu held. A guest at the connection cap loses its
// oldest connection.
func (h *Hub) add(client *Client) {
	room := h.rooms[client.guestID]
	if room == nil {
		room = make(map[*Client]bool)
		h.rooms[client.guestID] = room
	}
	if len(room) >= MaxConnsPerGuest {
		var oldest *Client
		for c := range room {
			if oldest == nil || c.connectedAt.Before(oldest.connectedAt) {
				oldest = c
			}
		}
		oldest.closeCode = websocket.ClosePolicyViolation
		oldest.closeText = closeReplaced
		h.logger.Info("guest connection cap reached, closing oldest",
			zap.String("guest_id", client.guestID),
			zap.Int("cap", MaxConnsPerGuest),
		)
		h.remove(oldest)
	}
	room[client] = true
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.guestID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.guestID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for guestID, clients := range h.rooms {
		for client := range clients {
			client.closeCode = websocket.CloseGoingAway
			client.closeText = closeShutdown
			close(client.send)
		}
		delete(h.rooms, guestID)
	}
}

// BroadcastToGuest queues an event for every connection of the guest. The
// event is dropped if the hub is backed up.
func (h *Hub) BroadcastToGuest(guestID string, event Event) {
	select {
	case h.broadcast <- &guestEvent{GuestID: guestID, Event: event}:
	default:
		h.logger.Warn("ws broadcast queue full, dropping event",
			zap.String("guest_id", guestID),
			zap.String("type", event.Type),
		)
	}
}

// Notify marshals payload and broadcasts it to the guest's room.
func (h *Hub) Notify(guestID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal ws payload", zap.String("type", eventType), zap.Error(err))
		return
	}
	h.BroadcastToGuest(guestID, Event{Type: eventType, Payload: data})
}

// Connections returns the number of open connections for a guest.
func (h *Hub) Connections(guestID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[guestID])
}
