package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tableside-pos/api/internal/enum"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/model"
	"github.com/tableside-pos/api/internal/views"
)

// EventOrdersChanged tells tablets the branch's order list was refreshed.
const EventOrdersChanged = "orders.changed"

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// branchEvent is an internal struct for routing events to specific branches
type branchEvent struct {
	BranchID uuid.UUID
	Event    Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by branch ID
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *branchEvent

	// done is closed when Run returns.
	done chan struct{}

	log *logger.Logger

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *branchEvent, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub's main loop and returns when ctx is done, closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.branchID] == nil {
				h.rooms[client.branchID] = make(map[*Client]bool)
			}
			h.rooms[client.branchID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.log.Error(ctx, "error encoding websocket event", err)
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.BranchID] {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// join hands client to Run. It reports false once the hub has stopped.
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// leave hands client to Run for removal. After Run returns every client
// has already been closed, so there is nothing left to do.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// remove drops client from its room. Caller holds h.mu.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.branchID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	// Clean up empty rooms
	if len(clients) == 0 {
		delete(h.rooms, client.branchID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for client := range clients {
			h.remove(client)
		}
	}
}

// BroadcastToBranch queues an event for every client of the branch. When
// the queue is full the event is dropped; the next refresh sends another.
func (h *Hub) BroadcastToBranch(branchID uuid.UUID, event Event) {
	select {
	case h.broadcast <- &branchEvent{BranchID: branchID, Event: event}:
	default:
		h.log.Warn(h.log.WithBranchID(context.Background(), branchID.String()), "websocket broadcast queue full, event dropped")
	}
}

type ordersChangedPayload struct {
	BranchID    uuid.UUID                `json:"branch_id"`
	OrderCount  int                      `json:"order_count"`
	Counts      map[enum.OrderStatus]int `json:"counts"`
	RefreshedAt time.Time                `json:"refreshed_at"`
}

// OrdersChanged announces a refreshed order list. It has the signature of
// the order store's refresh hook.
func (h *Hub) OrdersChanged(branchID uuid.UUID, orders []model.Order) {
	payload, err := json.Marshal(ordersChangedPayload{
		BranchID:    branchID,
		OrderCount:  len(orders),
		Counts:      views.ByStatus(orders).Counts(),
		RefreshedAt: time.Now().UTC(),
	})
	if err != nil {
		h.log.Error(context.Background(), "error encoding orders changed payload", err)
		return
	}
	h.BroadcastToBranch(branchID, Event{Type: EventOrdersChanged, Payload: payload})
}

// Clients returns the number of connected clients for branchID.
func (h *Hub) Clients(branchID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[branchID])
}
