package main

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/novaboard/lineplan/planner/observability"
)

const maxWSConnections = 50

// ScheduleHub pushes schedule snapshots to dashboard WebSocket clients.
// Single broadcaster pattern prevents N duplicate tickers.
type ScheduleHub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	events     chan json.RawMessage
	mu         sync.RWMutex
}

func NewScheduleHub() *ScheduleHub {
	return &ScheduleHub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		events:     make(chan json.RawMessage, 16),
	}
}

// Run owns the client set until ctx is cancelled.
func (h *ScheduleHub) Run(ctx context.Context) {
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= maxWSConnections {
				h.mu.Unlock()
				conn.Close()
				log.Printf("[STREAM] connection rejected: max connections (%d) reached", maxWSConnections)
				continue
			}
			h.clients[conn] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			observability.StreamClients.Set(float64(total))
			log.Printf("[STREAM] client registered. Total: %d", total)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			observability.StreamClients.Set(float64(total))
			log.Printf("[STREAM] client unregistered. Total: %d", total)

		case payload := <-h.events:
			h.broadcast(payload)

		case <-ping.C:
			h.pingAll()
		}
	}
}

// Broadcast fans a schedule event out to every connected client. The
// event channel is buffered; if the hub is wedged the event is dropped
// rather than blocking the orchestrator.
func (h *ScheduleHub) Broadcast(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[STREAM] marshal broadcast: %v", err)
		return
	}
	select {
	case h.events <- payload:
	default:
		log.Printf("[STREAM] event dropped, hub backlogged")
	}
}

func (h *ScheduleHub) broadcast(payload json.RawMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("[STREAM] write error: %v", err)
			go h.Unregister(conn)
		}
	}
}

func (h *ScheduleHub) pingAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			go h.Unregister(conn)
		}
	}
}

func (h *ScheduleHub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	log.Printf("[STREAM] shutting down hub with %d clients", len(h.clients))
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
}

func (h *ScheduleHub) Register(conn *websocket.Conn) {
	h.register <- conn
}

func (h *ScheduleHub) Unregister(conn *websocket.Conn) {
	h.unregister <- conn
}

func (h *ScheduleHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
