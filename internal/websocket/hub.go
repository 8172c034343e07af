// Package websocket pushes lifecycle notifications to connected overlay
// clients.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"guild-overlay/internal/middleware"
	"guild-overlay/internal/notify"
)

type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	count      chan chan int
	bus        notify.Bus
	upgrader   websocket.Upgrader
	done       chan struct{}
}

// NewHub relays notifications from bus. With no allowed origins the upgrader
// keeps gorilla's same-host origin check.
func NewHub(bus notify.Bus, allowedOrigins []string) *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan chan int),
		bus:        bus,
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = originChecker(allowedOrigins)
	}
	return h
}

// Run relays notifications until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	notifications, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case reply := <-h.count:
			reply <- len(h.clients)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case n, ok := <-notifications:
			if !ok {
				return
			}
			message, err := json.Marshal(n)
			if err != nil {
				slog.Error("failed to marshal notification", "type", n.Type, "error", err)
				continue
			}
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					slog.Warn("closing slow stream client", "user_id", client.userID)
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// ServeHTTP upgrades an authenticated request and attaches it to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("stream upgrade failed", "user_id", principal.UserID, "error", err)
		return
	}

	client := newClient(h, conn, principal.UserID)
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	slog.Info("stream client connected", "user_id", principal.UserID)
	go client.writePump()
	client.readPump()
}

// Clients returns the number of connected clients, or zero once the hub has
// stopped.
func (h *Hub) Clients() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.ToLower(strings.TrimRight(origin, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		parsed, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(parsed.Scheme+"://"+parsed.Host)]
		return ok
	}
}
