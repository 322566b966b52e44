package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	busBuffer      = 256
	clientQueueLen = 64
)

// WebSocketServer streams lifecycle events to connected clients. It is a
// plain fan-out of the in-process event bus; clients that fall behind lose
// events rather than applying backpressure to the pipeline.
type WebSocketServer struct {
	upgrader websocket.Upgrader
	bus      interfaces.EventBus

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	done    chan struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan interfaces.Event
}

// NewWebSocketServer creates the event feed over the given bus
func NewWebSocketServer(bus interfaces.EventBus) *WebSocketServer {
	return &WebSocketServer{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		bus:     bus,
		clients: make(map[*wsClient]struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins forwarding bus events to connected clients
func (ws *WebSocketServer) Start(ctx context.Context) {
	if ws.bus == nil {
		return
	}
	events, cancel := ws.bus.Subscribe(busBuffer)

	go func() {
		defer cancel()
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				ws.broadcast(event)
			case <-ctx.Done():
				return
			case <-ws.done:
				return
			}
		}
	}()
}

// Stop disconnects all clients and stops forwarding
func (ws *WebSocketServer) Stop() {
	select {
	case <-ws.done:
		return
	default:
		close(ws.done)
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	for client := range ws.clients {
		close(client.send)
		client.conn.Close()
		delete(ws.clients, client)
	}
}

// HandleWebSocket upgrades the connection and registers the client
func (ws *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("api: websocket upgrade: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan interfaces.Event, clientQueueLen)}

	ws.mu.Lock()
	ws.clients[client] = struct{}{}
	ws.mu.Unlock()

	go ws.writePump(client)
	go ws.readPump(client)
}

// ConnectedClients returns how many clients are attached to the feed
func (ws *WebSocketServer) ConnectedClients() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.clients)
}

func (ws *WebSocketServer) broadcast(event interfaces.Event) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	for client := range ws.clients {
		select {
		case client.send <- event:
		default:
			// slow client, drop the event
		}
	}
}

func (ws *WebSocketServer) drop(client *wsClient) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if _, ok := ws.clients[client]; ok {
		delete(ws.clients, client)
		close(client.send)
		client.conn.Close()
	}
}

// writePump forwards queued events to the socket and keeps the ping cycle
func (ws *WebSocketServer) writePump(client *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-client.send:
			if !ok {
				client.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteJSON(event); err != nil {
				ws.drop(client)
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				ws.drop(client)
				return
			}
		}
	}
}

// readPump consumes client frames so pongs and closes are processed
func (ws *WebSocketServer) readPump(client *wsClient) {
	defer ws.drop(client)

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
