package notifiers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/daniacca/rxdyn/internal/achem"
	"github.com/gorilla/websocket"
)

const (
	clientQueueSize = 256
	writeTimeout    = 5 * time.Second
	readTimeout     = 60 * time.Second
)

// SubscribeMsg narrows what a WebSocket client receives. Empty lists match
// everything. Clients may send it at any time to replace their filter.
type SubscribeMsg struct {
	Type         string   `json:"type"`
	Environments []string `json:"environments,omitempty"`
	Reactions    []string `json:"reactions,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	filter SubscribeMsg
}

func (c *wsClient) wants(event achem.NotificationEvent) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.filter.Environments) > 0 && !slices.Contains(c.filter.Environments, string(event.EnvironmentID)) {
		return false
	}
	if len(c.filter.Reactions) > 0 && !slices.Contains(c.filter.Reactions, event.ReactionName) {
		return false
	}
	return true
}

// WebSocketNotifier pushes reaction events to every connected WebSocket
// client. It is also the HTTP handler clients connect through. Slow clients
// whose queue fills up are disconnected.
type WebSocketNotifier struct {
	id       string
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// NewWebSocketNotifier creates a new WebSocket notifier
func NewWebSocketNotifier(id string) *WebSocketNotifier {
	return &WebSocketNotifier{
		id:      id,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (wsn *WebSocketNotifier) ID() string {
	return wsn.id
}

func (wsn *WebSocketNotifier) Type() string {
	return "websocket"
}

// Clients returns the number of connected clients.
func (wsn *WebSocketNotifier) Clients() int {
	wsn.mu.RLock()
	defer wsn.mu.RUnlock()
	return len(wsn.clients)
}

// ServeHTTP upgrades the request and streams events to the client until it
// disconnects or the notifier is closed. Query parameters env and reaction
// set the initial filter.
func (wsn *WebSocketNotifier) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wsn.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &wsClient{
		conn: conn,
		send: make(chan []byte, clientQueueSize),
		filter: SubscribeMsg{
			Type:         "SUBSCRIBE",
			Environments: r.URL.Query()["env"],
			Reactions:    r.URL.Query()["reaction"],
		},
	}

	wsn.mu.Lock()
	if wsn.closed {
		wsn.mu.Unlock()
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "closing"), time.Now().Add(time.Second))
		conn.Close()
		return
	}
	wsn.clients[c] = struct{}{}
	wsn.wg.Add(1)
	wsn.mu.Unlock()
	defer wsn.wg.Done()

	done := make(chan struct{})
	go func() {
		defer close(done)
		wsn.writeLoop(c)
	}()
	wsn.readLoop(c)

	wsn.drop(c)
	<-done
	conn.Close()
}

// readLoop applies subscription updates until the connection fails.
func (wsn *WebSocketNotifier) readLoop(c *wsClient) {
	for {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var sub SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != "SUBSCRIBE" {
			continue
		}
		c.mu.Lock()
		c.filter = sub
		c.mu.Unlock()
	}
}

func (wsn *WebSocketNotifier) writeLoop(c *wsClient) {
	for b := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			c.conn.Close()
			wsn.drop(c)
			for range c.send {
			}
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

// drop removes c and closes its queue once.
func (wsn *WebSocketNotifier) drop(c *wsClient) {
	wsn.mu.Lock()
	defer wsn.mu.Unlock()
	if _, ok := wsn.clients[c]; ok {
		delete(wsn.clients, c)
		close(c.send)
	}
}

// Notify queues the event for every client whose filter matches it.
func (wsn *WebSocketNotifier) Notify(ctx context.Context, event achem.NotificationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := event.JSON()
	if err != nil {
		return err
	}

	wsn.mu.RLock()
	if wsn.closed {
		wsn.mu.RUnlock()
		return errors.New("websocket notifier is closed")
	}
	var slow []*wsClient
	for c := range wsn.clients {
		if !c.wants(event) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	wsn.mu.RUnlock()

	for _, c := range slow {
		wsn.drop(c)
		c.conn.Close()
	}
	return nil
}

// Close disconnects every client and waits for their handlers to return.
func (wsn *WebSocketNotifier) Close() error {
	wsn.mu.Lock()
	if wsn.closed {
		wsn.mu.Unlock()
		return nil
	}
	wsn.closed = true
	for c := range wsn.clients {
		delete(wsn.clients, c)
		close(c.send)
		c.conn.SetReadDeadline(time.Now())
	}
	wsn.mu.Unlock()

	wsn.wg.Wait()
	return nil
}
