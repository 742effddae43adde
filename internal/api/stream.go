package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// clientQueueSize bounds the events buffered for one websocket peer. A peer
// that falls further behind is disconnected.
const clientQueueSize = 16

const streamWriteTimeout = 10 * time.Second

// PredictionEvent is the websocket payload emitted after each prediction.
type PredictionEvent struct {
	Type        string    `json:"type"`
	Task        string    `json:"task"`
	RequestID   string    `json:"request_id"`
	Label       string    `json:"label,omitempty"`
	Prediction  float64   `json:"prediction"`
	Probability *float64  `json:"probability,omitempty"`
	Demo        bool      `json:"demo"`
	Rows        int       `json:"rows,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// streamConn is the part of *websocket.Conn the notifier writes through.
type streamConn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// wsClient owns one peer's outbound queue. Only its writer goroutine touches conn
// for writes.
type wsClient struct {
	conn      streamConn
	send      chan PredictionEvent
	closeOnce sync.Once
}

// PredictionNotifier tracks websocket clients and fans prediction events out to them.
type PredictionNotifier struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	last    *PredictionEvent
}

// NewPredictionNotifier constructs a notifier instance.
func NewPredictionNotifier() *PredictionNotifier {
	return &PredictionNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and queues the latest event for it.
func (n *PredictionNotifier) Register(conn *websocket.Conn) *wsClient {
	return n.register(conn)
}

func (n *PredictionNotifier) register(conn streamConn) *wsClient {
	client := &wsClient{conn: conn, send: make(chan PredictionEvent, clientQueueSize)}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	if n.last != nil {
		client.send <- *n.last
	}
	n.mu.Unlock()

	go n.writeLoop(client)
	return client
}

// Unregister removes the client and closes its socket. Repeated calls are no-ops.
func (n *PredictionNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	n.drop(client)
	n.mu.Unlock()
	client.close()
}

// Broadcast queues event for every registered client without waiting on any
// of them. Clients whose queue is full are disconnected.
func (n *PredictionNotifier) Broadcast(event PredictionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var stalled []*wsClient
	n.mu.Lock()
	snapshot := event
	n.last = &snapshot
	for client := range n.clients {
		select {
		case client.send <- event:
		default:
			n.drop(client)
			stalled = append(stalled, client)
		}
	}
	n.mu.Unlock()

	for _, client := range stalled {
		client.close()
	}
}

// Clients reports the number of connected websocket clients.
func (n *PredictionNotifier) Clients() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

// LastEvent returns a copy of the most recent event, if any.
func (n *PredictionNotifier) LastEvent() *PredictionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == nil {
		return nil
	}
	last := *n.last
	return &last
}

// drop forgets client and closes its queue. Callers hold n.mu.
func (n *PredictionNotifier) drop(client *wsClient) {
	if _, ok := n.clients[client]; !ok {
		return
	}
	delete(n.clients, client)
	close(client.send)
}

func (n *PredictionNotifier) writeLoop(client *wsClient) {
	for event := range client.send {
		if err := client.writeJSON(event); err != nil {
			n.Unregister(client)
			return
		}
	}
}

func (c *wsClient) writeJSON(payload interface{}) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(payload)
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}
