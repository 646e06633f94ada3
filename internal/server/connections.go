package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const (
	outboxSize   = 32
	writeTimeout = 5 * time.Second
)

type frame struct {
	data  []byte
	close string // non-empty closes the socket after data is written
}

// Client is one websocket. Everything written to it goes through the outbox
// and a single writer goroutine, so senders never block on the network.
type Client struct {
	ID     string
	conn   *websocket.Conn
	outbox chan frame
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func NewClient(id string, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		outbox: make(chan frame, outboxSize),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("conn", id)),
	}
}

// Send queues msg. A client whose outbox is full is too slow to keep up and
// is disconnected; Send then returns false.
func (c *Client) Send(msg ServerMessage) bool {
	return c.enqueue(msg, "")
}

// SendAndClose queues msg and closes the socket once it has been written.
func (c *Client) SendAndClose(msg ServerMessage, reason string) bool {
	return c.enqueue(msg, reason)
}

func (c *Client) enqueue(msg ServerMessage, closeReason string) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("marshal outbound message", zap.String("type", msg.Type), zap.Error(err))
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.outbox <- frame{data: data, close: closeReason}:
		return true
	default:
		c.logger.Warn("outbox full, dropping client", zap.String("type", msg.Type))
		c.Close(websocket.StatusPolicyViolation, "too slow")
		return false
	}
}

// Run writes queued frames until the client is closed or ctx ends.
func (c *Client) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case f := <-c.outbox:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, f.data)
			cancel()
			if err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				c.Close(websocket.StatusInternalError, "write failed")
				return
			}
			if f.close != "" {
				c.Close(websocket.StatusNormalClosure, f.close)
				return
			}
		}
	}
}

// Close stops the writer and closes the socket in the background, since the
// close handshake can take seconds and callers may hold a room lock.
func (c *Client) Close(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			go c.conn.Close(code, reason)
		}
	})
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ConnectionManager maps live clients to the seat tokens bound to them. A
// token is bound to at most one client and a client to at most one token.
type ConnectionManager struct {
	clients map[string]*Client // connectionID → client
	tokens  map[string]string  // token → connectionID
	bound   map[string]string  // connectionID → token
	mu      sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		clients: make(map[string]*Client),
		tokens:  make(map[string]string),
		bound:   make(map[string]string),
	}
}

func (cm *ConnectionManager) AddConnection(c *Client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.clients[c.ID] = c
}

// RemoveConnection forgets the client and returns the token it held, if any.
func (cm *ConnectionManager) RemoveConnection(id string) string {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	token := cm.bound[id]
	if token != "" && cm.tokens[token] == id {
		delete(cm.tokens, token)
	}
	delete(cm.bound, id)
	delete(cm.clients, id)
	return token
}

// BindToken attaches token to connectionID. It returns the connection that
// held token before (to be told it was displaced) and the token the
// connection held before (whose seat it no longer speaks for).
func (cm *ConnectionManager) BindToken(token, connectionID string) (displaced *Client, previousToken string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if oldConn, exists := cm.tokens[token]; exists && oldConn != connectionID {
		displaced = cm.clients[oldConn]
		delete(cm.bound, oldConn)
	}

	if prev := cm.bound[connectionID]; prev != "" && prev != token {
		previousToken = prev
		if cm.tokens[prev] == connectionID {
			delete(cm.tokens, prev)
		}
	}

	cm.tokens[token] = connectionID
	cm.bound[connectionID] = token
	return displaced, previousToken
}

func (cm *ConnectionManager) UnmapToken(token string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if connID, exists := cm.tokens[token]; exists {
		delete(cm.bound, connID)
		delete(cm.tokens, token)
	}
}

func (cm *ConnectionManager) GetTokenByConnection(connectionID string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.bound[connectionID]
}

func (cm *ConnectionManager) GetConnectionByToken(token string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.tokens[token]
}

func (cm *ConnectionManager) GetClientByToken(token string) *Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	connID, exists := cm.tokens[token]
	if !exists {
		return nil
	}
	return cm.clients[connID]
}

func (cm *ConnectionManager) Clients() []*Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	clients := make([]*Client, 0, len(cm.clients))
	for _, c := range cm.clients {
		clients = append(clients, c)
	}
	return clients
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}
