// Package wstest provides an in-process feed server for exercising the streaming client.
package wstest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// MessageHandler processes a frame received from the client and returns a response to
// write back, or nil.
type MessageHandler func([]byte) interface{}

// Server is a websocket server that records what clients send and lets tests push
// frames at any time.
type Server struct {
	Server *httptest.Server
	// URL is the ws:// address of the server.
	URL string

	mu       sync.Mutex
	conns    []*serverConn
	received [][]byte
	queries  []url.Values
	handlers map[string]MessageHandler
	queued   [][]byte
	upgrader websocket.Upgrader
	connCh   chan struct{}
}

type serverConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *serverConn) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

// NewServer starts a server on a loopback port.
func NewServer() *Server {
	s := &Server{
		handlers: make(map[string]MessageHandler),
		connCh:   make(chan struct{}, 16),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	s.URL = "ws" + s.Server.URL[len("http"):]
	return s
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sc := &serverConn{conn: conn}

	s.mu.Lock()
	s.conns = append(s.conns, sc)
	s.queries = append(s.queries, r.URL.Query())
	queued := append([][]byte(nil), s.queued...)
	s.mu.Unlock()

	for _, msg := range queued {
		if err := sc.write(websocket.TextMessage, msg); err != nil {
			return
		}
	}

	select {
	case s.connCh <- struct{}{}:
	default:
	}

	go s.readMessages(sc)
}

func (s *Server) readMessages(sc *serverConn) {
	for {
		_, message, err := sc.conn.ReadMessage()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.received = append(s.received, message)
		handler, ok := s.handlers[typeOf(message)]
		s.mu.Unlock()

		if !ok {
			continue
		}
		if response := handler(message); response != nil {
			b, err := json.Marshal(response)
			if err != nil {
				continue
			}
			if err := sc.write(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}

// RegisterHandler answers frames whose "type" field equals messageType.
func (s *Server) RegisterHandler(messageType string, handler MessageHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[messageType] = handler
}

// QueueMessage sends message to every client right after it connects.
func (s *Server) QueueMessage(message []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = append(s.queued, message)
}

// Broadcast writes message to every connected client.
func (s *Server) Broadcast(message []byte) {
	s.mu.Lock()
	conns := append([]*serverConn(nil), s.conns...)
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.write(websocket.TextMessage, message)
	}
}

// BroadcastJSON marshals v and writes it to every connected client.
func (s *Server) BroadcastJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.Broadcast(b)
	return nil
}

// DropConnections closes every client connection without a close frame.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for _, c := range conns {
		c.conn.Close()
	}
}

// WaitForConnection blocks until a client connects or timeout elapses.
func (s *Server) WaitForConnection(timeout time.Duration) bool {
	select {
	case <-s.connCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// ReceivedMessages returns a copy of every frame clients have sent.
func (s *Server) ReceivedMessages() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.received...)
}

// ReceivedOfType returns the received frames whose "type" field equals messageType.
func (s *Server) ReceivedOfType(messageType string) [][]byte {
	var out [][]byte
	for _, m := range s.ReceivedMessages() {
		if typeOf(m) == messageType {
			out = append(out, m)
		}
	}
	return out
}

// Queries returns the query string of each accepted connection, in order.
func (s *Server) Queries() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.queries...)
}

// Connections returns the number of accepted connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

// Close shuts the server down and closes all connections.
func (s *Server) Close() {
	s.DropConnections()
	s.Server.Close()
}

func typeOf(message []byte) string {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return "invalid"
	}
	return msg.Type
}
