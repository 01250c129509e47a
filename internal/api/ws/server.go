// Package ws pushes session snapshots to browsers over WebSocket.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/i474232898/weather-dashboard/internal/session"
)

// Server sends the current snapshot to every client on connect and again
// after every state change.
type Server struct {
	state    *session.State
	server   *http.Server
	upgrader websocket.Upgrader
	clients  sync.Map // *websocket.Conn -> *sync.Mutex guarding writes
	done     chan struct{}
	once     sync.Once
}

// NewServer creates a push server listening on port. It returns nil when
// port is not positive.
func NewServer(state *session.State, port int) *Server {
	if port <= 0 {
		return nil
	}

	s := &Server{
		state: state,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		done: make(chan struct{}),
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler serving /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.wsHandler)
	return mux
}

// Start begins broadcasting state changes and serving connections.
func (s *Server) Start() {
	if s == nil {
		return
	}

	s.startBroadcast()

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ERROR: websocket server stopped: %v", err)
		}
	}()
}

// Stop closes every connection and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}

	s.once.Do(func() { close(s.done) })

	s.clients.Range(func(key, _ any) bool {
		if conn, ok := key.(*websocket.Conn); ok {
			conn.Close()
		}
		return true
	})

	return s.server.Shutdown(ctx)
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WARN: websocket upgrade failed: %v", err)
		return
	}

	s.clients.Store(conn, &sync.Mutex{})
	log.Printf("INFO: websocket client connected (%d total)", s.count())

	s.send(conn, s.state.Snapshot())

	defer func() {
		s.clients.Delete(conn)
		conn.Close()
		log.Printf("INFO: websocket client disconnected (%d total)", s.count())
	}()

	// Drain client frames so close and ping control messages are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: websocket read error: %v", err)
			}
			return
		}
	}
}

// startBroadcast subscribes to the state and forwards every change to all
// connected clients until Stop.
func (s *Server) startBroadcast() {
	updates, unsubscribe := s.state.Subscribe()
	go s.broadcast(updates, unsubscribe)
}

func (s *Server) broadcast(updates <-chan session.Snapshot, unsubscribe func()) {
	defer unsubscribe()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}
			s.clients.Range(func(key, _ any) bool {
				if conn, ok := key.(*websocket.Conn); ok {
					s.send(conn, snap)
				}
				return true
			})
		case <-s.done:
			return
		}
	}
}

func (s *Server) send(conn *websocket.Conn, snap session.Snapshot) {
	v, ok := s.clients.Load(conn)
	if !ok {
		return
	}
	mu := v.(*sync.Mutex)

	msg, err := json.Marshal(snap)
	if err != nil {
		log.Printf("ERROR: encoding snapshot: %v", err)
		return
	}

	mu.Lock()
	defer mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		log.Printf("WARN: websocket write failed: %v", err)
		conn.Close()
		s.clients.Delete(conn)
	}
}

func (s *Server) count() int {
	n := 0
	s.clients.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
