// Package server exposes the bridge over HTTP and websocket ports.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/standardbeagle/devchat/internal/bridge"
)

// MaxMessageSize caps an inbound message body.
const MaxMessageSize = 4 << 20

// Server is the HTTP front end of the bridge.
type Server struct {
	ListenAddr string

	state      *bridge.State
	router     *bridge.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	running    atomic.Bool
	startTime  time.Time
	requestSeq atomic.Int64
	portSeq    atomic.Int64
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	conns      sync.Map // port id -> *wsPort

	// Ready signal - closed when server is ready to accept connections
	ready     chan struct{}
	readyOnce sync.Once
}

// Config holds configuration for creating a server.
type Config struct {
	// ListenAddr is the host:port to bind (default: 127.0.0.1:7878).
	ListenAddr string
}

// Stats is a snapshot of server counters.
type Stats struct {
	ListenAddr    string        `json:"listen_addr"`
	Running       bool          `json:"running"`
	Uptime        time.Duration `json:"uptime"`
	TotalRequests int64         `json:"total_requests"`
	Ports         int           `json:"ports"`
	Tabs          int           `json:"tabs"`
}

// New creates a server for state, dispatching through router.
func New(cfg Config, state *bridge.State, router *bridge.Router) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:7878"
	}
	return &Server{
		ListenAddr: cfg.ListenAddr,
		state:      state,
		router:     router,
		ready:      make(chan struct{}),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return AllowedOrigin(r.Header.Get("Origin"))
			},
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/message", s.handleMessage)
	mux.HandleFunc("/api/connect", s.handleConnect)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	listener, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to listen on %s: %w", s.ListenAddr, err)
	}

	// Update ListenAddr with actual bound address
	s.ListenAddr = listener.Addr().String()

	s.httpServer = &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler(),
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}

	s.startTime = time.Now()
	s.running.Store(true)

	s.readyOnce.Do(func() {
		close(s.ready)
	})

	go func() {
		err := s.httpServer.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			log.Printf("[ERROR] server: %v", err)
		}
		s.running.Store(false)
	}()

	log.Printf("[INFO] server: listening on %s", s.ListenAddr)
	return nil
}

// Stop gracefully stops the server and closes every port.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return fmt.Errorf("server not running")
	}

	if s.cancelFunc != nil {
		s.cancelFunc()
	}

	s.conns.Range(func(_, value any) bool {
		value.(*wsPort).close()
		return true
	})

	err := s.httpServer.Shutdown(ctx)
	s.running.Store(false)
	return err
}

// IsRunning returns true if the server is serving.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// Ready returns a channel that is closed when the server is ready to accept connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stats returns server statistics.
func (s *Server) Stats() Stats {
	st := Stats{
		ListenAddr:    s.ListenAddr,
		Running:       s.running.Load(),
		TotalRequests: s.requestSeq.Load(),
		Ports:         s.state.Ports(),
		Tabs:          len(s.state.Tabs()),
	}
	if st.Running {
		st.Uptime = time.Since(s.startTime)
	}
	return st
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"stats": s.Stats(),
	})
}

// handleMessage answers a one-shot message.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, bridge.Reply{Error: "method not allowed"})
		return
	}
	if origin := r.Header.Get("Origin"); !AllowedOrigin(origin) {
		log.Printf("[WARN] server: rejected message from origin %s", origin)
		writeJSON(w, http.StatusForbidden, bridge.Reply{Error: "origin not allowed"})
		return
	}
	s.requestSeq.Add(1)

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxMessageSize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, bridge.Reply{Error: err.Error()})
		return
	}
	var msg bridge.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		writeJSON(w, http.StatusBadRequest, bridge.Reply{Error: fmt.Sprintf("invalid message: %v", err)})
		return
	}

	reply := s.handle(r.Context(), msg)
	if !reply.OK {
		log.Printf("[DEBUG] server: %s failed: %s", msg.Type, reply.Error)
	}
	writeJSON(w, http.StatusOK, reply)
}

// handleConnect upgrades to a websocket port. Messages on the port are
// answered in order; replies echo the request id.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	port := &wsPort{
		id:   fmt.Sprintf("port-%d", s.portSeq.Add(1)),
		name: name,
		conn: conn,
	}
	s.conns.Store(port.id, port)
	defer s.conns.Delete(port.id)
	defer port.close()

	if strings.EqualFold(name, bridge.PanelPortName) {
		s.state.Connect(port)
		defer s.state.Disconnect(port.id)
	}

	for {
		var msg bridge.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WARN] server: port %s: %v", port.id, err)
			}
			return
		}
		s.requestSeq.Add(1)

		reply := s.handle(r.Context(), msg)
		if err := port.Send(reply); err != nil {
			return
		}
	}
}

// handle dispatches a message that arrived over the network.
func (s *Server) handle(ctx context.Context, msg bridge.Message) bridge.Reply {
	if err := bridge.CheckRemote(msg); err != nil {
		log.Printf("[WARN] server: %s rejected: %v", msg.Type, err)
		return bridge.NewReply(msg, nil, err)
	}
	return s.router.Handle(ctx, msg)
}

// AllowedOrigin reports whether a browser origin may talk to the bridge:
// no origin (non-browser clients), extension pages, or loopback pages.
func AllowedOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "chrome-extension", "moz-extension":
		return u.Host != ""
	case "http", "https":
		host := u.Hostname()
		if strings.EqualFold(host, "localhost") {
			return true
		}
		ip := net.ParseIP(host)
		return ip != nil && ip.IsLoopback()
	}
	return false
}

// wsPort is a websocket connection registered as a bridge port.
type wsPort struct {
	id   string
	name string
	conn *websocket.Conn

	writeMu sync.Mutex
	closed  atomic.Bool
}

func (p *wsPort) ID() string { return p.id }

// Send writes r as one JSON frame. Writes are serialized per connection.
func (p *wsPort) Send(r bridge.Reply) error {
	if p.closed.Load() {
		return websocket.ErrCloseSent
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return p.conn.WriteJSON(r)
}

func (p *wsPort) close() {
	if p.closed.CompareAndSwap(false, true) {
		p.conn.Close()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
