// Package server exposes the daemon's control surface over HTTP: health
// and status probes, a command endpoint, and a websocket event feed that
// mirrors everything the pipeline emits.
package server

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "log/slog"

	ws "github.com/gorilla/websocket"

	"aria/internal/pipeline"
)

// Controller is the slice of the pipeline the server drives.
type Controller interface {
	Pause()
	Resume()
	Snapshot() pipeline.Status
}

type Config struct {
	Addr string
	// Reload is invoked on a RELOAD_CONFIG command. Optional.
	Reload func() error
}

type Server struct {
	cfg Config
	ctl Controller

	upgrader ws.Upgrader

	mu    sync.Mutex
	conns map[*ws.Conn]bool

	cmdSeq atomic.Uint64

	httpSrv *http.Server
}

func New(cfg Config, ctl Controller) *Server {
	return &Server{
		cfg:   cfg,
		ctl:   ctl,
		conns: make(map[*ws.Conn]bool),
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler builds the route table. Split out so tests can drive the
// server through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/command", s.handleCommand)
	mux.HandleFunc("/v1/events", s.handleEvents)
	return mux
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}

	s.httpSrv = &http.Server{Handler: s.Handler()}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("Control server stopped", "err", err)
		}
	}()

	log.Info("Control server listening", "addr", s.cfg.Addr)
	return nil
}

func (s *Server) Close() {
	if s.httpSrv != nil {
		s.httpSrv.Close()
	}
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.conns = make(map[*ws.Conn]bool)
	s.mu.Unlock()
}

// Publish fans one pipeline event out to every connected websocket
// client. Satisfies pipeline.Sink.
func (s *Server) Publish(e pipeline.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Error("Failed to encode event", "type", e.Type, "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.WriteMessage(ws.TextMessage, payload); err != nil {
			// Slow or gone: drop the client, keep the feed moving.
			c.Close()
			delete(s.conns, c)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Snapshot())
}

type commandRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "POST only"})
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}

	id := fmt.Sprintf("cmd-%d", s.cmdSeq.Add(1))

	switch strings.ToUpper(req.Type) {
	case "PAUSE":
		s.ctl.Pause()
	case "RESUME":
		s.ctl.Resume()
	case "RELOAD_CONFIG":
		if s.cfg.Reload != nil {
			if err := s.cfg.Reload(); err != nil {
				log.Error("Config reload failed", "err", err)
				writeJSON(w, http.StatusInternalServerError, map[string]any{
					"accepted": false,
					"id":       id,
					"error":    err.Error(),
				})
				return
			}
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"accepted": false,
			"error":    fmt.Sprintf("unknown command type %q", req.Type),
		})
		return
	}

	log.Info("Command accepted", "type", req.Type, "id", id)
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true, "id": id})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Websocket upgrade failed", "err", err)
		return
	}

	// Every subscriber starts from a known state before the live feed.
	st := s.ctl.Snapshot()
	initial := pipeline.Event{
		Type: "initial_state",
		TS:   time.Now(),
		Data: map[string]any{"state": st.State, "run_mode": st.RunMode},
	}
	payload, _ := json.Marshal(initial)

	// Held across write and registration so a concurrent Publish can
	// neither interleave with the initial frame nor miss this client.
	s.mu.Lock()
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := conn.WriteMessage(ws.TextMessage, payload); err != nil {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[conn] = true
	n := len(s.conns)
	s.mu.Unlock()
	log.Debug("Event subscriber connected", "subscribers", n)

	// Reader drain: we never expect client frames, but reading is what
	// surfaces the close handshake.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
