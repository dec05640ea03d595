package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"acquifer-go/internal/config"
	"acquifer-go/internal/metadata"
	"acquifer-go/internal/stage"
)

type Server struct {
	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]*sync.Mutex
	mu       sync.Mutex
	cfg      config.AppConfig
	statusFn func() map[string]any
}

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

func New(cfg config.AppConfig, statusFn func() map[string]any) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:  make(map[*websocket.Conn]*sync.Mutex),
		cfg:      cfg,
		statusFn: statusFn,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/decode", s.handleDecode)
	mux.HandleFunc("/convert", s.handleConvert)
	return mux
}

// Run serves HTTP on cfg.Port and forwards every message to the websocket
// clients until ctx is done.
func Run(ctx context.Context, cfg config.AppConfig, messages <-chan any, statusFn func() map[string]any) error {
	srv := New(cfg, statusFn)
	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	go srv.Broadcast(ctx, messages)

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	s.mu.Lock()
	writeMu := &sync.Mutex{}
	s.clients[conn] = writeMu
	s.mu.Unlock()

	_ = s.writeJSON(conn, writeMu, map[string]any{
		"type":    "config",
		"im_host": s.cfg.IMHost,
		"im_port": s.cfg.IMPort,
		"variant": s.cfg.Variant,
	})

	go func() {
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(pingEvery)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if err := s.writeMessage(conn, writeMu, websocket.PingMessage, nil); err != nil {
						_ = conn.Close()
						return
					}
				}
			}
		}()
		defer close(done)
		defer s.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{}
	if s.statusFn != nil {
		if status := s.statusFn(); status != nil {
			payload = status
		}
	}
	payload["ws_clients"] = s.clientCount()
	writeJSONResponse(w, http.StatusOK, payload)
}

// handleDecode serves /decode?name=<filename>[&variant=IM03|IM04].
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	name := query.Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing name"))
		return
	}

	var (
		rec metadata.Record
		err error
	)
	if variant := query.Get("variant"); variant != "" && variant != "auto" {
		var v metadata.Variant
		if v, err = metadata.ParseVariant(variant); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var d *metadata.Decoder
		if d, err = metadata.NewDecoder(v); err == nil {
			rec, err = d.Decode(name)
		}
	} else {
		rec, err = metadata.Decode(name)
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, rec)
}

// handleConvert serves /convert?x=&y=&pixel=&cx=&cy=[&width=&height=].
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	values := map[string]float64{}
	for _, key := range []string{"x", "y", "pixel", "cx", "cy"} {
		v, err := strconv.ParseFloat(query.Get(key), 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid or missing "+key))
			return
		}
		values[key] = v
	}

	conv := stage.NewConverter()
	for key, dst := range map[string]*int{"width": &conv.ImageWidth, "height": &conv.ImageHeight} {
		raw := query.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("invalid "+key))
			return
		}
		*dst = v
	}

	center := stage.Coordinate{X: values["cx"], Y: values["cy"]}
	writeJSONResponse(w, http.StatusOK, conv.PixelToStage(values["x"], values["y"], values["pixel"], center))
}

// Broadcast sends every message as JSON to all websocket clients.
func (s *Server) Broadcast(ctx context.Context, messages <-chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-messages:
			if !ok {
				return
			}
			payload, err := json.Marshal(message)
			if err != nil {
				continue
			}
			var stale []*websocket.Conn
			s.mu.Lock()
			for conn, writeMu := range s.clients {
				if err := s.writeMessage(conn, writeMu, websocket.TextMessage, payload); err != nil {
					stale = append(stale, conn)
				}
			}
			s.mu.Unlock()
			for _, conn := range stale {
				s.removeClient(conn)
			}
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) writeJSON(conn *websocket.Conn, writeMu *sync.Mutex, payload any) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(payload)
}

func (s *Server) writeMessage(conn *websocket.Conn, writeMu *sync.Mutex, messageType int, payload []byte) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, payload)
}

func writeJSONResponse(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSONResponse(w, code, map[string]string{"error": err.Error()})
}
