// Package web provides the HTTP status and control surface of the cover
// controller.
package web

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/cover-controller/internal/config"
	"github.com/sweeney/cover-controller/internal/controller"
	"github.com/sweeney/cover-controller/internal/status"
)

// Commander accepts remote commands for the control loop.
type Commander interface {
	Submit(cmd controller.Command) error
}

// Admin manages the configuration file. Reloads are applied by the
// control loop, not by the caller.
type Admin interface {
	ConfigYAML() ([]byte, error)
	SaveConfig(data []byte) error
	RequestReload()
}

// maxConfigSize bounds a posted configuration file.
const maxConfigSize = 64 << 10

// Server serves the status page, JSON status, actions, configuration and
// the live log.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	commander  Commander
	admin      Admin
	logs       *LogHub
	upgrader   websocket.Upgrader
}

// New creates a Server that reads state from tracker and forwards actions
// to commander. admin may be nil, which disables the configuration
// endpoints; logs may be nil, which disables the live log.
func New(addr string, tracker *status.Tracker, commander Commander, admin Admin, logs *LogHub) *Server {
	s := &Server{
		tracker:   tracker,
		commander: commander,
		admin:     admin,
		logs:      logs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/status", s.handleJSON)
	mux.HandleFunc("/action/open_cover", s.action(func(*http.Request) (controller.Command, error) {
		return controller.Command{Kind: controller.CommandOpen}, nil
	}))
	mux.HandleFunc("/action/close_cover", s.action(func(*http.Request) (controller.Command, error) {
		return controller.Command{Kind: controller.CommandClose}, nil
	}))
	mux.HandleFunc("/action/turn_off_light", s.action(func(*http.Request) (controller.Command, error) {
		return controller.Command{Kind: controller.CommandLightOff}, nil
	}))
	mux.HandleFunc("/action/set_brightness", s.action(brightnessCommand))
	if admin != nil {
		mux.HandleFunc("/config", s.handleConfig)
		mux.HandleFunc("/action/save_config", s.handleSaveConfig)
		mux.HandleFunc("/action/reload_config", s.handleReloadConfig)
	}
	mux.HandleFunc("/log/ws", s.handleLogWS)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		log.Printf("web: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

var errBadLevel = errors.New("level must be an integer")

// brightnessCommand reads the optional level parameter. Without one the
// potentiometer setting is used.
func brightnessCommand(r *http.Request) (controller.Command, error) {
	cmd := controller.Command{Kind: controller.CommandBrightness, Level: controller.UsePot}
	v := r.FormValue("level")
	if v == "" {
		return cmd, nil
	}
	level, err := strconv.Atoi(v)
	if err != nil {
		return cmd, errBadLevel
	}
	cmd.Level = level
	return cmd, nil
}

func (s *Server) action(build func(*http.Request) (controller.Command, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowOnly(w, r, http.MethodPost) {
			return
		}
		cmd, err := build(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.commander.Submit(cmd); err != nil {
			log.Printf("web: %s: %v", r.URL.Path, err)
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		log.Printf("web: %s accepted", r.URL.Path)
		writeOK(w)
	}
}

func allowOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("OK"))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodGet) {
		return
	}
	data, err := s.admin.ConfigYAML()
	if err != nil {
		log.Printf("web: /config: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.Write(data)
}

// handleSaveConfig replaces the configuration file with the request body
// and schedules a reload.
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodPost) {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxConfigSize))
	if err != nil {
		http.Error(w, "config too large", http.StatusRequestEntityTooLarge)
		return
	}
	if err := s.admin.SaveConfig(data); err != nil {
		log.Printf("web: save config: %v", err)
		code := http.StatusInternalServerError
		if errors.Is(err, config.ErrInvalid) {
			code = http.StatusBadRequest
		}
		http.Error(w, err.Error(), code)
		return
	}
	log.Printf("web: config saved")
	writeOK(w)
}

func (s *Server) handleReloadConfig(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodPost) {
		return
	}
	s.admin.RequestReload()
	log.Printf("web: config reload requested")
	writeOK(w)
}

const wsWriteTimeout = 5 * time.Second

func (s *Server) handleLogWS(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		http.NotFound(w, r)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}
	defer conn.Close()

	history, lines, unsubscribe := s.logs.Subscribe()
	defer unsubscribe()

	// The client never sends anything; reading detects when it goes away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(line string) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteMessage(websocket.TextMessage, []byte(line)) == nil
	}
	for _, line := range history {
		if !send(line) {
			return
		}
	}
	for {
		select {
		case line := <-lines:
			if !send(line) {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
