// Package web provides the HTTP status and control server for the antenna-control daemon.
package web

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/sweeney/antenna-control/internal/poller"
	"github.com/sweeney/antenna-control/internal/status"
)

// Controller is the part of the mode controller the server drives.
type Controller interface {
	SetMode(on bool) error
	Start() bool
	Stop() error
}

// Option configures a Server.
type Option func(*Server)

// WithRefresh sets a function called before every snapshot so responses
// reflect the state left behind by the request.
func WithRefresh(fn func()) Option {
	return func(s *Server) { s.refresh = fn }
}

// WithModeListener sets a function called after every successful mode change.
func WithModeListener(fn func(on bool)) Option {
	return func(s *Server) { s.onMode = fn }
}

// Server serves the status page and the control endpoints over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	ctrl       Controller
	refresh    func()
	onMode     func(on bool)
}

// ModeRequest is the body of PUT /mode.
type ModeRequest struct {
	Enabled *bool `json:"enabled"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// New creates a Server that reads state from tracker and forwards control
// requests to ctrl.
func New(addr string, tracker *status.Tracker, ctrl Controller, opts ...Option) *Server {
	s := &Server{tracker: tracker, ctrl: ctrl}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/index.html", s.handleIndex)
	r.Get("/index.json", s.handleJSON)
	r.Put("/mode", s.handleMode)
	r.Post("/start", s.handleStart)
	r.Post("/stop", s.handleStop)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Handler returns the router, for mounting in tests or another server.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
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

func (s *Server) snapshot() status.Snapshot {
	if s.refresh != nil {
		s.refresh()
	}
	return s.tracker.Snapshot()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		log.Printf("web: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, status.Build(s.snapshot()))
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.Enabled == nil {
		s.fail(w, r, http.StatusBadRequest, `missing "enabled"`)
		return
	}

	on := *req.Enabled
	if err := s.ctrl.SetMode(on); err != nil {
		log.Printf("web: set df mode=%v: %v", on, err)
		s.fail(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if s.onMode != nil {
		s.onMode(on)
	}
	render.JSON(w, r, status.Build(s.snapshot()))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if s.ctrl.Start() {
		log.Printf("web: polling started")
	}
	render.JSON(w, r, status.Build(s.snapshot()))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Stop(); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, poller.ErrStopTimeout) {
			code = http.StatusServiceUnavailable
		}
		log.Printf("web: stop: %v", err)
		s.fail(w, r, code, err.Error())
		return
	}
	render.JSON(w, r, status.Build(s.snapshot()))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, code int, msg string) {
	render.Status(r, code)
	render.JSON(w, r, ErrorResponse{Error: msg})
}
