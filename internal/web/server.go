// Package web provides the HTTP status page and command endpoints for the
// relay daemon.
package web

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sweeney/piface-relay/internal/logic"
	"github.com/sweeney/piface-relay/internal/status"
)

// Commander runs a command on the device loop and returns its result.
type Commander interface {
	Submit(ctx context.Context, cmd logic.Command) error
}

// Server serves the status page and command endpoints over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	commands   Commander
}

// New creates a Server that reads state from tracker and sends commands
// through commands. A nil commands serves the read-only pages only.
func New(addr string, tracker *status.Tracker, commands Commander) *Server {
	s := &Server{tracker: tracker, commands: commands}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleIndex)
	r.Get("/index.html", s.handleIndex)
	r.Get("/index.json", s.handleJSON)
	if commands != nil {
		r.Post("/relays/{n}/toggle", s.handleToggle)
		r.Post("/actions/{action}", s.handleAction)
		r.Post("/connect", s.handleKind(logic.CommandConnect))
		r.Post("/disconnect", s.handleKind(logic.CommandDisconnect))
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Handler returns the router. Useful for tests.
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

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		writeResult(w, http.StatusBadRequest, logic.CommandToggle, err)
		return
	}
	s.submit(w, r, logic.Command{Kind: logic.CommandToggle, Relay: n})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	a, err := logic.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		writeResult(w, http.StatusBadRequest, logic.CommandActivate, err)
		return
	}
	s.submit(w, r, logic.Command{Kind: logic.CommandActivate, Action: a})
}

func (s *Server) handleKind(kind logic.CommandKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.submit(w, r, logic.Command{Kind: kind})
	}
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, cmd logic.Command) {
	err := s.commands.Submit(r.Context(), cmd)
	writeResult(w, statusCode(err), cmd.Kind, err)
}
