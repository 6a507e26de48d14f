package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
)

// New initializes the server with its default routers.
func New(l hclog.Logger) (*Server, error) {
	s := Server{
		l: l.Named("http"),
		r: chi.NewRouter(),
		n: &http.Server{ReadHeaderTimeout: 10 * time.Second},
	}

	s.r.Use(middleware.Logger)
	s.r.Use(middleware.Recoverer)
	s.r.Use(middleware.Heartbeat("/healthz"))

	s.r.Get("/", s.rootIndex)

	return &s, nil
}

// Serve binds, initializes the mux, and serves until the context is
// cancelled.
func (s *Server) Serve(ctx context.Context, bind string) error {
	s.l.Info("HTTP is starting", "bind", bind)
	s.n.Addr = bind
	s.n.Handler = s.r

	errs := make(chan error, 1)
	go func() { errs <- s.n.ListenAndServe() }()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		s.l.Info("HTTP is shutting down")
		shutdown, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return s.n.Shutdown(shutdown)
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) rootIndex(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "arepo is running, check other handlers for more information")
}

// Mount attaches a set of routes to the subpath specified by the path
// argument.
func (s *Server) Mount(path string, router chi.Router) {
	s.r.Mount(path, router)
}
