// Package bridge lets a browser page stream device sensors and camera
// frames into Eilo over a websocket, and pushes mood changes back.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"eilo/internal/companion"
	"eilo/internal/pet"
	"eilo/internal/sensor"
	"eilo/internal/session"
)

// Companion is what the bridge drives.
type Companion interface {
	Motion(m sensor.Motion)
	Orientation(o sensor.Orientation)
	Frame(f sensor.Frame)
	Pet(ctx context.Context) bool
	Activity()
	Send(ctx context.Context, text string) error
	Subscribe(fn func(pet.Transition)) (unsubscribe func())
	Status() companion.Status
}

// Accounts switches the signed-in user.
type Accounts interface {
	SignIn(u session.User)
	SignOut()
}

// Options configure a Server.
type Options struct {
	// Origins are the websocket origin patterns accepted. Empty means
	// localhost only.
	Origins []string
	// Accounts enables signin/signout messages when set.
	Accounts Accounts
	// ChatTimeout bounds a chat message sent over the bridge.
	ChatTimeout time.Duration
}

// Server is the sensor bridge.
type Server struct {
	companion Companion
	opts      Options
	router    chi.Router
}

// New builds the bridge routes.
func New(c Companion, opts Options) *Server {
	if len(opts.Origins) == 0 {
		opts.Origins = []string{"localhost:*", "127.0.0.1:*"}
	}
	if opts.ChatTimeout <= 0 {
		opts.ChatTimeout = 90 * time.Second
	}
	s := &Server{companion: c, opts: opts}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/healthz"))

	r.Get("/status", s.handleStatus)
	r.Get("/ws", s.handleSocket)
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("sensor bridge listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("sensor bridge stopped")
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statusMessage(s.companion.Status())); err != nil {
		log.Debug().Err(err).Msg("write status")
	}
}
