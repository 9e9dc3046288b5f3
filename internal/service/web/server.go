package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
	"github.com/forkme7/BoxOptionsServer/internal/event"
	"github.com/forkme7/BoxOptionsServer/internal/service/game"
)

// Game is the part of the engine exposed over http.
type Game interface {
	RequestUserCoeff(ctx context.Context, pair, userID string) (string, error)
}

type Server struct {
	web      *http.Server
	keeper   *keeper
	state    *state
	game     Game
	gatherer prometheus.Gatherer
	log      *slog.Logger
}

var _ game.Publisher = (*Server)(nil)

func New(addr string, gatherer prometheus.Gatherer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	serv := &Server{
		web: &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
		},
		keeper:   newKeeper(),
		state:    newState(),
		gatherer: gatherer,
		log:      log,
	}
	serv.web.Handler = serv.router()
	return serv
}

// WithGame sets the engine behind /coefficients. It must be called before Run.
func (s *Server) WithGame(g Game) *Server {
	s.game = g
	return s
}

func (s *Server) Run(ctx context.Context) error {
	closed := make(chan error, 1)

	go func() {
		closed <- s.web.ListenAndServe()
	}()

	select {
	case err := <-closed:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.web.Shutdown(shutdownCtx)
		s.keeper.closeAll()
		return ctx.Err()
	}
}

// Publish pushes a game event to every client subscribed to topic.
// Clients that fail to receive it are disconnected.
func (s *Server) Publish(ctx context.Context, topic string, ev entity.GameEvent) error {
	js, err := json.Marshal(NewMessage(ev))
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	var errs []error
	for _, c := range s.keeper.subscribers(topic) {
		if err := c.write(js); err != nil {
			s.keeper.close(c.conn)
			errs = append(errs, fmt.Errorf("write %s: %w", topic, err))
		}
	}

	return errors.Join(errs...)
}

func (s *Server) UpdateStats(ctx context.Context, stats event.EngineStats) error {
	s.state.update(stats, time.Now())
	return nil
}
