package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           60 * 15,
	}))

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// upgrader already replied
			s.log.Warn("websocket upgrade", slog.Any("err", err))
			return
		}

		go s.keeper.keep(s.keeper.addConn(conn))
	})

	r.Get("/coefficients", func(w http.ResponseWriter, r *http.Request) {
		pair := r.URL.Query().Get("pair")
		if pair == "" {
			http.Error(w, "pair is required", http.StatusBadRequest)
			return
		}

		table, err := s.game.RequestUserCoeff(r.Context(), pair, r.URL.Query().Get("user"))
		if err != nil {
			s.log.Error("request coefficients", slog.String("pair", pair), slog.Any("err", err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(table))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, at := s.state.get()
		js, err := json.MarshalIndent(Stats{EngineStats: stats, Clients: s.keeper.count(), UpdatedAt: at}, "", "  ")
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(js)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return r
}
