package web

import (
	"sync"
	"time"

	"github.com/forkme7/BoxOptionsServer/internal/event"
)

// Stats is the engine snapshot served at /stats.
type Stats struct {
	event.EngineStats
	Clients   int
	UpdatedAt time.Time
}

type state struct {
	stats event.EngineStats
	at    time.Time
	mx    sync.RWMutex
}

func newState() *state {
	return &state{}
}

func (s *state) update(stats event.EngineStats, at time.Time) {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.stats = stats
	s.at = at
}

func (s *state) get() (event.EngineStats, time.Time) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	return s.stats, s.at
}
