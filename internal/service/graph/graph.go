package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
	"github.com/forkme7/BoxOptionsServer/internal/event"
	"github.com/forkme7/BoxOptionsServer/pkg/ebus"
)

// Graph keeps a micrograph per asset. It feeds box sizing with recent
// prices and volatility.
type Graph struct {
	mx     sync.RWMutex
	series map[string]*Series
	window time.Duration

	restorer Restorer
	history  History
	restored chan struct{}
	once     sync.Once

	eBus *ebus.EBus
	log  *slog.Logger
	now  func() time.Time
}

type Restorer interface {
	LastState(context.Context) (entity.GraphState, error)
	Store(context.Context, entity.GraphState) error
}

// History backfills assets missing from the restored state.
type History interface {
	AssetHistory(ctx context.Context, from, to time.Time, pair string) ([]entity.Price, error)
}

func NewGraph(window time.Duration, rest Restorer, hist History, eBus *ebus.EBus, log *slog.Logger) *Graph {
	if log == nil {
		log = slog.Default()
	}
	return &Graph{
		series:   make(map[string]*Series),
		window:   window,
		restorer: rest,
		history:  hist,
		restored: make(chan struct{}),
		eBus:     eBus,
		log:      log,
		now:      time.Now,
	}
}

func (g *Graph) AddAsset(assets ...string) *Graph {
	g.mx.Lock()
	defer g.mx.Unlock()

	for _, asset := range assets {
		if _, ok := g.series[asset]; !ok {
			g.series[asset] = NewSeries(asset, g.window)
		}
	}
	return g
}

func (g *Graph) HandlePrice(ctx context.Context, price event.PriceReceived) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.restored:
	}

	if !price.Valid() {
		return nil
	}
	g.seriesFor(price.Instrument).Add(price.MidPrice(), price.Date)
	return nil
}

func (g *Graph) seriesFor(asset string) *Series {
	g.mx.RLock()
	s, ok := g.series[asset]
	g.mx.RUnlock()
	if ok {
		return s
	}

	g.mx.Lock()
	defer g.mx.Unlock()
	if s, ok = g.series[asset]; !ok {
		s = NewSeries(asset, g.window)
		g.series[asset] = s
	}
	return s
}

func (g *Graph) Samples(pair string) []float64 {
	g.mx.RLock()
	s, ok := g.series[pair]
	g.mx.RUnlock()
	if !ok {
		return nil
	}
	return s.Mids()
}

func (g *Graph) Volatility(pair string) float64 {
	g.mx.RLock()
	s, ok := g.series[pair]
	g.mx.RUnlock()
	if !ok {
		return 0
	}
	return s.Volatility()
}

func (g *Graph) Run(ctx context.Context) error {
	state, err := g.restorer.LastState(ctx)
	if err != nil {
		return fmt.Errorf("graph state: %w", err)
	}
	g.Restore(state)
	g.backfill(ctx)

	_ = g.eBus.Emit(ctx, event.GraphRestored{Assets: len(state.Series)})

	carryTicker := time.NewTicker(time.Millisecond * 700)
	defer carryTicker.Stop()

	stateTicker := time.NewTicker(time.Second * 5)
	defer stateTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-carryTicker.C:
			now := g.now()
			g.mx.RLock()
			for _, s := range g.series {
				s.Carry(now)
			}
			g.mx.RUnlock()
		case <-stateTicker.C:
			current := g.State()
			if err := g.restorer.Store(ctx, current); err != nil {
				return fmt.Errorf("graph store: %w", err)
			}
			_ = g.eBus.Emit(ctx, event.GraphSaved{Assets: len(current.Series)})
		}
	}
}

func (g *Graph) State() entity.GraphState {
	g.mx.RLock()
	defer g.mx.RUnlock()

	state := entity.GraphState{Series: make(map[string]entity.GraphSeries, len(g.series))}
	for name, s := range g.series {
		state.Series[name] = s.snapshot()
	}
	return state
}

// Restore replaces series found in state and opens the graph for ticks.
func (g *Graph) Restore(state entity.GraphState) {
	defer g.once.Do(func() { close(g.restored) })

	g.mx.Lock()
	defer g.mx.Unlock()

	for name, stored := range state.Series {
		if stored.Samples == nil {
			continue
		}
		s := NewSeries(name, g.window)
		for _, smp := range stored.Samples.Snapshot() {
			s.addLocked(smp.Mid, smp.At)
		}
		g.series[name] = s
	}
}

func (g *Graph) backfill(ctx context.Context) {
	if g.history == nil {
		return
	}

	g.mx.RLock()
	empty := make([]*Series, 0)
	for _, s := range g.series {
		if s.Samples.Count() == 0 {
			empty = append(empty, s)
		}
	}
	g.mx.RUnlock()

	to := g.now()
	from := to.Add(-g.window)
	for _, s := range empty {
		prices, err := g.history.AssetHistory(ctx, from, to, s.Asset)
		if err != nil {
			g.log.Warn("graph backfill failed", slog.String("pair", s.Asset), slog.Any("err", err))
			continue
		}
		for _, p := range prices {
			s.Add(p.MidPrice(), p.Date)
		}
	}
}
