package graph

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
	"github.com/forkme7/BoxOptionsServer/internal/event"
	"github.com/forkme7/BoxOptionsServer/pkg/ebus"
)

type memRestorer struct {
	mx     sync.Mutex
	state  entity.GraphState
	stored []entity.GraphState
}

func (m *memRestorer) LastState(context.Context) (entity.GraphState, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.state, nil
}

func (m *memRestorer) Store(_ context.Context, state entity.GraphState) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.stored = append(m.stored, state)
	return nil
}

type memHistory map[string][]entity.Price

func (h memHistory) AssetHistory(_ context.Context, from, to time.Time, pair string) ([]entity.Price, error) {
	return h[pair], nil
}

func price(pair string, mid float64, at time.Time) event.PriceReceived {
	return event.PriceReceived{Price: entity.Price{Instrument: pair, Bid: mid, Ask: mid, Date: at}}
}

func TestGraphHandlePrice(t *testing.T) {
	g := NewGraph(time.Minute, &memRestorer{}, nil, ebus.New(), nil)
	g.AddAsset("EURUSD")
	g.Restore(entity.GraphState{})

	start := time.Now().Truncate(time.Second)
	ctx := context.Background()

	require.NoError(t, g.HandlePrice(ctx, price("EURUSD", 1.1, start)))
	require.NoError(t, g.HandlePrice(ctx, price("BTCUSD", 60000, start)))
	require.NoError(t, g.HandlePrice(ctx, event.PriceReceived{Price: entity.Price{Instrument: ""}}))

	assert.Equal(t, []float64{1.1}, g.Samples("EURUSD"))
	assert.Equal(t, []float64{60000}, g.Samples("BTCUSD"))
	assert.Nil(t, g.Samples("EURCHF"))
	assert.Zero(t, g.Volatility("EURCHF"))
}

func TestGraphWaitsForRestore(t *testing.T) {
	g := NewGraph(time.Minute, &memRestorer{}, nil, ebus.New(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*50)
	defer cancel()

	err := g.HandlePrice(ctx, price("EURUSD", 1.1, time.Now()))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGraphStateRoundTrip(t *testing.T) {
	start := time.Now().Truncate(time.Second)

	g := NewGraph(time.Minute, &memRestorer{}, nil, ebus.New(), nil)
	g.Restore(entity.GraphState{})
	for i, mid := range []float64{1, 2, 3} {
		require.NoError(t, g.HandlePrice(context.Background(), price("EURUSD", mid, start.Add(time.Duration(i)*time.Second))))
	}

	restored := NewGraph(time.Minute, &memRestorer{}, nil, ebus.New(), nil)
	restored.Restore(g.State())
	assert.Equal(t, []float64{1, 2, 3}, restored.Samples("EURUSD"))

	// a narrower window keeps the newest samples
	narrow := NewGraph(time.Second*2, &memRestorer{}, nil, ebus.New(), nil)
	narrow.Restore(g.State())
	assert.Equal(t, []float64{2, 3}, narrow.Samples("EURUSD"))
}

func TestGraphRun(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	rest := &memRestorer{}

	bus := ebus.New()
	restoredAssets := make(chan int, 1)
	bus.Subscribe(event.GraphRestored{}, ebus.Typed(func(_ context.Context, ev event.GraphRestored) error {
		restoredAssets <- ev.Assets
		return nil
	}))

	hist := memHistory{"EURUSD": {
		{Instrument: "EURUSD", Bid: 1, Ask: 1, Date: now.Add(-time.Second * 2)},
		{Instrument: "EURUSD", Bid: 2, Ask: 2, Date: now.Add(-time.Second)},
	}}

	g := NewGraph(time.Minute, rest, hist, bus, nil).AddAsset("EURUSD")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	select {
	case n := <-restoredAssets:
		assert.Zero(t, n)
	case <-time.After(time.Second):
		t.Fatal("graph was not restored")
	}
	assert.Equal(t, []float64{1, 2}, g.Samples("EURUSD")[:2])

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
