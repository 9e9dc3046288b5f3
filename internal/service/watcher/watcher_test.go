package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkme7/BoxOptionsServer/internal/event"
	"github.com/forkme7/BoxOptionsServer/pkg/ebus"
)

func TestWatcherEmits(t *testing.T) {
	got := make(chan event.EngineStats, 10)
	bus := ebus.New().Subscribe(event.EngineStats{}, ebus.Typed(func(_ context.Context, ev event.EngineStats) error {
		got <- ev
		return nil
	}))

	w := NewWatcher(bus).EmitEvery(10*time.Millisecond, func(context.Context) (any, error) {
		return event.EngineStats{Sessions: 2}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case ev := <-got:
		assert.Equal(t, 2, ev.Sessions)
	case <-time.After(time.Second):
		t.Fatal("no stats emitted")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcherFails(t *testing.T) {
	w := NewWatcher(ebus.New()).EmitEvery(5*time.Millisecond, func(context.Context) (any, error) {
		return nil, errors.New("no stats")
	})

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "no stats")
}

func TestLogAny(t *testing.T) {
	assert.NoError(t, LogAny(context.Background(), event.PriceSkipped{Instrument: "EURUSD", Reason: "test"}))
}
