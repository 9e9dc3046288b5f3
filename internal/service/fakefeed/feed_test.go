package fakefeed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
)

type memStore struct {
	mx     sync.Mutex
	prices []entity.Price
	err    error
}

func (m *memStore) Store(_ context.Context, price entity.Price) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.err != nil {
		return m.err
	}
	m.prices = append(m.prices, price)
	return nil
}

func (m *memStore) len() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return len(m.prices)
}

func TestFeedNext(t *testing.T) {
	f := NewFeed(&memStore{}, time.Second, "EURUSD", "XYZ")
	now := time.Now()

	prev := 1.08
	for i := 0; i < 100; i++ {
		p := f.next("EURUSD", now)
		require.True(t, p.Valid())
		assert.Less(t, p.Bid, p.Ask)
		assert.InEpsilon(t, prev, p.MidPrice(), 0.0003)
		prev = p.MidPrice()
	}

	assert.InEpsilon(t, 1, f.next("XYZ", now).MidPrice(), 0.0003)
}

func TestFeedRun(t *testing.T) {
	store := &memStore{}
	f := NewFeed(store, 5*time.Millisecond, "EURUSD", "BTCUSD")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	require.Eventually(t, func() bool { return store.len() >= 4 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	failing := &memStore{err: errors.New("broker down")}
	assert.ErrorContains(t, NewFeed(failing, time.Millisecond, "EURUSD").Run(context.Background()), "broker down")
}
