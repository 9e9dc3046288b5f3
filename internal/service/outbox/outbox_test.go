package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkme7/BoxOptionsServer/internal/metrics"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type collector struct {
	mx   sync.Mutex
	seen []int
}

func (c *collector) job(n int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		c.mx.Lock()
		defer c.mx.Unlock()
		c.seen = append(c.seen, n)
		return nil
	}
}

func (c *collector) values() []int {
	c.mx.Lock()
	defer c.mx.Unlock()
	return append([]int(nil), c.seen...)
}

func TestOutbox_DropsOldestWhenFull(t *testing.T) {
	m := metrics.Nop()
	box := New(1, 2, m, quiet())
	c := &collector{}

	for i := 1; i <= 3; i++ {
		box.Enqueue("u1", "save", c.job(i))
	}
	assert.Equal(t, 2, box.Depth())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxDropped))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- box.Run(ctx) }()

	require.Eventually(t, func() bool { return len(c.values()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []int{2, 3}, c.values())
}

func TestOutbox_KeepsOrderPerKey(t *testing.T) {
	box := New(4, 128, metrics.Nop(), quiet())
	c := &collector{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = box.Run(ctx) }()

	for i := 0; i < 100; i++ {
		box.Enqueue("same-user", "save", c.job(i))
	}

	require.Eventually(t, func() bool { return len(c.values()) == 100 }, time.Second, 5*time.Millisecond)
	for i, v := range c.values() {
		assert.Equal(t, i, v)
	}
}

func TestOutbox_DrainsOnShutdown(t *testing.T) {
	m := metrics.Nop()
	box := New(2, 16, m, quiet())
	c := &collector{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	box.Enqueue("a", "save", c.job(1))
	box.Enqueue("b", "fail", func(ctx context.Context) error { return errors.New("db down") })

	assert.ErrorIs(t, box.Run(ctx), context.Canceled)
	assert.Equal(t, []int{1}, c.values())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxFailed))
	assert.Equal(t, 0, box.Depth())
}
