package ebus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinged struct{ N int }

type ponged struct{}

func TestEBus_EmitCallsAllListeners(t *testing.T) {
	bus := New()
	first := errors.New("first failed")
	got := 0

	bus.
		Subscribe(pinged{}, Typed(func(ctx context.Context, e pinged) error { return first })).
		Subscribe(pinged{}, Typed(func(ctx context.Context, e pinged) error {
			got = e.N
			return nil
		}))

	err := bus.Emit(context.Background(), pinged{N: 7})
	require.Error(t, err)
	assert.ErrorIs(t, err, first)
	assert.Equal(t, 7, got)
}

func TestEBus_EmitWithoutListeners(t *testing.T) {
	bus := New()
	assert.Error(t, bus.Emit(context.Background(), ponged{}))
}

func TestTyped_WrongType(t *testing.T) {
	l := Typed(func(ctx context.Context, e pinged) error { return nil })
	assert.Error(t, l(context.Background(), ponged{}))
}
