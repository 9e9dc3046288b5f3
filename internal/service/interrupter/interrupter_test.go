package interrupter

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInterrupterSignal(t *testing.T) {
	done := make(chan error, 1)
	go func() { done <- Interrupter{}.Run(context.Background()) }()

	// give Run time to install the handler
	time.Sleep(50 * time.Millisecond)
	assert.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrInterrupted)
	case <-time.After(time.Second):
		t.Fatal("interrupter did not stop")
	}
}

func TestInterrupterContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, Interrupter{}.Run(ctx), context.Canceled)
}
