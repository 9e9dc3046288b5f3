package logx

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimited_SuppressesWithinWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimited(slog.New(slog.NewTextHandler(io.Discard, nil)), time.Minute)
	l.now = func() time.Time { return now }

	boom := errors.New("boom")
	assert.True(t, l.Error("GetCoeffs", boom))
	assert.False(t, l.Error("GetCoeffs", boom))
	assert.True(t, l.Error("SetCoeffs", boom))

	now = now.Add(61 * time.Second)
	assert.True(t, l.Error("GetCoeffs", boom))
	assert.False(t, l.Error("GetCoeffs", nil))
}
