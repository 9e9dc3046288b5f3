package graph

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeries(t *testing.T) {
	series := NewSeries("EURUSD", time.Second*5)
	start := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	series.Add(1.1, start)
	assert.Equal(t, []float64{1.1}, series.Mids())

	// same second replaces the sample
	series.Add(1.2, start.Add(time.Millisecond*300))
	assert.Equal(t, []float64{1.2}, series.Mids())

	// gap repeats the last price
	series.Add(1.5, start.Add(time.Second*3))
	assert.Equal(t, []float64{1.2, 1.2, 1.2, 1.5}, series.Mids())

	// late tick is ignored
	series.Add(9, start.Add(time.Second))
	assert.Equal(t, []float64{1.2, 1.2, 1.2, 1.5}, series.Mids())

	// window keeps the last five seconds
	series.Add(1.6, start.Add(time.Second*5))
	assert.Equal(t, []float64{1.2, 1.2, 1.5, 1.5, 1.6}, series.Mids())
}

func TestSeriesCarry(t *testing.T) {
	series := NewSeries("EURUSD", time.Second*10)
	start := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	series.Carry(start)
	assert.Empty(t, series.Mids())

	series.Add(2, start)
	series.Carry(start.Add(time.Second * 2))
	assert.Equal(t, []float64{2, 2, 2}, series.Mids())

	series.Carry(start.Add(time.Second * 2).Add(time.Millisecond * 900))
	assert.Len(t, series.Mids(), 3)
}

func TestSeriesVolatility(t *testing.T) {
	series := NewSeries("EURUSD", time.Minute)
	start := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	series.Add(1, start)
	series.Add(1, start.Add(time.Second))
	assert.Zero(t, series.Volatility())

	series.Add(1, start.Add(time.Second*2))
	assert.Zero(t, series.Volatility())

	flat := NewSeries("EURUSD", time.Minute)
	for i, mid := range []float64{1, 1.01, 1, 1.01, 1} {
		flat.Add(mid, start.Add(time.Duration(i)*time.Second))
	}
	vol := flat.Volatility()
	require.Greater(t, vol, 0.0)

	up, down := math.Log(1.01), math.Log(1/1.01)
	mean := (up*2 + down*2) / 4
	variance := (2*(up-mean)*(up-mean) + 2*(down-mean)*(down-mean)) / 3
	assert.InDelta(t, math.Sqrt(variance), vol, 1e-12)
}
