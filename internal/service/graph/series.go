package graph

import (
	"math"
	"sync"
	"time"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
	"github.com/forkme7/BoxOptionsServer/pkg/ringbuf"
)

const step = time.Second

// Series holds one mid-price per second for an asset, newest first.
type Series struct {
	Asset   string
	Samples *ringbuf.Ring[entity.Sample]
	mx      sync.RWMutex
}

func NewSeries(asset string, window time.Duration) *Series {
	size := int(window / step)
	return &Series{
		Asset:   asset,
		Samples: ringbuf.New[entity.Sample](size),
	}
}

// Add records mid at ts. Ticks older than the last second are dropped,
// seconds without ticks repeat the last price.
func (s *Series) Add(mid float64, ts time.Time) {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.addLocked(mid, ts.Truncate(step))
}

func (s *Series) addLocked(mid float64, ts time.Time) {
	if s.Samples.Count() == 0 {
		s.Samples.PushFront(entity.Sample{At: ts, Mid: mid})
		return
	}

	last := s.Samples.GetN(0)

	// late arrived tick
	if ts.Before(last.At) {
		return
	}

	// fall into last second
	if ts.Equal(last.At) {
		s.Samples.SetN(0, entity.Sample{At: ts, Mid: mid})
		return
	}

	gap := int(ts.Sub(last.At)/step) - 1
	if gap > s.Samples.Len() {
		gap = s.Samples.Len()
	}
	for i := gap; i > 0; i-- {
		s.Samples.PushFront(entity.Sample{At: ts.Add(-time.Duration(i) * step), Mid: last.Mid})
	}
	s.Samples.PushFront(entity.Sample{At: ts, Mid: mid})
}

// Carry extends the series up to now with the last known price.
func (s *Series) Carry(now time.Time) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.Samples.Count() == 0 {
		return
	}
	last := s.Samples.GetN(0)
	if now = now.Truncate(step); now.After(last.At) {
		s.addLocked(last.Mid, now)
	}
}

// Mids returns the sampled prices, oldest first.
func (s *Series) Mids() []float64 {
	s.mx.RLock()
	defer s.mx.RUnlock()

	samples := s.Samples.Snapshot()
	mids := make([]float64, 0, len(samples))
	for _, smp := range samples {
		mids = append(mids, smp.Mid)
	}
	return mids
}

// Volatility is the standard deviation of log returns between consecutive samples.
func (s *Series) Volatility() float64 {
	mids := s.Mids()
	if len(mids) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(mids)-1)
	for i := 1; i < len(mids); i++ {
		if mids[i-1] <= 0 || mids[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(mids[i]/mids[i-1]))
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance)
}

func (s *Series) snapshot() entity.GraphSeries {
	s.mx.RLock()
	defer s.mx.RUnlock()

	ring := ringbuf.New[entity.Sample](s.Samples.Len())
	for _, smp := range s.Samples.Snapshot() {
		ring.PushFront(smp)
	}
	return entity.GraphSeries{Asset: s.Asset, Samples: ring}
}
