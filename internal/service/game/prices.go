package game

import (
	"sync"
	"time"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
)

// Quote is the last two ticks of one asset.
type Quote struct {
	Current     entity.Price
	Previous    entity.Price
	HasPrevious bool
}

// ready reports whether both samples exist and have a positive mid-price.
func (q Quote) ready() bool {
	return q.HasPrevious && q.Current.MidPrice() > 0 && q.Previous.MidPrice() > 0
}

// PriceCache is written only by tick ingestion, under the ingestion gate.
// The mutex only makes concurrent reads safe.
type PriceCache struct {
	mx     sync.RWMutex
	quotes map[string]Quote
}

func NewPriceCache() *PriceCache {
	return &PriceCache{
		quotes: make(map[string]Quote),
	}
}

// Shift moves current to previous, stores p as current and returns the new quote.
func (c *PriceCache) Shift(p entity.Price) Quote {
	c.mx.Lock()
	defer c.mx.Unlock()

	q, ok := c.quotes[p.Instrument]
	if ok {
		q.Previous = q.Current
		q.HasPrevious = true
	}
	q.Current = p
	c.quotes[p.Instrument] = q

	return q
}

func (c *PriceCache) Get(pair string) (Quote, bool) {
	c.mx.RLock()
	defer c.mx.RUnlock()

	q, ok := c.quotes[pair]
	return q, ok
}

// Fresh reports whether pair got a tick dated within maxAge of now.
func (c *PriceCache) Fresh(pair string, now time.Time, maxAge time.Duration) bool {
	q, ok := c.Get(pair)
	return ok && now.Sub(q.Current.Date) <= maxAge
}
