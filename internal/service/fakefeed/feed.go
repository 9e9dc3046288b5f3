package fakefeed

import (
	"context"
	"math/rand"
	"time"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
)

type QuoteStore interface {
	Store(ctx context.Context, price entity.Price) error
}

// Feed produces a random walk of quotes for development.
type Feed struct {
	assets   []string
	repo     QuoteStore
	interval time.Duration
	mids     map[string]float64
	rnd      *rand.Rand
}

var startMids = map[string]float64{
	"EURUSD": 1.08,
	"EURCHF": 0.95,
	"BTCUSD": 60000,
}

func NewFeed(repo QuoteStore, interval time.Duration, assets ...string) *Feed {
	mids := make(map[string]float64, len(assets))
	for _, asset := range assets {
		mid, ok := startMids[asset]
		if !ok {
			mid = 1
		}
		mids[asset] = mid
	}

	return &Feed{
		assets:   assets,
		repo:     repo,
		interval: interval,
		mids:     mids,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (f *Feed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := time.Now().UTC()
			for _, asset := range f.assets {
				if err := f.repo.Store(ctx, f.next(asset, now)); err != nil {
					return err
				}
			}
		}
	}
}

// next moves the mid by up to 2 bps and quotes a 1 bp spread around it.
func (f *Feed) next(asset string, at time.Time) entity.Price {
	mid := f.mids[asset] * (1 + (f.rnd.Float64()-0.5)*0.0004)
	f.mids[asset] = mid

	half := mid * 0.00005
	return entity.Price{
		Instrument: asset,
		Bid:        mid - half,
		Ask:        mid + half,
		Date:       at,
		Source:     "fakefeed",
	}
}
