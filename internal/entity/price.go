package entity

import (
	"math"
	"time"
)

// Price is one quote of an instrument as delivered by the feed.
type Price struct {
	Instrument string
	Bid        float64
	Ask        float64
	Date       time.Time
	Source     string
}

func (p Price) MidPrice() float64 {
	return (p.Bid + p.Ask) / 2
}

// Valid reports whether both sides are finite numbers.
func (p Price) Valid() bool {
	for _, v := range []float64{p.Bid, p.Ask} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return p.Instrument != ""
}
