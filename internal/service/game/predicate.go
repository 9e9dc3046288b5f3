package game

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
)

const (
	conversionTolerance = 0.000001
	significantDigits   = 15
)

// WinsInitial is the single-sample check made when a bet reaches the graph.
func WinsInitial(box entity.Box, current decimal.Decimal) bool {
	return current.GreaterThan(box.MinPrice) && current.LessThan(box.MaxPrice)
}

// WinsOngoing is the two-sample check made on every tick. A tick that jumps
// over the whole band counts as a hit.
func WinsOngoing(box entity.Box, current, previous decimal.Decimal) bool {
	return WinsInitial(box, current) ||
		(previous.GreaterThan(box.MaxPrice) && current.LessThan(box.MinPrice)) ||
		(previous.LessThan(box.MinPrice) && current.GreaterThan(box.MaxPrice))
}

// toDecimal converts a feed price rounded to 15 significant digits and
// returns the round-trip error.
func toDecimal(v float64) (decimal.Decimal, float64) {
	d := decimal.NewFromFloat(v)
	if v != 0 {
		exp := int32(math.Floor(math.Log10(math.Abs(v))))
		d = d.Round(significantDigits - 1 - exp)
	}
	back, _ := d.Float64()
	return d, back - v
}

func lossy(delta float64) bool {
	return math.Abs(delta) > conversionTolerance
}
