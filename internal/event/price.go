package event

import "github.com/forkme7/BoxOptionsServer/internal/entity"

type PriceReceived struct {
	entity.Price

	Offset int64
}

type PriceSkipped struct {
	Instrument string
	Reason     string
}
