package entity

import (
	"time"

	"github.com/forkme7/BoxOptionsServer/pkg/ringbuf"
)

// Sample is the last mid-price seen within one second.
type Sample struct {
	At  time.Time
	Mid float64
}

type GraphSeries struct {
	Asset   string
	Samples *ringbuf.Ring[Sample]
}

// GraphState is a snapshot of all micrographs.
type GraphState struct {
	Series map[string]GraphSeries
}
