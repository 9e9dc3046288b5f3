package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type BetStatus int

const (
	BetWaiting BetStatus = iota
	BetOnGoing
	BetWin
	BetLose
)

func (s BetStatus) String() string {
	switch s {
	case BetWaiting:
		return "Waiting"
	case BetOnGoing:
		return "OnGoing"
	case BetWin:
		return "Win"
	case BetLose:
		return "Lose"
	}
	return "Unknown"
}

// Open reports whether the bet still waits for an outcome.
func (s BetStatus) Open() bool {
	return s == BetWaiting || s == BetOnGoing
}

// BetRecord is the persisted form of a bet.
type BetRecord struct {
	ID             string
	UserID         string
	AssetPair      string
	Amount         decimal.Decimal
	Box            Box
	Params         BoxSize
	Status         BetStatus
	PlacedAt       time.Time
	GraphReachedAt *time.Time
	WinAt          *time.Time
	FinishedAt     *time.Time
	Log            string
}
