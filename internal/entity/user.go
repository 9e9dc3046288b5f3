package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID         string
	Balance    decimal.Decimal
	LastChange time.Time
}

type GameStatus int

const (
	StatusLaunch GameStatus = iota
	StatusWake
	StatusSleep
	StatusGameStarted
	StatusGameClosed
	StatusChangeBet
	StatusChangeScale
	StatusCoeffRequest
	StatusBetPlaced
	StatusBetWon
	StatusBetLost
	StatusError
	StatusBalanceChanged
)

var statusNames = [...]string{
	"Launch", "Wake", "Sleep", "GameStarted", "GameClosed", "ChangeBet", "ChangeScale",
	"CoeffRequest", "BetPlaced", "BetWon", "BetLost", "Error", "BalanceChanged",
}

func (s GameStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "Unknown"
	}
	return statusNames[s]
}

// HistoryItem is one entry of a user's status log.
type HistoryItem struct {
	UserID       string
	Date         time.Time
	Status       GameStatus
	Message      string
	AccountDelta decimal.Decimal
}

// LogItem is a free-text client log line.
type LogItem struct {
	ClientID     string
	EventCode    string
	Message      string
	AccountDelta decimal.Decimal
	Date         time.Time
}
