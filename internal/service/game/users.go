package game

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
)

// InitUser starts the user's game and returns the box sizes with
// BoxHeight and TimeToFirstBox in seconds.
func (m *Manager) InitUser(ctx context.Context, userID string) ([]entity.BoxSize, error) {
	s, release, err := m.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	calculated := m.CalculatedBoxes()
	boxes := make([]entity.BoxSize, 0, len(calculated))
	var msg strings.Builder
	msg.WriteString("Box sizes:")
	for _, b := range calculated {
		b.BoxHeight /= 1000
		b.TimeToFirstBox /= 1000
		boxes = append(boxes, b)
		fmt.Fprintf(&msg, " [%s] W=%g H=%g R=%d", b.AssetPair, b.BoxWidth, b.BoxHeight, b.BoxesPerRow)
	}

	m.setStatus(s, entity.StatusLaunch, decimal.Zero, msg.String())
	return boxes, nil
}

func (m *Manager) SetUserBalance(ctx context.Context, userID string, balance decimal.Decimal) error {
	s, release, err := m.acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	delta := s.setBalance(balance, m.now())
	m.setStatus(s, entity.StatusBalanceChanged, delta, fmt.Sprintf("Balance changed: %s", balance))
	return nil
}

func (m *Manager) GetUserBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	s, err := m.Session(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Balance(), nil
}

// RequestUserCoeff returns the cached coefficient table of pair, or the
// all-ones table when the asset had no price within PriceStaleAfter.
func (m *Manager) RequestUserCoeff(ctx context.Context, pair, userID string) (string, error) {
	if !m.prices.Fresh(pair, m.now(), m.opts.PriceStaleAfter) {
		return EmptyTable(), nil
	}
	table, ok := m.coefs.Get(pair)
	if !ok {
		table = EmptyTable()
	}

	if userID != "" {
		s, release, err := m.acquire(ctx, userID)
		if err != nil {
			return "", err
		}
		defer release()
		m.setStatus(s, entity.StatusCoeffRequest, decimal.Zero, "["+pair+"]")
	}
	return table, nil
}

// AddUserLog stores a client log line and records it as a status.
// Code 8 carries "Bet:<amount>", code 9 carries "Value:<prize>".
func (m *Manager) AddUserLog(ctx context.Context, userID, eventCode, message string) error {
	s, release, err := m.acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	delta := logDelta(eventCode, message)
	item := entity.LogItem{
		ClientID:     userID,
		EventCode:    eventCode,
		Message:      message,
		AccountDelta: delta,
		Date:         m.now(),
	}
	m.queue.Enqueue(userID, "insert user log", func(ctx context.Context) error {
		return m.storage.InsertLog(ctx, item)
	})

	code, err := strconv.Atoi(eventCode)
	if err != nil {
		code = -1
	}
	m.setStatus(s, entity.GameStatus(code), delta, message)
	return nil
}

func logDelta(eventCode, message string) decimal.Decimal {
	switch eventCode {
	case strconv.Itoa(int(entity.StatusBetPlaced)):
		idx := strings.Index(message, "Bet:")
		if idx < 0 {
			return decimal.Zero
		}
		v, err := decimal.NewFromString(strings.TrimSpace(message[idx+len("Bet:"):]))
		if err != nil {
			return decimal.Zero
		}
		return v.Abs().Neg()
	case strconv.Itoa(int(entity.StatusBetWon)):
		v, err := decimal.NewFromString(strings.TrimSpace(strings.Replace(message, "Value:", "", 1)))
		if err != nil {
			return decimal.Zero
		}
		return v
	}
	return decimal.Zero
}
