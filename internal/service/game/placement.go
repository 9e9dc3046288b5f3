package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
)

// PlaceBet debits the user and starts a bet on the box.
// A rejected placement is recorded in the user's status log and returned as an error.
func (m *Manager) PlaceBet(ctx context.Context, userID, pair, boxJSON string, amount decimal.Decimal) (time.Time, error) {
	s, release, err := m.acquire(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}
	defer release()

	fail := func(err error) (time.Time, error) {
		m.metrics.Rejected.WithLabelValues(rejectReason(err)).Inc()
		m.setStatus(s, entity.StatusError, decimal.Zero, "PlaceBet Failed:"+err.Error())
		return time.Time{}, err
	}

	var (
		box    entity.Box
		params entity.BoxSize
	)
	balance, err := s.withdraw(amount, m.now(), func() error {
		if !amount.IsPositive() {
			return fmt.Errorf("%w [%s]", ErrInvalidAmount, amount)
		}
		if err := json.Unmarshal([]byte(boxJSON), &box); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidBox, err)
		}
		p, ok := m.calculatedBox(pair)
		if !ok || !p.GameAllowed {
			return fmt.Errorf("%w [%s]", ErrAssetNotAllowed, pair)
		}
		if err := m.validateCoef(pair, box.Coefficient); err != nil {
			return fmt.Errorf("%w [%s]: %v", ErrInvalidCoefficient, box.Coefficient, err)
		}
		params = p
		return nil
	})
	if err != nil {
		return fail(err)
	}

	bet := newBet(s, pair, amount, box, params, m, m.now)
	s.addBet(bet)
	bet.start()
	m.metrics.BetsPlaced.Inc()

	m.saveBet(bet)
	m.setStatus(s, entity.StatusBetPlaced, amount.Neg(),
		fmt.Sprintf("BetPlaced[%s]. Asset:%s Bet:%s Balance:%s", box.ID, pair, amount, balance))

	return bet.PlacedAt, nil
}

// Session returns the cached session of the user, loading or creating it on a miss.
// The session is not held: callers that change it use acquire.
func (m *Manager) Session(ctx context.Context, userID string) (*Session, error) {
	s, release, err := m.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	release()
	return s, nil
}

// acquire is Session with the result held against eviction until release is called.
func (m *Manager) acquire(ctx context.Context, userID string) (s *Session, release func(), err error) {
	if hit := m.sessions.acquire(userID); hit != nil {
		return hit, func() { m.sessions.release(hit) }, nil
	}

	user, err := m.storage.LoadUser(ctx, userID)
	created := false
	switch {
	case errors.Is(err, ErrUserNotFound):
		user = entity.User{ID: userID, Balance: decimal.Zero, LastChange: m.now()}
		created = true
	case err != nil:
		return nil, nil, fmt.Errorf("load user %s: %w", userID, err)
	}

	fresh := newSession(user, m.topic(userID))
	cached, evicted := m.sessions.add(fresh)
	if evicted != nil {
		evicted.dispose()
		m.log.Debug("session evicted", slog.String("user", evicted.UserID))
	}
	if cached == fresh && created {
		m.queue.Enqueue(userID, "save new user", func(ctx context.Context) error {
			return m.storage.SaveUser(ctx, user)
		})
	}
	m.metrics.Sessions.Set(float64(m.sessions.len()))

	return cached, func() { m.sessions.release(cached) }, nil
}
