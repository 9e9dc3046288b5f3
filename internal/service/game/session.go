package game

import (
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
	"github.com/forkme7/BoxOptionsServer/pkg/ringbuf"
)

const sessionHistory = 256

// Session is the in-memory state of one user. It owns its bets.
type Session struct {
	UserID string
	Topic  string

	mx         sync.Mutex
	balance    decimal.Decimal
	lastChange time.Time
	bets       []*Bet
	history    *ringbuf.Ring[entity.HistoryItem]

	// guarded by sessionCache.mx
	pins int
}

func newSession(user entity.User, topic string) *Session {
	return &Session{
		UserID:     user.ID,
		Topic:      topic,
		balance:    user.Balance,
		lastChange: user.LastChange,
		history:    ringbuf.New[entity.HistoryItem](sessionHistory),
	}
}

func (s *Session) Balance() decimal.Decimal {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.balance
}

func (s *Session) LastChange() time.Time {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.lastChange
}

// withdraw runs the placement checks and debits amount in one critical section.
// The balance check goes first, then validate.
func (s *Session) withdraw(amount decimal.Decimal, at time.Time, validate func() error) (decimal.Decimal, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if amount.GreaterThan(s.balance) {
		return s.balance, ErrInsufficientBalance
	}
	if err := validate(); err != nil {
		return s.balance, err
	}
	s.balance = s.balance.Sub(amount)
	s.lastChange = at
	return s.balance, nil
}

func (s *Session) credit(amount decimal.Decimal, at time.Time) decimal.Decimal {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.balance = s.balance.Add(amount)
	s.lastChange = at
	return s.balance
}

// setBalance replaces the balance and returns the change.
func (s *Session) setBalance(balance decimal.Decimal, at time.Time) decimal.Decimal {
	s.mx.Lock()
	defer s.mx.Unlock()

	delta := balance.Sub(s.balance)
	s.balance = balance
	s.lastChange = at
	return delta
}

// record appends a status entry and hands it to persist with the user snapshot.
// persist runs under the session lock so snapshots leave in the order they were taken.
func (s *Session) record(status entity.GameStatus, message string, delta decimal.Decimal, at time.Time, persist func(entity.User, entity.HistoryItem)) {
	s.mx.Lock()
	defer s.mx.Unlock()

	item := entity.HistoryItem{
		UserID:       s.UserID,
		Date:         at,
		Status:       status,
		Message:      message,
		AccountDelta: delta,
	}
	s.history.PushFront(item)
	s.lastChange = at

	persist(s.userLocked(), item)
}

// History returns recent status entries, oldest first.
func (s *Session) History() []entity.HistoryItem {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.history.Snapshot()
}

func (s *Session) User() entity.User {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.userLocked()
}

func (s *Session) userLocked() entity.User {
	return entity.User{ID: s.UserID, Balance: s.balance, LastChange: s.lastChange}
}

func (s *Session) addBet(b *Bet) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.bets = append(s.bets, b)
}

func (s *Session) removeBet(b *Bet) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.bets = slices.DeleteFunc(s.bets, func(x *Bet) bool { return x == b })
}

// OpenBets counts bets in Waiting or OnGoing.
func (s *Session) OpenBets() int {
	s.mx.Lock()
	defer s.mx.Unlock()

	n := 0
	for _, b := range s.bets {
		if b.Status().Open() {
			n++
		}
	}
	return n
}

func (s *Session) Bets() []*Bet {
	s.mx.Lock()
	defer s.mx.Unlock()
	return slices.Clone(s.bets)
}

func (s *Session) dispose() {
	s.mx.Lock()
	bets := s.bets
	s.bets = nil
	s.mx.Unlock()

	for _, b := range bets {
		b.Dispose()
	}
}
