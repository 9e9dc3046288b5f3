package game

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
)

type TransitionKind int

const (
	GraphReached TransitionKind = iota + 1
	TimeLengthFinished
)

func (k TransitionKind) String() string {
	switch k {
	case GraphReached:
		return "GraphReached"
	case TimeLengthFinished:
		return "TimeLengthFinished"
	}
	return "Unknown"
}

// Transition is sent by a bet when one of its timers fires.
type Transition struct {
	Kind TransitionKind
	Bet  *Bet
	At   time.Time
}

// Transitions receives timer-driven bet transitions.
type Transitions interface {
	OnBetTransition(Transition)
}

// Bet is a single wager. Status changes are guarded by mx; the timer
// handle is owned by the bet and at most one is pending at a time.
type Bet struct {
	ID        string
	UserID    string
	AssetPair string
	Amount    decimal.Decimal
	Box       entity.Box
	Params    entity.BoxSize
	PlacedAt  time.Time

	session *Session
	sink    Transitions
	now     func() time.Time

	mx             sync.Mutex
	status         entity.BetStatus
	graphReachedAt time.Time
	winAt          time.Time
	finishedAt     time.Time
	timer          *time.Timer
	disposed       bool
	audit          strings.Builder
}

func newBet(session *Session, pair string, amount decimal.Decimal, box entity.Box, params entity.BoxSize, sink Transitions, now func() time.Time) *Bet {
	return &Bet{
		ID:        uuid.NewString(),
		UserID:    session.UserID,
		AssetPair: pair,
		Amount:    amount,
		Box:       box,
		Params:    params,
		PlacedAt:  now(),
		session:   session,
		sink:      sink,
		now:       now,
	}
}

// start puts the bet in Waiting and arms the time-to-graph timer.
func (b *Bet) start() {
	b.mx.Lock()
	defer b.mx.Unlock()

	b.status = entity.BetWaiting
	b.logStep("RUNBET", b.PlacedAt, b.now())
	b.timer = time.AfterFunc(seconds(b.Box.TimeToGraph), b.graphReached)
}

func (b *Bet) graphReached() {
	b.mx.Lock()
	if b.disposed || b.status != entity.BetWaiting {
		b.mx.Unlock()
		return
	}
	at := b.now()
	b.timer = nil
	b.status = entity.BetOnGoing
	b.graphReachedAt = at
	b.logStep("GRAPHR", b.PlacedAt.Add(seconds(b.Box.TimeToGraph)), at)
	b.mx.Unlock()

	// the receiver indexes the bet before the next timer can fire
	b.sink.OnBetTransition(Transition{Kind: GraphReached, Bet: b, At: at})

	b.mx.Lock()
	defer b.mx.Unlock()
	if b.disposed {
		return
	}
	b.timer = time.AfterFunc(seconds(b.Box.TimeLength), b.lengthFinished)
}

func (b *Bet) lengthFinished() {
	b.mx.Lock()
	if b.disposed || b.status == entity.BetWaiting {
		b.mx.Unlock()
		return
	}
	at := b.now()
	b.timer = nil
	b.finishedAt = at
	b.logStep("BETEND", b.PlacedAt.Add(seconds(b.Box.TimeToGraph+b.Box.TimeLength)), at)
	b.mx.Unlock()

	b.sink.OnBetTransition(Transition{Kind: TimeLengthFinished, Bet: b, At: at})
}

// win moves an OnGoing bet to Win. Any other status is left as is.
func (b *Bet) win(at time.Time) bool {
	b.mx.Lock()
	defer b.mx.Unlock()

	if b.status != entity.BetOnGoing {
		return false
	}
	b.status = entity.BetWin
	b.winAt = at
	return true
}

// lose moves an OnGoing bet to Lose. Win is never overwritten.
func (b *Bet) lose() bool {
	b.mx.Lock()
	defer b.mx.Unlock()

	if b.status != entity.BetOnGoing {
		return false
	}
	b.status = entity.BetLose
	return true
}

func (b *Bet) Status() entity.BetStatus {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.status
}

// Dispose cancels the pending timer. Timer callbacks that already started see disposed and stop.
func (b *Bet) Dispose() {
	b.mx.Lock()
	defer b.mx.Unlock()

	b.disposed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Bet) Record() entity.BetRecord {
	b.mx.Lock()
	defer b.mx.Unlock()

	return entity.BetRecord{
		ID:             b.ID,
		UserID:         b.UserID,
		AssetPair:      b.AssetPair,
		Amount:         b.Amount,
		Box:            b.Box,
		Params:         b.Params,
		Status:         b.status,
		PlacedAt:       b.PlacedAt,
		GraphReachedAt: stamp(b.graphReachedAt),
		WinAt:          stamp(b.winAt),
		FinishedAt:     stamp(b.finishedAt),
		Log:            b.audit.String(),
	}
}

func (b *Bet) Prize() decimal.Decimal {
	return b.Amount.Mul(b.Box.Coefficient)
}

func (b *Bet) logStep(step string, calc, real time.Time) {
	if b.audit.Len() > 0 {
		b.audit.WriteString("\n")
	}
	fmt.Fprintf(&b.audit, "%s Calc:%s Real:%s Delta(seconds):%.3f",
		step, calc.Format(timeLayout), real.Format(timeLayout), real.Sub(calc).Seconds())
}

const timeLayout = "15:04:05.000"

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func stamp(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
