package game

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
	"github.com/forkme7/BoxOptionsServer/internal/event"
	"github.com/forkme7/BoxOptionsServer/internal/metrics"
	"github.com/forkme7/BoxOptionsServer/pkg/logx"
)

const (
	NPriceIndex = 15
	NTimeIndex  = 8

	reloadDelay = time.Second
)

type Options struct {
	Assets          []string
	MaxUserBuffer   int
	CoefRefresh     time.Duration
	ChangeEvery     time.Duration
	BoxRecalc       time.Duration
	PriceStaleAfter time.Duration
	TopicPrefix     string
}

type Deps struct {
	Storage      Storage
	Coefficients CoefficientService
	Graph        GraphSource
	Publisher    Publisher
	Queue        Queue
	Validator    CoefficientValidator
	Metrics      *metrics.Metrics
	Log          *slog.Logger
}

// Manager runs the game: it ingests prices, drives bets to an outcome,
// keeps user sessions and refreshes box sizes and coefficients.
type Manager struct {
	ID   string
	opts Options

	storage      Storage
	coefSvc      CoefficientService
	graph        GraphSource
	pub          Publisher
	queue        Queue
	validateCoef CoefficientValidator
	metrics      *metrics.Metrics
	log          *slog.Logger
	errs         *logx.Limited
	now          func() time.Time

	// ingest is held for the cache shift and the running bets snapshot only
	ingest sync.Mutex
	prices *PriceCache

	// coefGate serializes change and get passes; lastChange is read and written under it
	coefGate   *semaphore.Weighted
	coefs      *CoefficientCache
	lastChange time.Time

	betsMx  sync.Mutex
	running map[string]map[*Bet]struct{}

	sessions *sessionCache

	boxMx      sync.RWMutex
	configured []entity.BoxSize
	calculated atomic.Pointer[[]entity.BoxSize]

	reload    chan struct{}
	closeOnce sync.Once
}

func NewManager(opts Options, deps Deps) *Manager {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	validator := deps.Validator
	if validator == nil {
		validator = AcceptAnyCoefficient
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.Nop()
	}

	id := uuid.NewString()
	log = log.With(slog.String("manager", id))

	return &Manager{
		ID:           id,
		opts:         opts,
		storage:      deps.Storage,
		coefSvc:      deps.Coefficients,
		graph:        deps.Graph,
		pub:          deps.Publisher,
		queue:        deps.Queue,
		validateCoef: validator,
		metrics:      m,
		log:          log,
		errs:         logx.NewLimited(log, time.Minute),
		now:          time.Now,
		prices:       NewPriceCache(),
		coefGate:     semaphore.NewWeighted(1),
		coefs:        NewCoefficientCache(),
		running:      make(map[string]map[*Bet]struct{}),
		sessions:     newSessionCache(opts.MaxUserBuffer),
		reload:       make(chan struct{}, 1),
	}
}

// Run loads box config, does the first calculation and change pass, then
// drives the coefficient and box timers until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	defer m.Close()

	if err := m.LoadBoxConfig(ctx); err != nil {
		return fmt.Errorf("game manager: %w", err)
	}
	m.recalculateBoxes()
	m.refreshCoefficients(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.coefficientLoop(ctx) })
	g.Go(func() error { return m.boxLoop(ctx) })

	return g.Wait()
}

// coefficientLoop re-arms its timer only after a pass completes, so passes never overlap.
func (m *Manager) coefficientLoop(ctx context.Context) error {
	timer := time.NewTimer(m.opts.CoefRefresh)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			m.refreshCoefficients(ctx)
			timer.Reset(m.opts.CoefRefresh)
		}
	}
}

func (m *Manager) boxLoop(ctx context.Context) error {
	timer := time.NewTimer(m.opts.BoxRecalc)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			m.recalculateBoxes()
			timer.Reset(m.opts.BoxRecalc)
		case <-m.reload:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(reloadDelay)
		}
	}
}

// Close disposes every session, which cancels the timers of their bets.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		for _, s := range m.sessions.drain() {
			s.dispose()
		}
		m.betsMx.Lock()
		m.running = make(map[string]map[*Bet]struct{})
		m.betsMx.Unlock()
	})
}

// HandlePrice is the event bus entry for feed ticks.
func (m *Manager) HandlePrice(ctx context.Context, ev event.PriceReceived) error {
	m.OnPriceTick(ev.Price)
	return nil
}

// OnPriceTick shifts the price cache and re-checks the asset's running bets
// in the background. Ticks of all assets pass one at a time.
func (m *Manager) OnPriceTick(price entity.Price) {
	if !price.Valid() {
		m.log.Warn("price dropped", slog.String("pair", price.Instrument),
			slog.Float64("bid", price.Bid), slog.Float64("ask", price.Ask))
		return
	}

	m.ingest.Lock()
	quote := m.prices.Shift(price)
	bets := m.runningFor(price.Instrument)
	m.ingest.Unlock()

	m.metrics.Ticks.WithLabelValues(price.Instrument).Inc()

	for _, bet := range bets {
		go m.checkOngoing(bet, quote)
	}
}

// OnBetTransition receives the timer events of every bet.
func (m *Manager) OnBetTransition(t Transition) {
	switch t.Kind {
	case GraphReached:
		if q, ok := m.prices.Get(t.Bet.AssetPair); ok && q.ready() {
			go m.checkInitial(t.Bet, q.Current)
		}
		m.addRunning(t.Bet)
	case TimeLengthFinished:
		m.finish(t.Bet)
	}
}

func (m *Manager) checkInitial(bet *Bet, current entity.Price) {
	if bet.Status() != entity.BetOnGoing {
		return
	}

	if WinsInitial(bet.Box, m.decimal("CheckWinOnstarted", current.MidPrice())) {
		m.settleWin(bet)
		return
	}
	// the client learns the bet went live
	m.publish(bet.session, betResult(bet))
}

func (m *Manager) checkOngoing(bet *Bet, q Quote) {
	if bet.Status() != entity.BetOnGoing {
		return
	}

	current := m.decimal("CheckWinOngoing", q.Current.MidPrice())
	previous := current
	if q.HasPrevious {
		previous = m.decimal("CheckWinOngoing", q.Previous.MidPrice())
	}

	if WinsOngoing(bet.Box, current, previous) {
		m.settleWin(bet)
	}
}

func (m *Manager) settleWin(bet *Bet) {
	// a won bet no longer counts as open, so the session stays held until credited
	defer m.sessions.hold(bet.session)()

	at := m.now()
	if !bet.win(at) {
		return
	}
	m.removeRunning(bet)

	prize := bet.Prize()
	bet.session.credit(prize, at)
	m.metrics.BetsWon.Inc()

	m.publish(bet.session, betResult(bet))
	m.saveBet(bet)
	m.setStatus(bet.session, entity.StatusBetWon, prize,
		fmt.Sprintf("Bet WON [%s] [%s] Bet:%s Coef:%s Prize:%s", bet.Box.ID, bet.AssetPair, bet.Amount, bet.Box.Coefficient, prize))
}

func (m *Manager) finish(bet *Bet) {
	defer m.sessions.hold(bet.session)()

	m.removeRunning(bet)
	bet.session.removeBet(bet)
	defer bet.Dispose()

	if !bet.lose() {
		m.saveBet(bet)
		return
	}
	m.metrics.BetsLost.Inc()

	m.publish(bet.session, betResult(bet))
	m.saveBet(bet)
	m.setStatus(bet.session, entity.StatusBetLost, decimal.Zero,
		fmt.Sprintf("Bet LOST [%s] [%s] Bet:%s", bet.Box.ID, bet.AssetPair, bet.Amount))
}

// runningFor returns the asset's running bets that have not won yet.
func (m *Manager) runningFor(pair string) []*Bet {
	m.betsMx.Lock()
	defer m.betsMx.Unlock()

	bets := make([]*Bet, 0, len(m.running[pair]))
	for bet := range m.running[pair] {
		if bet.Status() != entity.BetWin {
			bets = append(bets, bet)
		}
	}
	return bets
}

func (m *Manager) addRunning(bet *Bet) {
	m.betsMx.Lock()
	defer m.betsMx.Unlock()

	if bet.Status() != entity.BetOnGoing {
		return
	}
	set, ok := m.running[bet.AssetPair]
	if !ok {
		set = make(map[*Bet]struct{})
		m.running[bet.AssetPair] = set
	}
	set[bet] = struct{}{}
}

func (m *Manager) removeRunning(bet *Bet) {
	m.betsMx.Lock()
	defer m.betsMx.Unlock()

	if set, ok := m.running[bet.AssetPair]; ok {
		delete(set, bet)
		if len(set) == 0 {
			delete(m.running, bet.AssetPair)
		}
	}
}

// RunningBets is the size of the running index.
func (m *Manager) RunningBets() int {
	m.betsMx.Lock()
	defer m.betsMx.Unlock()

	n := 0
	for _, set := range m.running {
		n += len(set)
	}
	return n
}

// Stats is polled by the watcher.
func (m *Manager) Stats() event.EngineStats {
	return event.EngineStats{
		Sessions:     m.sessions.len(),
		RunningBets:  m.RunningBets(),
		Coefficients: m.coefs.Len(),
	}
}

func (m *Manager) decimal(process string, v float64) decimal.Decimal {
	d, delta := toDecimal(v)
	if lossy(delta) {
		m.log.Warn("double to decimal conversion fail", slog.String("process", process),
			slog.Float64("delta", delta), slog.Float64("double", v), slog.String("decimal", d.String()))
	}
	return d
}

func (m *Manager) publish(s *Session, ev entity.GameEvent) {
	m.queue.Enqueue(s.UserID, "publish game event", func(ctx context.Context) error {
		return m.pub.Publish(ctx, s.Topic, ev)
	})
}

func (m *Manager) saveBet(bet *Bet) {
	rec := bet.Record()
	m.queue.Enqueue(bet.UserID, "save bet", func(ctx context.Context) error {
		return m.storage.SaveBet(ctx, rec)
	})
}

// setStatus appends to the session's history and persists user and entry together.
func (m *Manager) setStatus(s *Session, status entity.GameStatus, delta decimal.Decimal, message string) {
	s.record(status, message, delta, m.now(), func(user entity.User, item entity.HistoryItem) {
		m.queue.Enqueue(s.UserID, "save user state", func(ctx context.Context) error {
			return m.storage.SaveUserState(ctx, user, item)
		})
	})
}

func (m *Manager) topic(userID string) string {
	return m.opts.TopicPrefix + "." + userID
}

func betResult(bet *Bet) entity.GameEvent {
	return entity.GameEvent{
		EventType:       entity.EventBetResult,
		EventParameters: fmt.Sprintf("%s;%d", bet.Box.ID, int(bet.Status())),
	}
}
