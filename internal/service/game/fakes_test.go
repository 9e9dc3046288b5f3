package game

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
	"github.com/forkme7/BoxOptionsServer/internal/metrics"
)

type memStorage struct {
	mx      sync.Mutex
	users   map[string]entity.User
	history []entity.HistoryItem
	bets    map[string]entity.BetRecord
	boxes   map[string]entity.BoxSize
	logs    []entity.LogItem
	loads   int
}

func newMemStorage() *memStorage {
	return &memStorage{
		users: make(map[string]entity.User),
		bets:  make(map[string]entity.BetRecord),
		boxes: make(map[string]entity.BoxSize),
	}
}

func (s *memStorage) LoadUser(ctx context.Context, userID string) (entity.User, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.loads++
	u, ok := s.users[userID]
	if !ok {
		return entity.User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *memStorage) SaveUser(ctx context.Context, user entity.User) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *memStorage) SaveUserState(ctx context.Context, user entity.User, item entity.HistoryItem) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.users[user.ID] = user
	s.history = append(s.history, item)
	return nil
}

func (s *memStorage) SaveBet(ctx context.Context, bet entity.BetRecord) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.bets[bet.ID] = bet
	return nil
}

func (s *memStorage) BoxConfigs(ctx context.Context) ([]entity.BoxSize, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	out := make([]entity.BoxSize, 0, len(s.boxes))
	for _, b := range s.boxes {
		out = append(out, b)
	}
	return out, nil
}

func (s *memStorage) InsertBoxConfigs(ctx context.Context, boxes []entity.BoxSize) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	for _, b := range boxes {
		s.boxes[b.AssetPair] = b
	}
	return nil
}

func (s *memStorage) SaveBoxConfig(ctx context.Context, box entity.BoxSize) error {
	return s.InsertBoxConfigs(ctx, []entity.BoxSize{box})
}

func (s *memStorage) InsertLog(ctx context.Context, item entity.LogItem) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.logs = append(s.logs, item)
	return nil
}

func (s *memStorage) user(id string) (entity.User, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *memStorage) bet(id string) (entity.BetRecord, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	b, ok := s.bets[id]
	return b, ok
}

func (s *memStorage) statuses(userID string) []entity.GameStatus {
	s.mx.Lock()
	defer s.mx.Unlock()
	out := make([]entity.GameStatus, 0)
	for _, h := range s.history {
		if h.UserID == userID {
			out = append(out, h.Status)
		}
	}
	return out
}

type fakeCoefService struct {
	mx       sync.Mutex
	changes  []string
	requests []string
	tables   map[string]string
	failing  map[string]bool
}

func newFakeCoefService() *fakeCoefService {
	return &fakeCoefService{tables: make(map[string]string), failing: make(map[string]bool)}
}

func (f *fakeCoefService) Change(ctx context.Context, ownerID, pair string, timeToFirstBox, boxHeight int, boxWidth float64, nPriceIndex, nTimeIndex int) (string, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.changes = append(f.changes, pair)
	if f.failing[pair] {
		return "", errors.New("service unavailable")
	}
	return "OK", nil
}

func (f *fakeCoefService) Request(ctx context.Context, ownerID, pair string) (string, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.requests = append(f.requests, pair)
	if f.failing[pair] {
		return "", errors.New("service unavailable")
	}
	return f.tables[pair], nil
}

type fakeGraph struct {
	samples    map[string][]float64
	volatility map[string]float64
}

func (g fakeGraph) Samples(pair string) []float64 { return g.samples[pair] }

func (g fakeGraph) Volatility(pair string) float64 { return g.volatility[pair] }

type published struct {
	Topic string
	Event entity.GameEvent
}

type fakePublisher struct {
	mx     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, ev entity.GameEvent) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.events = append(p.events, published{Topic: topic, Event: ev})
	return nil
}

func (p *fakePublisher) params() []string {
	p.mx.Lock()
	defer p.mx.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Event.EventParameters)
	}
	return out
}

// inlineQueue runs jobs right away.
type inlineQueue struct{}

func (inlineQueue) Enqueue(key, name string, job func(ctx context.Context) error) {
	_ = job(context.Background())
}

type env struct {
	m       *Manager
	storage *memStorage
	coef    *fakeCoefService
	pub     *fakePublisher
	graph   fakeGraph
}

func newEnv(t *testing.T, capacity int) *env {
	t.Helper()

	e := &env{
		storage: newMemStorage(),
		coef:    newFakeCoefService(),
		pub:     &fakePublisher{},
		graph: fakeGraph{
			samples:    map[string][]float64{"EURUSD": {1.1, 1.3}},
			volatility: map[string]float64{},
		},
	}
	e.storage.boxes["EURUSD"] = entity.BoxSize{
		AssetPair: "EURUSD", BoxesPerRow: 7, BoxHeight: 7000, BoxWidth: 0.0001,
		TimeToFirstBox: 4000, ScaleK: 0.0009, GameAllowed: true,
	}
	e.m = NewManager(Options{
		Assets:          []string{"EURUSD"},
		MaxUserBuffer:   capacity,
		CoefRefresh:     time.Second,
		ChangeEvery:     5 * time.Minute,
		BoxRecalc:       time.Hour,
		PriceStaleAfter: 10 * time.Minute,
		TopicPrefix:     "game.events",
	}, Deps{
		Storage:      e.storage,
		Coefficients: e.coef,
		Graph:        e.graph,
		Publisher:    e.pub,
		Queue:        inlineQueue{},
		Metrics:      metrics.Nop(),
		Log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(e.m.Close)

	return e
}

// ready loads config and calculates boxes like Run does on start.
func (e *env) ready(t *testing.T) {
	t.Helper()
	if err := e.m.LoadBoxConfig(context.Background()); err != nil {
		t.Fatal(err)
	}
	e.m.recalculateBoxes()
}

func (e *env) fund(t *testing.T, userID string, balance string) {
	t.Helper()
	if err := e.m.SetUserBalance(context.Background(), userID, decimal.RequireFromString(balance)); err != nil {
		t.Fatal(err)
	}
}

func tick(pair string, mid float64) entity.Price {
	return entity.Price{Instrument: pair, Bid: mid, Ask: mid, Date: time.Now()}
}
