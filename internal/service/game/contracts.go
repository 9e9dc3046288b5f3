package game

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
)

var ErrUserNotFound = errors.New("user not found")

// Storage is everything the engine persists. Calls are made from outbox workers.
type Storage interface {
	LoadUser(ctx context.Context, userID string) (entity.User, error)
	SaveUser(ctx context.Context, user entity.User) error
	SaveUserState(ctx context.Context, user entity.User, item entity.HistoryItem) error
	SaveBet(ctx context.Context, bet entity.BetRecord) error
	BoxConfigs(ctx context.Context) ([]entity.BoxSize, error)
	InsertBoxConfigs(ctx context.Context, boxes []entity.BoxSize) error
	SaveBoxConfig(ctx context.Context, box entity.BoxSize) error
	InsertLog(ctx context.Context, item entity.LogItem) error
}

// CoefficientService is the external pricing service. It keeps state per owner id.
type CoefficientService interface {
	Change(ctx context.Context, ownerID, pair string, timeToFirstBox, boxHeight int, boxWidth float64, nPriceIndex, nTimeIndex int) (string, error)
	Request(ctx context.Context, ownerID, pair string) (string, error)
}

// GraphSource supplies recent mid-price samples and volatility per asset.
type GraphSource interface {
	Samples(pair string) []float64
	Volatility(pair string) float64
}

type Publisher interface {
	Publish(ctx context.Context, topic string, ev entity.GameEvent) error
}

// Queue runs jobs in the background. Jobs with the same key run in order.
type Queue interface {
	Enqueue(key, name string, job func(ctx context.Context) error)
}

// CoefficientValidator decides whether a box coefficient is acceptable for the asset.
type CoefficientValidator func(pair string, coefficient decimal.Decimal) error

// AcceptAnyCoefficient is the default validator.
func AcceptAnyCoefficient(string, decimal.Decimal) error {
	return nil
}
