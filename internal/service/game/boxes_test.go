package game

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
)

func TestLoadBoxConfig_InsertsDefaultsAndBackfillsScale(t *testing.T) {
	e := newEnv(t, 10)
	e.m.opts.Assets = []string{"EURUSD", "GBPUSD"}
	e.storage.boxes["EURUSD"] = entity.BoxSize{AssetPair: "EURUSD", BoxWidth: 0.0001, GameAllowed: true}

	require.NoError(t, e.m.LoadBoxConfig(context.Background()))

	inserted, ok := e.storage.boxes["GBPUSD"]
	require.True(t, ok)
	assert.Equal(t, entity.DefaultBoxSize("GBPUSD"), inserted)
	assert.False(t, inserted.GameAllowed)

	eur, ok := e.m.ConfiguredBox("EURUSD")
	require.True(t, ok)
	assert.Equal(t, entity.DefaultScaleK, eur.ScaleK)
}

func TestRecalculateBoxes_StaticWidth(t *testing.T) {
	e := newEnv(t, 10)
	e.ready(t)

	boxes := e.m.CalculatedBoxes()
	require.Len(t, boxes, 1)
	assert.InDelta(t, 1.2*0.0001, boxes[0].BoxWidth, 1e-12)

	stored := e.storage.boxes["EURUSD"]
	assert.Equal(t, 0.0001, stored.BoxWidth)
}

func TestRecalculateBoxes_VolatilityWidth(t *testing.T) {
	e := newEnv(t, 10)
	e.graph.volatility["EURUSD"] = 0.5
	e.ready(t)

	boxes := e.m.CalculatedBoxes()
	require.Len(t, boxes, 1)
	assert.InDelta(t, 1.2*0.5*0.0009, boxes[0].BoxWidth, 1e-12)

	stored := e.storage.boxes["EURUSD"]
	assert.InDelta(t, 0.5*0.0009, stored.BoxWidth, 1e-12)
	assert.Equal(t, map[string]float64{"EURUSD": 0.5}, e.m.Volatilities())
}

func TestRecalculateBoxes_SkipsAssetsWithoutSamples(t *testing.T) {
	e := newEnv(t, 10)
	e.storage.boxes["GBPUSD"] = entity.BoxSize{AssetPair: "GBPUSD", ScaleK: 1, BoxWidth: 1, GameAllowed: true}
	e.ready(t)

	boxes := e.m.CalculatedBoxes()
	require.Len(t, boxes, 1)
	assert.Equal(t, "EURUSD", boxes[0].AssetPair)
}

func TestReloadGameAssets(t *testing.T) {
	e := newEnv(t, 10)
	e.ready(t)
	e.storage.boxes["EURUSD"] = entity.BoxSize{AssetPair: "EURUSD", ScaleK: 1, BoxWidth: 0.5, GameAllowed: true, SaveHistory: true}

	require.NoError(t, e.m.ReloadGameAssets(context.Background()))
	assert.True(t, e.m.SavesHistory("EURUSD"))
	assert.Len(t, e.m.reload, 1)
}

func TestInitUser_ReturnsSeconds(t *testing.T) {
	e := newEnv(t, 10)
	e.ready(t)

	boxes, err := e.m.InitUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.Equal(t, 7.0, boxes[0].BoxHeight)
	assert.Equal(t, 4.0, boxes[0].TimeToFirstBox)

	// the shared snapshot stays in milliseconds
	assert.Equal(t, 7000.0, e.m.CalculatedBoxes()[0].BoxHeight)
	assert.Contains(t, e.storage.statuses("u1"), entity.StatusLaunch)
}

func TestRequestUserCoeff(t *testing.T) {
	e := newEnv(t, 10)
	e.ready(t)
	ctx := context.Background()

	table, err := e.m.RequestUserCoeff(ctx, "EURUSD", "")
	require.NoError(t, err)
	assert.Equal(t, EmptyTable(), table)

	live := `[[{"hitCoeff":1.7,"missCoeff":0.8}]]`
	e.m.coefs.Set("EURUSD", live)
	e.m.OnPriceTick(entity.Price{Instrument: "EURUSD", Bid: 1.1, Ask: 1.2, Date: time.Now()})

	table, err = e.m.RequestUserCoeff(ctx, "EURUSD", "u1")
	require.NoError(t, err)
	assert.Equal(t, live, table)
	assert.Contains(t, e.storage.statuses("u1"), entity.StatusCoeffRequest)
}

func TestAddUserLog(t *testing.T) {
	e := newEnv(t, 10)
	ctx := context.Background()

	require.NoError(t, e.m.AddUserLog(ctx, "u1", "8", "Coeff: 1.24, Bet: 1.5"))
	require.NoError(t, e.m.AddUserLog(ctx, "u1", "9", "Value: 3.75"))
	require.NoError(t, e.m.AddUserLog(ctx, "u1", "x", "free text"))

	require.Len(t, e.storage.logs, 3)
	assert.True(t, decimal.RequireFromString("-1.5").Equal(e.storage.logs[0].AccountDelta))
	assert.True(t, decimal.RequireFromString("3.75").Equal(e.storage.logs[1].AccountDelta))
	assert.True(t, e.storage.logs[2].AccountDelta.IsZero())

	assert.Equal(t, []entity.GameStatus{entity.StatusBetPlaced, entity.StatusBetWon, entity.GameStatus(-1)}, e.storage.statuses("u1"))
}

func TestSetUserBalance_DeltaAgainstCurrentBalance(t *testing.T) {
	e := newEnv(t, 4)
	ctx := context.Background()
	e.fund(t, "u1", "100")

	s, err := e.m.Session(ctx, "u1")
	require.NoError(t, err)
	s.credit(decimal.NewFromInt(5), time.Now())

	require.NoError(t, e.m.SetUserBalance(ctx, "u1", decimal.NewFromInt(200)))

	last := e.storage.history[len(e.storage.history)-1]
	assert.Equal(t, entity.StatusBalanceChanged, last.Status)
	assert.True(t, decimal.NewFromInt(95).Equal(last.AccountDelta), last.AccountDelta.String())
	assert.True(t, decimal.NewFromInt(85).Equal(s.setBalance(decimal.NewFromInt(285), time.Now())))
}
