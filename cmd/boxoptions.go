package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/IBM/sarama"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/forkme7/BoxOptionsServer/config"
	"github.com/forkme7/BoxOptionsServer/internal/event"
	"github.com/forkme7/BoxOptionsServer/internal/metrics"
	"github.com/forkme7/BoxOptionsServer/internal/repository"
	"github.com/forkme7/BoxOptionsServer/internal/repository/coefapi"
	"github.com/forkme7/BoxOptionsServer/internal/repository/history"
	"github.com/forkme7/BoxOptionsServer/internal/repository/postgres"
	"github.com/forkme7/BoxOptionsServer/internal/service/consumer"
	"github.com/forkme7/BoxOptionsServer/internal/service/fakefeed"
	"github.com/forkme7/BoxOptionsServer/internal/service/game"
	"github.com/forkme7/BoxOptionsServer/internal/service/graph"
	"github.com/forkme7/BoxOptionsServer/internal/service/interrupter"
	"github.com/forkme7/BoxOptionsServer/internal/service/outbox"
	"github.com/forkme7/BoxOptionsServer/internal/service/watcher"
	"github.com/forkme7/BoxOptionsServer/internal/service/web"
	"github.com/forkme7/BoxOptionsServer/pkg/app"
	"github.com/forkme7/BoxOptionsServer/pkg/ebus"
	"github.com/forkme7/BoxOptionsServer/pkg/utils"
)

func main() {
	cfgPath := os.Getenv("BOX_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg := utils.Must(config.Build(cfgPath))

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(log)

	ctx := context.Background()
	eBus := ebus.New()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	kafkaCl := utils.Must(sarama.NewClient(cfg.Kafka.Brokers, cfg.Kafka.SaramaConfig()))
	defer kafkaCl.Close()
	prod := utils.Must(sarama.NewSyncProducerFromClient(kafkaCl))
	defer prod.Close()

	pool := utils.Must(pgxpool.New(ctx, cfg.Postgres.DSN))
	defer pool.Close()
	txManager := utils.Must(manager.New(trmpgx.NewDefaultFactory(pool)))
	storage := postgres.New(pool, txManager)
	utils.Check(storage.Migrate(ctx))

	var engine *game.Manager
	quoteHistory := utils.Must(history.Open(history.Options{
		Path:       cfg.History.Path,
		FlushSize:  cfg.History.FlushSize,
		FlushEvery: cfg.History.FlushEvery,
		Keep:       func(pair string) bool { return engine.SavesHistory(pair) },
	}, log))
	defer quoteHistory.Close()

	graphRepo := repository.NewGraphState(kafkaCl, prod, cfg.Kafka.GraphTopic)
	micrograph := graph.NewGraph(cfg.Game.GraphWindow, graphRepo, quoteHistory, eBus, log).
		AddAsset(cfg.Game.Assets...)

	queue := outbox.New(cfg.Outbox.Shards, cfg.Outbox.QueueSize, m, log)
	srv := web.New(cfg.Web.Addr, reg, log)

	engine = game.NewManager(game.Options{
		Assets:          cfg.Game.Assets,
		MaxUserBuffer:   cfg.Game.MaxUserBuffer,
		CoefRefresh:     cfg.Game.CoefRefresh,
		ChangeEvery:     cfg.Game.ChangeEvery,
		BoxRecalc:       cfg.Game.BoxRecalc,
		PriceStaleAfter: cfg.Game.PriceStaleAfter,
		TopicPrefix:     cfg.Game.TopicPrefix,
	}, game.Deps{
		Storage:      storage,
		Coefficients: coefapi.New(cfg.Coef.URL, cfg.Coef.Timeout),
		Graph:        micrograph,
		Publisher:    srv,
		Queue:        queue,
		Metrics:      m,
		Log:          log,
	})
	srv.WithGame(engine)

	quotes := utils.Must(consumer.NewConsumer(kafkaCl, cfg.Kafka.QuoteTopic, cfg.Kafka.QuoteGroup, eBus))
	watch := watcher.NewWatcher(eBus).
		EmitEvery(10*time.Second, func(ctx context.Context) (any, error) {
			stats := engine.Stats()
			stats.QueueDepth = queue.Depth()
			return stats, nil
		})

	eBus.
		Subscribe(event.GraphSaved{}, watcher.LogAny).
		Subscribe(event.GraphRestored{}, watcher.LogAny).
		Subscribe(event.PriceSkipped{}, watcher.LogAny).
		Subscribe(event.EngineStats{}, watcher.LogAny).
		Subscribe(event.EngineStats{}, ebus.Typed(m.ObserveStats)).
		Subscribe(event.EngineStats{}, ebus.Typed(srv.UpdateStats)).
		Subscribe(event.PriceReceived{}, ebus.Typed(micrograph.HandlePrice)).
		Subscribe(event.PriceReceived{}, ebus.Typed(engine.HandlePrice)).
		Subscribe(event.PriceReceived{}, ebus.Typed(quoteHistory.HandlePrice))

	boxApp := app.NewApp(log).
		WithService(queue).
		WithService(quoteHistory).
		WithService(micrograph).
		WithService(engine).
		WithService(quotes).
		WithService(watch).
		WithService(srv).
		WithService(interrupter.Interrupter{})

	if cfg.FakeFeed.Enabled {
		quoteRepo := repository.NewQuote(prod, cfg.Kafka.QuoteTopic)
		boxApp.WithService(fakefeed.NewFeed(quoteRepo, cfg.FakeFeed.Interval, cfg.FakeFeed.Assets...))
	}

	err := boxApp.Run(ctx)
	if errors.Is(err, interrupter.ErrInterrupted) {
		log.Info("stopped", slog.Any("reason", err))
		return
	}
	log.Error("stopped", slog.Any("err", err))
	os.Exit(1)
}
