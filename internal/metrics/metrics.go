package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/forkme7/BoxOptionsServer/internal/event"
)

const namespace = "boxoptions"

type Metrics struct {
	Ticks         *prometheus.CounterVec
	BetsPlaced    prometheus.Counter
	BetsWon       prometheus.Counter
	BetsLost      prometheus.Counter
	Rejected      *prometheus.CounterVec
	CoefErrors    *prometheus.CounterVec
	OutboxDropped prometheus.Counter
	OutboxFailed  prometheus.Counter
	Sessions      prometheus.Gauge
	RunningBets   prometheus.Gauge
	QueueDepth    prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "price_ticks_total", Help: "Ingested price ticks.",
		}, []string{"pair"}),
		BetsPlaced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bets_placed_total", Help: "Accepted bets.",
		}),
		BetsWon: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bets_won_total", Help: "Bets finished with a win.",
		}),
		BetsLost: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bets_lost_total", Help: "Bets finished with a loss.",
		}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "bets_rejected_total", Help: "Rejected placements by reason.",
		}, []string{"reason"}),
		CoefErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "coefficient_errors_total", Help: "Failed coefficient service calls.",
		}, []string{"pass"}),
		OutboxDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "outbox_dropped_total", Help: "Jobs dropped from a full outbox shard.",
		}),
		OutboxFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "outbox_failed_total", Help: "Jobs that returned an error.",
		}),
		Sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sessions", Help: "Cached user sessions.",
		}),
		RunningBets: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "running_bets", Help: "Bets in the running index.",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "outbox_depth", Help: "Queued outbox jobs.",
		}),
	}
}

// Nop returns metrics bound to a private registry.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

// ObserveStats mirrors an engine snapshot into the gauges.
func (m *Metrics) ObserveStats(_ context.Context, stats event.EngineStats) error {
	m.Sessions.Set(float64(stats.Sessions))
	m.RunningBets.Set(float64(stats.RunningBets))
	m.QueueDepth.Set(float64(stats.QueueDepth))
	return nil
}
