package outbox

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/forkme7/BoxOptionsServer/internal/metrics"
	"github.com/forkme7/BoxOptionsServer/pkg/logx"
)

const drainTimeout = 5 * time.Second

type job struct {
	key  string
	name string
	run  func(ctx context.Context) error
}

// Outbox runs fire-and-forget jobs on a fixed set of workers. Jobs are
// sharded by key so that one key's jobs run in order. Enqueue never blocks:
// when a shard is full its oldest job is dropped.
type Outbox struct {
	shards  []chan job
	locks   []sync.Mutex
	metrics *metrics.Metrics
	log     *slog.Logger
	errs    *logx.Limited
}

func New(shards, size int, m *metrics.Metrics, log *slog.Logger) *Outbox {
	if shards < 1 {
		shards = 1
	}
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.Nop()
	}

	o := &Outbox{
		shards:  make([]chan job, shards),
		locks:   make([]sync.Mutex, shards),
		metrics: m,
		log:     log,
		errs:    logx.NewLimited(log, time.Minute),
	}
	for i := range o.shards {
		o.shards[i] = make(chan job, size)
	}
	return o
}

func (o *Outbox) Enqueue(key, name string, fn func(ctx context.Context) error) {
	i := o.shardOf(key)
	shard := o.shards[i]
	j := job{key: key, name: name, run: fn}

	o.locks[i].Lock()
	defer o.locks[i].Unlock()

	for {
		select {
		case shard <- j:
			return
		default:
		}

		select {
		case old := <-shard:
			o.metrics.OutboxDropped.Inc()
			o.log.Warn("outbox full, job dropped", slog.String("job", old.name), slog.String("key", old.key))
		default:
		}
	}
}

// Depth is the number of queued jobs.
func (o *Outbox) Depth() int {
	n := 0
	for _, shard := range o.shards {
		n += len(shard)
	}
	return n
}

// Run works the shards until ctx is done, then drains what is left.
func (o *Outbox) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := range o.shards {
		wg.Add(1)
		go func(shard chan job) {
			defer wg.Done()
			o.work(ctx, shard)
		}(o.shards[i])
	}
	wg.Wait()

	return ctx.Err()
}

func (o *Outbox) work(ctx context.Context, shard chan job) {
	for {
		select {
		case <-ctx.Done():
			o.drain(shard)
			return
		case j := <-shard:
			o.exec(ctx, j)
		}
	}
}

func (o *Outbox) drain(shard chan job) {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case j := <-shard:
			o.exec(ctx, j)
		default:
			return
		}
	}
}

func (o *Outbox) exec(ctx context.Context, j job) {
	if err := j.run(ctx); err != nil {
		o.metrics.OutboxFailed.Inc()
		o.errs.Error(j.name, err, slog.String("key", j.key))
	}
}

func (o *Outbox) shardOf(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(o.shards)))
}
